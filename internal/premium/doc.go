// Package premium implements the Pi Network premium feature catalog, per-user unlocks and the payment lifecycle.
//
// # Catalog
//
// Six features can be bought with π. The annual subscription grants every other feature.
// [NextRecommended] suggests the next feature to buy in a fixed order, starting with adFree.
//
// # Manager
//
// [Manager] persists unlocks and daily analysis counters through [repositories.PremiumRepository].
// Users without unlimitedSongs may run [DefaultDailyLimit] analyses a day, counted under [UsageKey].
//
// # Payments
//
// [PaymentService] follows the Pi server-side flow:
//   - approve: the platform asks the app to accept a payment (0 < amount ≤ 10 π), stored as pending
//   - complete: the platform reports the blockchain txid, the payment is completed and its feature unlocked
//   - verify: the client asks the server to check a payment against the Pi Platform API
//   - webhook: the platform pushes status changes
package premium
