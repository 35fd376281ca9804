// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// Repositories backed by entity tables support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [UserRepository] : Accounts keyed by Pi Network uid
//   - [PaymentRepository] : Pi payments with status transitions and per-user history
//   - [PremiumRepository] : Unlocked features and daily analysis counters
//   - [LibraryRepository] : Recent, saved and favorite songs per user
//
// Sequence numbers provide stable, human-readable ordering (e.g., payment #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
