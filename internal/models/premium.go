package models

import "time"

// Feature names a premium capability that can be unlocked with a Pi payment.
type Feature string

const (
	AdvancedAnalysis   Feature = "advancedAnalysis"
	AdFree             Feature = "adFree"
	PremiumLibrary     Feature = "premiumLibrary"
	UnlimitedSongs     Feature = "unlimitedSongs"
	OfflineMode        Feature = "offlineMode"
	AnnualSubscription Feature = "annualSubscription"
)

// Features lists every premium feature in catalog order.
var Features = []Feature{AdvancedAnalysis, AdFree, PremiumLibrary, UnlimitedSongs, OfflineMode, AnnualSubscription}

// Valid reports whether f is a known feature.
func (f Feature) Valid() bool {
	for _, known := range Features {
		if f == known {
			return true
		}
	}
	return false
}

// PremiumFeatureSet maps each feature to its unlocked state.
type PremiumFeatureSet map[Feature]bool

// NewPremiumFeatureSet returns a set with every known feature locked.
func NewPremiumFeatureSet() PremiumFeatureSet {
	set := make(PremiumFeatureSet, len(Features))
	for _, f := range Features {
		set[f] = false
	}
	return set
}

// Has reports whether f is usable. The annual subscription grants every feature.
func (s PremiumFeatureSet) Has(f Feature) bool {
	return s[f] || s[AnnualSubscription]
}

// ShowAds reports whether ads should be displayed.
func (s PremiumFeatureSet) ShowAds() bool {
	return !s.Has(AdFree)
}

// Unlocked returns the features explicitly unlocked, in catalog order.
func (s PremiumFeatureSet) Unlocked() []Feature {
	var out []Feature
	for _, f := range Features {
		if s[f] {
			out = append(out, f)
		}
	}
	return out
}

// FeatureUnlock records when and with which payment a feature was unlocked.
type FeatureUnlock struct {
	Feature    Feature   `json:"feature"`
	PaymentID  string    `json:"payment_id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}
