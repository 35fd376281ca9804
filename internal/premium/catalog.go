package premium

import (
	"math"

	"github.com/desertthunder/chordypi/internal/models"
)

// MaxPaymentAmount is the largest payment the server approves, in π.
const MaxPaymentAmount = 10.0

// Item describes a purchasable premium feature.
type Item struct {
	Feature     models.Feature `json:"feature"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       float64        `json:"price"`
	Benefits    []string       `json:"benefits"`
}

var catalog = map[models.Feature]Item{
	models.AdvancedAnalysis: {
		Feature:     models.AdvancedAnalysis,
		Name:        "Advanced Song Analysis",
		Description: "Get detailed chord progressions, key signatures, and music theory insights",
		Price:       1.0,
		Benefits: []string{
			"Detailed chord progressions",
			"Key signature detection",
			"Scale recommendations",
			"Chord substitution suggestions",
			"Music theory insights",
			"Professional analysis reports",
		},
	},
	models.AdFree: {
		Feature:     models.AdFree,
		Name:        "Ad-Free Experience",
		Description: "Remove all advertisements and enjoy uninterrupted music learning",
		Price:       0.5,
		Benefits: []string{
			"No banner advertisements",
			"No video interruptions",
			"Faster page loading",
			"Clean, minimal interface",
			"Uninterrupted learning",
			"Premium user badge",
		},
	},
	models.PremiumLibrary: {
		Feature:     models.PremiumLibrary,
		Name:        "Premium Song Library",
		Description: "Access exclusive premium songs and advanced arrangements",
		Price:       2.0,
		Benefits: []string{
			"1000+ premium songs",
			"Advanced arrangements",
			"Exclusive artist collaborations",
			"Weekly new additions",
			"High-quality chord charts",
			"Professional transcriptions",
		},
	},
	models.UnlimitedSongs: {
		Feature:     models.UnlimitedSongs,
		Name:        "Unlimited Song Analysis",
		Description: "Analyze unlimited songs per day without restrictions",
		Price:       1.5,
		Benefits: []string{
			"No daily analysis limits",
			"Batch song processing",
			"Save unlimited favorites",
			"Priority processing queue",
			"Export analysis results",
			"API access for developers",
		},
	},
	models.OfflineMode: {
		Feature:     models.OfflineMode,
		Name:        "Offline Mode",
		Description: "Download songs and use the app offline",
		Price:       1.0,
		Benefits: []string{
			"Download songs offline",
			"Offline chord playback",
			"Sync when connected",
			"Data usage savings",
			"Practice anywhere",
			"Offline favorites access",
		},
	},
	models.AnnualSubscription: {
		Feature:     models.AnnualSubscription,
		Name:        "Annual Premium Subscription",
		Description: "All premium features for one full year",
		Price:       1.0,
		Benefits: []string{
			"ALL premium features included",
			"One year unlimited access",
			"Advanced song analysis",
			"Ad-free experience",
			"Premium song library (1000+)",
			"Unlimited daily analysis",
			"Offline mode & sync",
			"Priority customer support",
		},
	},
}

// recommendation order for [NextRecommended]. The annual subscription is never recommended on its own.
var recommendOrder = []models.Feature{
	models.AdFree,
	models.AdvancedAnalysis,
	models.UnlimitedSongs,
	models.PremiumLibrary,
	models.OfflineMode,
}

// Catalog returns every premium item in catalog order.
func Catalog() []Item {
	items := make([]Item, 0, len(models.Features))
	for _, f := range models.Features {
		items = append(items, catalog[f])
	}
	return items
}

// Lookup returns the catalog item for f.
func Lookup(f models.Feature) (Item, bool) {
	item, ok := catalog[f]
	return item, ok
}

// Price returns the price of f in π, or zero for unknown features.
func Price(f models.Feature) float64 {
	return catalog[f].Price
}

// Prices maps every feature name to its price.
func Prices() map[string]float64 {
	out := make(map[string]float64, len(catalog))
	for f, item := range catalog {
		out[string(f)] = item.Price
	}
	return out
}

// Name returns the display name of f, falling back to the raw feature name.
func Name(f models.Feature) string {
	if item, ok := catalog[f]; ok {
		return item.Name
	}
	return string(f)
}

// Memo builds the payment memo shown in the Pi wallet.
func Memo(f models.Feature) string {
	return "ChordyPi - " + Name(f)
}

// Status summarizes a user's premium state.
type Status struct {
	IsPremium       bool             `json:"isPremium"`
	Unlocked        []models.Feature `json:"unlockedFeatures"`
	UnlockedCount   int              `json:"unlockedCount"`
	Total           int              `json:"totalFeatures"`
	Completion      int              `json:"completionPercentage"`
	ShowAds         bool             `json:"showAds"`
	NextRecommended models.Feature   `json:"nextRecommendedFeature,omitempty"`
}

// StatusOf computes the [Status] of a feature set. Completion is the rounded share of unlocked features.
func StatusOf(set models.PremiumFeatureSet) Status {
	unlocked := set.Unlocked()
	if unlocked == nil {
		unlocked = []models.Feature{}
	}
	total := len(models.Features)

	return Status{
		IsPremium:       len(unlocked) > 0,
		Unlocked:        unlocked,
		UnlockedCount:   len(unlocked),
		Total:           total,
		Completion:      int(math.Round(float64(len(unlocked)) / float64(total) * 100)),
		ShowAds:         set.ShowAds(),
		NextRecommended: NextRecommended(set),
	}
}

// NextRecommended returns the first feature in recommendation order that set does not grant, or "".
func NextRecommended(set models.PremiumFeatureSet) models.Feature {
	for _, f := range recommendOrder {
		if !set.Has(f) {
			return f
		}
	}
	return ""
}
