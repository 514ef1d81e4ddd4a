package orders

import "fmt"

// PackTier caps what a personalized order may include, at a flat price.
// Allowances and price increase strictly from Basic to Prestige.
type PackTier struct {
	Name          string `json:"name"`
	MaxCharacters int    `json:"max_characters"`
	MaxLanguages  int    `json:"max_languages"`
	MaxValues     int    `json:"max_values"`
	Price         int64  `json:"price"`
}

const (
	TierBasic    = "Basic"
	TierStandard = "Standard"
	TierPrestige = "Prestige"
)

var packTiers = map[string]PackTier{
	TierBasic:    {Name: TierBasic, MaxCharacters: 1, MaxLanguages: 1, MaxValues: 3, Price: 8000},
	TierStandard: {Name: TierStandard, MaxCharacters: 3, MaxLanguages: 2, MaxValues: 5, Price: 12000},
	TierPrestige: {Name: TierPrestige, MaxCharacters: 5, MaxLanguages: 3, MaxValues: 8, Price: 18000},
}

func TierByName(name string) (PackTier, error) {
	t, ok := packTiers[name]
	if !ok {
		return PackTier{}, invalid("packTier", fmt.Sprintf("unknown pack tier %q", name))
	}
	return t, nil
}

func Tiers() []PackTier {
	return []PackTier{packTiers[TierBasic], packTiers[TierStandard], packTiers[TierPrestige]}
}

// PriceStandard is the frozen unit price times quantity.
func PriceStandard(unitPrice int64, quantity int) int64 {
	return unitPrice * int64(quantity)
}

// PriceAndValidatePersonalized checks a selection against the tier's
// allowances and returns the price to freeze into the order. First failure
// wins. The wizard always submits the pack's full character slate, so a
// partial slate is a caller bug and fails just as loudly.
func PriceAndValidatePersonalized(tier PackTier, characterCount, languageCount, valueCount int) (int64, error) {
	if characterCount != tier.MaxCharacters {
		return 0, invalid("characterCount",
			fmt.Sprintf("pack %s requires exactly %d characters, got %d", tier.Name, tier.MaxCharacters, characterCount))
	}
	if languageCount < 1 || languageCount > tier.MaxLanguages {
		return 0, invalid("languageCount",
			fmt.Sprintf("pack %s allows 1..%d languages, got %d", tier.Name, tier.MaxLanguages, languageCount))
	}
	if valueCount < 1 || valueCount > tier.MaxValues {
		return 0, invalid("valueCount",
			fmt.Sprintf("pack %s allows 1..%d values, got %d", tier.Name, tier.MaxValues, valueCount))
	}
	return tier.Price, nil
}
