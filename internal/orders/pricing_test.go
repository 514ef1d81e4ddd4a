package orders

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierByName(t *testing.T) {
	tier, err := TierByName(TierStandard)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), tier.Price)
	assert.Equal(t, 3, tier.MaxCharacters)

	_, err = TierByName("Deluxe")
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "packTier", ve.Field)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestTiersOrderedByPrice(t *testing.T) {
	tiers := Tiers()
	require.Len(t, tiers, 3)
	for i := 1; i < len(tiers); i++ {
		assert.Greater(t, tiers[i].Price, tiers[i-1].Price)
		assert.Greater(t, tiers[i].MaxCharacters, tiers[i-1].MaxCharacters)
		assert.Greater(t, tiers[i].MaxValues, tiers[i-1].MaxValues)
	}
}

func TestPriceAndValidatePersonalized(t *testing.T) {
	cases := []struct {
		name       string
		tier       string
		characters int
		languages  int
		values     int
		wantPrice  int64
		wantField  string
	}{
		{name: "basic ok", tier: TierBasic, characters: 1, languages: 1, values: 3, wantPrice: 8000},
		{name: "standard ok", tier: TierStandard, characters: 3, languages: 2, values: 1, wantPrice: 12000},
		{name: "prestige ok", tier: TierPrestige, characters: 5, languages: 3, values: 8, wantPrice: 18000},
		{name: "basic too many characters", tier: TierBasic, characters: 2, languages: 1, values: 1, wantField: "characterCount"},
		{name: "prestige partial slate", tier: TierPrestige, characters: 3, languages: 1, values: 1, wantField: "characterCount"},
		{name: "no languages", tier: TierBasic, characters: 1, languages: 0, values: 1, wantField: "languageCount"},
		{name: "too many languages", tier: TierStandard, characters: 3, languages: 3, values: 1, wantField: "languageCount"},
		{name: "no values", tier: TierBasic, characters: 1, languages: 1, values: 0, wantField: "valueCount"},
		{name: "too many values", tier: TierPrestige, characters: 5, languages: 1, values: 9, wantField: "valueCount"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tier, err := TierByName(tc.tier)
			require.NoError(t, err)

			price, err := PriceAndValidatePersonalized(tier, tc.characters, tc.languages, tc.values)
			if tc.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, tc.wantPrice, price)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.wantField, ve.Field)
		})
	}
}

func TestPriceStandard(t *testing.T) {
	assert.Equal(t, int64(15000), PriceStandard(5000, 3))
	assert.Equal(t, int64(5000), PriceStandard(5000, 1))
}
