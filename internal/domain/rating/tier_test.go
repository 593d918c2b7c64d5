package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierFor_Boundaries(t *testing.T) {
	tests := []struct {
		name string
		rp   RP
		elo  Elo
		want Tier
	}{
		{"fresh competitor", 0, EloBaseline, TierBronze},
		{"just below silver", 399.9, 1500, TierBronze},
		{"silver floor", 400, 1500, TierSilver},
		{"gold floor", 1000, 1500, TierGold},
		{"gold RP but low elo", 1000, 1499, TierSilver},
		{"platinum floor", 2000, 1650, TierPlatinum},
		{"platinum RP low elo stays gold", 2500, 1600, TierGold},
		{"diamond floor", 3000, 1800, TierDiamond},
		{"diamond RP platinum elo", 5000, 1700, TierPlatinum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TierFor(tt.rp, tt.elo))
		})
	}
}

func TestTierForTable_FallsBackToLastRow(t *testing.T) {
	table := []Threshold{
		{Tier: TierGold, MinRP: 1000, MinElo: 1500},
		{Tier: TierBronze, MinRP: 0, MinElo: 0},
	}

	// Below every explicit threshold still lands in the last row.
	assert.Equal(t, TierBronze, TierForTable(0, 0, table))
	assert.Equal(t, TierGold, TierForTable(1500, 1600, table))
}

func TestTierForTable_EmptyTableIsLowestTier(t *testing.T) {
	assert.Equal(t, TierBronze, TierForTable(5000, 2000, nil))
	assert.Equal(t, TierBronze, TierForTable(0, 0, []Threshold{}))
}

func TestTier_Above(t *testing.T) {
	assert.True(t, TierDiamond.Above(TierPlatinum))
	assert.True(t, TierSilver.Above(TierBronze))
	assert.False(t, TierBronze.Above(TierBronze))
	assert.False(t, TierGold.Above(TierDiamond))
}

func TestDefaultThresholds_AreOrdered(t *testing.T) {
	prev := DefaultThresholds[0]
	for _, th := range DefaultThresholds[1:] {
		assert.True(t, prev.MinRP >= th.MinRP, "thresholds must descend by RP")
		prev = th
	}
	last := DefaultThresholds[len(DefaultThresholds)-1]
	assert.Equal(t, TierBronze, last.Tier)
	assert.Equal(t, RP(0), last.MinRP)
}
