package rating

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD TIERS
// ══════════════════════════════════════════════════════════════════════════════

// Tier is a discrete leaderboard band derived from RP and Elo. Tiers form an
// ordered closed set; assignment is a pure, total function of the current
// rating state and is refreshed whenever a rating change commits.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
)

// tierOrder maps each tier to its position in the band ordering,
// lowest first.
var tierOrder = map[Tier]int{
	TierBronze:   0,
	TierSilver:   1,
	TierGold:     2,
	TierPlatinum: 3,
	TierDiamond:  4,
}

// IsValid checks that the tier is one of the known bands.
func (t Tier) IsValid() bool {
	_, ok := tierOrder[t]
	return ok
}

// String returns the string representation.
func (t Tier) String() string {
	return string(t)
}

// Above reports whether t is a higher band than other.
func (t Tier) Above(other Tier) bool {
	return tierOrder[t] > tierOrder[other]
}

// Threshold is one row of the tier table: the minimum RP and Elo a
// competitor needs to hold the band.
type Threshold struct {
	Tier   Tier
	MinRP  RP
	MinElo Elo
}

// DefaultThresholds is the tier table evaluated top-down, first match wins.
// The bottom band has zero thresholds so every finite rating state maps to
// exactly one tier.
var DefaultThresholds = []Threshold{
	{Tier: TierDiamond, MinRP: 3000, MinElo: 1800},
	{Tier: TierPlatinum, MinRP: 2000, MinElo: 1650},
	{Tier: TierGold, MinRP: 1000, MinElo: 1500},
	{Tier: TierSilver, MinRP: 400, MinElo: 0},
	{Tier: TierBronze, MinRP: 0, MinElo: 0},
}

// TierFor maps a rating state to its leaderboard tier using the default
// table. Total: anything below the lowest threshold is the lowest tier.
func TierFor(rp RP, elo Elo) Tier {
	return TierForTable(rp, elo, DefaultThresholds)
}

// TierForTable maps a rating state to a tier using a custom threshold table.
// The table must be ordered highest band first and end with a zero-threshold
// row; that last row is also the fallback for anything below it.
func TierForTable(rp RP, elo Elo, table []Threshold) Tier {
	if len(table) == 0 {
		return TierBronze
	}
	for _, th := range table {
		if rp >= th.MinRP && elo >= th.MinElo {
			return th.Tier
		}
	}
	// Below every row (possible only with a non-canonical table).
	return table[len(table)-1].Tier
}
