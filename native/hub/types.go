package hub

import "math/big"

const ppmDenominator = 1_000_000

// dec18 is the fixed-point scale shared by liquidation prices and the
// currency: a price of 1e18 values one collateral unit at one currency unit.
var dec18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Challenge is one open liquidation auction against an escrowed slice of a
// position's collateral. Slots are indexed append-only; a resolved slot is
// tombstoned and its index never reused.
type Challenge struct {
	Index      uint64
	Challenger [20]byte
	Position   [20]byte
	Start      int64
	Size       *big.Int
}

// Clone returns a deep copy so callers can mutate freely without touching the
// stored instance.
func (c *Challenge) Clone() *Challenge {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Size != nil {
		clone.Size = new(big.Int).Set(c.Size)
	} else {
		clone.Size = big.NewInt(0)
	}
	return &clone
}

// Active reports whether the slot still holds live state. A zeroed challenger
// marks a tombstone.
func (c *Challenge) Active() bool {
	return c != nil && c.Challenger != ([20]byte{}) && c.Size != nil && c.Size.Sign() > 0
}

// PositionTerms bundles the parameters of a new position. Liquidation price
// is 1e18-scaled currency per collateral unit; durations are in seconds.
type PositionTerms struct {
	Collateral        [20]byte
	MinCollateral     *big.Int
	InitialCollateral *big.Int
	MintingMaximum    *big.Int
	InitPeriod        uint64
	Expiration        int64
	ChallengePeriod   uint64
	InterestRatePPM   uint32
	LiquidationPrice  *big.Int
	ReservePPM        uint32
}

// Params holds the hub's runtime knobs.
type Params struct {
	// OpeningFee is charged into the reserve pool when an original position
	// is opened. Clones pay nothing.
	OpeningFee *big.Int
	// MinimumCollateralValue is the notional floor the minimum collateral
	// must be worth at the stated liquidation price.
	MinimumCollateralValue *big.Int
	// ChallengerRewardPPM is the fraction of a winning bid paid to the
	// challenger.
	ChallengerRewardPPM uint32
	// MaxCollateralDecimals bounds the precision of accepted collateral
	// tokens.
	MaxCollateralDecimals uint8
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		OpeningFee:             new(big.Int).Mul(big.NewInt(1000), dec18),
		MinimumCollateralValue: new(big.Int).Mul(big.NewInt(5000), dec18),
		ChallengerRewardPPM:    20_000,
		MaxCollateralDecimals:  24,
	}
}

func (p Params) normalized() Params {
	if p.OpeningFee == nil {
		p.OpeningFee = big.NewInt(0)
	}
	if p.MinimumCollateralValue == nil {
		p.MinimumCollateralValue = big.NewInt(0)
	}
	return p
}
