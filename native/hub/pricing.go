package hub

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// AuctionPhase tags the derived lifecycle stage of a challenge. The phase is
// never stored; it is recomputed from the challenge start and the position's
// window durations at call time.
type AuctionPhase uint8

const (
	// PhaseAwaitingAvert covers the fixed-price window in which a bid averts
	// the challenge instead of winning it.
	PhaseAwaitingAvert AuctionPhase = iota
	// PhaseDecaying covers the Dutch-auction window with a linearly falling
	// clearing price.
	PhaseDecaying
	// PhaseResolved marks a fully decayed auction.
	PhaseResolved
)

var oneDec18 = uint256.NewInt(1_000_000_000_000_000_000)

var (
	errNegativeAmount = errors.New("hub engine: negative amount")
	errAmountOverflow = errors.New("hub engine: amount exceeds 256 bits")
	errPriceOverflow  = errors.New("hub engine: price arithmetic overflow")
)

func phaseAt(start int64, phase1, phase2 uint64, now int64) AuctionPhase {
	avertEnd := start + int64(phase1)
	if now <= avertEnd {
		return PhaseAwaitingAvert
	}
	if now >= avertEnd+int64(phase2) {
		return PhaseResolved
	}
	return PhaseDecaying
}

// auctionPrice computes the clearing price at time now: the liquidation price
// through the avert window, zero once the decay window has elapsed, and a
// linear interpolation in between. The liquidation price is divided by the
// decay duration before multiplying by the remaining time; prior settlements
// were realized with that rounding order and it must not change.
func auctionPrice(liqPrice *big.Int, start int64, phase1, phase2 uint64, now int64) (*big.Int, error) {
	p, err := toUint256(liqPrice)
	if err != nil {
		return nil, err
	}
	switch phaseAt(start, phase1, phase2, now) {
	case PhaseAwaitingAvert:
		return p.ToBig(), nil
	case PhaseResolved:
		return big.NewInt(0), nil
	}
	elapsed := uint64(now - (start + int64(phase1)))
	remaining := phase2 - elapsed
	perSecond := new(uint256.Int).Div(p, uint256.NewInt(phase2))
	price, overflow := new(uint256.Int).MulOverflow(perSecond, uint256.NewInt(remaining))
	if overflow {
		return nil, errPriceOverflow
	}
	return price.ToBig(), nil
}

// collateralValue converts a collateral amount into currency at a
// 1e18-scaled price, rejecting overflow instead of wrapping.
func collateralValue(amount, price *big.Int) (*big.Int, error) {
	a, err := toUint256(amount)
	if err != nil {
		return nil, err
	}
	p, err := toUint256(price)
	if err != nil {
		return nil, err
	}
	prod, overflow := new(uint256.Int).MulOverflow(a, p)
	if overflow {
		return nil, errPriceOverflow
	}
	return prod.Div(prod, oneDec18).ToBig(), nil
}

// ppmShare takes a parts-per-million cut of an amount.
func ppmShare(amount *big.Int, ppm uint32) (*big.Int, error) {
	a, err := toUint256(amount)
	if err != nil {
		return nil, err
	}
	prod, overflow := new(uint256.Int).MulOverflow(a, uint256.NewInt(uint64(ppm)))
	if overflow {
		return nil, errPriceOverflow
	}
	return prod.Div(prod, uint256.NewInt(ppmDenominator)).ToBig(), nil
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return uint256.NewInt(0), nil
	}
	if v.Sign() < 0 {
		return nil, errNegativeAmount
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, errAmountOverflow
	}
	return u, nil
}
