package events

import (
	"math/big"
	"strconv"

	"stablehub/core/types"
	"stablehub/crypto"
)

const (
	TypePositionOpened     = "hub.position.opened"
	TypeChallengeStarted   = "hub.challenge.started"
	TypeChallengeAverted   = "hub.challenge.averted"
	TypeChallengeSucceeded = "hub.challenge.succeeded"
	TypeReturnPostponed    = "hub.return.postponed"
)

// PositionOpened is emitted when a position is created or cloned through the
// hub.
type PositionOpened struct {
	Owner            [20]byte
	Position         [20]byte
	Currency         [20]byte
	Collateral       [20]byte
	LiquidationPrice *big.Int
}

func (PositionOpened) EventType() string { return TypePositionOpened }

func (e PositionOpened) Event() *types.Event {
	return &types.Event{
		Type: TypePositionOpened,
		Attributes: map[string]string{
			"owner":      addrString(e.Owner),
			"position":   addrString(e.Position),
			"currency":   addrString(e.Currency),
			"collateral": addrString(e.Collateral),
			"price":      formatAmount(e.LiquidationPrice),
		},
	}
}

// ChallengeStarted is emitted when a challenger escrows collateral against a
// position.
type ChallengeStarted struct {
	Challenger [20]byte
	Position   [20]byte
	Size       *big.Int
	Index      uint64
}

func (ChallengeStarted) EventType() string { return TypeChallengeStarted }

func (e ChallengeStarted) Event() *types.Event {
	return &types.Event{
		Type: TypeChallengeStarted,
		Attributes: map[string]string{
			"challenger": addrString(e.Challenger),
			"position":   addrString(e.Position),
			"size":       formatAmount(e.Size),
			"index":      strconv.FormatUint(e.Index, 10),
		},
	}
}

// ChallengeAverted is emitted when a bid cancels part of a challenge during
// the avert window.
type ChallengeAverted struct {
	Position [20]byte
	Index    uint64
	Size     *big.Int
}

func (ChallengeAverted) EventType() string { return TypeChallengeAverted }

func (e ChallengeAverted) Event() *types.Event {
	return &types.Event{
		Type: TypeChallengeAverted,
		Attributes: map[string]string{
			"position": addrString(e.Position),
			"index":    strconv.FormatUint(e.Index, 10),
			"size":     formatAmount(e.Size),
		},
	}
}

// ChallengeSucceeded is emitted when a bid settles part of a challenge during
// or after the decay window. Bid carries the realized offer, Transferred the
// collateral the position actually moved to the bidder.
type ChallengeSucceeded struct {
	Position    [20]byte
	Index       uint64
	Bid         *big.Int
	Transferred *big.Int
	Size        *big.Int
}

func (ChallengeSucceeded) EventType() string { return TypeChallengeSucceeded }

func (e ChallengeSucceeded) Event() *types.Event {
	return &types.Event{
		Type: TypeChallengeSucceeded,
		Attributes: map[string]string{
			"position":    addrString(e.Position),
			"index":       strconv.FormatUint(e.Index, 10),
			"bid":         formatAmount(e.Bid),
			"transferred": formatAmount(e.Transferred),
			"size":        formatAmount(e.Size),
		},
	}
}

// ReturnPostponed is emitted when a collateral payout is deferred into the
// pending-returns ledger instead of being transferred directly.
type ReturnPostponed struct {
	Collateral  [20]byte
	Beneficiary [20]byte
	Amount      *big.Int
}

func (ReturnPostponed) EventType() string { return TypeReturnPostponed }

func (e ReturnPostponed) Event() *types.Event {
	return &types.Event{
		Type: TypeReturnPostponed,
		Attributes: map[string]string{
			"collateral":  addrString(e.Collateral),
			"beneficiary": addrString(e.Beneficiary),
			"amount":      formatAmount(e.Amount),
		},
	}
}

func addrString(addr [20]byte) string {
	return crypto.NewAddress(crypto.HubPrefix, addr[:]).String()
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
