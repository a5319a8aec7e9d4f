package events

import (
	"math/big"

	"stablehub/core/types"
)

const (
	TypeReserveDeposited = "reserve.deposited"
	TypeReserveRedeemed  = "reserve.redeemed"
	TypeVoteDelegated    = "reserve.vote.delegated"
)

// ReserveDeposited is emitted when currency paid into the pool mints shares
// for a depositor.
type ReserveDeposited struct {
	Depositor [20]byte
	Amount    *big.Int
	Shares    *big.Int
}

func (ReserveDeposited) EventType() string { return TypeReserveDeposited }

func (e ReserveDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeReserveDeposited,
		Attributes: map[string]string{
			"depositor": addrString(e.Depositor),
			"amount":    formatAmount(e.Amount),
			"shares":    formatAmount(e.Shares),
		},
	}
}

// ReserveRedeemed is emitted when shares are burned for currency proceeds.
type ReserveRedeemed struct {
	Holder   [20]byte
	Shares   *big.Int
	Proceeds *big.Int
}

func (ReserveRedeemed) EventType() string { return TypeReserveRedeemed }

func (e ReserveRedeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeReserveRedeemed,
		Attributes: map[string]string{
			"holder":   addrString(e.Holder),
			"shares":   formatAmount(e.Shares),
			"proceeds": formatAmount(e.Proceeds),
		},
	}
}

// VoteDelegated is emitted when a holder rewires (or clears) their outgoing
// delegation edge.
type VoteDelegated struct {
	Owner   [20]byte
	Target  [20]byte
	Cleared bool
}

func (VoteDelegated) EventType() string { return TypeVoteDelegated }

func (e VoteDelegated) Event() *types.Event {
	attrs := map[string]string{
		"owner": addrString(e.Owner),
	}
	if e.Cleared {
		attrs["cleared"] = "true"
	} else {
		attrs["target"] = addrString(e.Target)
	}
	return &types.Event{Type: TypeVoteDelegated, Attributes: attrs}
}
