package reserve

import (
	"errors"
	"math/big"

	"stablehub/core/events"
	nativecommon "stablehub/native/common"
)

var (
	// ErrDuplicateHelper rejects helper lists containing the sender or the
	// same holder twice.
	ErrDuplicateHelper = errors.New("reserve pool: duplicate helper")
	// ErrUnauthorizedHelper rejects helpers that have not delegated to the
	// sender.
	ErrUnauthorizedHelper = errors.New("reserve pool: helper has not delegated to sender")
)

const quorumBpsDenominator = 10_000

// DelegateVoteTo sets the owner's single outgoing delegation edge,
// overwriting any prior edge. Delegating to self or to the zero address
// clears the edge.
func (p *Pool) DelegateVoteTo(owner, target [20]byte) error {
	if p == nil || p.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(p.pauses, moduleName); err != nil {
		return err
	}
	var zero [20]byte
	if target == owner || target == zero {
		if err := p.state.DeleteDelegate(owner); err != nil {
			return err
		}
		p.emit(events.VoteDelegated{Owner: owner, Cleared: true})
		return nil
	}
	if err := p.state.PutDelegate(owner, target); err != nil {
		return err
	}
	p.emit(events.VoteDelegated{Owner: owner, Target: target})
	return nil
}

// CanVoteFor reports whether owner's voting weight counts toward delegate,
// directly or through a chain of delegation edges. The walk is bounded by a
// visited set and a hop limit so a delegation cycle fails closed instead of
// recursing forever.
func (p *Pool) CanVoteFor(delegate, owner [20]byte) (bool, error) {
	if p == nil || p.state == nil {
		return false, errNilState
	}
	visited := make(map[[20]byte]struct{})
	current := owner
	for hops := 0; hops <= p.params.MaxDelegationHops; hops++ {
		if current == delegate {
			return true, nil
		}
		if _, seen := visited[current]; seen {
			return false, nil
		}
		visited[current] = struct{}{}
		next, ok, err := p.state.Delegate(current)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		current = next
	}
	return false, nil
}

// IsQualified reports whether the sender, together with the listed helpers,
// controls at least the quorum fraction of total shares. Each helper must be
// distinct, must not be the sender, and must have (transitively) delegated
// to the sender.
func (p *Pool) IsQualified(sender [20]byte, helpers [][20]byte) (bool, error) {
	if err := p.ready(); err != nil {
		return false, err
	}
	weight, err := p.state.ShareBalance(sender)
	if err != nil {
		return false, err
	}
	weight = new(big.Int).Set(weight)
	seen := map[[20]byte]struct{}{sender: {}}
	for _, helper := range helpers {
		if _, dup := seen[helper]; dup {
			return false, ErrDuplicateHelper
		}
		seen[helper] = struct{}{}
		ok, err := p.CanVoteFor(sender, helper)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, ErrUnauthorizedHelper
		}
		balance, err := p.state.ShareBalance(helper)
		if err != nil {
			return false, err
		}
		weight.Add(weight, balance)
	}
	total, err := p.state.TotalShares()
	if err != nil {
		return false, err
	}
	if total.Sign() == 0 {
		return false, nil
	}
	// weight/total >= quorumBps/10000, kept in integers.
	lhs := new(big.Int).Mul(weight, big.NewInt(quorumBpsDenominator))
	rhs := new(big.Int).Mul(total, new(big.Int).SetUint64(uint64(p.params.QuorumBps)))
	return lhs.Cmp(rhs) >= 0, nil
}
