package reserve

import (
	"errors"
	"math/big"

	"stablehub/core/events"
	nativecommon "stablehub/native/common"
)

var (
	errNilState           = errors.New("reserve pool: state not configured")
	errNilCurrency        = errors.New("reserve pool: currency ledger not configured")
	errNotInitialized     = errors.New("reserve pool: not initialized")
	errInvalidAmount      = errors.New("reserve pool: amount must be positive")
	errInsufficientShares = errors.New("reserve pool: insufficient share balance")

	// ErrAlreadyInitialized rejects a second Initialize call.
	ErrAlreadyInitialized = errors.New("reserve pool: already initialized")
	// ErrReserveUnhealthy rejects a non-minter redemption that would leave
	// the system-wide reserve below its requirement.
	ErrReserveUnhealthy = errors.New("reserve pool: redemption would leave reserves unhealthy")
)

const moduleName = "reserve"

// CurrencyLedger is the settlement currency as seen by the pool. Transfer
// spends the pool's own balance.
type CurrencyLedger interface {
	Transfer(to [20]byte, amount *big.Int) error
	BalanceOf(addr [20]byte) *big.Int
	IsMinter(addr [20]byte) bool
	// MinterReserve is the currency balance the pool must retain for the
	// outstanding minted supply to count as healthy.
	MinterReserve() *big.Int
}

type poolState interface {
	ShareBalance(holder [20]byte) (*big.Int, error)
	PutShareBalance(holder [20]byte, amount *big.Int) error
	TotalShares() (*big.Int, error)
	PutTotalShares(amount *big.Int) error
	Delegate(owner [20]byte) ([20]byte, bool, error)
	PutDelegate(owner, target [20]byte) error
	DeleteDelegate(owner [20]byte) error
}

// Params holds the pool's runtime knobs.
type Params struct {
	// QuorumBps is the basis-point fraction of total shares a voter set must
	// control to qualify.
	QuorumBps uint32
	// MaxDelegationHops bounds the transitive delegation lookup so a cycle
	// fails closed instead of looping.
	MaxDelegationHops int
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{QuorumBps: 200, MaxDelegationHops: 32}
}

// Pool is a share-accounted vault over the settlement currency. It absorbs
// liquidation losses and position fees, and carries the delegated quorum
// voting used to authorize privileged actions.
type Pool struct {
	state       poolState
	currency    CurrencyLedger
	emitter     events.Emitter
	params      Params
	address     [20]byte
	initialized bool
	pauses      nativecommon.PauseView
}

// NewPool constructs an uninitialized pool with default parameters and a
// no-op emitter.
func NewPool() *Pool {
	return &Pool{
		emitter: events.NoopEmitter{},
		params:  DefaultParams(),
	}
}

// Initialize binds the pool to its currency account address. The binding is
// one-shot; a second call fails.
func (p *Pool) Initialize(address [20]byte) error {
	if p == nil {
		return errNilState
	}
	if p.initialized {
		return ErrAlreadyInitialized
	}
	p.address = address
	p.initialized = true
	return nil
}

// SetState wires the pool to the persistence layer.
func (p *Pool) SetState(state poolState) { p.state = state }

// SetCurrency wires the settlement currency collaborator.
func (p *Pool) SetCurrency(currency CurrencyLedger) { p.currency = currency }

// SetParams updates the runtime parameters.
func (p *Pool) SetParams(params Params) {
	if p == nil {
		return
	}
	if params.MaxDelegationHops <= 0 {
		params.MaxDelegationHops = DefaultParams().MaxDelegationHops
	}
	p.params = params
}

// SetPauses wires the administrative pause view.
func (p *Pool) SetPauses(v nativecommon.PauseView) {
	if p == nil {
		return
	}
	p.pauses = v
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (p *Pool) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		p.emitter = events.NoopEmitter{}
		return
	}
	p.emitter = emitter
}

// Address returns the pool's currency account address.
func (p *Pool) Address() [20]byte { return p.address }

func (p *Pool) emit(evt events.Event) {
	if p == nil || p.emitter == nil || evt == nil {
		return
	}
	p.emitter.Emit(evt)
}

func (p *Pool) ready() error {
	if p == nil || p.state == nil {
		return errNilState
	}
	if p.currency == nil {
		return errNilCurrency
	}
	if !p.initialized {
		return errNotInitialized
	}
	return nil
}

// OnTokenTransfer mints shares for a deposit the currency has already
// credited to the pool's account. The first deposit bootstraps shares 1:1;
// later deposits mint pro rata against the pre-deposit balance so the price
// per share is preserved. Returns the minted share amount.
func (p *Pool) OnTokenTransfer(from [20]byte, amount *big.Int) (*big.Int, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(p.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	total, err := p.state.TotalShares()
	if err != nil {
		return nil, err
	}
	balance := p.currency.BalanceOf(p.address)
	before := new(big.Int).Sub(balance, amount)

	shares := new(big.Int)
	if total.Sign() == 0 || before.Sign() <= 0 {
		// Bootstrap, or a pool fully drained by losses: restart at 1:1.
		shares.Set(amount)
	} else {
		shares.Mul(amount, total)
		shares.Quo(shares, before)
	}

	holderShares, err := p.state.ShareBalance(from)
	if err != nil {
		return nil, err
	}
	if err := p.state.PutShareBalance(from, new(big.Int).Add(holderShares, shares)); err != nil {
		return nil, err
	}
	if err := p.state.PutTotalShares(new(big.Int).Add(total, shares)); err != nil {
		return nil, err
	}
	p.emit(events.ReserveDeposited{
		Depositor: from,
		Amount:    new(big.Int).Set(amount),
		Shares:    new(big.Int).Set(shares),
	})
	return shares, nil
}

// Redeem burns shares and pays out the pro-rata currency proceeds. A
// redemption that would leave the system-wide reserve below its requirement
// fails atomically unless the caller is a privileged minter. Returns the
// proceeds.
func (p *Pool) Redeem(caller [20]byte, shares *big.Int) (*big.Int, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(p.pauses, moduleName); err != nil {
		return nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	holderShares, err := p.state.ShareBalance(caller)
	if err != nil {
		return nil, err
	}
	if holderShares.Cmp(shares) < 0 {
		return nil, errInsufficientShares
	}
	total, err := p.state.TotalShares()
	if err != nil {
		return nil, err
	}
	if total.Sign() == 0 {
		return nil, errInsufficientShares
	}
	balance := p.currency.BalanceOf(p.address)
	proceeds := new(big.Int).Mul(shares, balance)
	proceeds.Quo(proceeds, total)

	// Health is checked before any funds move so a rejection leaves no
	// partial effect.
	if !p.currency.IsMinter(caller) {
		after := new(big.Int).Sub(balance, proceeds)
		if after.Cmp(p.currency.MinterReserve()) < 0 {
			return nil, ErrReserveUnhealthy
		}
	}

	// Burn before the external transfer so a reentrant call cannot redeem
	// the same shares again.
	if err := p.state.PutShareBalance(caller, new(big.Int).Sub(holderShares, shares)); err != nil {
		return nil, err
	}
	if err := p.state.PutTotalShares(new(big.Int).Sub(total, shares)); err != nil {
		return nil, err
	}
	if proceeds.Sign() > 0 {
		if err := p.currency.Transfer(caller, proceeds); err != nil {
			return nil, err
		}
	}
	p.emit(events.ReserveRedeemed{
		Holder:   caller,
		Shares:   new(big.Int).Set(shares),
		Proceeds: new(big.Int).Set(proceeds),
	})
	return proceeds, nil
}

// dec18 scales the price-per-share query for precision; the settlement math
// itself always works on raw share/balance ratios.
var dec18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Price returns the 1e18-scaled currency value of one share, or zero while
// no shares exist.
func (p *Pool) Price() (*big.Int, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	total, err := p.state.TotalShares()
	if err != nil {
		return nil, err
	}
	if total.Sign() == 0 {
		return big.NewInt(0), nil
	}
	price := new(big.Int).Mul(p.currency.BalanceOf(p.address), dec18)
	return price.Quo(price, total), nil
}

// RedeemableBalance projects a holder's shares into currency at the current
// price. Read-only; no funds move.
func (p *Pool) RedeemableBalance(holder [20]byte) (*big.Int, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	total, err := p.state.TotalShares()
	if err != nil {
		return nil, err
	}
	if total.Sign() == 0 {
		return big.NewInt(0), nil
	}
	shares, err := p.state.ShareBalance(holder)
	if err != nil {
		return nil, err
	}
	value := new(big.Int).Mul(shares, p.currency.BalanceOf(p.address))
	return value.Quo(value, total), nil
}

// ShareBalance reports a holder's share balance.
func (p *Pool) ShareBalance(holder [20]byte) (*big.Int, error) {
	if p == nil || p.state == nil {
		return nil, errNilState
	}
	shares, err := p.state.ShareBalance(holder)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(shares), nil
}

// TotalShares reports the outstanding share supply.
func (p *Pool) TotalShares() (*big.Int, error) {
	if p == nil || p.state == nil {
		return nil, errNilState
	}
	total, err := p.state.TotalShares()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(total), nil
}
