package hub

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"stablehub/core/events"
	nativecommon "stablehub/native/common"
)

var (
	errNilState      = errors.New("hub engine: state not configured")
	errNilCurrency   = errors.New("hub engine: currency ledger not configured")
	errNilDirectory  = errors.New("hub engine: collaborator directory not configured")
	errNilFactory    = errors.New("hub engine: position factory not configured")
	errInvalidAmount = errors.New("hub engine: amount must be positive")

	// ErrInvalidPosition rejects operations against positions the currency
	// does not attribute to this hub.
	ErrInvalidPosition = errors.New("hub engine: position not registered with this hub")
	// ErrPriceMismatch rejects a challenge whose expected liquidation price
	// went stale between the caller's read and the call.
	ErrPriceMismatch = errors.New("hub engine: liquidation price changed since read")
	// ErrChallengeNotFound rejects bids against tombstoned or out-of-range
	// challenge indexes.
	ErrChallengeNotFound = errors.New("hub engine: challenge not found")
	// ErrChallengeExpired rejects bids landing after the decay window.
	ErrChallengeExpired = errors.New("hub engine: challenge decay window elapsed")
	// ErrValidation wraps parameter-bound rejections on position opening and
	// cloning.
	ErrValidation = errors.New("hub engine: invalid position terms")
)

const moduleName = "hub"

type engineState interface {
	ChallengeAppend(c *Challenge) (uint64, error)
	ChallengeGet(index uint64) (*Challenge, bool, error)
	ChallengePut(c *Challenge) error
	ChallengeDelete(index uint64) error
	PendingReturn(collateral, beneficiary [20]byte) (*big.Int, error)
	PutPendingReturn(collateral, beneficiary [20]byte, amount *big.Int) error
}

// Engine is the minting hub: it orchestrates position creation, owns the
// challenge registry and the pending-returns ledger, and settles Dutch-auction
// liquidations against the currency and position collaborators.
type Engine struct {
	state     engineState
	currency  CurrencyLedger
	directory Directory
	factory   PositionFactory
	emitter   events.Emitter
	params    Params
	address   [20]byte
	pauses    nativecommon.PauseView
	nowFn     func() int64
}

// NewEngine constructs a hub engine bound to its own escrow address.
func NewEngine(address [20]byte, params Params) *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		params:  params.normalized(),
		address: address,
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCurrency wires the settlement currency collaborator.
func (e *Engine) SetCurrency(currency CurrencyLedger) { e.currency = currency }

// SetDirectory wires the resolver for position and token addresses.
func (e *Engine) SetDirectory(directory Directory) { e.directory = directory }

// SetFactory wires the position factory used by open and clone.
func (e *Engine) SetFactory(factory PositionFactory) { e.factory = factory }

// SetPauses wires the administrative pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests to pin
// auction timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Address returns the hub's own escrow address.
func (e *Engine) Address() [20]byte { return e.address }

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.currency == nil {
		return errNilCurrency
	}
	if e.directory == nil {
		return errNilDirectory
	}
	return nil
}

func (e *Engine) verifyRegistered(position [20]byte) error {
	parent, err := e.currency.PositionParent(position)
	if err != nil || parent != e.address {
		return ErrInvalidPosition
	}
	return nil
}

// OpenPosition validates the terms, creates a position owned by the caller,
// registers it with the currency, charges the opening fee into the reserve
// and funds the position with the caller's initial collateral. The new
// position's address is returned.
func (e *Engine) OpenPosition(caller [20]byte, terms PositionTerms) ([20]byte, error) {
	var zero [20]byte
	if err := e.ready(); err != nil {
		return zero, err
	}
	if e.factory == nil {
		return zero, errNilFactory
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return zero, err
	}
	if terms.InterestRatePPM > ppmDenominator {
		return zero, fmt.Errorf("%w: interest rate %d ppm exceeds 100%%", ErrValidation, terms.InterestRatePPM)
	}
	if terms.ReservePPM > ppmDenominator {
		return zero, fmt.Errorf("%w: reserve contribution %d ppm exceeds 100%%", ErrValidation, terms.ReservePPM)
	}
	if terms.MinCollateral == nil || terms.MinCollateral.Sign() <= 0 {
		return zero, fmt.Errorf("%w: minimum collateral must be positive", ErrValidation)
	}
	if terms.InitialCollateral == nil || terms.InitialCollateral.Cmp(terms.MinCollateral) < 0 {
		return zero, fmt.Errorf("%w: initial collateral below minimum", ErrValidation)
	}
	if terms.LiquidationPrice == nil || terms.LiquidationPrice.Sign() <= 0 {
		return zero, fmt.Errorf("%w: liquidation price must be positive", ErrValidation)
	}
	token, err := e.directory.TokenAt(terms.Collateral)
	if err != nil {
		return zero, err
	}
	if token.Decimals() > e.params.MaxCollateralDecimals {
		return zero, fmt.Errorf("%w: collateral precision %d exceeds %d decimals", ErrValidation, token.Decimals(), e.params.MaxCollateralDecimals)
	}
	value, err := collateralValue(terms.MinCollateral, terms.LiquidationPrice)
	if err != nil {
		return zero, err
	}
	if value.Cmp(e.params.MinimumCollateralValue) < 0 {
		return zero, fmt.Errorf("%w: minimum collateral worth %s below required %s", ErrValidation, value, e.params.MinimumCollateralValue)
	}

	// The caller's funds are secured before the factory or registry is
	// touched, so an insolvent caller cannot leave a registered but unfunded
	// position behind.
	if err := token.TransferFrom(caller, e.address, terms.InitialCollateral); err != nil {
		return zero, err
	}
	if e.params.OpeningFee.Sign() > 0 {
		if err := e.currency.TransferFrom(caller, e.currency.Reserve(), e.params.OpeningFee); err != nil {
			if rerr := token.Transfer(caller, terms.InitialCollateral); rerr != nil {
				return zero, rerr
			}
			return zero, err
		}
	}
	position, err := e.factory.CreatePosition(caller, terms)
	if err != nil {
		return zero, err
	}
	if err := e.currency.RegisterPosition(position); err != nil {
		return zero, err
	}
	if err := token.Transfer(position, terms.InitialCollateral); err != nil {
		return zero, err
	}
	e.emit(events.PositionOpened{
		Owner:            caller,
		Position:         position,
		Currency:         e.currency.Address(),
		Collateral:       terms.Collateral,
		LiquidationPrice: new(big.Int).Set(terms.LiquidationPrice),
	})
	return position, nil
}

// ClonePosition opens a derivative position against an existing hub position,
// carving initialMint out of the original's remaining limit. Clones pay no
// opening fee; the fee was amortized by the original.
func (e *Engine) ClonePosition(caller, position [20]byte, initialCollateral, initialMint *big.Int, expiration int64) ([20]byte, error) {
	var zero [20]byte
	if err := e.ready(); err != nil {
		return zero, err
	}
	if e.factory == nil {
		return zero, errNilFactory
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return zero, err
	}
	if initialCollateral == nil || initialCollateral.Sign() <= 0 {
		return zero, errInvalidAmount
	}
	if initialMint == nil || initialMint.Sign() < 0 {
		return zero, errInvalidAmount
	}
	if err := e.verifyRegistered(position); err != nil {
		return zero, err
	}
	parent, err := e.directory.PositionAt(position)
	if err != nil {
		return zero, err
	}
	root := parent
	if rootAddr := parent.Original(); rootAddr != position && rootAddr != zero {
		if root, err = e.directory.PositionAt(rootAddr); err != nil {
			return zero, err
		}
	}
	if expiration > root.Expiration() {
		return zero, fmt.Errorf("%w: clone expiration exceeds original", ErrValidation)
	}
	token, err := e.directory.TokenAt(parent.Collateral())
	if err != nil {
		return zero, err
	}
	// The caller's collateral is secured before the parent's limit is carved,
	// so an insolvent or over-limit clone fails with no partial effect.
	if err := token.TransferFrom(caller, e.address, initialCollateral); err != nil {
		return zero, err
	}
	if err := parent.ReduceLimitForClone(initialMint); err != nil {
		if rerr := token.Transfer(caller, initialCollateral); rerr != nil {
			return zero, rerr
		}
		return zero, err
	}
	cloneAddr, err := e.factory.ClonePosition(position)
	if err != nil {
		return zero, err
	}
	if err := e.currency.RegisterPosition(cloneAddr); err != nil {
		return zero, err
	}
	clone, err := e.directory.PositionAt(cloneAddr)
	if err != nil {
		return zero, err
	}
	price := parent.Price()
	if err := clone.InitializeClone(caller, price, initialCollateral, initialMint, expiration); err != nil {
		return zero, err
	}
	if err := token.Transfer(cloneAddr, initialCollateral); err != nil {
		return zero, err
	}
	e.emit(events.PositionOpened{
		Owner:            caller,
		Position:         cloneAddr,
		Currency:         e.currency.Address(),
		Collateral:       parent.Collateral(),
		LiquidationPrice: new(big.Int).Set(price),
	})
	return cloneAddr, nil
}

// LaunchChallenge escrows size collateral from the challenger and opens a
// liquidation auction against the position. The expected price guards against
// a liquidation-price change racing the caller's read. Returns the new
// challenge index.
func (e *Engine) LaunchChallenge(challenger, position [20]byte, size, expectedPrice *big.Int) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if size == nil || size.Sign() <= 0 {
		return 0, errInvalidAmount
	}
	if err := e.verifyRegistered(position); err != nil {
		return 0, err
	}
	pos, err := e.directory.PositionAt(position)
	if err != nil {
		return 0, err
	}
	if expectedPrice == nil || pos.Price().Cmp(expectedPrice) != 0 {
		return 0, ErrPriceMismatch
	}
	token, err := e.directory.TokenAt(pos.Collateral())
	if err != nil {
		return 0, err
	}
	if err := token.TransferFrom(challenger, e.address, size); err != nil {
		return 0, err
	}
	challenge := &Challenge{
		Challenger: challenger,
		Position:   position,
		Start:      e.now(),
		Size:       new(big.Int).Set(size),
	}
	index, err := e.state.ChallengeAppend(challenge)
	if err != nil {
		return 0, err
	}
	if err := pos.NotifyChallengeStarted(size); err != nil {
		return 0, err
	}
	e.emit(events.ChallengeStarted{
		Challenger: challenger,
		Position:   position,
		Size:       new(big.Int).Set(size),
		Index:      index,
	})
	return index, nil
}

// Bid consumes up to size of the challenge. During the avert window the bid
// cancels the challenged amount at the fixed liquidation price; afterwards it
// is a winning bid settled at the decayed auction price. A bid landing after
// the decay window fails with ErrChallengeExpired.
func (e *Engine) Bid(bidder [20]byte, index uint64, size *big.Int, postponeReturn bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if size == nil || size.Sign() <= 0 {
		return errInvalidAmount
	}
	challenge, ok, err := e.state.ChallengeGet(index)
	if err != nil {
		return err
	}
	if !ok || !challenge.Active() {
		return ErrChallengeNotFound
	}
	pos, err := e.directory.PositionAt(challenge.Position)
	if err != nil {
		return err
	}
	liqPrice, phase1, phase2 := pos.ChallengeData()
	// Clamp to what is left; a concurrent avert may have shrunk the slot
	// since the caller read it.
	bidSize := new(big.Int).Set(size)
	if bidSize.Cmp(challenge.Size) > 0 {
		bidSize.Set(challenge.Size)
	}
	now := e.now()
	switch phaseAt(challenge.Start, phase1, phase2, now) {
	case PhaseAwaitingAvert:
		return e.avertChallenge(challenge, pos, liqPrice, bidSize, bidder)
	case PhaseDecaying:
		return e.finishChallenge(challenge, pos, liqPrice, phase1, phase2, bidSize, bidder, postponeReturn, now)
	default:
		return ErrChallengeExpired
	}
}

// consumeChallenge applies the local size decrement, tombstoning the slot
// when it reaches zero. Callers must invoke this after securing the bidder's
// funds but before any outbound transfer or collaborator notification, so
// reentrant calls observe the already-updated registry.
func (e *Engine) consumeChallenge(c *Challenge, amount *big.Int) error {
	remaining := new(big.Int).Sub(c.Size, amount)
	if remaining.Sign() < 0 {
		return errInvalidAmount
	}
	if remaining.Sign() == 0 {
		c.Size = remaining
		return e.state.ChallengeDelete(c.Index)
	}
	c.Size = remaining
	return e.state.ChallengePut(c)
}

func (e *Engine) avertChallenge(c *Challenge, pos Position, liqPrice, size *big.Int, bidder [20]byte) error {
	challenger := c.Challenger
	cost := big.NewInt(0)
	if bidder != challenger {
		var err error
		cost, err = collateralValue(size, liqPrice)
		if err != nil {
			return err
		}
		// The bidder's payment is secured in hub escrow before the registry
		// is touched, so an insolvent bid fails with no partial effect.
		if cost.Sign() > 0 {
			if err := e.currency.TransferFrom(bidder, e.address, cost); err != nil {
				return err
			}
		}
	}
	if err := e.consumeChallenge(c, size); err != nil {
		return err
	}
	if cost.Sign() > 0 {
		if err := e.currency.Transfer(challenger, cost); err != nil {
			return err
		}
	}
	if err := pos.NotifyChallengeAverted(size); err != nil {
		return err
	}
	token, err := e.directory.TokenAt(pos.Collateral())
	if err != nil {
		return err
	}
	if err := token.Transfer(bidder, size); err != nil {
		return err
	}
	e.emit(events.ChallengeAverted{
		Position: c.Position,
		Index:    c.Index,
		Size:     new(big.Int).Set(size),
	})
	return nil
}

func (e *Engine) finishChallenge(c *Challenge, pos Position, liqPrice *big.Int, phase1, phase2 uint64, size *big.Int, bidder [20]byte, postponeReturn bool, now int64) error {
	challenger := c.Challenger
	price, err := auctionPrice(liqPrice, c.Start, phase1, phase2, now)
	if err != nil {
		return err
	}
	// The worst-case offer is secured in hub escrow before the registry is
	// touched, so an insolvent bid fails with no partial effect. Whatever the
	// position does not actually move is refunded after settlement.
	maxOffer, err := collateralValue(size, price)
	if err != nil {
		return err
	}
	if maxOffer.Sign() > 0 {
		if err := e.currency.TransferFrom(bidder, e.address, maxOffer); err != nil {
			return err
		}
	}
	if err := e.consumeChallenge(c, size); err != nil {
		return err
	}
	if err := e.returnCollateral(pos.Collateral(), challenger, size, postponeReturn); err != nil {
		return err
	}
	owner, transferred, repayment, reservePPM, err := pos.NotifyChallengeSucceeded(bidder, size)
	if err != nil {
		return err
	}
	if transferred == nil {
		transferred = big.NewInt(0)
	}
	if repayment == nil {
		repayment = big.NewInt(0)
	}
	// The position settles at most the consumed size.
	if transferred.Cmp(size) > 0 {
		transferred = new(big.Int).Set(size)
	}
	offer, err := collateralValue(transferred, price)
	if err != nil {
		return err
	}
	if refund := new(big.Int).Sub(maxOffer, offer); refund.Sign() > 0 {
		if err := e.currency.Transfer(bidder, refund); err != nil {
			return err
		}
	}
	reward, err := ppmShare(offer, e.params.ChallengerRewardPPM)
	if err != nil {
		return err
	}
	// The ledger always balances: any surplus over reward+repayment goes to
	// the position owner, any deficit is reported as a loss.
	fundsNeeded := new(big.Int).Add(reward, repayment)
	switch offer.Cmp(fundsNeeded) {
	case 1:
		if err := e.currency.Transfer(owner, new(big.Int).Sub(offer, fundsNeeded)); err != nil {
			return err
		}
	case -1:
		if err := e.currency.NotifyLoss(new(big.Int).Sub(fundsNeeded, offer)); err != nil {
			return err
		}
	}
	if reward.Sign() > 0 {
		if err := e.currency.Transfer(challenger, reward); err != nil {
			return err
		}
	}
	if repayment.Sign() > 0 {
		if err := e.currency.BurnWithoutReserve(repayment, reservePPM); err != nil {
			return err
		}
	}
	e.emit(events.ChallengeSucceeded{
		Position:    c.Position,
		Index:       c.Index,
		Bid:         offer,
		Transferred: new(big.Int).Set(transferred),
		Size:        new(big.Int).Set(size),
	})
	return nil
}

func (e *Engine) returnCollateral(collateral [20]byte, beneficiary [20]byte, amount *big.Int, postpone bool) error {
	if postpone {
		current, err := e.state.PendingReturn(collateral, beneficiary)
		if err != nil {
			return err
		}
		if err := e.state.PutPendingReturn(collateral, beneficiary, new(big.Int).Add(current, amount)); err != nil {
			return err
		}
		e.emit(events.ReturnPostponed{
			Collateral:  collateral,
			Beneficiary: beneficiary,
			Amount:      new(big.Int).Set(amount),
		})
		return nil
	}
	token, err := e.directory.TokenAt(collateral)
	if err != nil {
		return err
	}
	return token.Transfer(beneficiary, amount)
}

// ReturnPostponedCollateral pays out the caller's accumulated pending-return
// balance for a collateral token to the given target.
func (e *Engine) ReturnPostponedCollateral(caller [20]byte, collateral, target [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	amount, err := e.state.PendingReturn(collateral, caller)
	if err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	// Zero the entry before transferring so a reentrant token hook cannot
	// withdraw the same balance twice.
	if err := e.state.PutPendingReturn(collateral, caller, big.NewInt(0)); err != nil {
		return err
	}
	token, err := e.directory.TokenAt(collateral)
	if err != nil {
		return err
	}
	return token.Transfer(target, amount)
}

// PendingReturn reports the accumulated postponed balance for a beneficiary.
func (e *Engine) PendingReturn(collateral, beneficiary [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	amount, err := e.state.PendingReturn(collateral, beneficiary)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(amount), nil
}

// ChallengeAt returns a copy of the stored challenge, or ErrChallengeNotFound
// for tombstoned or unknown indexes.
func (e *Engine) ChallengeAt(index uint64) (*Challenge, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	challenge, ok, err := e.state.ChallengeGet(index)
	if err != nil {
		return nil, err
	}
	if !ok || !challenge.Active() {
		return nil, ErrChallengeNotFound
	}
	return challenge.Clone(), nil
}

// Price returns the current auction price for a challenge. Inactive slots
// report zero.
func (e *Engine) Price(index uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	challenge, ok, err := e.state.ChallengeGet(index)
	if err != nil {
		return nil, err
	}
	if !ok || !challenge.Active() {
		return big.NewInt(0), nil
	}
	pos, err := e.directory.PositionAt(challenge.Position)
	if err != nil {
		return nil, err
	}
	liqPrice, phase1, phase2 := pos.ChallengeData()
	return auctionPrice(liqPrice, challenge.Start, phase1, phase2, e.now())
}
