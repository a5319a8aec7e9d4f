package hub

import "math/big"

// CurrencyLedger is the settlement currency as seen by the hub. Transfer
// spends the hub's own balance; TransferFrom requires allowance granted by
// the source account.
type CurrencyLedger interface {
	Address() [20]byte
	Reserve() [20]byte
	RegisterPosition(position [20]byte) error
	PositionParent(position [20]byte) ([20]byte, error)
	Transfer(to [20]byte, amount *big.Int) error
	TransferFrom(from, to [20]byte, amount *big.Int) error
	// NotifyLoss reports a settlement shortfall; the currency covers it from
	// the shared reserve by crediting the hub.
	NotifyLoss(amount *big.Int) error
	// BurnWithoutReserve burns repayment from the hub's balance, releasing
	// the position's proportional reserve contribution.
	BurnWithoutReserve(amount *big.Int, reservePPM uint32) error
}

// Position is one collateralized loan contract. The hub only ever drives it
// through this surface; internal accounting (minting limits, interest,
// collateral ratio) stays with the collaborator.
type Position interface {
	Collateral() [20]byte
	Price() *big.Int
	// ChallengeData returns the liquidation price and the avert/decay window
	// durations in seconds.
	ChallengeData() (liqPrice *big.Int, phase1 uint64, phase2 uint64)
	NotifyChallengeStarted(size *big.Int) error
	NotifyChallengeAverted(size *big.Int) error
	// NotifyChallengeSucceeded settles the position side of a winning bid.
	// The position transfers collateral to the recipient itself and reports
	// how much actually moved, which can differ from size because repayment
	// follows what was minted against the collateral.
	NotifyChallengeSucceeded(recipient [20]byte, size *big.Int) (owner [20]byte, transferred *big.Int, repayment *big.Int, reservePPM uint32, err error)
	ReduceLimitForClone(amount *big.Int) error
	InitializeClone(owner [20]byte, price, collateral, mint *big.Int, expiration int64) error
	Original() [20]byte
	Expiration() int64
}

// CollateralToken is the minimal token surface the hub escrow needs.
// Transfer spends the hub's escrow balance.
type CollateralToken interface {
	Decimals() uint8
	Transfer(to [20]byte, amount *big.Int) error
	TransferFrom(from, to [20]byte, amount *big.Int) error
}

// PositionFactory creates and clones position contracts, returning their
// addresses.
type PositionFactory interface {
	CreatePosition(owner [20]byte, terms PositionTerms) ([20]byte, error)
	ClonePosition(original [20]byte) ([20]byte, error)
}

// Directory resolves collaborator addresses recorded in hub state back into
// live interfaces.
type Directory interface {
	PositionAt(addr [20]byte) (Position, error)
	TokenAt(addr [20]byte) (CollateralToken, error)
}
