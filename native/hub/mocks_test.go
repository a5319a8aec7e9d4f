package hub

import (
	"fmt"
	"math/big"

	"stablehub/core/events"
)

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

type mockState struct {
	challenges map[uint64]*Challenge
	next       uint64
	pending    map[string]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		challenges: make(map[uint64]*Challenge),
		pending:    make(map[string]*big.Int),
	}
}

func pendingTestKey(collateral, beneficiary [20]byte) string {
	return string(collateral[:]) + string(beneficiary[:])
}

func (s *mockState) ChallengeAppend(c *Challenge) (uint64, error) {
	c.Index = s.next
	s.challenges[s.next] = c.Clone()
	s.next++
	return c.Index, nil
}

func (s *mockState) ChallengeGet(index uint64) (*Challenge, bool, error) {
	c, ok := s.challenges[index]
	if !ok {
		return nil, false, nil
	}
	return c.Clone(), true, nil
}

func (s *mockState) ChallengePut(c *Challenge) error {
	s.challenges[c.Index] = c.Clone()
	return nil
}

func (s *mockState) ChallengeDelete(index uint64) error {
	delete(s.challenges, index)
	return nil
}

func (s *mockState) PendingReturn(collateral, beneficiary [20]byte) (*big.Int, error) {
	if amount, ok := s.pending[pendingTestKey(collateral, beneficiary)]; ok {
		return new(big.Int).Set(amount), nil
	}
	return big.NewInt(0), nil
}

func (s *mockState) PutPendingReturn(collateral, beneficiary [20]byte, amount *big.Int) error {
	s.pending[pendingTestKey(collateral, beneficiary)] = new(big.Int).Set(amount)
	return nil
}

type mockCurrency struct {
	address  [20]byte
	reserve  [20]byte
	hub      [20]byte
	balances map[[20]byte]*big.Int
	parents  map[[20]byte][20]byte
	losses   []*big.Int
	burned   []*big.Int
}

func newMockCurrency(address, reserve, hub [20]byte) *mockCurrency {
	return &mockCurrency{
		address:  address,
		reserve:  reserve,
		hub:      hub,
		balances: make(map[[20]byte]*big.Int),
		parents:  make(map[[20]byte][20]byte),
	}
}

func (c *mockCurrency) balance(a [20]byte) *big.Int {
	if b, ok := c.balances[a]; ok {
		return b
	}
	zero := big.NewInt(0)
	c.balances[a] = zero
	return zero
}

func (c *mockCurrency) move(from, to [20]byte, amount *big.Int) error {
	if c.balance(from).Cmp(amount) < 0 {
		return fmt.Errorf("mock currency: insufficient balance")
	}
	c.balances[from] = new(big.Int).Sub(c.balance(from), amount)
	c.balances[to] = new(big.Int).Add(c.balance(to), amount)
	return nil
}

func (c *mockCurrency) Address() [20]byte { return c.address }
func (c *mockCurrency) Reserve() [20]byte { return c.reserve }

func (c *mockCurrency) RegisterPosition(position [20]byte) error {
	c.parents[position] = c.hub
	return nil
}

func (c *mockCurrency) PositionParent(position [20]byte) ([20]byte, error) {
	parent, ok := c.parents[position]
	if !ok {
		return [20]byte{}, fmt.Errorf("mock currency: unknown position")
	}
	return parent, nil
}

func (c *mockCurrency) Transfer(to [20]byte, amount *big.Int) error {
	return c.move(c.hub, to, amount)
}

func (c *mockCurrency) TransferFrom(from, to [20]byte, amount *big.Int) error {
	return c.move(from, to, amount)
}

func (c *mockCurrency) NotifyLoss(amount *big.Int) error {
	// Loss coverage credits the hub from the shared reserve.
	c.losses = append(c.losses, new(big.Int).Set(amount))
	c.balances[c.hub] = new(big.Int).Add(c.balance(c.hub), amount)
	return nil
}

func (c *mockCurrency) BurnWithoutReserve(amount *big.Int, reservePPM uint32) error {
	if c.balance(c.hub).Cmp(amount) < 0 {
		return fmt.Errorf("mock currency: burn exceeds balance")
	}
	c.balances[c.hub] = new(big.Int).Sub(c.balance(c.hub), amount)
	c.burned = append(c.burned, new(big.Int).Set(amount))
	return nil
}

type mockToken struct {
	decimals uint8
	hub      [20]byte
	balances map[[20]byte]*big.Int
}

func newMockToken(decimals uint8, hub [20]byte) *mockToken {
	return &mockToken{decimals: decimals, hub: hub, balances: make(map[[20]byte]*big.Int)}
}

func (t *mockToken) balance(a [20]byte) *big.Int {
	if b, ok := t.balances[a]; ok {
		return b
	}
	zero := big.NewInt(0)
	t.balances[a] = zero
	return zero
}

func (t *mockToken) move(from, to [20]byte, amount *big.Int) error {
	if t.balance(from).Cmp(amount) < 0 {
		return fmt.Errorf("mock token: insufficient balance")
	}
	t.balances[from] = new(big.Int).Sub(t.balance(from), amount)
	t.balances[to] = new(big.Int).Add(t.balance(to), amount)
	return nil
}

func (t *mockToken) Decimals() uint8 { return t.decimals }

func (t *mockToken) Transfer(to [20]byte, amount *big.Int) error {
	return t.move(t.hub, to, amount)
}

func (t *mockToken) TransferFrom(from, to [20]byte, amount *big.Int) error {
	return t.move(from, to, amount)
}

type mockPosition struct {
	addr       [20]byte
	owner      [20]byte
	collateral [20]byte
	token      *mockToken
	price      *big.Int
	phase1     uint64
	phase2     uint64
	original   [20]byte
	expiration int64
	reservePPM uint32

	// repayment reported per unit of challenged size; transferred defaults
	// to the full size unless transferOverride is set.
	repayment        *big.Int
	transferOverride *big.Int
	limitErr         error

	started      []*big.Int
	averted      []*big.Int
	limitReduced []*big.Int
	clones       []cloneInit
}

type cloneInit struct {
	owner      [20]byte
	price      *big.Int
	collateral *big.Int
	mint       *big.Int
	expiration int64
}

func (p *mockPosition) Collateral() [20]byte { return p.collateral }
func (p *mockPosition) Price() *big.Int      { return new(big.Int).Set(p.price) }

func (p *mockPosition) ChallengeData() (*big.Int, uint64, uint64) {
	return new(big.Int).Set(p.price), p.phase1, p.phase2
}

func (p *mockPosition) NotifyChallengeStarted(size *big.Int) error {
	p.started = append(p.started, new(big.Int).Set(size))
	return nil
}

func (p *mockPosition) NotifyChallengeAverted(size *big.Int) error {
	p.averted = append(p.averted, new(big.Int).Set(size))
	return nil
}

func (p *mockPosition) NotifyChallengeSucceeded(recipient [20]byte, size *big.Int) ([20]byte, *big.Int, *big.Int, uint32, error) {
	transferred := new(big.Int).Set(size)
	if p.transferOverride != nil {
		transferred = new(big.Int).Set(p.transferOverride)
	}
	if p.token != nil && transferred.Sign() > 0 {
		if err := p.token.move(p.addr, recipient, transferred); err != nil {
			return [20]byte{}, nil, nil, 0, err
		}
	}
	repayment := big.NewInt(0)
	if p.repayment != nil {
		repayment = new(big.Int).Set(p.repayment)
	}
	return p.owner, transferred, repayment, p.reservePPM, nil
}

func (p *mockPosition) ReduceLimitForClone(amount *big.Int) error {
	if p.limitErr != nil {
		return p.limitErr
	}
	p.limitReduced = append(p.limitReduced, new(big.Int).Set(amount))
	return nil
}

func (p *mockPosition) InitializeClone(owner [20]byte, price, collateral, mint *big.Int, expiration int64) error {
	p.clones = append(p.clones, cloneInit{
		owner:      owner,
		price:      new(big.Int).Set(price),
		collateral: new(big.Int).Set(collateral),
		mint:       new(big.Int).Set(mint),
		expiration: expiration,
	})
	return nil
}

func (p *mockPosition) Original() [20]byte { return p.original }
func (p *mockPosition) Expiration() int64  { return p.expiration }

type mockDirectory struct {
	positions map[[20]byte]Position
	tokens    map[[20]byte]CollateralToken
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		positions: make(map[[20]byte]Position),
		tokens:    make(map[[20]byte]CollateralToken),
	}
}

func (d *mockDirectory) PositionAt(a [20]byte) (Position, error) {
	pos, ok := d.positions[a]
	if !ok {
		return nil, fmt.Errorf("mock directory: unknown position")
	}
	return pos, nil
}

func (d *mockDirectory) TokenAt(a [20]byte) (CollateralToken, error) {
	token, ok := d.tokens[a]
	if !ok {
		return nil, fmt.Errorf("mock directory: unknown token")
	}
	return token, nil
}

type mockFactory struct {
	directory *mockDirectory
	nextAddr  byte
	created   []PositionTerms
}

func (f *mockFactory) CreatePosition(owner [20]byte, terms PositionTerms) ([20]byte, error) {
	position := addr(f.nextAddr)
	f.nextAddr++
	f.created = append(f.created, terms)
	f.directory.positions[position] = &mockPosition{
		addr:       position,
		owner:      owner,
		collateral: terms.Collateral,
		price:      new(big.Int).Set(terms.LiquidationPrice),
		phase1:     terms.ChallengePeriod,
		phase2:     terms.ChallengePeriod,
		original:   position,
		expiration: terms.Expiration,
		reservePPM: terms.ReservePPM,
	}
	return position, nil
}

func (f *mockFactory) ClonePosition(original [20]byte) ([20]byte, error) {
	parent, ok := f.directory.positions[original].(*mockPosition)
	if !ok {
		return [20]byte{}, fmt.Errorf("mock factory: unknown original")
	}
	position := addr(f.nextAddr)
	f.nextAddr++
	f.directory.positions[position] = &mockPosition{
		addr:       position,
		collateral: parent.collateral,
		price:      new(big.Int).Set(parent.price),
		phase1:     parent.phase1,
		phase2:     parent.phase2,
		original:   original,
		expiration: parent.expiration,
		reservePPM: parent.reservePPM,
	}
	return position, nil
}

// collectEmitter records emitted event types for assertions.
type collectEmitter struct {
	types []string
}

func (c *collectEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	c.types = append(c.types, evt.EventType())
}
