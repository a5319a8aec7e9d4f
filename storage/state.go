package storage

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"stablehub/crypto"
	"stablehub/native/hub"
)

const (
	challengeCountKey = "hub/challenge/count"
	challengePrefix   = "hub/challenge/"
	pendingPrefix     = "hub/pending/"
	sharePrefix       = "reserve/share/"
	totalSharesKey    = "reserve/total"
	delegatePrefix    = "reserve/delegate/"
)

// State persists the hub's challenge registry and pending-returns ledger and
// the reserve pool's share and delegation books over a Database. It satisfies
// the state interfaces consumed by hub.Engine and reserve.Pool.
type State struct {
	mu sync.Mutex
	db Database
}

// NewState wraps a database in the hub/pool state surface.
func NewState(db Database) *State {
	return &State{db: db}
}

type storedChallenge struct {
	Index      uint64 `json:"index"`
	Challenger string `json:"challenger"`
	Position   string `json:"position"`
	Start      int64  `json:"start"`
	Size       string `json:"size"`
}

func challengeKey(index uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)
	return append([]byte(challengePrefix), buf[:]...)
}

func pendingKey(collateral, beneficiary [20]byte) []byte {
	digest := crypto.CompositeKey(collateral, beneficiary)
	return append([]byte(pendingPrefix), digest[:]...)
}

func encodeChallenge(c *hub.Challenge) ([]byte, error) {
	size := big.NewInt(0)
	if c.Size != nil {
		size = c.Size
	}
	return json.Marshal(storedChallenge{
		Index:      c.Index,
		Challenger: hex.EncodeToString(c.Challenger[:]),
		Position:   hex.EncodeToString(c.Position[:]),
		Start:      c.Start,
		Size:       size.String(),
	})
}

func decodeChallenge(raw []byte) (*hub.Challenge, error) {
	var stored storedChallenge
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	challenge := &hub.Challenge{Index: stored.Index, Start: stored.Start}
	if err := decodeAddr(stored.Challenger, &challenge.Challenger); err != nil {
		return nil, err
	}
	if err := decodeAddr(stored.Position, &challenge.Position); err != nil {
		return nil, err
	}
	size, ok := new(big.Int).SetString(stored.Size, 10)
	if !ok {
		return nil, fmt.Errorf("storage: malformed challenge size %q", stored.Size)
	}
	challenge.Size = size
	return challenge, nil
}

func decodeAddr(s string, out *[20]byte) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != 20 {
		return fmt.Errorf("storage: malformed address %q", s)
	}
	copy(out[:], raw)
	return nil
}

// ChallengeAppend assigns the next free index to the challenge and persists
// it. Indexes are never reused, even after the slot is tombstoned.
func (s *State) ChallengeAppend(c *hub.Challenge) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next uint64
	raw, ok, err := s.db.Get([]byte(challengeCountKey))
	if err != nil {
		return 0, err
	}
	if ok {
		next = binary.BigEndian.Uint64(raw)
	}
	c.Index = next
	encoded, err := encodeChallenge(c)
	if err != nil {
		return 0, err
	}
	if err := s.db.Put(challengeKey(next), encoded); err != nil {
		return 0, err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next+1)
	if err := s.db.Put([]byte(challengeCountKey), buf[:]); err != nil {
		return 0, err
	}
	return next, nil
}

// ChallengeGet loads a challenge by index; tombstoned slots report !ok.
func (s *State) ChallengeGet(index uint64) (*hub.Challenge, bool, error) {
	raw, ok, err := s.db.Get(challengeKey(index))
	if err != nil || !ok {
		return nil, false, err
	}
	challenge, err := decodeChallenge(raw)
	if err != nil {
		return nil, false, err
	}
	return challenge, true, nil
}

// ChallengePut overwrites an existing challenge slot.
func (s *State) ChallengePut(c *hub.Challenge) error {
	encoded, err := encodeChallenge(c)
	if err != nil {
		return err
	}
	return s.db.Put(challengeKey(c.Index), encoded)
}

// ChallengeDelete tombstones a slot. The index stays burned.
func (s *State) ChallengeDelete(index uint64) error {
	return s.db.Delete(challengeKey(index))
}

// ChallengeCount returns the number of indexes ever assigned.
func (s *State) ChallengeCount() (uint64, error) {
	raw, ok, err := s.db.Get([]byte(challengeCountKey))
	if err != nil || !ok {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

// PendingReturn reports the accumulated postponed balance for a beneficiary.
func (s *State) PendingReturn(collateral, beneficiary [20]byte) (*big.Int, error) {
	return s.loadAmount(pendingKey(collateral, beneficiary))
}

// PutPendingReturn stores the postponed balance for a beneficiary, removing
// the record when it is zeroed.
func (s *State) PutPendingReturn(collateral, beneficiary [20]byte, amount *big.Int) error {
	return s.storeAmount(pendingKey(collateral, beneficiary), amount)
}

// ShareBalance reports a holder's reserve share balance.
func (s *State) ShareBalance(holder [20]byte) (*big.Int, error) {
	return s.loadAmount(shareKey(holder))
}

// PutShareBalance stores a holder's reserve share balance.
func (s *State) PutShareBalance(holder [20]byte, amount *big.Int) error {
	return s.storeAmount(shareKey(holder), amount)
}

// TotalShares reports the outstanding share supply.
func (s *State) TotalShares() (*big.Int, error) {
	return s.loadAmount([]byte(totalSharesKey))
}

// PutTotalShares stores the outstanding share supply.
func (s *State) PutTotalShares(amount *big.Int) error {
	return s.storeAmount([]byte(totalSharesKey), amount)
}

// Delegate reports the owner's outgoing delegation edge, if any.
func (s *State) Delegate(owner [20]byte) ([20]byte, bool, error) {
	var target [20]byte
	raw, ok, err := s.db.Get(delegateKey(owner))
	if err != nil || !ok {
		return target, false, err
	}
	if len(raw) != 20 {
		return target, false, fmt.Errorf("storage: malformed delegate record")
	}
	copy(target[:], raw)
	return target, true, nil
}

// PutDelegate stores the owner's outgoing delegation edge.
func (s *State) PutDelegate(owner, target [20]byte) error {
	return s.db.Put(delegateKey(owner), target[:])
}

// DeleteDelegate clears the owner's outgoing delegation edge.
func (s *State) DeleteDelegate(owner [20]byte) error {
	return s.db.Delete(delegateKey(owner))
}

func shareKey(holder [20]byte) []byte {
	return append([]byte(sharePrefix), holder[:]...)
}

func delegateKey(owner [20]byte) []byte {
	return append([]byte(delegatePrefix), owner[:]...)
}

func (s *State) loadAmount(key []byte) (*big.Int, error) {
	raw, ok, err := s.db.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	amount, parsed := new(big.Int).SetString(string(raw), 10)
	if !parsed {
		return nil, fmt.Errorf("storage: malformed amount %q", raw)
	}
	return amount, nil
}

func (s *State) storeAmount(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("storage: amount must be non-negative")
	}
	if amount.Sign() == 0 {
		return s.db.Delete(key)
	}
	return s.db.Put(key, []byte(amount.String()))
}
