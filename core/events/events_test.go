package events

import (
	"math/big"
	"testing"

	"stablehub/crypto"
)

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func TestPositionOpenedAttributes(t *testing.T) {
	owner := testAddr(1)
	evt := PositionOpened{
		Owner:            owner,
		Position:         testAddr(2),
		Currency:         testAddr(3),
		Collateral:       testAddr(4),
		LiquidationPrice: big.NewInt(4000),
	}
	if evt.EventType() != TypePositionOpened {
		t.Fatalf("event type = %q", evt.EventType())
	}
	out := evt.Event()
	if out.Type != TypePositionOpened {
		t.Fatalf("payload type = %q", out.Type)
	}
	if out.Attributes["price"] != "4000" {
		t.Fatalf("price attribute = %q", out.Attributes["price"])
	}
	decoded, err := crypto.DecodeAddress(out.Attributes["owner"])
	if err != nil {
		t.Fatalf("owner attribute not bech32: %v", err)
	}
	if string(decoded.Bytes()) != string(owner[:]) {
		t.Fatalf("owner round-trip mismatch")
	}
}

func TestChallengeSucceededAttributes(t *testing.T) {
	evt := ChallengeSucceeded{
		Position:    testAddr(1),
		Index:       7,
		Bid:         big.NewInt(200),
		Transferred: big.NewInt(100),
		Size:        big.NewInt(100),
	}
	out := evt.Event()
	if out.Attributes["index"] != "7" || out.Attributes["bid"] != "200" {
		t.Fatalf("unexpected attributes %v", out.Attributes)
	}
}

func TestVoteDelegatedAttributes(t *testing.T) {
	set := VoteDelegated{Owner: testAddr(1), Target: testAddr(2)}
	out := set.Event()
	if _, ok := out.Attributes["target"]; !ok {
		t.Fatalf("target missing: %v", out.Attributes)
	}
	if _, ok := out.Attributes["cleared"]; ok {
		t.Fatalf("cleared present on set: %v", out.Attributes)
	}

	cleared := VoteDelegated{Owner: testAddr(1), Cleared: true}
	out = cleared.Event()
	if out.Attributes["cleared"] != "true" {
		t.Fatalf("cleared missing: %v", out.Attributes)
	}
}

func TestFormatAmountNil(t *testing.T) {
	evt := ReturnPostponed{Collateral: testAddr(1), Beneficiary: testAddr(2)}
	if got := evt.Event().Attributes["amount"]; got != "0" {
		t.Fatalf("nil amount formatted as %q", got)
	}
}

type countEmitter struct{ n int }

func (c *countEmitter) Emit(Event) { c.n++ }

func TestTeeFansOutAndSkipsNil(t *testing.T) {
	first := &countEmitter{}
	second := &countEmitter{}
	tee := Tee(first, nil, second)
	tee.Emit(ReserveDeposited{Amount: big.NewInt(1), Shares: big.NewInt(1)})
	tee.Emit(ReserveDeposited{Amount: big.NewInt(2), Shares: big.NewInt(2)})
	if first.n != 2 || second.n != 2 {
		t.Fatalf("fan-out counts = %d, %d", first.n, second.n)
	}
}
