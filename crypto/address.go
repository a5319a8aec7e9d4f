package crypto

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable prefixes used when rendering hub
// addresses.
type AddressPrefix string

// HubPrefix is the bech32 prefix shared by every account, position and token
// address the hub touches.
const HubPrefix AddressPrefix = "hub"

// Address represents a 20-byte account address with a bech32 prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

// NewAddress wraps a raw 20-byte value with the given prefix.
func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != 20 {
		panic("address must be 20 bytes long")
	}
	return Address{prefix: prefix, bytes: b}
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns the raw 20-byte form of the address.
func (a Address) Bytes() []byte {
	return a.bytes
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// DecodeAddress parses a bech32 string back into an Address.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != 20 {
		return Address{}, fmt.Errorf("invalid address length: %d", len(conv))
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// DeriveChildAddress deterministically derives the address of the nth child
// created by a parent (e.g. a position minted by the hub's factory). The
// derivation is the trailing 20 bytes of keccak256(parent || nonce).
func DeriveChildAddress(parent [20]byte, nonce uint64) [20]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	digest := ethcrypto.Keccak256(parent[:], buf[:])
	var out [20]byte
	copy(out[:], digest[12:])
	return out
}

// CompositeKey hashes the concatenation of the provided 20-byte components
// into a fixed-length storage key segment.
func CompositeKey(parts ...[20]byte) [32]byte {
	flat := make([][]byte, len(parts))
	for i := range parts {
		flat[i] = parts[i][:]
	}
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(flat...))
	return out
}
