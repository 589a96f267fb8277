package crypto

import (
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressHRP is the bech32 human-readable part of every account address.
// The chain has a single account space: user principals and the derived
// module state accounts share it, so there is exactly one prefix.
const AddressHRP = "mbx"

// AddressLength is the raw length of an account address in bytes.
const AddressLength = 20

// Address is a raw 20-byte account identifier. The zero value is reserved:
// state-address derivation skips it, so a zero Address always means "unset".
type Address [AddressLength]byte

// AddressFromBytes converts a raw byte slice into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("address must be %d bytes long, got %d", AddressLength, len(b))
	}
	var addr Address
	copy(addr[:], b)
	return addr, nil
}

// MustAddressFromBytes converts a raw byte slice and panics on bad input. It
// is meant for the 20-byte arrays the state layer already guarantees.
func MustAddressFromBytes(b []byte) Address {
	addr, err := AddressFromBytes(b)
	if err != nil {
		panic(err)
	}
	return addr
}

// ParseAddress decodes a bech32 account string. Foreign prefixes are
// rejected: an address from another chain is not a principal here.
func ParseAddress(s string) (Address, error) {
	hrp, decoded, err := bech32.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if hrp != AddressHRP {
		return Address{}, fmt.Errorf("unexpected address prefix %q", hrp)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return AddressFromBytes(conv)
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AddressHRP, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns a copy of the raw address.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// Raw returns the address as the fixed-size array used for state keys.
func (a Address) Raw() [AddressLength]byte {
	return a
}

// IsZero reports whether the address is the reserved zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText lets Address fields round-trip through JSON and TOML.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses a bech32 account string in place.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
