// Package felt implements the field element that is the universal scalar
// of the Starknet data model: addresses, class hashes, storage keys and
// values, selectors, and nonces are all Felt.
package felt

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// Length is the byte width of a Felt's backing storage. The Starknet prime
// is a 252-bit value, which fits comfortably in 32 bytes with four spare
// high bits that Felt enforces are always zero.
const Length = 32

// Prime is the Starknet field modulus:
// 2**251 + 17*2**192 + 1.
var Prime = func() *uint256.Int {
	p, _ := uint256.FromHex("0x800000000000011000000000000000000000000000000000000000000000001")
	return p
}()

// Felt is a 252-bit non-negative integer, reduced modulo Prime.
type Felt struct {
	inner uint256.Int
}

// Zero is the additive identity.
var Zero = Felt{}

// One is the multiplicative identity.
var One = FromUint64(1)

// FromUint64 constructs a Felt from a uint64.
func FromUint64(v uint64) Felt {
	var f Felt
	f.inner.SetUint64(v)
	return f
}

// FromBigInt constructs a Felt from a big.Int, reducing modulo Prime.
// A negative input is rejected: Felt is always non-negative per spec.
func FromBigInt(v *big.Int) (Felt, error) {
	if v.Sign() < 0 {
		return Felt{}, fmt.Errorf("felt: negative value %s", v.String())
	}
	var f Felt
	f.inner.SetFromBig(v)
	f.inner.Mod(&f.inner, Prime)
	return f, nil
}

// FromHex parses a "0x"-prefixed hex string into a Felt.
func FromHex(s string) (Felt, error) {
	b, err := hexutil.Decode(normalizeHex(s))
	if err != nil {
		return Felt{}, fmt.Errorf("felt: invalid hex %q: %w", s, err)
	}
	if len(b) > Length {
		return Felt{}, fmt.Errorf("felt: value %q overflows %d bytes", s, Length)
	}
	var f Felt
	f.inner.SetBytes(b)
	if f.inner.Cmp(Prime) >= 0 {
		return Felt{}, fmt.Errorf("felt: value %q exceeds the field prime", s)
	}
	return f, nil
}

// MustFromHex is FromHex but panics on error; intended for constants and
// tests where the input is known-good.
func MustFromHex(s string) Felt {
	f, err := FromHex(s)
	if err != nil {
		panic(err)
	}
	return f
}

// normalizeHex accepts both "0x" and bare hex, and treats "0x0" / "0x"
// as zero, matching the spec's "no leading zeros beyond 0x0" rule on the
// decode side (we are permissive on input, strict on output). Odd-length
// digit strings are left-padded with one zero so hexutil.Decode accepts
// them.
func normalizeHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return "0x" + s
}

// Hex renders the Felt as lowercase "0x"-prefixed hex with no leading
// zeros beyond the single digit "0x0", per the spec's encoding rule.
func (f Felt) Hex() string {
	return hexutil.EncodeBig(f.inner.ToBig())
}

// String implements fmt.Stringer.
func (f Felt) String() string { return f.Hex() }

// Bytes returns the big-endian 32-byte representation.
func (f Felt) Bytes() [Length]byte {
	return f.inner.Bytes32()
}

// BigInt returns the value as a big.Int.
func (f Felt) BigInt() *big.Int {
	return f.inner.ToBig()
}

// IsZero reports whether the Felt is the additive identity.
func (f Felt) IsZero() bool {
	return f.inner.IsZero()
}

// Cmp compares two Felts as unsigned integers.
func (f Felt) Cmp(other Felt) int {
	return f.inner.Cmp(&other.inner)
}

// Equal reports whether two Felts hold the same value.
func (f Felt) Equal(other Felt) bool {
	return f.inner.Eq(&other.inner)
}

// Add returns (f + other) mod Prime.
func (f Felt) Add(other Felt) Felt {
	var out Felt
	out.inner.AddMod(&f.inner, &other.inner, Prime)
	return out
}

// Sub returns (f - other) mod Prime.
func (f Felt) Sub(other Felt) Felt {
	var out Felt
	// uint256 has no native modular subtraction; emulate via the prime.
	sum := new(uint256.Int).Add(&f.inner, Prime)
	out.inner.Sub(sum, &other.inner)
	out.inner.Mod(&out.inner, Prime)
	return out
}

// MarshalJSON renders the Felt as its hex string, matching every Starknet
// JSON-RPC field that carries a field element.
func (f Felt) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Hex())
}

// UnmarshalJSON parses a Felt from its hex string form.
func (f *Felt) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("felt: %w", err)
	}
	parsed, err := FromHex(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
