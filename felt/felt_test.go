package felt

import (
	"math/big"
	"testing"
)

func TestFromHexRoundTrip(t *testing.T) {
	cases := []string{"0x0", "0x1", "0x260a", "0xdeadbeef"}
	for _, c := range cases {
		f, err := FromHex(c)
		if err != nil {
			t.Fatalf("FromHex(%s): %v", c, err)
		}
		if got := f.Hex(); got != c {
			t.Errorf("FromHex(%s).Hex() = %s, want %s", c, got, c)
		}
	}
}

func TestFromHexNoLeadingZeros(t *testing.T) {
	f, err := FromHex("0x00ab")
	if err != nil {
		t.Fatal(err)
	}
	if got := f.Hex(); got != "0xab" {
		t.Errorf("Hex() = %s, want 0xab", got)
	}
}

func TestFromHexRejectsOverflow(t *testing.T) {
	// Prime + 1, encoded in hex, must be rejected.
	over := "0x800000000000011000000000000000000000000000000000000000000000002"
	if _, err := FromHex(over); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestZeroIsZero(t *testing.T) {
	if !Zero.IsZero() {
		t.Fatal("Zero.IsZero() = false")
	}
	if FromUint64(0).Hex() != "0x0" {
		t.Fatalf("zero hex = %s, want 0x0", FromUint64(0).Hex())
	}
}

func TestAddSub(t *testing.T) {
	a := FromUint64(5)
	b := FromUint64(3)
	if got := a.Add(b); got.Hex() != "0x8" {
		t.Errorf("5+3 = %s, want 0x8", got.Hex())
	}
	if got := a.Sub(b); got.Hex() != "0x2" {
		t.Errorf("5-3 = %s, want 0x2", got.Hex())
	}
	// Subtraction wraps modulo Prime rather than going negative.
	zero := FromUint64(0)
	one := FromUint64(1)
	wrapped := zero.Sub(one)
	expected := new(big.Int).Sub(Prime.ToBig(), big.NewInt(1))
	if wrapped.BigInt().Cmp(expected) != 0 {
		t.Errorf("0-1 wraparound mismatch: got %s", wrapped.Hex())
	}
}

func TestCmpAndEqual(t *testing.T) {
	a := FromUint64(10)
	b := FromUint64(10)
	c := FromUint64(11)
	if !a.Equal(b) {
		t.Fatal("expected equal")
	}
	if a.Cmp(c) >= 0 {
		t.Fatal("expected a < c")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	f := MustFromHex("0x1234")
	data, err := f.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	var out Felt
	if err := out.UnmarshalJSON(data); err != nil {
		t.Fatal(err)
	}
	if !out.Equal(f) {
		t.Fatalf("round trip mismatch: %s vs %s", out.Hex(), f.Hex())
	}
}
