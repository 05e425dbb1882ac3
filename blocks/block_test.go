package blocks

import "testing"

func TestLiteHashGenesisFixed(t *testing.T) {
	g := LiteHash(0)
	if g.Hex() != "0x1" {
		t.Fatalf("genesis lite hash = %s, want 0x1", g.Hex())
	}
}

func TestLiteHashInjective(t *testing.T) {
	seen := make(map[string]uint64)
	for n := uint64(0); n < 50; n++ {
		h := LiteHash(n).Hex()
		if prev, ok := seen[h]; ok {
			t.Fatalf("LiteHash collision: %d and %d both hash to %s", prev, n, h)
		}
		seen[h] = n
	}
}

func TestFullHashDeterministic(t *testing.T) {
	b := &Block{Number: 3, Timestamp: 100}
	h1 := FullHash(b)
	h2 := FullHash(b)
	if h1.Cmp(h2) != 0 {
		t.Fatalf("FullHash not deterministic: %s vs %s", h1.Hex(), h2.Hex())
	}

	b.Timestamp = 101
	h3 := FullHash(b)
	if h1.Cmp(h3) == 0 {
		t.Fatal("FullHash ignored timestamp")
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusPreConfirmed: "PRE_CONFIRMED",
		StatusAcceptedOnL2: "ACCEPTED_ON_L2",
		StatusAcceptedOnL1: "ACCEPTED_ON_L1",
		StatusAborted:      "ABORTED",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %s, want %s", s, got, want)
		}
	}
}
