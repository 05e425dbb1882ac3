package felt

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// PedersenStub computes a deterministic, injective-in-practice Felt from a
// sequence of Felts. It stands in for the real Starknet Pedersen/Poseidon
// hash, which lives in the Cairo VM library and is out of scope here (see
// spec.md §1): Devnet's state root is always zero and no component in this
// module needs a cryptographically faithful hash, only a stable one.
func PedersenStub(inputs ...Felt) Felt {
	h := sha3.NewLegacyKeccak256()
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(inputs)))
	h.Write(lenBuf[:])
	for _, in := range inputs {
		b := in.Bytes()
		h.Write(b[:])
	}
	sum := h.Sum(nil)
	var f Felt
	f.inner.SetBytes(sum)
	f.inner.Mod(&f.inner, Prime)
	return f
}

// ClassHashStub derives a deterministic class hash from raw class bytes,
// standing in for the real Sierra/CASM hashing algorithm.
func ClassHashStub(artifact []byte) Felt {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("class"))
	h.Write(artifact)
	sum := h.Sum(nil)
	var f Felt
	f.inner.SetBytes(sum)
	f.inner.Mod(&f.inner, Prime)
	return f
}
