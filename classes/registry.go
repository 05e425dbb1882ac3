// Package classes implements the class registry (spec.md §4.B): storage
// for Sierra and legacy (Cairo-0) class artifacts keyed by class hash,
// with on-demand Sierra->CASM compilation cached by compiled class hash.
//
// Grounded on the teacher's mutex-guarded keyed-map registries (the same
// shape as rpc/method_registry.go's MethodRegistry and
// core/state/state_snapshot.go's diff layers: an RWMutex-protected map
// with small, explicit accessor methods).
package classes

import (
	"errors"
	"sync"

	"github.com/shard-labs/starknet-devnet/felt"
)

// Errors returned by the registry.
var (
	ErrClassNotFound         = errors.New("classes: class hash not found")
	ErrCompiledClassNotFound = errors.New("classes: compiled class not found")
	ErrClassTooLarge         = errors.New("classes: ContractClassSizeIsTooLarge")
)

// Size limits (spec.md §4.B). MaxSierraBytes is checked by Declare;
// MaxBytecodeSize is checked only when CompiledByHash compiles a Sierra
// class, not at declaration, and legacy classes are not checked against it.
const (
	MaxSierraBytes  = 4 * 1024 * 1024
	MaxBytecodeSize = 1 << 20 // number of CASM bytecode entries
)

// ArtifactKind distinguishes the two class shapes. Modeled as a sum with
// two arms rather than an inheritance hierarchy (spec.md §9).
type ArtifactKind int

const (
	Sierra ArtifactKind = iota
	Legacy
)

// Artifact is the original declared class as submitted, before CASM
// compilation.
type Artifact struct {
	Kind       ArtifactKind
	Raw        []byte // opaque program bytes, as received
	EntryPoint map[string][]felt.Felt
}

// CompiledClass is the executable CASM form, cached by compiled class
// hash.
type CompiledClass struct {
	Bytecode []byte
}

// Registry stores declared classes and their compiled CASM forms.
type Registry struct {
	mu       sync.RWMutex
	classes  map[felt.Felt]*Artifact
	compiled map[felt.Felt]*CompiledClass // keyed by CompiledClassHash

	// Compile lazily produces a CompiledClass for a Sierra artifact. When
	// it is nil, as sequencer.New leaves it, CompiledByHash returns
	// ErrCompiledClassNotFound for Sierra classes; legacy classes need no
	// compiler.
	Compile func(*Artifact) (*CompiledClass, error)
}

// New creates an empty class registry.
func New(compile func(*Artifact) (*CompiledClass, error)) *Registry {
	return &Registry{
		classes:  make(map[felt.Felt]*Artifact),
		compiled: make(map[felt.Felt]*CompiledClass),
		Compile:  compile,
	}
}

// Declare registers a class under classHash. Re-declaring the same class
// hash is accepted but produces no new entry (spec.md §4.B). Sierra
// artifacts larger than MaxSierraBytes fail with ErrClassTooLarge.
func (r *Registry) Declare(classHash felt.Felt, artifact *Artifact) error {
	if artifact.Kind == Sierra && len(artifact.Raw) > MaxSierraBytes {
		return ErrClassTooLarge
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.classes[classHash]; exists {
		return nil
	}
	r.classes[classHash] = artifact
	return nil
}

// Has reports whether classHash has been declared.
func (r *Registry) Has(classHash felt.Felt) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.classes[classHash]
	return ok
}

// Get returns the declared artifact for classHash.
func (r *Registry) Get(classHash felt.Felt) (*Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.classes[classHash]
	if !ok {
		return nil, ErrClassNotFound
	}
	return a, nil
}

// CompiledByHash returns a cached compiled class for compiledClassHash,
// compiling it on demand from sourceClassHash's artifact on first use
// (spec.md §4.B "lazily compiles Sierra to CASM on first executable use").
func (r *Registry) CompiledByHash(sourceClassHash, compiledClassHash felt.Felt) (*CompiledClass, error) {
	r.mu.RLock()
	if cc, ok := r.compiled[compiledClassHash]; ok {
		r.mu.RUnlock()
		return cc, nil
	}
	artifact, ok := r.classes[sourceClassHash]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrClassNotFound
	}

	if artifact.Kind == Legacy {
		cc := &CompiledClass{Bytecode: artifact.Raw}
		r.mu.Lock()
		r.compiled[compiledClassHash] = cc
		r.mu.Unlock()
		return cc, nil
	}

	if r.Compile == nil {
		return nil, ErrCompiledClassNotFound
	}
	cc, err := r.Compile(artifact)
	if err != nil {
		return nil, err
	}
	if len(cc.Bytecode) > MaxBytecodeSize {
		return nil, ErrClassTooLarge
	}
	r.mu.Lock()
	r.compiled[compiledClassHash] = cc
	r.mu.Unlock()
	return cc, nil
}

// Count returns the number of declared classes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classes)
}
