package sequencer

import (
	"context"
	"errors"

	"github.com/shard-labs/starknet-devnet/blocks"
	"github.com/shard-labs/starknet-devnet/classes"
	"github.com/shard-labs/starknet-devnet/config"
	"github.com/shard-labs/starknet-devnet/felt"
	"github.com/shard-labs/starknet-devnet/txn"
)

// ErrTransactionNotFound is returned by GetTransactionReceipt for a hash
// Devnet never admitted.
var ErrTransactionNotFound = errors.New("sequencer: transaction not found")

// ChainID returns the configured chain id (starknet_chainId).
func (s *Sequencer) ChainID() string {
	return s.cfg.ChainID
}

// Config returns the devnet's running configuration (devnet_getConfig).
func (s *Sequencer) Config() config.Config {
	return s.cfg
}

// BlockNumber returns the latest sealed block's number (starknet_blockNumber).
func (s *Sequencer) BlockNumber() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks.LatestNumber()
}

// GetBlockByNumber returns the sealed or pre-confirmed block at n.
func (s *Sequencer) GetBlockByNumber(n uint64) (*blocks.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pending := s.blocks.PreConfirmed(); pending.Number == n {
		return pending, nil
	}
	return s.blocks.ByNumber(n)
}

// GetBlockByHash returns a sealed block by hash.
func (s *Sequencer) GetBlockByHash(h felt.Felt) (*blocks.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks.ByHash(h)
}

// GetTransactionReceipt returns the receipt Devnet recorded for hash at
// admission or mint time (spec.md §4.J starknet_getTransactionReceipt).
func (s *Sequencer) GetTransactionReceipt(hash felt.Felt) (*txn.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[hash]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return r, nil
}

// GetNonce returns address's nonce at the latest pre-confirmed state,
// falling back to the forked origin when the contract is unknown locally
// (spec.md §4.F read-through).
func (s *Sequencer) GetNonce(ctx context.Context, address felt.Felt) (felt.Felt, error) {
	s.mu.Lock()
	pre := s.state.PreConfirmed()
	known := pre.ContractExists(address)
	var local felt.Felt
	if known {
		local = pre.GetNonce(address)
	}
	pinned := s.cfg.ForkBlock
	s.mu.Unlock()

	if known {
		return local, nil
	}
	return s.origin.GetNonce(ctx, pinned, address)
}

// GetStorageAt returns address's storage slot key, falling back to the
// forked origin when the contract is unknown locally.
func (s *Sequencer) GetStorageAt(ctx context.Context, address, key felt.Felt) (felt.Felt, error) {
	s.mu.Lock()
	pre := s.state.PreConfirmed()
	known := pre.ContractExists(address)
	var local felt.Felt
	if known {
		local = pre.GetStorage(address, key)
	}
	pinned := s.cfg.ForkBlock
	s.mu.Unlock()

	if known {
		return local, nil
	}
	return s.origin.GetStorageAt(ctx, pinned, address, key)
}

// GetClassHashAt returns address's class hash, falling back to the forked
// origin when the contract is unknown locally.
func (s *Sequencer) GetClassHashAt(ctx context.Context, address felt.Felt) (felt.Felt, error) {
	s.mu.Lock()
	pre := s.state.PreConfirmed()
	known := pre.ContractExists(address)
	var local felt.Felt
	if known {
		local = pre.GetClassHash(address)
	}
	pinned := s.cfg.ForkBlock
	s.mu.Unlock()

	if known {
		return local, nil
	}
	return s.origin.GetClassHashAt(ctx, pinned, address)
}

// GetClass returns a declared class's artifact, falling back to the
// forked origin when the class hash is unknown locally.
func (s *Sequencer) GetClass(ctx context.Context, classHash felt.Felt) (*classes.Artifact, error) {
	s.mu.Lock()
	art, err := s.classes.Get(classHash)
	pinned := s.cfg.ForkBlock
	s.mu.Unlock()

	if err == nil {
		return art, nil
	}
	raw, ferr := s.origin.GetClass(ctx, pinned, classHash)
	if ferr != nil {
		return nil, ferr
	}
	return &classes.Artifact{Kind: classes.Sierra, Raw: raw}, nil
}
