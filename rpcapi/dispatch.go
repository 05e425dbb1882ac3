package rpcapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shard-labs/starknet-devnet/blocks"
	"github.com/shard-labs/starknet-devnet/config"
	"github.com/shard-labs/starknet-devnet/felt"
	"github.com/shard-labs/starknet-devnet/sequencer"
	"github.com/shard-labs/starknet-devnet/subscriptions"
	"github.com/shard-labs/starknet-devnet/txn"
)

// Facade names the sequencer the dispatch table calls through. It is an
// alias of the concrete *sequencer.Sequencer, not an interface, so it
// cannot be replaced by a stub.
type Facade = *sequencer.Sequencer

// NewDispatchTable builds and registers every starknet_*/devnet_* method
// against seq (spec.md §4.J). restricted methods are tagged so the
// transport layer's restrictive-mode gate can refuse them.
func NewDispatchTable(seq Facade) *Registry {
	r := NewRegistry()
	register := func(name string, restricted bool, h MethodHandler) {
		if err := r.Register(MethodInfo{Name: name, Handler: h, Restricted: restricted}); err != nil {
			panic(err)
		}
	}

	register("starknet_chainId", false, func(json.RawMessage) (any, error) {
		return seq.ChainID(), nil
	})

	register("starknet_blockNumber", false, func(json.RawMessage) (any, error) {
		return seq.BlockNumber(), nil
	})

	register("starknet_getBlockWithTxHashes", false, func(p json.RawMessage) (any, error) {
		var params struct {
			BlockNumber *uint64 `json:"block_number"`
			BlockHash   *string `json:"block_hash"`
		}
		if err := json.Unmarshal(p, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		var (
			b   *blocks.Block
			err error
		)
		switch {
		case params.BlockHash != nil:
			var h felt.Felt
			if h, err = felt.FromHex(*params.BlockHash); err != nil {
				return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
			}
			b, err = seq.GetBlockByHash(h)
		case params.BlockNumber != nil:
			b, err = seq.GetBlockByNumber(*params.BlockNumber)
		default:
			b, err = seq.GetBlockByNumber(seq.BlockNumber())
		}
		if err != nil {
			return nil, err
		}
		return blockView(b), nil
	})

	register("starknet_getNonce", false, func(p json.RawMessage) (any, error) {
		var params struct {
			ContractAddress string `json:"contract_address"`
		}
		if err := json.Unmarshal(p, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		addr, err := felt.FromHex(params.ContractAddress)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		nonce, err := seq.GetNonce(context.Background(), addr)
		if err != nil {
			return nil, err
		}
		return nonce.Hex(), nil
	})

	register("starknet_getStorageAt", false, func(p json.RawMessage) (any, error) {
		var params struct {
			ContractAddress string `json:"contract_address"`
			Key             string `json:"key"`
		}
		if err := json.Unmarshal(p, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		addr, err := felt.FromHex(params.ContractAddress)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		key, err := felt.FromHex(params.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		val, err := seq.GetStorageAt(context.Background(), addr, key)
		if err != nil {
			return nil, err
		}
		return val.Hex(), nil
	})

	register("starknet_getClassHashAt", false, func(p json.RawMessage) (any, error) {
		var params struct {
			ContractAddress string `json:"contract_address"`
		}
		if err := json.Unmarshal(p, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		addr, err := felt.FromHex(params.ContractAddress)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		hash, err := seq.GetClassHashAt(context.Background(), addr)
		if err != nil {
			return nil, err
		}
		return hash.Hex(), nil
	})

	register("starknet_getTransactionReceipt", false, func(p json.RawMessage) (any, error) {
		var params struct {
			TransactionHash string `json:"transaction_hash"`
		}
		if err := json.Unmarshal(p, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		hash, err := felt.FromHex(params.TransactionHash)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		receipt, err := seq.GetTransactionReceipt(hash)
		if err != nil {
			return nil, err
		}
		return receiptView(receipt), nil
	})

	register("starknet_addInvokeTransaction", false, func(p json.RawMessage) (any, error) {
		var tx txn.Transaction
		if err := json.Unmarshal(p, &tx); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		tx.Kind = txn.Invoke
		receipt, err := seq.AdmitTransaction(&tx)
		if err != nil {
			return nil, err
		}
		return receiptView(receipt), nil
	})

	register("devnet_mint", true, func(p json.RawMessage) (any, error) {
		var params struct {
			Address string `json:"address"`
			Amount  uint64 `json:"amount"`
			Unit    string `json:"unit"`
		}
		if err := json.Unmarshal(p, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		addr, err := felt.FromHex(params.Address)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		hash, err := seq.Mint(addr, params.Amount, feeUnitFromString(params.Unit))
		if err != nil {
			return nil, err
		}
		return map[string]any{"tx_hash": hash.Hex()}, nil
	})

	register("devnet_getAccountBalance", false, func(p json.RawMessage) (any, error) {
		var params struct {
			Address string `json:"address"`
			Unit    string `json:"unit"`
		}
		if err := json.Unmarshal(p, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		addr, err := felt.FromHex(params.Address)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		unit := feeUnitFromString(params.Unit)
		balance := seq.GetAccountBalance(addr, unit)
		return map[string]any{"amount": balance.Hex(), "unit": unit.String()}, nil
	})

	register("devnet_getConfig", false, func(json.RawMessage) (any, error) {
		return configView(seq.Config()), nil
	})

	register("devnet_createBlock", true, func(json.RawMessage) (any, error) {
		return blockView(seq.CreateBlock()), nil
	})

	register("devnet_abortBlocks", true, func(p json.RawMessage) (any, error) {
		var params struct {
			StartingBlockNumber uint64 `json:"starting_block_number"`
		}
		if err := json.Unmarshal(p, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		aborted, err := seq.AbortBlocks(params.StartingBlockNumber)
		if err != nil {
			return nil, err
		}
		hashes := make([]string, len(aborted))
		for i, b := range aborted {
			hashes[i] = b.Hash.Hex()
		}
		return map[string]any{"aborted": hashes}, nil
	})

	register("devnet_acceptOnL1", true, func(p json.RawMessage) (any, error) {
		var params struct {
			StartingBlockNumber uint64 `json:"starting_block_number"`
		}
		if err := json.Unmarshal(p, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		if err := seq.AcceptOnL1(params.StartingBlockNumber); err != nil {
			return nil, err
		}
		return map[string]any{"accepted": true}, nil
	})

	register("devnet_impersonateAccount", true, func(p json.RawMessage) (any, error) {
		addr, err := paramAddress(p)
		if err != nil {
			return nil, err
		}
		seq.ImpersonateAccount(addr)
		return nil, nil
	})

	register("devnet_stopImpersonateAccount", true, func(p json.RawMessage) (any, error) {
		addr, err := paramAddress(p)
		if err != nil {
			return nil, err
		}
		seq.StopImpersonateAccount(addr)
		return nil, nil
	})

	register("devnet_autoImpersonate", true, func(json.RawMessage) (any, error) {
		seq.AutoImpersonate()
		return nil, nil
	})

	register("devnet_stopAutoImpersonate", true, func(json.RawMessage) (any, error) {
		seq.StopAutoImpersonate()
		return nil, nil
	})

	register("devnet_setGasPrice", true, func(p json.RawMessage) (any, error) {
		var params struct {
			L1GasWei, L1GasFri         uint64
			L1DataGasWei, L1DataGasFri uint64
			L2GasWei, L2GasFri         uint64
		}
		if err := json.Unmarshal(p, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		seq.SetGasPrice(blocks.GasPrices{
			L1GasWei:     felt.FromUint64(params.L1GasWei),
			L1GasFri:     felt.FromUint64(params.L1GasFri),
			L1DataGasWei: felt.FromUint64(params.L1DataGasWei),
			L1DataGasFri: felt.FromUint64(params.L1DataGasFri),
			L2GasWei:     felt.FromUint64(params.L2GasWei),
			L2GasFri:     felt.FromUint64(params.L2GasFri),
		})
		return nil, nil
	})

	register("devnet_setTime", true, func(p json.RawMessage) (any, error) {
		var params struct {
			Time          uint64 `json:"time"`
			GenerateBlock bool   `json:"generate_block"`
		}
		if err := json.Unmarshal(p, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		sealed := seq.SetTime(params.Time, params.GenerateBlock)
		if sealed == nil {
			return nil, nil
		}
		return blockView(sealed), nil
	})

	register("devnet_increaseTime", true, func(p json.RawMessage) (any, error) {
		var params struct {
			Time uint64 `json:"time"`
		}
		if err := json.Unmarshal(p, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		return blockView(seq.IncreaseTime(params.Time)), nil
	})

	register("devnet_restart", true, func(json.RawMessage) (any, error) {
		seq.Restart()
		return nil, nil
	})

	register("devnet_getPredeployedAccounts", true, func(json.RawMessage) (any, error) {
		accs := seq.PredeployedAccounts()
		out := make([]map[string]any, len(accs))
		for i, a := range accs {
			out[i] = map[string]any{
				"address":    a.Address.Hex(),
				"class_hash": a.ClassHash.Hex(),
				"balance":    a.Balance,
			}
		}
		return out, nil
	})

	register("devnet_postmanLoad", true, func(p json.RawMessage) (any, error) {
		var params struct {
			NetworkURL string `json:"network_url"`
			Address    string `json:"message_contract_address"`
		}
		if err := json.Unmarshal(p, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		addr, err := felt.FromHex(params.Address)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		seq.LoadMessagingContract(params.NetworkURL, addr)
		return nil, nil
	})

	register("devnet_postmanSendMessageToL2", true, func(p json.RawMessage) (any, error) {
		var m txn.MessageToL2
		if err := json.Unmarshal(p, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		receipt, err := seq.MockSendMessageToL2(m)
		if err != nil {
			return nil, err
		}
		return receiptView(receipt), nil
	})

	register("devnet_postmanConsumeMessageFromL2", true, func(p json.RawMessage) (any, error) {
		var params struct {
			FromAddress string   `json:"from_address"`
			ToAddress   string   `json:"to_address"`
			Payload     []string `json:"payload"`
		}
		if err := json.Unmarshal(p, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		from, err := felt.FromHex(params.FromAddress)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		to, err := felt.FromHex(params.ToAddress)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		payload := make([]felt.Felt, len(params.Payload))
		for i, s := range params.Payload {
			f, err := felt.FromHex(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
			}
			payload[i] = f
		}
		hash, err := seq.MockConsumeMessageFromL2(from, to, payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{"message_hash": hash.Hex()}, nil
	})

	register("devnet_postmanFlush", true, func(p json.RawMessage) (any, error) {
		var params struct {
			DryRun bool `json:"dry_run"`
		}
		_ = json.Unmarshal(p, &params)
		l2, err := seq.FlushL2ToL1(params.DryRun)
		if err != nil {
			return nil, err
		}
		l1, err := seq.FlushL1ToL2(params.DryRun)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"consumed_l2_to_l1": len(l2.ConsumedL2ToL1),
			"synthesized_l1_to_l2": len(l1.SynthesizedTxs),
		}, nil
	})

	register("devnet_dump", true, func(p json.RawMessage) (any, error) {
		var params struct {
			Path string `json:"path"`
		}
		_ = json.Unmarshal(p, &params)
		raw, err := seq.DumpJournal(params.Path)
		if err != nil {
			return nil, err
		}
		if params.Path != "" {
			return nil, nil
		}
		return json.RawMessage(raw), nil
	})

	register("devnet_load", true, func(p json.RawMessage) (any, error) {
		var params struct {
			Path string `json:"path"`
		}
		if err := json.Unmarshal(p, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		if err := seq.LoadJournal(params.Path, nil); err != nil {
			return nil, err
		}
		return nil, nil
	})

	return r
}

func paramAddress(p json.RawMessage) (felt.Felt, error) {
	var params struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(p, &params); err != nil {
		return felt.Felt{}, fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return felt.FromHex(params.Address)
}

func feeUnitFromString(s string) txn.FeeUnit {
	if s == "FRI" || s == "STRK" {
		return txn.FRI
	}
	return txn.WEI
}

func blockView(b *blocks.Block) map[string]any {
	txHashes := make([]string, len(b.Transactions))
	for i, h := range b.Transactions {
		txHashes[i] = h.Hex()
	}
	return map[string]any{
		"block_number":      b.Number,
		"block_hash":        b.Hash.Hex(),
		"parent_hash":       b.ParentHash.Hex(),
		"timestamp":         b.Timestamp,
		"status":            b.Status.String(),
		"transactions":      txHashes,
		"sequencer_address": b.SequencerAddress.Hex(),
	}
}

func archiveCapacityString(a config.ArchiveCapacity) string {
	if a == config.ArchiveCapacityFull {
		return "full"
	}
	return "none"
}

func configView(cfg config.Config) map[string]any {
	return map[string]any{
		"host":                cfg.Host,
		"port":                cfg.Port,
		"seed":                cfg.Seed,
		"accounts":            cfg.Accounts,
		"initial_balance":     cfg.InitialBalance,
		"account_class":       cfg.AccountClass,
		"fork_network":        cfg.ForkNetwork,
		"fork_block":          cfg.ForkBlock,
		"block_generation_on": cfg.BlockGenerationOn.String(),
		"state_archive":       archiveCapacityString(cfg.StateArchive),
		"start_time":          cfg.StartTime,
		"lite_mode":           cfg.LiteMode,
		"restrictive_mode":    cfg.RestrictiveMode,
		"restricted_methods":  cfg.RestrictedMethods,
		"chain_id":            cfg.ChainID,
	}
}

func receiptView(r *txn.Receipt) map[string]any {
	return map[string]any{
		"transaction_hash": r.TransactionHash.Hex(),
		"block_number":     r.BlockNumber,
		"execution_status": r.ExecutionStatus.String(),
		"finality_status":  r.FinalityStatus.String(),
		"actual_fee":       r.ActualFee.Hex(),
		"fee_unit":         r.FeeUnit.String(),
		"revert_reason":    r.RevertReason,
	}
}
