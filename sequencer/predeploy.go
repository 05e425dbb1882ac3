package sequencer

import (
	"github.com/shard-labs/starknet-devnet/config"
	"github.com/shard-labs/starknet-devnet/felt"
)

// PredeployedAccount is one seed-derived account present at genesis
// (SPEC_FULL.md "Predeployed accounts").
type PredeployedAccount struct {
	Address    felt.Felt
	PrivateKey felt.Felt // deterministic placeholder, not a real signing key (spec.md §1 Non-goals)
	PublicKey  felt.Felt
	ClassHash  felt.Felt
	Balance    uint64
}

// deriveSeedAccounts produces cfg.Accounts predeployed accounts
// deterministically from cfg.Seed, so that a fixed --seed always yields
// the same addresses (spec.md §8 S6 "the previously predeployed account
// still exists at the same address").
func deriveSeedAccounts(cfg config.Config, classHash felt.Felt) []PredeployedAccount {
	accounts := make([]PredeployedAccount, 0, cfg.Accounts)
	for i := 0; i < cfg.Accounts; i++ {
		addr := config.PredeployedSeedAccountAddress(cfg.Seed, i)
		priv := felt.FromUint64((cfg.Seed+1)*7919 + uint64(i)*31)
		pub := felt.PedersenStub(priv)
		accounts = append(accounts, PredeployedAccount{
			Address:    addr,
			PrivateKey: priv,
			PublicKey:  pub,
			ClassHash:  classHash,
			Balance:    cfg.InitialBalance,
		})
	}
	return accounts
}
