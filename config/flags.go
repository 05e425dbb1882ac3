package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// flagSet wraps flag.FlagSet to add uint64 support, matching the
// teacher's cmd/eth2030/flags.go shape (Go's flag package has no native
// uint64 Var helper).
type flagSet struct {
	*flag.FlagSet
}

func newFlagSet(name string) *flagSet {
	return &flagSet{FlagSet: flag.NewFlagSet(name, flag.ContinueOnError)}
}

func (fs *flagSet) Uint64Var(p *uint64, name string, value uint64, usage string) {
	fs.FlagSet.Var(&uint64Value{p: p}, name, usage)
	*p = value
}

type uint64Value struct{ p *uint64 }

func (v *uint64Value) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatUint(*v.p, 10)
}

func (v *uint64Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid uint64 value %q", s)
	}
	*v.p = n
	return nil
}

// Parse builds a Config from CLI args layered over environment variables
// layered over DefaultConfig, per spec.md §6 ("CLI precedes env").
// Returns the config, whether the caller should exit immediately (e.g.
// --help or --version), and the intended exit code.
func Parse(args []string) (Config, bool, int) {
	cfg := DefaultConfig()
	ApplyEnvironment(&cfg)

	var (
		blockGenOn    string
		archiveCap    string
		dumpOn        string
		restrictive   string
		restrictiveOn bool
	)
	blockGenOn = cfg.BlockGenerationOn.String()
	archiveCap = archiveCapacityString(cfg.StateArchive)
	dumpOn = dumpOnString(cfg.DumpOn)

	fs := newFlagSet("starknet-devnet")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "address to listen on")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	fs.Uint64Var(&cfg.Timeout, "timeout", cfg.Timeout, "per-request VM execution timeout in seconds")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "seed for predeployed account generation")
	fs.IntVar(&cfg.Accounts, "accounts", cfg.Accounts, "number of predeployed accounts")
	fs.Uint64Var(&cfg.InitialBalance, "initial-balance", cfg.InitialBalance, "initial balance of predeployed accounts")
	fs.StringVar(&cfg.AccountClass, "account-class", cfg.AccountClass, "predeployed account class (cairo0, cairo1)")
	fs.StringVar(&cfg.AccountClassCustom, "account-class-custom", cfg.AccountClassCustom, "path to a custom predeployed account class artifact")
	fs.BoolVar(&cfg.PredeclareArgent, "predeclare-argent", cfg.PredeclareArgent, "predeclare the Argent account class")
	fs.StringVar(&cfg.ForkNetwork, "fork-network", cfg.ForkNetwork, "upstream RPC URL to fork from")
	fs.Uint64Var(&cfg.ForkBlock, "fork-block", cfg.ForkBlock, "block number to pin the fork at")
	fs.BoolVar(&cfg.ForkUpstreamCaching, "fork-upstream-caching", cfg.ForkUpstreamCaching, "cache upstream fork responses")
	fs.StringVar(&blockGenOn, "block-generation-on", blockGenOn, "block generation regime: transaction, demand, or an interval in seconds")
	fs.StringVar(&archiveCap, "state-archive-capacity", archiveCap, "state archive capacity: none or full")
	fs.Uint64Var(&cfg.StartTime, "start-time", cfg.StartTime, "initial block timestamp (unix seconds)")
	fs.BoolVar(&cfg.LiteMode, "lite-mode", cfg.LiteMode, "derive block hashes trivially from block number")
	fs.StringVar(&dumpOn, "dump-on", dumpOn, "when to auto-dump the journal: exit, block, or request")
	fs.StringVar(&cfg.DumpPath, "dump-path", cfg.DumpPath, "path to dump the journal to")
	fs.StringVar(&restrictive, "restrictive-mode", restrictive, "comma-separated list of restricted devnet_* methods; empty means the default set")
	fs.BoolVar(&restrictiveOn, "restrictive-mode-on", restrictiveOn, "enable restrictive mode with the default restricted set")
	fs.Uint64Var(&cfg.GasPrices.L1GasWei, "gas-price-wei", cfg.GasPrices.L1GasWei, "L1 gas price in WEI")
	fs.Uint64Var(&cfg.GasPrices.L1GasFri, "gas-price-fri", cfg.GasPrices.L1GasFri, "L1 gas price in FRI")
	fs.Uint64Var(&cfg.GasPrices.L1DataGasWei, "gas-price-data-wei", cfg.GasPrices.L1DataGasWei, "L1 data gas price in WEI")
	fs.Uint64Var(&cfg.GasPrices.L1DataGasFri, "gas-price-data-fri", cfg.GasPrices.L1DataGasFri, "L1 data gas price in FRI")
	fs.Uint64Var(&cfg.GasPrices.L2GasWei, "gas-price-l2-wei", cfg.GasPrices.L2GasWei, "L2 gas price in WEI")
	fs.Uint64Var(&cfg.GasPrices.L2GasFri, "gas-price-l2-fri", cfg.GasPrices.L2GasFri, "L2 gas price in FRI")
	fs.StringVar(&cfg.ChainID, "chain-id", cfg.ChainID, "chain ID reported by starknet_chainId and passed in the executor block context")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return cfg, true, 2
	}
	if *showVersion {
		return cfg, true, 0
	}

	mode, err := ParseBlockGenerationMode(blockGenOn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return cfg, true, 2
	}
	cfg.BlockGenerationOn = mode

	archive, err := ParseArchiveCapacity(archiveCap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return cfg, true, 2
	}
	cfg.StateArchive = archive

	dump, err := ParseDumpOn(dumpOn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return cfg, true, 2
	}
	cfg.DumpOn = dump

	if restrictiveOn || restrictive != "" {
		cfg.RestrictiveMode = true
		cfg.RestrictedMethods = ParseRestrictedMethods(restrictive)
	}

	return cfg, false, 0
}

func archiveCapacityString(a ArchiveCapacity) string {
	if a == ArchiveCapacityFull {
		return "full"
	}
	return "none"
}

func dumpOnString(d DumpOn) string {
	switch d {
	case DumpOnExit:
		return "exit"
	case DumpOnBlock:
		return "block"
	case DumpOnRequest:
		return "request"
	default:
		return ""
	}
}

// ApplyEnvironment overlays environment variables (upper snake case of the
// flag name) onto cfg. Only HOST, PORT, TIMEOUT, SEED, ACCOUNTS,
// INITIAL_BALANCE, FORK_NETWORK, FORK_BLOCK, BLOCK_GENERATION_ON,
// STATE_ARCHIVE_CAPACITY, LITE_MODE and CHAIN_ID are read; the remaining
// flags are not read from the environment. Invalid values are ignored,
// leaving the prior (default) value in place.
func ApplyEnvironment(cfg *Config) {
	if v, ok := os.LookupEnv("HOST"); ok {
		cfg.Host = v
	}
	if v, ok := os.LookupEnv("PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v, ok := os.LookupEnv("TIMEOUT"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Timeout = n
		}
	}
	if v, ok := os.LookupEnv("SEED"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Seed = n
		}
	}
	if v, ok := os.LookupEnv("ACCOUNTS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Accounts = n
		}
	}
	if v, ok := os.LookupEnv("INITIAL_BALANCE"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.InitialBalance = n
		}
	}
	if v, ok := os.LookupEnv("FORK_NETWORK"); ok {
		cfg.ForkNetwork = v
	}
	if v, ok := os.LookupEnv("FORK_BLOCK"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.ForkBlock = n
		}
	}
	if v, ok := os.LookupEnv("BLOCK_GENERATION_ON"); ok {
		if mode, err := ParseBlockGenerationMode(v); err == nil {
			cfg.BlockGenerationOn = mode
		}
	}
	if v, ok := os.LookupEnv("STATE_ARCHIVE_CAPACITY"); ok {
		if a, err := ParseArchiveCapacity(v); err == nil {
			cfg.StateArchive = a
		}
	}
	if v, ok := os.LookupEnv("LITE_MODE"); ok {
		cfg.LiteMode = strings.EqualFold(v, "true") || v == "1"
	}
	if v, ok := os.LookupEnv("CHAIN_ID"); ok {
		cfg.ChainID = v
	}
}
