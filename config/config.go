// Package config defines Devnet's startup configuration: every CLI flag
// from spec.md §6 "CLI surface". A subset of the flags (those listed on
// ApplyEnvironment) is also read from an environment variable of the same
// spelling in upper snake case, CLI taking precedence over env; the other
// flags have no environment variable. Grounded on the teacher's cmd/eth2030 flag-binding shape
// (a thin wrapper around the standard flag package, not a third-party CLI
// framework — the teacher itself never imports urfave/cli from a package
// we kept, see DESIGN.md).
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shard-labs/starknet-devnet/felt"
)

// BlockGenerationMode identifies one of the three sealing regimes
// (spec.md §4.E).
type BlockGenerationMode struct {
	OnTransaction bool
	OnDemand      bool
	IntervalSecs  uint64 // meaningful only when neither of the above is set
}

func (m BlockGenerationMode) String() string {
	switch {
	case m.OnTransaction:
		return "transaction"
	case m.OnDemand:
		return "demand"
	default:
		return strconv.FormatUint(m.IntervalSecs, 10)
	}
}

// ParseBlockGenerationMode parses the --block-generation-on value.
func ParseBlockGenerationMode(s string) (BlockGenerationMode, error) {
	switch s {
	case "transaction":
		return BlockGenerationMode{OnTransaction: true}, nil
	case "demand":
		return BlockGenerationMode{OnDemand: true}, nil
	default:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil || n == 0 {
			return BlockGenerationMode{}, fmt.Errorf("config: invalid --block-generation-on value %q", s)
		}
		return BlockGenerationMode{IntervalSecs: n}, nil
	}
}

// ArchiveCapacity mirrors state.ArchiveMode as a string-configurable value
// so this package does not need to import state just to validate a flag.
type ArchiveCapacity int

const (
	ArchiveCapacityNone ArchiveCapacity = iota
	ArchiveCapacityFull
)

func ParseArchiveCapacity(s string) (ArchiveCapacity, error) {
	switch s {
	case "none", "":
		return ArchiveCapacityNone, nil
	case "full":
		return ArchiveCapacityFull, nil
	default:
		return 0, fmt.Errorf("config: invalid --state-archive-capacity value %q", s)
	}
}

// DumpOn identifies when the journal is auto-dumped.
type DumpOn int

const (
	DumpOnNever DumpOn = iota
	DumpOnExit
	DumpOnBlock
	DumpOnRequest
)

func ParseDumpOn(s string) (DumpOn, error) {
	switch s {
	case "":
		return DumpOnNever, nil
	case "exit":
		return DumpOnExit, nil
	case "block":
		return DumpOnBlock, nil
	case "request":
		return DumpOnRequest, nil
	default:
		return 0, fmt.Errorf("config: invalid --dump-on value %q", s)
	}
}

// GasPriceSet is the startup gas price vector, one flag per resource/unit
// pair (spec.md §6).
type GasPriceSet struct {
	L1GasWei     uint64
	L1GasFri     uint64
	L1DataGasWei uint64
	L1DataGasFri uint64
	L2GasWei     uint64
	L2GasFri     uint64
}

// Config is Devnet's fully-resolved startup configuration.
type Config struct {
	Host string
	Port int

	Timeout uint64 // seconds, per-request VM execution bound (spec.md §5)

	Seed            uint64
	Accounts        int
	InitialBalance  uint64
	AccountClass    string
	AccountClassCustom string
	PredeclareArgent bool

	ForkNetwork          string
	ForkBlock            uint64
	ForkUpstreamCaching  bool

	BlockGenerationOn BlockGenerationMode
	StateArchive      ArchiveCapacity

	StartTime uint64
	LiteMode  bool

	DumpOn   DumpOn
	DumpPath string

	RestrictiveMode    bool
	RestrictedMethods  []string

	GasPrices GasPriceSet

	ChainID string
}

// DefaultRestrictedMethods is the default restricted set when
// --restrictive-mode is passed with no explicit method list (spec.md
// §4.J).
var DefaultRestrictedMethods = []string{
	"devnet_mint",
	"devnet_restart",
	"devnet_createBlock",
	"devnet_abortBlocks",
	"devnet_impersonateAccount",
	"devnet_autoImpersonate",
	"devnet_getPredeployedAccounts",
}

// DefaultConfig returns Devnet's default configuration, matching the real
// Devnet's documented defaults for the options spec.md §6 lists.
func DefaultConfig() Config {
	return Config{
		Host:              "127.0.0.1",
		Port:              5050,
		Timeout:           120,
		Seed:              0,
		Accounts:          10,
		InitialBalance:    1_000_000_000_000_000_000,
		AccountClass:      "cairo1",
		BlockGenerationOn: BlockGenerationMode{OnTransaction: true},
		StateArchive:      ArchiveCapacityNone,
		ChainID:           "SN_GOERLI",
		GasPrices: GasPriceSet{
			L1GasWei: 100_000_000_000,
			L1GasFri: 100_000_000_000,
			L2GasWei: 100_000_000_000,
			L2GasFri: 100_000_000_000,
		},
	}
}

var (
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Validate checks cross-field invariants before Devnet starts (spec.md §6
// "Exit codes: ... non-zero on startup validation failure").
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.Accounts < 0 {
		return fmt.Errorf("%w: negative --accounts", ErrInvalidConfig)
	}
	if c.ForkBlock > 0 && c.ForkNetwork == "" {
		return fmt.Errorf("%w: --fork-block set without --fork-network", ErrInvalidConfig)
	}
	if c.RestrictiveMode && len(c.RestrictedMethods) == 0 {
		c.RestrictedMethods = DefaultRestrictedMethods
	}
	return nil
}

// PredeployedSeedAccountAddress is a stable, deterministic placeholder
// address for seed-derived account index i, used by devnet_getConfig and
// sequencer/predeploy.go. It is not a real signature-derived address
// (spec.md §1 Non-goals: no real signature validation), just a
// deterministic per-seed, per-index mapping.
func PredeployedSeedAccountAddress(seed uint64, index int) felt.Felt {
	mixed := (seed+1)*1_000_003 + uint64(index)*97
	return felt.FromUint64(mixed)
}

// ParseRestrictedMethods splits a comma-separated --restrictive-mode
// argument list; an empty string yields DefaultRestrictedMethods.
func ParseRestrictedMethods(s string) []string {
	if strings.TrimSpace(s) == "" {
		return append([]string(nil), DefaultRestrictedMethods...)
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
