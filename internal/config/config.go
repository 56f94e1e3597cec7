// Package config loads the YAML file shared by the slidebounty binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"slidebounty.ai/internal/ledger"
	"slidebounty.ai/internal/ledger/evmledger"
	"slidebounty.ai/internal/puzzle"
)

const (
	BackendMemory = "memory"
	BackendWS     = "ws"
	BackendEVM    = "evm"
)

type Config struct {
	Identity string `yaml:"identity"`
	DataDir  string `yaml:"data_dir"`

	Game    Game    `yaml:"game"`
	Ledger  Ledger  `yaml:"ledger"`
	Sim     Sim     `yaml:"sim"`
	Gateway Gateway `yaml:"gateway"`
	Index   Index   `yaml:"index"`
}

type Game struct {
	ShuffleIterations int           `yaml:"shuffle_iterations"`
	Seed              int64         `yaml:"seed"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
}

type Ledger struct {
	Backend string `yaml:"backend"`

	// ws
	URL string `yaml:"url"`

	// evm
	RPCURL        string `yaml:"rpc_url"`
	Contract      string `yaml:"contract"`
	ChainID       uint64 `yaml:"chain_id"`
	PrivateKeyEnv string `yaml:"private_key_env"`
	Decimals      int    `yaml:"decimals"`
}

// Sim configures the in-memory contract used by the memory backend and ledgerd.
type Sim struct {
	Owner          string        `yaml:"owner"`
	Bounty         string        `yaml:"bounty"`
	InitialBalance string        `yaml:"initial_balance"`
	PayoutCooldown time.Duration `yaml:"payout_cooldown"`
	ConfirmDelay   time.Duration `yaml:"confirm_delay"`
}

type Gateway struct {
	Addr          string        `yaml:"addr"`
	LedgerID      string        `yaml:"ledger_id"`
	SnapshotEvery time.Duration `yaml:"snapshot_every"`
}

type Index struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func defaults() Config {
	return Config{
		DataDir: "data",
		Game: Game{
			ShuffleIterations: puzzle.DefaultShuffleIterations,
			ReadTimeout:       10 * time.Second,
		},
		Ledger: Ledger{
			Backend:       BackendMemory,
			URL:           "ws://127.0.0.1:8090/v1/ledger",
			Contract:      evmledger.DefaultContract,
			ChainID:       evmledger.AmoyChainID,
			PrivateKeyEnv: "SLIDEBOUNTY_PRIVATE_KEY",
			Decimals:      18,
		},
		Sim: Sim{
			Bounty:         "10000000000000000",
			InitialBalance: "100000000000000000",
			PayoutCooldown: 5 * time.Minute,
		},
		Gateway: Gateway{
			Addr:          ":8090",
			LedgerID:      "sim-1",
			SnapshotEvery: time.Minute,
		},
		Index: Index{Enabled: true},
	}
}

// Default returns the built-in configuration.
func Default() Config {
	c := defaults()
	c.Normalize()
	return c
}

// Load reads path over the defaults. An empty path yields Default().
func Load(path string) (Config, error) {
	c := defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return c, err
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return c, fmt.Errorf("%s: %w", path, err)
		}
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c *Config) Normalize() {
	c.Identity = strings.TrimSpace(c.Identity)
	c.Ledger.Backend = strings.ToLower(strings.TrimSpace(c.Ledger.Backend))
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = BackendMemory
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Index.Path == "" {
		c.Index.Path = filepath.Join(c.DataDir, "index", "slidebounty.sqlite")
	}
	if c.Game.ShuffleIterations <= 0 {
		c.Game.ShuffleIterations = puzzle.DefaultShuffleIterations
	}
	if c.Ledger.Decimals <= 0 {
		c.Ledger.Decimals = 18
	}
	if c.Sim.Owner == "" {
		c.Sim.Owner = c.Identity
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Identity != "" && !ledger.IsAddress(c.Identity) {
		errs = append(errs, fmt.Errorf("identity %q is not an address", c.Identity))
	}
	switch c.Ledger.Backend {
	case BackendMemory:
	case BackendWS:
		if !strings.HasPrefix(c.Ledger.URL, "ws://") && !strings.HasPrefix(c.Ledger.URL, "wss://") {
			errs = append(errs, fmt.Errorf("ledger.url %q must be ws:// or wss://", c.Ledger.URL))
		}
	case BackendEVM:
		if c.Ledger.RPCURL == "" {
			errs = append(errs, errors.New("ledger.rpc_url is required for the evm backend"))
		}
		if !ledger.IsAddress(c.Ledger.Contract) {
			errs = append(errs, fmt.Errorf("ledger.contract %q is not an address", c.Ledger.Contract))
		}
		if c.Ledger.ChainID == 0 {
			errs = append(errs, errors.New("ledger.chain_id must be set"))
		}
	default:
		errs = append(errs, fmt.Errorf("ledger.backend %q: want memory, ws or evm", c.Ledger.Backend))
	}
	if c.Game.ReadTimeout < 0 {
		errs = append(errs, errors.New("game.read_timeout must not be negative"))
	}
	if _, err := c.Sim.BountyAmount(); err != nil {
		errs = append(errs, fmt.Errorf("sim.bounty: %w", err))
	}
	if _, err := c.Sim.InitialBalanceAmount(); err != nil {
		errs = append(errs, fmt.Errorf("sim.initial_balance: %w", err))
	}
	if c.Sim.PayoutCooldown < 0 || c.Sim.ConfirmDelay < 0 {
		errs = append(errs, errors.New("sim durations must not be negative"))
	}
	if c.Gateway.SnapshotEvery < 0 {
		errs = append(errs, errors.New("gateway.snapshot_every must not be negative"))
	}
	return errors.Join(errs...)
}

func (s Sim) BountyAmount() (uint256.Int, error) { return ledger.ParseAmount(s.Bounty) }

func (s Sim) InitialBalanceAmount() (uint256.Int, error) {
	return ledger.ParseAmount(s.InitialBalance)
}

// PrivateKey reads the signing key from the configured environment variable.
func (l Ledger) PrivateKey() string {
	if l.PrivateKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(l.PrivateKeyEnv))
}
