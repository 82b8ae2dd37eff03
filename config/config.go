// Package config loads the engine's deployment configuration from flags,
// environment variables, and defaults, in that precedence order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Mode selects a voting-mode variant. All three share the same ZKP,
// ciphertext, and ledger model; only the uniqueness constraint and
// nullifier-input key differ, and that derivation is entirely
// client-side.
type Mode string

const (
	ModeSingle        Mode = "single"
	ModeMultiLimited  Mode = "multi_limited"
	ModePeriodicReset Mode = "periodic_reset"
)

const (
	defaultTokenTTL        = 30 * time.Minute
	defaultThresholdK      = 3
	defaultThresholdN      = 5
	defaultRetryMax        = 3
	defaultRetryBackoffCap = time.Second
	defaultLogLevel        = "info"
	defaultLogOutput       = "stderr"
	defaultMode            = ModeSingle
	defaultMaxSelections   = 1
	defaultPeriodLength    = 24 * time.Hour
)

// GroupConfig selects the group parameters. Production deployments use the
// RFC 3526 MODP group 14 default (group.DefaultParams); CustomPrimeHex lets
// a deployment pin a different safe prime without a code change.
type GroupConfig struct {
	CustomPrimeHex string `mapstructure:"customPrimeHex"`
	Generator      int64  `mapstructure:"generator"`
}

// TrusteeConfig holds the (k,n) threshold the election's keygen ceremony
// and tally both enforce.
type TrusteeConfig struct {
	K int `mapstructure:"k"`
	N int `mapstructure:"n"`
}

// TokenConfig controls voting-token issuance.
type TokenConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// RetryConfig bounds the retry/backoff behavior for transient upstream
// faults (ledger, identity provider).
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"maxAttempts"`
	BackoffCap  time.Duration `mapstructure:"backoffCap"`
}

// VotingConfig selects the voting-mode variant and its parameters.
type VotingConfig struct {
	Mode            Mode          `mapstructure:"mode"`
	MaxSelections   int           `mapstructure:"maxSelections"`   // MULTI_LIMITED's M
	MaxPerCandidate int           `mapstructure:"maxPerCandidate"` // MULTI_LIMITED's V
	PeriodLength    time.Duration `mapstructure:"periodLength"`    // PERIODIC_RESET's T
}

// LedgerConfig points at the bulletin-board backend. Endpoint is empty for
// the in-process dev ledger (ledger.NewInProcess); a non-empty value is
// reserved for a future networked implementation satisfying ledger.Ledger.
type LedgerConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LogConfig selects the logger's level and destination.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// Config is the top-level deployment configuration.
type Config struct {
	Group   GroupConfig   `mapstructure:"group"`
	Trustee TrusteeConfig `mapstructure:"trustee"`
	Token   TokenConfig   `mapstructure:"token"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Voting  VotingConfig  `mapstructure:"voting"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Log     LogConfig     `mapstructure:"log"`
	Datadir string        `mapstructure:"datadir"`
}

// Load reads configuration from the given command-line arguments (pass
// os.Args[1:] at the top level), environment variables prefixed
// OPENBALLOT_, and the defaults above, mirroring loadConfig's
// flags-then-env-then-defaults precedence.
func Load(args []string) (*Config, error) {
	v := viper.New()
	fs := flag.NewFlagSet("openballot", flag.ContinueOnError)

	v.SetDefault("group.generator", 2)
	v.SetDefault("trustee.k", defaultThresholdK)
	v.SetDefault("trustee.n", defaultThresholdN)
	v.SetDefault("token.ttl", defaultTokenTTL)
	v.SetDefault("retry.maxAttempts", defaultRetryMax)
	v.SetDefault("retry.backoffCap", defaultRetryBackoffCap)
	v.SetDefault("voting.mode", string(defaultMode))
	v.SetDefault("voting.maxSelections", defaultMaxSelections)
	v.SetDefault("voting.maxPerCandidate", defaultMaxSelections)
	v.SetDefault("voting.periodLength", defaultPeriodLength)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("datadir", ".openballot")

	fs.String("group.customPrimeHex", "", "override the default RFC 3526 MODP group 14 prime (hex, no 0x prefix)")
	fs.Int64("group.generator", 2, "group generator g")
	fs.Int("trustee.k", defaultThresholdK, "trustee decryption threshold k")
	fs.Int("trustee.n", defaultThresholdN, "total number of trustees n")
	fs.Duration("token.ttl", defaultTokenTTL, "voting token time-to-live")
	fs.Int("retry.maxAttempts", defaultRetryMax, "max retries for transient upstream faults")
	fs.Duration("retry.backoffCap", defaultRetryBackoffCap, "exponential backoff cap for retries")
	fs.String("voting.mode", string(defaultMode), "voting mode: single, multi_limited, periodic_reset")
	fs.Int("voting.maxSelections", defaultMaxSelections, "MULTI_LIMITED: max total selections per ballot")
	fs.Int("voting.maxPerCandidate", defaultMaxSelections, "MULTI_LIMITED: max selections per candidate")
	fs.Duration("voting.periodLength", defaultPeriodLength, "PERIODIC_RESET: length of one voting period")
	fs.String("ledger.endpoint", "", "ledger endpoint (empty selects the in-process dev ledger)")
	fs.Duration("ledger.timeout", 10*time.Second, "ledger call timeout")
	fs.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr, or filepath)")
	fs.StringP("datadir", "d", ".openballot", "data directory for persistent store files")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: failed to parse flags: %w", err)
	}

	v.SetEnvPrefix("OPENBALLOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("config: failed to bind flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}
	if !filepath.IsAbs(cfg.Datadir) {
		cfg.Datadir = homeDatadir(cfg.Datadir)
	}
	return cfg, nil
}

// Validate checks invariants Load cannot express via viper defaults alone:
// the (k,n) threshold must be sane and the voting mode must be recognized.
func (c *Config) Validate() error {
	if c.Trustee.K < 1 || c.Trustee.N < c.Trustee.K {
		return fmt.Errorf("config: invalid trustee threshold (k=%d, n=%d)", c.Trustee.K, c.Trustee.N)
	}
	switch c.Voting.Mode {
	case ModeSingle, ModeMultiLimited, ModePeriodicReset:
	default:
		return fmt.Errorf("config: unknown voting mode %q", c.Voting.Mode)
	}
	return nil
}

// homeDatadir resolves a relative datadir against the user's home
// directory.
func homeDatadir(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return home + string(os.PathSeparator) + name
}
