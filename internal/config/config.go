// Package config loads runtime configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// JARA_* environment variables. The result is validated against an
// embedded CUE schema before use.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/akinrinmade/jara-daily/internal/engagement"
	"github.com/akinrinmade/jara-daily/internal/guest"
	"github.com/akinrinmade/jara-daily/internal/idem"
	"github.com/akinrinmade/jara-daily/internal/rank"
	"github.com/akinrinmade/jara-daily/internal/reward"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "jara"

// Defaults.
const (
	DefaultDatabasePath     = "jara.db"
	DefaultListenAddress    = ":8080"
	DefaultCoinSupply       = 1_000_000
	DefaultLeaderboardLimit = 10
)

// ErrInvalid is wrapped by validation failures.
var ErrInvalid = errors.New("invalid config")

// Engagement tunes read verification.
type Engagement struct {
	MinDwell     time.Duration `yaml:"min_dwell"     json:"min_dwell"     envconfig:"MIN_DWELL"`
	DwellPercent int           `yaml:"dwell_percent" json:"dwell_percent" envconfig:"DWELL_PERCENT"`
	VerifyDepth  float64       `yaml:"verify_depth"  json:"verify_depth"  envconfig:"VERIFY_DEPTH"`
	BlurDepth    float64       `yaml:"blur_depth"    json:"blur_depth"    envconfig:"BLUR_DEPTH"`
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval" envconfig:"TICK_INTERVAL"`
}

// Config is the full runtime configuration.
type Config struct {
	DatabasePath      string        `yaml:"database_path"      json:"database_path"      envconfig:"DATABASE_PATH"`
	ListenAddress     string        `yaml:"listen_address"     json:"listen_address"     envconfig:"LISTEN_ADDRESS"`
	RemoteURL         string        `yaml:"remote_url"         json:"remote_url"         envconfig:"REMOTE_URL"`
	JWTSecret         string        `yaml:"jwt_secret"         json:"jwt_secret"         envconfig:"JWT_SECRET"`
	CoinSupply        int64         `yaml:"coin_supply"        json:"coin_supply"        envconfig:"COIN_SUPPLY"`
	IdempotencyWindow time.Duration `yaml:"idempotency_window" json:"idempotency_window" envconfig:"IDEMPOTENCY_WINDOW"`
	PublishMinChars   int           `yaml:"publish_min_chars"  json:"publish_min_chars"  envconfig:"PUBLISH_MIN_CHARS"`
	CommentMinChars   int           `yaml:"comment_min_chars"  json:"comment_min_chars"  envconfig:"COMMENT_MIN_CHARS"`
	GuestMinCoins     int           `yaml:"guest_min_coins"    json:"guest_min_coins"    envconfig:"GUEST_MIN_COINS"`
	GuestMaxCoins     int           `yaml:"guest_max_coins"    json:"guest_max_coins"    envconfig:"GUEST_MAX_COINS"`
	RecentLimit       int           `yaml:"recent_limit"       json:"recent_limit"       envconfig:"RECENT_LIMIT"`
	LeaderboardLimit  int           `yaml:"leaderboard_limit"  json:"leaderboard_limit"  envconfig:"LEADERBOARD_LIMIT"`

	Engagement Engagement `yaml:"engagement" json:"engagement" envconfig:"ENGAGEMENT"`

	Rewards map[reward.ActionKind]reward.Amount `yaml:"rewards" json:"rewards" ignored:"true"`
	Ranks   []rank.Tier                         `yaml:"ranks"   json:"ranks"   ignored:"true"`
}

// Default returns the built-in configuration.
func Default() *Config {
	p := engagement.DefaultParams()
	return &Config{
		DatabasePath:      DefaultDatabasePath,
		ListenAddress:     DefaultListenAddress,
		CoinSupply:        DefaultCoinSupply,
		IdempotencyWindow: idem.DefaultWindow,
		PublishMinChars:   reward.DefaultPublishMinChars,
		CommentMinChars:   reward.DefaultCommentMinChars,
		GuestMinCoins:     guest.DefaultMinCoins,
		GuestMaxCoins:     guest.DefaultMaxCoins,
		RecentLimit:       reward.DefaultRecentLimit,
		LeaderboardLimit:  DefaultLeaderboardLimit,
		Engagement: Engagement{
			MinDwell:     p.MinDwell,
			DwellPercent: p.DwellPercent,
			VerifyDepth:  p.VerifyDepth,
			BlurDepth:    p.BlurDepth,
			TickInterval: p.TickInterval,
		},
		Rewards: maps.Clone(reward.DefaultTable),
		Ranks:   append([]rank.Tier(nil), rank.DefaultTiers...),
	}
}

// DefaultPath returns ~/.jara/jara.yaml, or "" if the home directory is
// unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".jara", "jara.yaml")
}

// Load builds the configuration. An explicit path must exist; with an
// empty path the default location is used when present.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if p := DefaultPath(); p != "" {
			if _, err := os.Stat(p); err == nil {
				path = p
			}
		}
	}
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := cfg.overlayYAML(buf); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayYAML decodes buf on top of the current values. Unknown keys are
// rejected. Reward entries merge per action; the rank list is replaced.
func (c *Config) overlayYAML(buf []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// Validate checks the configuration against the embedded schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, cueerrors.Details(err, nil))
	}

	if _, err := c.RankTable(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// RankTable builds the configured rank ladder.
func (c *Config) RankTable() (*rank.Table, error) {
	return rank.NewTable(c.Ranks)
}

// Policy builds the configured reward policy.
func (c *Config) Policy() *reward.Policy {
	return reward.NewPolicy(
		reward.WithTable(c.Rewards),
		reward.WithPublishMinChars(c.PublishMinChars),
		reward.WithCommentMinChars(c.CommentMinChars),
	)
}

// EngagementParams returns the verification thresholds.
func (c *Config) EngagementParams() engagement.Params {
	return engagement.Params{
		MinDwell:     c.Engagement.MinDwell,
		DwellPercent: c.Engagement.DwellPercent,
		VerifyDepth:  c.Engagement.VerifyDepth,
		BlurDepth:    c.Engagement.BlurDepth,
		TickInterval: c.Engagement.TickInterval,
	}
}

// GuestLedger returns a shadow wallet with the configured clamp.
func (c *Config) GuestLedger() *guest.Ledger {
	return guest.New(c.GuestMinCoins, c.GuestMaxCoins)
}
