package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"

	"github.com/daybook-labs/daybook/internal/localstore"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Recipient selection strategies.
const (
	StrategyZapSenders    = "zap_senders"
	StrategyRecentPosters = "recent_posters"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Identity IdentityConfig    `yaml:"identity"`
	Relays   RelaysConfig      `yaml:"relays"`
	Search   SearchConfig      `yaml:"search"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Store    StoreConfig       `yaml:"store"`
	Gift     GiftConfig        `yaml:"gift"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Identity.Validate(); err != nil {
		return err
	}
	if err := c.Relays.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Gift.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// IdentityConfig holds the acting user's key material. Key accepts hex or
// nsec form and normally arrives via environment expansion, never inline.
type IdentityConfig struct {
	Key string `yaml:"key"`
}

// Validate validates the identity configuration.
func (c *IdentityConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Key, validation.Required),
	)
}

// RelaysConfig holds the relay pool URLs.
type RelaysConfig struct {
	URLs []string `yaml:"urls"`
}

// Validate validates the relay configuration.
func (c *RelaysConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URLs, validation.Required, validation.Length(1, 0)),
	)
}

// SearchConfig holds the profile search channel endpoints, ordered by
// preference for failover.
type SearchConfig struct {
	Endpoints []string `yaml:"endpoints"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoints, validation.Required, validation.Length(1, 0),
			validation.Each(is.RequestURL)),
	)
}

// SQLiteConfig holds the profile cache database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// StoreConfig holds the client-local key-value store location. Empty means
// the XDG data directory.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// BasePath resolves the effective store location.
func (c *StoreConfig) BasePath() string {
	if c.Path != "" {
		return c.Path
	}
	return localstore.DefaultBasePath()
}

// Duration is a time.Duration that unmarshals YAML scalars like "7h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Value == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// GiftConfig holds gift flow configuration.
type GiftConfig struct {
	Strategy      string   `yaml:"strategy"`
	ZapWindow     Duration `yaml:"zap_window"`
	PostWindow    Duration `yaml:"post_window"`
	WalletConnect string   `yaml:"wallet_connect"`
}

// Validate validates the gift configuration.
func (c *GiftConfig) Validate() error {
	if c.Strategy == "" {
		c.Strategy = StrategyZapSenders
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Strategy, validation.Required,
			validation.In(StrategyZapSenders, StrategyRecentPosters)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Relays: RelaysConfig{
			URLs: []string{
				"wss://relay.damus.io",
				"wss://nos.lol",
				"wss://relay.nostr.band",
			},
		},
		Search: SearchConfig{
			Endpoints: []string{"wss://cache2.primal.net/v1"},
		},
		SQLite: SQLiteConfig{
			Path: "./daybook.db",
		},
		Gift: GiftConfig{
			Strategy: StrategyZapSenders,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
