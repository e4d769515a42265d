// Package config loads Shogun settings from the environment.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CanonicalMessage is the byte string every deployed wallet credential was
// signed over. Changing it orphans existing accounts.
const CanonicalMessage = "I Love Shogun!"

type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// AppScope is the default extra entropy for CLI derivations.
	AppScope string `mapstructure:"APP_SCOPE"`

	GraphDBType string `mapstructure:"GRAPH_DB_TYPE"` // memory, sqlite, postgres, mysql
	GraphDSN    string `mapstructure:"GRAPH_DSN"`

	CredentialStore string `mapstructure:"CREDENTIAL_STORE"` // memory, redis
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPrefix     string `mapstructure:"REDIS_PREFIX"`

	WebAuthnRPID    string        `mapstructure:"WEBAUTHN_RP_ID"`
	WebAuthnRPName  string        `mapstructure:"WEBAUTHN_RP_NAME"`
	WebAuthnTimeout time.Duration `mapstructure:"WEBAUTHN_TIMEOUT"`

	// WalletTimeout bounds web3 and nostr wallet requests.
	WalletTimeout time.Duration `mapstructure:"WALLET_TIMEOUT"`

	// SignMessage overrides CanonicalMessage. Tests only.
	SignMessage string `mapstructure:"SIGN_MESSAGE"`

	TelemetryEnabled bool   `mapstructure:"TELEMETRY_ENABLED"`
	OTLPEndpoint     string `mapstructure:"OTLP_ENDPOINT"`

	OAuthProviders map[string]OAuthProvider `mapstructure:"OAUTH_PROVIDERS"`
}

type OAuthProvider struct {
	Issuer       string   `mapstructure:"issuer"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

func LoadConfig() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_SCOPE", "")
	v.SetDefault("GRAPH_DB_TYPE", "memory")
	v.SetDefault("GRAPH_DSN", "shogun.db")
	v.SetDefault("CREDENTIAL_STORE", "memory")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PREFIX", "shogun:cred:")
	v.SetDefault("WEBAUTHN_RP_ID", "localhost")
	v.SetDefault("WEBAUTHN_RP_NAME", "Shogun")
	v.SetDefault("WEBAUTHN_TIMEOUT", 60*time.Second)
	v.SetDefault("WALLET_TIMEOUT", 60*time.Second)
	v.SetDefault("SIGN_MESSAGE", CanonicalMessage)
	v.SetDefault("TELEMETRY_ENABLED", false)
	v.SetDefault("OTLP_ENDPOINT", "")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Message returns the message wallet methods sign.
func (c *Config) Message() string {
	if c.SignMessage == "" {
		return CanonicalMessage
	}
	return c.SignMessage
}

// Extra returns the derivation extras implied by AppScope.
func (c *Config) Extra() []string {
	if c.AppScope == "" {
		return nil
	}
	return []string{c.AppScope}
}
