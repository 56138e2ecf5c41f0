package authcore

import (
	"errors"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/password"
)

// Config holds every tunable of the Engine.
//
// Config instances are intended to be configured during initialization and then treated
// as immutable. Build clones the value it is given.
type Config struct {
	Lockout  LockoutConfig
	Token    TokenConfig
	Password PasswordConfig
	Session  SessionConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Identity IdentityConfig
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls per-account brute-force protection.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls bearer token signing and verification.
type TokenConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hashing algorithm and its work factor.
type PasswordConfig struct {
	Algorithm      string // "bcrypt" (default) or "argon2id"
	BcryptCost     int
	Argon2         password.Argon2Config
	UpgradeOnLogin bool
	MinLength      int
	MaxLength      int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the session registry built by the server binary.
type SessionConfig struct {
	RedisPrefix   string
	PurgeInterval time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
IDENTITY CONFIG
====================================
*/

// IdentityConfig bounds usernames accepted at registration.
type IdentityConfig struct {
	UsernameMinLength int
	UsernameMaxLength int
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the recommended settings. Token.PrivateKey is left empty and
// must be supplied before Build.
func DefaultConfig() Config {
	return Config{
		Lockout: LockoutConfig{
			Threshold: lockout.DefaultThreshold,
			Duration:  lockout.DefaultDuration,
		},
		Token: TokenConfig{
			TTL:           24 * time.Hour,
			SigningMethod: string(jwt.MethodHS256),
			Issuer:        "authcore",
			Audience:      "authcore-api",
		},
		Password: PasswordConfig{
			Algorithm:      string(password.FormatBcrypt),
			BcryptCost:     password.DefaultCost,
			Argon2:         password.DefaultArgon2Config(),
			UpgradeOnLogin: true,
			MinLength:      8,
			MaxLength:      password.MaxInputBytes,
		},
		Session: SessionConfig{
			RedisPrefix:   "as",
			PurgeInterval: 10 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Identity: IdentityConfig{
			UsernameMinLength: 3,
			UsernameMaxLength: 32,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Lockout
	if err := c.lockoutPolicy().Validate(); err != nil {
		return err
	}

	// Token
	if c.Token.TTL <= 0 {
		return errors.New("Token TTL must be > 0")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}
	switch jwt.SigningMethod(c.Token.SigningMethod) {
	case jwt.MethodHS256:
		if len(c.Token.PrivateKey) < jwt.MinHS256SecretBytes {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case jwt.MethodEd25519:
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.Token.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported Token signing method")
	}
	if c.Token.Issuer == "" {
		return errors.New("Token Issuer must not be empty")
	}
	if c.Token.Audience == "" {
		return errors.New("Token Audience must not be empty")
	}

	// Password
	switch password.Format(c.Password.Algorithm) {
	case password.FormatBcrypt:
		if c.Password.BcryptCost < 10 || c.Password.BcryptCost > 31 {
			return errors.New("Password BcryptCost must be between 10 and 31")
		}
	case password.FormatArgon2id:
		if c.Password.Argon2.Memory < 8*1024 {
			return errors.New("Password Argon2 Memory must be >= 8192 KB")
		}
		if c.Password.Argon2.Time < 1 {
			return errors.New("Password Argon2 Time must be >= 1")
		}
	default:
		return errors.New("unsupported Password algorithm")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}
	if c.Password.MaxLength < c.Password.MinLength || c.Password.MaxLength > password.MaxInputBytes {
		return errors.New("Password MaxLength must be between MinLength and 72")
	}

	// Session
	if c.Session.PurgeInterval < 0 {
		return errors.New("Session PurgeInterval must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Identity
	if c.Identity.UsernameMinLength < 1 {
		return errors.New("Identity UsernameMinLength must be >= 1")
	}
	if c.Identity.UsernameMaxLength < c.Identity.UsernameMinLength || c.Identity.UsernameMaxLength > 64 {
		return errors.New("Identity UsernameMaxLength must be between UsernameMinLength and 64")
	}

	return nil
}

func (c *Config) lockoutPolicy() lockout.Policy {
	return lockout.Policy{Threshold: c.Lockout.Threshold, Duration: c.Lockout.Duration}
}
