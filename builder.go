package authcore

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
)

// Builder assembles an Engine. A Builder can be used for exactly one Build.
type Builder struct {
	config Config

	accounts     account.Store
	sessions     session.Registry
	lockoutStore lockout.Store
	hasher       password.Hasher
	auditSink    AuditSink
	logger       *slog.Logger
	clock        func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAccountStore sets the user store. Required.
func (b *Builder) WithAccountStore(store account.Store) *Builder {
	b.accounts = store
	return b
}

// WithSessionRegistry sets the session registry. Required.
func (b *Builder) WithSessionRegistry(registry session.Registry) *Builder {
	b.sessions = registry
	return b
}

// WithLockoutStore keeps lockout state outside the account store, for example in
// Redis. By default the account store's lockout fields are used.
func (b *Builder) WithLockoutStore(store lockout.Store) *Builder {
	b.lockoutStore = store
	return b
}

// WithHasher overrides the hasher derived from Config.Password.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for every expiry decision the Engine makes. A lockout
// store built without its own clock adopts this one.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if b.sessions == nil {
		return nil, errors.New("session registry required")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- CREDENTIALS --------
	hasher := b.hasher
	if hasher == nil {
		h, err := hasherFromConfig(cfg.Password)
		if err != nil {
			return nil, err
		}
		hasher = h
	}
	dummySecret, err := internal.RandomBytes(24)
	if err != nil {
		return nil, err
	}
	dummyDigest, err := hasher.Hash(string(dummySecret))
	if err != nil {
		return nil, err
	}

	// -------- LOCKOUT --------
	userLockout := b.lockoutStore
	phantomLockout := b.lockoutStore
	if userLockout == nil {
		userLockout = account.LockoutStore(b.accounts)
		phantomLockout = lockout.NewExpiringMemoryStore(0, clock)
	}
	tracker, err := lockout.NewTracker(userLockout, cfg.lockoutPolicy(), clock)
	if err != nil {
		return nil, err
	}
	phantom, err := lockout.NewTracker(prefixedLockoutStore{store: phantomLockout, prefix: "unknown:"}, cfg.lockoutPolicy(), clock)
	if err != nil {
		return nil, err
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Token.TTL,
		SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
		KeyID:         cfg.Token.KeyID,
		Now:           clock,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cloneConfig(cfg),
		accounts:    b.accounts,
		sessions:    b.sessions,
		lockout:     tracker,
		phantom:     phantom,
		hasher:      hasher,
		dummyDigest: dummyDigest,
		jwtManager:  jm,
		now:         clock,
		logger:      logger.With("component", "authcore"),
		metrics:     NewMetrics(cfg.Metrics),
	}
	if cfg.Audit.Enabled {
		engine.audit = audit.NewDispatcher(b.auditSink, audit.Options{
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			OnDrop: func(ev audit.Event) {
				engine.logger.Debug("audit event dropped", "event_type", ev.EventType)
			},
		})
	}

	b.built = true

	return engine, nil
}

// hasherFromConfig builds the configured primary hasher. The other algorithm stays
// registered for verification so existing digests keep working and get upgraded.
func hasherFromConfig(cfg PasswordConfig) (password.Hasher, error) {
	bc, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	ar, arErr := password.NewArgon2(cfg.Argon2)
	if password.Format(cfg.Algorithm) == password.FormatArgon2id {
		if arErr != nil {
			return nil, arErr
		}
		return password.NewDispatch(ar, bc)
	}
	if arErr != nil {
		return password.NewDispatch(bc)
	}
	return password.NewDispatch(bc, ar)
}
