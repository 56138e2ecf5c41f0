package authcore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
)

// Engine is the authentication service. It is safe for concurrent use after Build.
type Engine struct {
	config      Config
	accounts    account.Store
	sessions    session.Registry
	lockout     *lockout.Tracker
	phantom     *lockout.Tracker
	hasher      password.Hasher
	dummyDigest string
	jwtManager  *jwt.Manager
	now         func() time.Time
	logger      *slog.Logger
	audit       *audit.Dispatcher
	metrics     *Metrics
}

// Close drains the audit dispatcher. Stores passed to the Builder are not closed.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) ready() bool {
	return e != nil && e.accounts != nil && e.sessions != nil && e.lockout != nil && e.jwtManager != nil && e.hasher != nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, n uint64) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Add(id, n)
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

// Ping checks every configured backend that can report its health.
func (e *Engine) Ping(ctx context.Context) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	for name, backend := range map[string]any{
		"sessions": e.sessions,
		"accounts": e.accounts,
	} {
		p, ok := backend.(session.Pinger)
		if !ok {
			continue
		}
		if _, err := p.Ping(ctx); err != nil {
			e.logger.WarnContext(ctx, "backend ping failed", "operation", "ping", "backend", name, "error", err)
			return newInternalError(nil, err)
		}
	}
	return nil
}

// PurgeExpiredSessions removes expired session records from registries that need an
// explicit sweep. Registries with native expiry report zero.
func (e *Engine) PurgeExpiredSessions(ctx context.Context) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	p, ok := e.sessions.(session.Purger)
	if !ok {
		return 0, nil
	}
	n, err := p.PurgeExpired(ctx, e.now())
	if err != nil {
		e.logger.WarnContext(ctx, "session purge failed", "operation", "purge_sessions", "error", err)
		return n, newInternalError(nil, err)
	}
	if n > 0 {
		e.logger.DebugContext(ctx, "expired sessions purged", "operation", "purge_sessions", "count", n)
	}
	return n, nil
}

func (e *Engine) retry() flows.Retry {
	return flows.Retry{
		Transient: isTransient,
		OnRetry: func(op string, err error) {
			e.metricInc(MetricStoreRetry)
			e.logger.Warn("transient backend failure, retrying", "operation", op, "error", err)
		},
	}
}

func (e *Engine) warn(msg string, args ...any) {
	e.logger.Warn(msg, args...)
}

// internal logs cause and returns the generic internal error.
func (e *Engine) internal(kind, cause error) error {
	e.logger.Error("internal failure", "error", cause)
	return newInternalError(kind, cause)
}

func isTransient(err error) bool {
	return errors.Is(err, account.ErrUnavailable) ||
		errors.Is(err, session.ErrUnavailable) ||
		errors.Is(err, lockout.ErrUnavailable) ||
		errors.Is(err, lockout.ErrContention)
}

// prefixedLockoutStore namespaces keys so unknown identifiers never collide with
// account ids in a shared store.
type prefixedLockoutStore struct {
	store  lockout.Store
	prefix string
}

func (p prefixedLockoutStore) Load(ctx context.Context, key string) (lockout.State, error) {
	return p.store.Load(ctx, p.prefix+key)
}

func (p prefixedLockoutStore) Apply(ctx context.Context, key string, t lockout.Transition) (lockout.State, error) {
	return p.store.Apply(ctx, p.prefix+key, t)
}
