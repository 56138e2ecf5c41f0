package main

import (
	"context"
	crand "crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
)

const loadPassword = "load-test-password"

func main() {
	var (
		users       = flag.Int("users", 200, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 5000, "operations per phase (login + authenticate)")
		attackers   = flag.Int("attackers", 50, "concurrent wrong-password attempts against one account")
		threshold   = flag.Int("threshold", 5, "lockout threshold")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "as", "session key prefix")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 || *attackers <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, ops and attackers must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, err := buildEngine(client, *prefix, *threshold)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	names := make([]string, *users)
	fmt.Printf("seeding %d accounts...\n", *users)
	startSeed := time.Now()
	for i := range names {
		names[i] = fmt.Sprintf("user%06d", i)
		if _, err := engine.Register(ctx, names[i], names[i]+"@load.test", loadPassword); err != nil {
			fmt.Fprintf(os.Stderr, "register failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	loginStats, tokens := runLoginPhase(ctx, engine, names, *ops, *concurrency)
	authStats := runAuthenticatePhase(ctx, engine, tokens, *ops, *concurrency)
	brute := runBruteForcePhase(ctx, engine, names[0], *attackers)

	fmt.Println("---- results ----")
	fmt.Println("login:", loginStats)
	fmt.Println("authenticate:", authStats)
	fmt.Printf("brute-force: attempts=%d invalid=%d locked=%d other=%d (expected invalid=%d)\n",
		*attackers, brute.invalid, brute.locked, brute.other, min(*threshold-1, *attackers))
	if brute.invalid != int64(min(*threshold-1, *attackers)) || brute.other != 0 {
		fmt.Fprintln(os.Stderr, "lockout threshold was not enforced exactly")
		os.Exit(1)
	}
}

func buildEngine(client redis.UniversalClient, prefix string, threshold int) (*authcore.Engine, error) {
	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	key := make([]byte, 32)
	if _, err := crand.Read(key); err != nil {
		return nil, err
	}

	cfg := authcore.DefaultConfig()
	cfg.Token.PrivateKey = key
	cfg.Lockout.Threshold = threshold

	return authcore.New().
		WithConfig(cfg).
		WithAccountStore(account.NewMemoryStore()).
		WithSessionRegistry(session.NewStore(client, prefix)).
		WithLockoutStore(lockout.NewRedisStore(client, 0)).
		WithHasher(hasher).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
}

// runPhase performs ops calls to op with at most concurrency in flight. op reports
// whether the call succeeded; only its latency is sampled here.
func runPhase(ops, concurrency int, op func() error) phaseStats {
	var (
		g         errgroup.Group
		mu        sync.Mutex
		failures  atomic.Int64
		latencies = make([]time.Duration, 0, ops)
	)
	g.SetLimit(concurrency)

	start := time.Now()
	for range ops {
		g.Go(func() error {
			t0 := time.Now()
			err := op()
			d := time.Since(t0)
			if err != nil {
				failures.Add(1)
			}
			mu.Lock()
			latencies = append(latencies, d)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return computeStats(time.Since(start), latencies, failures.Load())
}

func runLoginPhase(ctx context.Context, engine *authcore.Engine, names []string, ops, concurrency int) (phaseStats, []string) {
	var (
		mu     sync.Mutex
		tokens = make([]string, 0, ops)
	)
	stats := runPhase(ops, concurrency, func() error {
		res, err := engine.Login(ctx, names[rand.IntN(len(names))], loadPassword, authcore.SessionMetadata{Device: "loadtest"})
		if err != nil {
			return err
		}
		mu.Lock()
		tokens = append(tokens, res.Token)
		mu.Unlock()
		return nil
	})
	return stats, tokens
}

func runAuthenticatePhase(ctx context.Context, engine *authcore.Engine, tokens []string, ops, concurrency int) phaseStats {
	if len(tokens) == 0 {
		return phaseStats{}
	}
	return runPhase(ops, concurrency, func() error {
		_, err := engine.AuthenticateRequest(ctx, tokens[rand.IntN(len(tokens))])
		return err
	})
}

type bruteForceResult struct {
	invalid int64
	locked  int64
	other   int64
}

// runBruteForcePhase fires attackers concurrent wrong-password logins at one account.
func runBruteForcePhase(ctx context.Context, engine *authcore.Engine, target string, attackers int) bruteForceResult {
	var (
		invalid, locked, other atomic.Int64
		wg                     sync.WaitGroup
		start                  = make(chan struct{})
	)
	for range attackers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := engine.Login(ctx, target, "not-the-password", authcore.SessionMetadata{})
			switch {
			case errors.Is(err, authcore.ErrInvalidCredentials):
				invalid.Add(1)
			case errors.Is(err, authcore.ErrAccountLocked):
				locked.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	return bruteForceResult{invalid: invalid.Load(), locked: locked.Load(), other: other.Load()}
}
