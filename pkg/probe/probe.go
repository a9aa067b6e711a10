package probe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cuemby/jamctl/pkg/log"
	"github.com/cuemby/jamctl/pkg/metrics"
	"github.com/cuemby/jamctl/pkg/types"
)

// CheckType represents the kind of readiness check
type CheckType string

const (
	CheckTypeWebSocket CheckType = "websocket"
	CheckTypeHTTP      CheckType = "http"
	CheckTypeTCP       CheckType = "tcp"
)

const (
	// DefaultInterval is the pause between readiness checks
	DefaultInterval = 250 * time.Millisecond

	// DefaultTimeout bounds AwaitReady when no timeout is given
	DefaultTimeout = 30 * time.Second
)

// Result represents the outcome of a single check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface all readiness checkers implement
type Checker interface {
	// Check performs one check and returns its result. It must honor ctx.
	Check(ctx context.Context) Result

	// Type returns the type of check
	Type() CheckType

	// Endpoint returns what the checker is probing
	Endpoint() string
}

// Options bounds a readiness wait
type Options struct {
	Timeout  time.Duration
	Interval time.Duration

	// Abort, when set, is consulted after every failed check. A non-nil
	// error ends the wait immediately and is returned as is.
	Abort func() error
}

// NewChecker picks a checker for endpoint by URL scheme: ws/wss, http/https,
// or a bare host:port for TCP.
func NewChecker(endpoint string) (Checker, error) {
	if !strings.Contains(endpoint, "://") {
		if _, _, err := splitHostPort(endpoint); err != nil {
			return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
		}
		return NewTCPChecker(endpoint), nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return NewWebSocketChecker(endpoint), nil
	case "http", "https":
		return NewHTTPChecker(endpoint), nil
	case "tcp":
		return NewTCPChecker(u.Host), nil
	default:
		return nil, fmt.Errorf("invalid endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}
}

// AwaitReady polls checker until it reports healthy or opts.Timeout elapses.
// Each check is bounded by the time remaining, so the wait never overruns the
// timeout. On expiry it returns a *types.TimedOutError.
func AwaitReady(ctx context.Context, checker Checker, opts Options) (Result, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	logger := log.WithComponent("probe").With().Str("endpoint", checker.Endpoint()).Logger()
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReadinessWait)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var last Result
	attempts := 0
	for {
		attempts++
		last = checker.Check(ctx)
		if last.Healthy {
			metrics.ProbeAttemptsTotal.WithLabelValues("ready").Inc()
			logger.Debug().Int("attempts", attempts).Dur("waited", timer.Duration()).Msg("Endpoint ready")
			return last, nil
		}
		metrics.ProbeAttemptsTotal.WithLabelValues("not_ready").Inc()
		logger.Debug().Int("attempt", attempts).Str("reason", last.Message).Msg("Endpoint not ready yet")

		if opts.Abort != nil {
			if err := opts.Abort(); err != nil {
				return last, err
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return last, ctx.Err()
			}
			return last, &types.TimedOutError{
				Endpoint: checker.Endpoint(),
				Timeout:  opts.Timeout,
				Last:     last.Message,
			}
		case <-ticker.C:
		}
	}
}

// Ping performs a single bounded check. It is the precondition for commands
// that need a running network.
func Ping(ctx context.Context, endpoint string, timeout time.Duration) error {
	checker, err := NewChecker(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrNetwork, err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := checker.Check(ctx)
	if !result.Healthy {
		metrics.ProbeAttemptsTotal.WithLabelValues("unreachable").Inc()
		return fmt.Errorf("%w: network not reachable at %s (%s)", types.ErrNetwork, endpoint, result.Message)
	}
	metrics.ProbeAttemptsTotal.WithLabelValues("ready").Inc()
	return nil
}

func failed(start time.Time, format string, args ...interface{}) Result {
	return Result{
		Healthy:   false,
		Message:   fmt.Sprintf(format, args...),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}
