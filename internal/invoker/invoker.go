// Package invoker wraps external service calls with per-attempt timeouts,
// classified retries and a read-through response cache.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/narralabs/narra-core/internal/cache"
	"github.com/narralabs/narra-core/internal/config"
)

// Request identifies one external call for both dispatch and caching.
type Request struct {
	// Payload is the input handed to the service (chunk or segment text).
	Payload string

	// Prompt is the instruction accompanying the payload. Empty for
	// services that take the payload alone.
	Prompt string

	// Model names the model or voice handling the call.
	Model string
}

// CallFunc performs one attempt against the external service.
type CallFunc[T any] func(ctx context.Context, req Request) (T, error)

// Policy controls the retry behaviour of an Invoker.
type Policy struct {
	MaxAttempts     int
	AttemptTimeout  time.Duration
	MaxElapsed      time.Duration
	InitialInterval time.Duration
	RateLimitPause  time.Duration
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		AttemptTimeout:  120 * time.Second,
		MaxElapsed:      300 * time.Second,
		InitialInterval: time.Second,
		RateLimitPause:  60 * time.Second,
	}
}

// PolicyFromConfig builds a Policy from the retry section plus the calling
// service's attempt timeout.
func PolicyFromConfig(cfg config.RetryConfig, timeoutSeconds int) Policy {
	p := DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.MaxElapsedSeconds > 0 {
		p.MaxElapsed = time.Duration(cfg.MaxElapsedSeconds) * time.Second
	}
	if cfg.RateLimitPauseSec > 0 {
		p.RateLimitPause = time.Duration(cfg.RateLimitPauseSec) * time.Second
	}
	if timeoutSeconds > 0 {
		p.AttemptTimeout = time.Duration(timeoutSeconds) * time.Second
	}
	return p
}

// Invoker executes calls against one external service with retries and
// caching. The type parameter is the service's result type.
type Invoker[T any] struct {
	call   CallFunc[T]
	codec  Codec[T]
	store  cache.Store
	policy Policy
	logger *slog.Logger
}

// New builds an Invoker. A nil store disables caching.
func New[T any](call CallFunc[T], codec Codec[T], store cache.Store, policy Policy, logger *slog.Logger) *Invoker[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker[T]{
		call:   call,
		codec:  codec,
		store:  store,
		policy: policy,
		logger: logger.With(slog.String("component", "invoker")),
	}
}

// Invoke runs the call, serving from cache when possible and retrying
// transient failures with exponential backoff. Fatal failures return
// immediately; transient failures that survive every attempt are wrapped in
// ErrRetryExhausted.
func (inv *Invoker[T]) Invoke(ctx context.Context, req Request) (T, error) {
	var zero T

	key := cache.Key(req.Payload, req.Prompt, req.Model)
	if inv.store != nil {
		if encoded, err := inv.store.Get(ctx, key); err == nil {
			result, decodeErr := inv.codec.Decode(encoded)
			if decodeErr == nil {
				inv.logger.Debug("cache hit", slog.String("key", key))
				return result, nil
			}
			inv.logger.Warn("cache entry undecodable, refetching",
				slog.String("key", key), slog.String("error", decodeErr.Error()))
		}
	}

	attempt := 0
	op := func() (T, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, inv.policy.AttemptTimeout)
		defer cancel()

		result, err := inv.call(attemptCtx, req)
		if err == nil {
			return result, nil
		}
		return zero, inv.classify(attemptCtx, err, attempt)
	}

	expo := backoff.NewExponentialBackOff()
	if inv.policy.InitialInterval > 0 {
		expo.InitialInterval = inv.policy.InitialInterval
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(inv.policy.MaxAttempts)),
		backoff.WithMaxElapsedTime(inv.policy.MaxElapsed),
	)
	if err != nil {
		var svcErr *ServiceError
		if errors.As(err, &svcErr) && !svcErr.Transient() {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, err)
	}

	if inv.store != nil {
		if encoded, encodeErr := inv.codec.Encode(result); encodeErr == nil {
			if setErr := inv.store.Set(ctx, key, encoded); setErr != nil {
				inv.logger.Warn("cache write failed", slog.String("key", key),
					slog.String("error", setErr.Error()))
			}
		}
	}
	return result, nil
}

// classify maps an attempt failure onto the retry mechanism: fatal kinds stop
// the loop, rate limits impose the fixed pause, everything else backs off
// exponentially.
func (inv *Invoker[T]) classify(attemptCtx context.Context, err error, attempt int) error {
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			svcErr = NewServiceError(KindTimeout, "attempt deadline exceeded", err)
		} else {
			svcErr = NewServiceError(KindUnknown, "unclassified failure", err)
		}
		err = svcErr
	}

	if !svcErr.Transient() {
		inv.logger.Error("fatal service error",
			slog.String("kind", string(svcErr.Kind)),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		return backoff.Permanent(err)
	}

	inv.logger.Warn("transient service error",
		slog.String("kind", string(svcErr.Kind)),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()))

	if svcErr.Kind == KindRateLimit && inv.policy.RateLimitPause > 0 {
		return fmt.Errorf("%w: %w", err, backoff.RetryAfter(int(inv.policy.RateLimitPause.Seconds())))
	}
	return err
}
