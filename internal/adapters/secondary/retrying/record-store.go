// Package retrying decorates a ModelRecordRepository with per-attempt
// timeouts and bounded exponential backoff.
package retrying

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"model-artefact-registry/internal/core/domain"
	output "model-artefact-registry/internal/core/ports/output"
)

type Options struct {
	// Timeout bounds each attempt. Zero disables the per-attempt deadline.
	Timeout         time.Duration
	MaxAttempts     int
	InitialInterval time.Duration
}

type recordStore struct {
	next output.ModelRecordRepository
	opts Options
}

// NewRecordStore wraps next. Only errors classified as
// domain.ErrStorageUnavailable are retried. Create and Delete run once:
// repeating them after a lost response would turn a success into
// ErrModelAlreadyExists or "absent".
func NewRecordStore(next output.ModelRecordRepository, opts Options) output.ModelRecordRepository {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 200 * time.Millisecond
	}
	return &recordStore{next: next, opts: opts}
}

func (s *recordStore) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.MaxAttempts-1)), ctx)
}

func (s *recordStore) attemptCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}

func retry[T any](ctx context.Context, s *recordStore, op string, fn func(context.Context) (T, error)) (T, error) {
	attempt := 0
	return backoff.RetryWithData(func() (T, error) {
		attempt++
		actx, cancel := s.attemptCtx(ctx)
		defer cancel()

		v, err := fn(actx)
		if err == nil {
			return v, nil
		}
		if !domain.IsRetryable(err) || ctx.Err() != nil {
			return v, backoff.Permanent(err)
		}
		log.WithError(err).WithFields(log.Fields{"op": op, "attempt": attempt}).Debug("retrying record store call")
		return v, err
	}, s.backOff(ctx))
}

type getResult struct {
	record *domain.ModelRecord
	ok     bool
}

func (s *recordStore) GetByID(ctx context.Context, id string) (*domain.ModelRecord, bool, error) {
	res, err := retry(ctx, s, "get", func(ctx context.Context) (getResult, error) {
		record, ok, err := s.next.GetByID(ctx, id)
		return getResult{record, ok}, err
	})
	if err != nil {
		return nil, false, err
	}
	return res.record, res.ok, nil
}

func (s *recordStore) Create(ctx context.Context, record *domain.ModelRecord) error {
	actx, cancel := s.attemptCtx(ctx)
	defer cancel()
	return s.next.Create(actx, record)
}

func (s *recordStore) Update(ctx context.Context, record *domain.ModelRecord) (bool, error) {
	return retry(ctx, s, "update", func(ctx context.Context) (bool, error) {
		return s.next.Update(ctx, record)
	})
}

func (s *recordStore) Delete(ctx context.Context, id string) (*domain.ModelRecord, bool, error) {
	actx, cancel := s.attemptCtx(ctx)
	defer cancel()
	return s.next.Delete(actx, id)
}

func (s *recordStore) List(ctx context.Context) ([]*domain.ModelRecord, error) {
	return retry(ctx, s, "list", func(ctx context.Context) ([]*domain.ModelRecord, error) {
		return s.next.List(ctx)
	})
}

func (s *recordStore) Ping(ctx context.Context) error {
	_, err := retry(ctx, s, "ping", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.Ping(ctx)
	})
	return err
}
