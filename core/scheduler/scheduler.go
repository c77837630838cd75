// Package scheduler provides the admission hook chunk servers call before
// dispatching a data request.
package scheduler

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type Kind int

const (
	Read Kind = iota
	Write
)

func (k Kind) String() string {
	switch k {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return "unknown"
	}
}

type Request struct {
	ID     uuid.UUID
	Path   string
	Kind   Kind
	Offset uint64
	Size   uint64
}

// Scheduler orders or throttles requests. Admit blocks until req may proceed
// and returns a release func that must be called once the request is done.
type Scheduler interface {
	Admit(ctx context.Context, req Request) (release func(), err error)
}

// Noop admits every request immediately.
type Noop struct{}

func (Noop) Admit(_ context.Context, _ Request) (func(), error) {
	return func() {}, nil
}

// Bounded admits at most limit requests at a time, in arrival order.
type Bounded struct {
	sem *semaphore.Weighted
	log *zap.SugaredLogger
}

func NewBounded(limit int64, log *zap.SugaredLogger) *Bounded {
	return &Bounded{
		sem: semaphore.NewWeighted(limit),
		log: log,
	}
}

func (b *Bounded) Admit(ctx context.Context, req Request) (func(), error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		b.log.Warnw("scheduler", "status", "request not admitted", "request", req.ID, "kind", req.Kind.String(), "err", err)
		return nil, err
	}

	b.log.Debugw("scheduler", "status", "request admitted", "request", req.ID, "path", req.Path, "kind", req.Kind.String(), "offset", req.Offset, "size", req.Size)

	return func() {
		b.sem.Release(1)
	}, nil
}

// New returns Noop for limit <= 0 and a Bounded scheduler otherwise.
func New(limit int64, log *zap.SugaredLogger) Scheduler {
	if limit <= 0 {
		return Noop{}
	}

	return NewBounded(limit, log)
}
