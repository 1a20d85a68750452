// Package store implements the dispatch engine: a single state tree advanced
// by pure reduction, with side effects pushed out to middleware that run
// concurrently after each reduction.
package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"shiftscheduler/internal/action"
	"shiftscheduler/internal/state"
)

// Middleware reacts to a dispatched action after reduction. Handle receives
// the pre- and post-reduction snapshots and may call Dispatch; it must never
// mutate either snapshot. A panic inside Handle is recovered and logged so one
// middleware cannot suppress the others.
type Middleware interface {
	Handle(ctx context.Context, a action.Action, old, new state.State)
}

// Dispatcher is the narrow interface middleware and CLI code depend on.
type Dispatcher interface {
	Dispatch(a action.Action)
}

const defaultQueueSize = 256

// Store owns the state tree. Dispatch reduces synchronously under a mutex,
// then hands the (action, old, new) triple to a bounded queue drained by a
// single pump goroutine; the pump fans out one goroutine per middleware, so a
// middleware dispatching follow-ups re-enters the queue instead of growing
// the call stack.
type Store struct {
	mu      sync.Mutex
	current state.State

	mws    []Middleware
	queue  chan job
	wg     sync.WaitGroup
	logger *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

type job struct {
	a        action.Action
	old, new state.State
}

// Option adjusts Store construction.
type Option func(*Store)

// WithQueueSize overrides the work-queue capacity.
func WithQueueSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.queue = make(chan job, n)
		}
	}
}

// New builds a store holding the boot state. Register middleware with Use
// before the first Dispatch.
func New(logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		current: state.New(),
		queue:   make(chan job, defaultQueueSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.pump()
	return s
}

// Use registers middleware. Not safe to call once dispatching has begun.
func (s *Store) Use(mws ...Middleware) {
	s.mws = append(s.mws, mws...)
}

// State returns a snapshot of the current state.
func (s *Store) State() state.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Dispatch applies the root reducer to the current state exactly once,
// atomically from the caller's perspective, then schedules every middleware
// against the same action and the post-reduction snapshot. It returns after
// the reduction; middleware completion is asynchronous (wait with Drain).
func (s *Store) Dispatch(a action.Action) {
	s.mu.Lock()
	old := s.current
	next := state.Reduce(old, a)
	s.current = next
	s.mu.Unlock()

	if len(s.mws) == 0 {
		return
	}

	// The pending counter grows before Dispatch returns, so Drain can never
	// observe a false idle between a middleware finishing and its follow-up
	// action entering the queue.
	s.wg.Add(1)
	select {
	case <-s.done:
		s.wg.Done()
		return
	default:
	}
	select {
	case s.queue <- job{a: a, old: old, new: next}:
	case <-s.done:
		s.wg.Done()
	}
}

// Drain blocks until every action dispatched before the call, and every
// cascade those actions produced, has finished its middleware. Callers must
// not dispatch concurrently with Drain.
func (s *Store) Drain(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels middleware contexts and stops the pump after it drains the
// jobs already queued. Dispatch after Close reduces but schedules nothing.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
	})
	<-s.stopped
}

func (s *Store) pump() {
	defer close(s.stopped)
	for {
		select {
		case j := <-s.queue:
			s.fanOut(j)
		case <-s.done:
			for {
				select {
				case j := <-s.queue:
					s.fanOut(j)
				default:
					return
				}
			}
		}
	}
}

// fanOut adds the middleware tokens before releasing the job token, keeping
// the pending counter positive for the whole life of a cascade.
func (s *Store) fanOut(j job) {
	for _, mw := range s.mws {
		s.wg.Add(1)
		go s.runOne(mw, j)
	}
	s.wg.Done()
}

func (s *Store) runOne(mw Middleware, j job) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("middleware panicked",
				zap.String("action", action.Name(j.a)),
				zap.Any("panic", r))
		}
	}()
	mw.Handle(s.ctx, j.a, j.old, j.new)
}
