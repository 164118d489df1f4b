package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/agencydesk/dispatch/internal/biz/domain"
)

// ErrServiceClosed is returned once Shutdown has been called
var ErrServiceClosed = errors.New("dispatch service closed")

// Dispatcher is the send-then-attribute entry point
type Dispatcher interface {
	Dispatch(ctx context.Context, req *domain.SendRequest) domain.AttributionResult
}

// DispatchService runs dispatches for the outer surfaces (HTTP, MCP, CLI).
// Each asynchronous dispatch runs on its own goroutine; nothing is shared
// between them except the record store.
type DispatchService struct {
	dispatcher Dispatcher
	log        *slog.Logger

	// Cancelled by Shutdown; detached dispatches stop with it
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(dispatcher Dispatcher, log *slog.Logger) *DispatchService {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DispatchService{
		dispatcher: dispatcher,
		log:        log.With("component", "dispatch_service"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Dispatch runs one dispatch on the caller's goroutine
func (s *DispatchService) Dispatch(ctx context.Context, req *domain.SendRequest) domain.AttributionResult {
	start := time.Now()
	result := s.dispatcher.Dispatch(ctx, req)
	observeDispatch(result, time.Since(start).Seconds())
	return result
}

// DispatchAsync starts a dispatch on its own goroutine and returns a channel
// that receives exactly one result. The dispatch outlives ctx cancellation
// (the provider may already have the message) but stops on Shutdown.
func (s *DispatchService) DispatchAsync(ctx context.Context, req *domain.SendRequest) (<-chan domain.AttributionResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.ctx, cancel)

	out := make(chan domain.AttributionResult, 1)
	dispatchInFlight.Inc()
	go func() {
		defer s.wg.Done()
		defer dispatchInFlight.Dec()
		defer cancel()
		defer stop()

		result := s.Dispatch(runCtx, req)
		out <- result
		close(out)
	}()

	return out, nil
}

// Shutdown stops accepting dispatches and waits for in-flight ones. When ctx
// expires first, pending sends are cancelled and ctx.Err() is returned once the
// already-sent ones finish their bounded bookkeeping.
func (s *DispatchService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.log.Warn("cancelling in-flight dispatches", "error", ctx.Err())
		s.cancel()
		<-done
		return ctx.Err()
	}
}
