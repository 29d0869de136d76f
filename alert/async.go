package alert

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/apwatch/apwatch/types"
)

// AsyncSink decouples slow delivery transports from the scan cycle.
// Emit enqueues and returns immediately; a background worker drains the
// queue. When the queue is full the verdict is dropped with a log line
// rather than blocking the cycle.
type AsyncSink struct {
	next   Sink
	queue  chan types.Verdict
	logger zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewAsyncSink wraps next with a bounded asynchronous queue.
func NewAsyncSink(next Sink, queueSize int, logger zerolog.Logger) *AsyncSink {
	if queueSize <= 0 {
		queueSize = 64
	}
	s := &AsyncSink{
		next:   next,
		queue:  make(chan types.Verdict, queueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.drain()
	return s
}

// Emit enqueues the verdict, dropping it if the queue is full.
func (s *AsyncSink) Emit(ctx context.Context, v types.Verdict) error {
	select {
	case s.queue <- v:
	default:
		s.logger.Warn().
			Str("bssid", v.BSSID).
			Str("rule", v.Rule).
			Msg("alert queue full, verdict dropped")
	}
	return nil
}

// Close stops the worker after draining queued verdicts.
func (s *AsyncSink) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	return s.next.Close()
}

func (s *AsyncSink) drain() {
	defer s.wg.Done()
	for {
		select {
		case v := <-s.queue:
			s.deliver(v)
		case <-s.done:
			// Flush whatever is still queued, then stop.
			for {
				select {
				case v := <-s.queue:
					s.deliver(v)
				default:
					return
				}
			}
		}
	}
}

func (s *AsyncSink) deliver(v types.Verdict) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.next.Emit(ctx, v); err != nil {
		s.logger.Error().
			Err(err).
			Str("bssid", v.BSSID).
			Str("rule", v.Rule).
			Msg("alert delivery failed")
	}
}
