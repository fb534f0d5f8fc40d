package bus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var ErrCapacityReached = errors.New("event capacity reached")

// Poster is the producer side of the router.
type Poster interface {
	Post(id EventId, data any) error
}

type event struct {
	id   EventId
	data any
}

type Router struct {
	logger *zap.Logger
	events chan event

	OnTick                 TickEventHandler
	OnTrade                TradeEventHandler
	OnBar                  BarEventHandler
	OnInstrument           InstrumentEventHandler
	OnOrderAccepted        OrderAcceptedEventHandler
	OnOrderRejected        OrderRejectedEventHandler
	OnOrderStatusReport    OrderStatusReportEventHandler
	OnFillReport           FillReportEventHandler
	OnPositionStatusReport PositionStatusReportEventHandler

	runTime       atomic.Int64
	postCount     atomic.Uint64
	postFails     atomic.Uint64
	dispatchCount atomic.Uint64
	dispatchFails atomic.Uint64
}

func NewRouter(logger *zap.Logger, eventCapacity int) *Router {
	return &Router{
		logger: logger,
		events: make(chan event, eventCapacity),
	}
}

// Post never blocks. A full queue is reported with ErrCapacityReached.
func (r *Router) Post(id EventId, data any) error {
	select {
	case r.events <- event{id, data}:
		r.postCount.Add(1)
		return nil
	default:
		r.postFails.Add(1)
		return fmt.Errorf("unable to post %s: %w", id, ErrCapacityReached)
	}
}

// Exec dispatches events until ctx is done. The returned channel receives the
// terminating error once.
func (r *Router) Exec(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		start := time.Now()
		defer func() {
			r.runTime.Add(int64(time.Since(start)))
		}()

		for {
			select {
			case <-ctx.Done():
				r.drain(ctx)
				done <- ctx.Err()
				return
			case ev := <-r.events:
				r.handle(ctx, ev)
			}
		}
	}()
	return done
}

func (r *Router) Statistics() Statistics {
	runTime := time.Duration(r.runTime.Load())
	s := Statistics{
		RunTime:       runTime,
		PostCount:     r.postCount.Load(),
		PostFails:     r.postFails.Load(),
		DispatchCount: r.dispatchCount.Load(),
		DispatchFails: r.dispatchFails.Load(),
	}
	if runTime > 0 {
		s.Throughput = float64(s.DispatchCount) / runTime.Seconds()
	}
	return s
}

func (r *Router) drain(ctx context.Context) {
	for {
		select {
		case ev := <-r.events:
			r.handle(ctx, ev)
		default:
			return
		}
	}
}

func (r *Router) handle(ctx context.Context, ev event) {
	r.dispatchCount.Add(1)
	if err := r.dispatch(ctx, ev); err != nil {
		r.dispatchFails.Add(1)
		r.logger.Warn("dispatch failed", zap.Error(err), zap.Stringer("event", ev.id))
	}
}

func (r *Router) dispatch(ctx context.Context, ev event) error {
	switch ev.id {
	case TickEvent:
		return deliver(ctx, r.logger, ev, r.OnTick)
	case TradeEvent:
		return deliver(ctx, r.logger, ev, r.OnTrade)
	case BarEvent:
		return deliver(ctx, r.logger, ev, r.OnBar)
	case InstrumentEvent:
		return deliver(ctx, r.logger, ev, r.OnInstrument)
	case OrderAcceptedEvent:
		return deliver(ctx, r.logger, ev, r.OnOrderAccepted)
	case OrderRejectedEvent:
		return deliver(ctx, r.logger, ev, r.OnOrderRejected)
	case OrderStatusReportEvent:
		return deliver(ctx, r.logger, ev, r.OnOrderStatusReport)
	case FillReportEvent:
		return deliver(ctx, r.logger, ev, r.OnFillReport)
	case PositionStatusReportEvent:
		return deliver(ctx, r.logger, ev, r.OnPositionStatusReport)
	}
	return fmt.Errorf("unsupported event id: %d", ev.id)
}

func deliver[T any](ctx context.Context, logger *zap.Logger, ev event, handler EventHandler[T]) error {
	data, ok := ev.data.(T)
	if !ok {
		return fmt.Errorf("invalid type assertion for %s event: %T", ev.id, ev.data)
	}
	if handler == nil {
		logger.Debug("handler is nil", zap.Stringer("event", ev.id))
		return nil
	}
	handler(ctx, data)
	return nil
}

var _ Poster = (*Router)(nil)
