package bus

import (
	"time"

	"go.uber.org/zap"
)

type Statistics struct {
	RunTime       time.Duration
	PostCount     uint64
	PostFails     uint64
	DispatchCount uint64
	DispatchFails uint64
	Throughput    float64
}

func (s Statistics) Fields() []zap.Field {
	return []zap.Field{
		zap.Duration("run_time", s.RunTime),
		zap.Uint64("post_count", s.PostCount),
		zap.Uint64("post_fails", s.PostFails),
		zap.Uint64("dispatch_count", s.DispatchCount),
		zap.Uint64("dispatch_fails", s.DispatchFails),
		zap.Float64("throughput", s.Throughput),
	}
}
