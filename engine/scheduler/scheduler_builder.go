package scheduler

import "go.uber.org/zap"

// FrameSchedulerBuilderOption is a functional option for configuring a FrameScheduler.
type FrameSchedulerBuilderOption func(*frameScheduler)

// WithLogger sets the logger for start, stop and frame failures.
func WithLogger(logger *zap.Logger) FrameSchedulerBuilderOption {
	return func(s *frameScheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxFrames stops each run after n frames. 0 runs until Stop.
func WithMaxFrames(n uint64) FrameSchedulerBuilderOption {
	return func(s *frameScheduler) {
		s.maxFrames = n
	}
}
