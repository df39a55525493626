package engine

import (
	"time"

	"bedrockcron/pkg/logger"
)

// Outcome describes one completed task execution.
type Outcome struct {
	TaskID   string
	Name     string
	At       time.Time
	Duration time.Duration
	OK       bool
	Output   string
	Err      error
}

// Events receives execution outcomes and scheduler health alerts. The
// engine emits exactly one TaskRan per completed runner invocation, and one
// StoreUnavailable when store reads have failed for several consecutive
// ticks.
type Events interface {
	TaskRan(Outcome)
	StoreUnavailable(err error, consecutive int)
}

// LogEvents writes events to the structured log.
type LogEvents struct {
	Log *logger.Logger
}

func (l *LogEvents) TaskRan(o Outcome) {
	if o.OK {
		l.Log.Info("task ran",
			logger.String("task_id", o.TaskID),
			logger.String("name", o.Name),
			logger.Duration("duration", o.Duration),
			logger.String("output", o.Output),
		)
		return
	}
	l.Log.Warn("task failed",
		logger.String("task_id", o.TaskID),
		logger.String("name", o.Name),
		logger.Duration("duration", o.Duration),
		logger.Err(o.Err),
	)
}

func (l *LogEvents) StoreUnavailable(err error, consecutive int) {
	l.Log.Error("task store unavailable for consecutive ticks",
		logger.Int("consecutive", consecutive),
		logger.Err(err),
	)
}
