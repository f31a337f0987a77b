// Package observers provides observers for monitoring crossing simulations
package observers

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anggasct/mts"
)

// LogLevel represents the logging level
type LogLevel int

const (
	// LogError logs only errors
	LogError LogLevel = iota
	// LogWarning logs errors and warnings
	LogWarning
	// LogInfo logs errors, warnings, and info
	LogInfo
	// LogDebug logs errors, warnings, info, and debug
	LogDebug
)

// LoggingObserver logs simulation events through a zap logger
type LoggingObserver struct {
	level     LogLevel
	prefix    string
	logger    *zap.SugaredLogger
	mutex     sync.RWMutex
	formatter LogFormatter
}

// LogFormatter formats log messages
type LogFormatter func(level LogLevel, format string, args ...interface{}) string

// DefaultLogFormatter provides default log formatting
func DefaultLogFormatter(level LogLevel, format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

// NewLoggingObserver creates a new logging observer. A nil logger uses
// zap's global sugared logger.
func NewLoggingObserver(logger *zap.SugaredLogger, level LogLevel, prefix string) *LoggingObserver {
	if logger == nil {
		logger = zap.S()
	}
	if prefix != "" {
		logger = logger.Named(prefix)
	}
	return &LoggingObserver{
		level:     level,
		prefix:    prefix,
		logger:    logger,
		formatter: DefaultLogFormatter,
	}
}

// SetFormatter sets the log formatter
func (o *LoggingObserver) SetFormatter(formatter LogFormatter) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.formatter = formatter
}

// log logs a message at the specified level
func (o *LoggingObserver) log(level LogLevel, format string, args ...interface{}) {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	if level > o.level {
		return
	}

	message := ""
	if o.formatter != nil {
		message = o.formatter(level, format, args...)
	} else {
		message = fmt.Sprintf(format, args...)
	}

	switch level {
	case LogError:
		o.logger.Error(message)
	case LogWarning:
		o.logger.Warn(message)
	case LogInfo:
		o.logger.Info(message)
	default:
		o.logger.Debug(message)
	}
}

// OnPhaseChange logs lifecycle steps
func (o *LoggingObserver) OnPhaseChange(t *mts.Train, tr mts.Transition, at time.Duration) {
	o.log(LogInfo, "%s: %s -> %s at %s", t, tr.From, tr.To, at)
}

// OnGrant logs admission decisions
func (o *LoggingObserver) OnGrant(d mts.Decision, state mts.SchedulerState, at time.Duration) {
	o.log(LogDebug, "%s; %s streak %d, %d crossed", d, state.LastDirection, state.Streak, state.Crossed)
}

// OnSimulationStarted logs the start of a run
func (o *LoggingObserver) OnSimulationStarted(info mts.RunInfo) {
	o.log(LogInfo, "run %s started with %d trains, fairness cap %d", info.RunID, info.Trains, info.FairnessCap)
}

// OnSimulationFinished logs the end of a run
func (o *LoggingObserver) OnSimulationFinished(res *mts.Result) {
	o.log(LogInfo, "run %s finished: %d trains crossed in %s", res.RunID, res.Crossed, res.Makespan)
}

// OnError logs errors
func (o *LoggingObserver) OnError(err error) {
	o.log(LogError, "Error: %v", err)
}
