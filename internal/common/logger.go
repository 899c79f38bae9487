package common

import (
	"sync"

	"github.com/ternarybob/arbor"
	arborcommon "github.com/ternarybob/arbor/common"
	"github.com/ternarybob/arbor/models"
)

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.RWMutex
)

// GetLogger returns the global logger instance, creating a fallback console
// logger on first use if InitLogger hasn't run yet.
func GetLogger() arbor.ILogger {
	loggerMutex.RLock()
	if globalLogger != nil {
		loggerMutex.RUnlock()
		return globalLogger
	}
	loggerMutex.RUnlock()

	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(defaultWriterConfig(models.LogWriterTypeConsole, ""))
		globalLogger.Warn().Msg("using fallback logger - InitLogger should be called during startup")
	}
	return globalLogger
}

// InitLogger installs the global logger singleton.
func InitLogger(logger arbor.ILogger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	globalLogger = logger
}

// SetupLogger builds a console+memory logger from config-declared level,
// matching the teacher's writer composition (console for operators, memory
// for in-process inspection of the running process's own log entries).
func SetupLogger(cfg *Config) arbor.ILogger {
	logger := arbor.NewLogger().
		WithConsoleWriter(defaultWriterConfig(models.LogWriterTypeConsole, "")).
		WithMemoryWriter(defaultWriterConfig(models.LogWriterTypeMemory, "")).
		WithLevelFromString(cfg.Logging.Level)

	InitLogger(logger)
	return logger
}

func defaultWriterConfig(writerType models.LogWriterType, filename string) models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:             writerType,
		FileName:         filename,
		TimeFormat:       "15:04:05.000",
		DisableTimestamp: false,
		MaxSize:          100 * 1024 * 1024,
		MaxBackups:       3,
	}
}

// Stop flushes any remaining context logs before application shutdown.
func Stop() {
	arborcommon.Stop()
}
