package observers

// NewDefaultLoggingObserver creates a logging observer on zap's global logger at LogInfo level
func NewDefaultLoggingObserver() *LoggingObserver {
	return NewLoggingObserver(nil, LogInfo, "mts")
}
