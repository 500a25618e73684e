package domain

// LoggerFactory builds component-scoped loggers.
type LoggerFactory interface {
	CreateLogger(component string) Logger
}
