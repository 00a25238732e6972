// Package logger builds the zap loggers used by the goverify binary.
package logger
