package contract

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log formats.
const (
	ConsoleLogFormat = "console"
	JSONLogFormat    = "json"
)

// NewLogger builds the process logger. JSON format uses the production preset and
// console format the development preset; both write to stderr so stdout stays free
// for command output and the MCP transport.
func NewLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level '%s'. must be debug, info, warn, error", level)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case JSONLogFormat:
		cfg = zap.NewProductionConfig()
	case ConsoleLogFormat, "":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("invalid log format '%s'. must be console, json", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	return cfg.Build()
}
