package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// BuildLogger constructs a zap logger from the logging configuration.
func (c LogConfig) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	encoding := c.Format
	if encoding != "json" && encoding != "console" {
		return nil, fmt.Errorf("invalid log format %q", c.Format)
	}

	outputs := c.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	zcfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !c.EnableCaller,
		DisableStacktrace: !c.EnableStacktrace,
	}
	return zcfg.Build()
}
