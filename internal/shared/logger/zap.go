package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapLogger builds the structured logger handed to service components.
func NewZapLogger(cfg *Config) (*zap.Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var zcfg zap.Config
	if strings.ToLower(cfg.Format) == "text" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "time"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(zapLevel(cfg.Level))

	log, err := zcfg.Build()
	if err != nil {
		return nil, err
	}

	// Route writes to a custom sink when one is configured.
	if cfg.Output != nil {
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zcfg.EncoderConfig),
			zapcore.AddSync(cfg.Output),
			zcfg.Level,
		)
		log = zap.New(core)
	}
	return log, nil
}

func zapLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
