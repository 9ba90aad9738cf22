// Package logging builds the application logger: an ectologger front backed
// by zap for output.
package logging

import (
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns the application logger and a flush function for shutdown
func New(appName, level string, pretty bool) (ectologger.Logger, func()) {
	var cfg zap.Config
	if pretty {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	zlog, err := cfg.Build()
	if err != nil {
		zlog = zap.NewNop()
	}
	sink := zlog.Sugar().With("app", appName)

	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		write(sink, msg)
	})

	return logger, func() { _ = zlog.Sync() }
}

func write(sink *zap.SugaredLogger, msg ectologger.EctoLogMessage) {
	args := make([]any, 0, 2)
	if len(msg.Fields) > 0 {
		args = append(args, "fields", msg.Fields)
	}

	switch strings.ToLower(fmt.Sprint(msg.Level)) {
	case "debug", "trace":
		sink.Debugw(msg.Message, args...)
	case "warn", "warning":
		sink.Warnw(msg.Message, args...)
	case "error", "fatal", "panic":
		sink.Errorw(msg.Message, args...)
	default:
		sink.Infow(msg.Message, args...)
	}
}
