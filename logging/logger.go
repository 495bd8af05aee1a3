package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger that writes human readable output to stdout and, when dir
// is not empty, JSON lines to dir/log_<timestamp>.log. The returned func
// flushes and closes the log file.
func New(level, dir string) (*zap.SugaredLogger, func(), error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level %q: %w", level, err)
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), lvl),
	}

	var file *os.File
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("unable to create logs directory: %w", err)
		}
		name := filepath.Join(dir, fmt.Sprintf("log_%s.log", time.Now().Format("20060102_150405")))
		file, err = os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(file),
			lvl,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...)).Sugar()
	if file != nil {
		logger.Infof("logging started, writing to %s", file.Name())
	}

	closeFn := func() {
		_ = logger.Sync()
		if file != nil {
			file.Close()
		}
	}
	return logger, closeFn, nil
}
