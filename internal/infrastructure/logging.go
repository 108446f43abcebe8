package infrastructure

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zxlitianshu/Kekari-agent/internal/config"
)

// NewLogger builds the service logger. Output always goes to stderr; when
// cfg.File is set it is also written to a size-rotated file. The returned
// closer releases the file and is nil when no file is configured.
func NewLogger(cfg *config.LogConfig) (*slog.Logger, io.Closer) {
	var w io.Writer = os.Stderr
	var closer io.Closer

	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		w = io.MultiWriter(os.Stderr, file)
		closer = file
	}

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), closer
	}
	return slog.New(slog.NewTextHandler(w, opts)), closer
}
