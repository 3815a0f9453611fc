package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// setupLogging installs a JSON slog handler as the default logger. Output goes
// to the file at path when set, otherwise to w. The returned LevelVar can be
// changed later to adjust verbosity; close releases the log file.
func setupLogging(w io.Writer, path string, level slog.Level) (lv *slog.LevelVar, closeFn func() error, err error) {
	closeFn = func() error { return nil }
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closeFn = f, f.Close
	}

	lv = new(slog.LevelVar)
	lv.Set(level)
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lv})))
	return lv, closeFn, nil
}
