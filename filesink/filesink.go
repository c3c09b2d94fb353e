// Package filesink writes response bodies to disk atomically. Data lands in
// a temp file next to the destination and is renamed into place only once
// fully written and verified.
package filesink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Write copies body to destPath and returns the number of bytes written.
// contentLength may be -1 when unknown. When overwrite is false and destPath
// exists, Write fails with ErrFileExists without touching the file system.
func Write(ctx context.Context, body io.Reader, contentLength int64, destPath string, overwrite bool, logger *slog.Logger, optFns ...Option) (int64, error) {
	if destPath == "" {
		return 0, errors.New("destPath must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return 0, fmt.Errorf("applying option: %w", err)
		}
	}

	if !overwrite {
		if _, err := os.Stat(destPath); err == nil {
			return 0, &Error{Err: ErrFileExists, Detail: destPath}
		}
	}

	body = &contextReader{ctx: ctx, r: body}

	file, err := os.CreateTemp(filepath.Dir(destPath), ".asynchttp-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}

	var successful bool
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing temp file", "error", err)
		}
		if !successful {
			if err := os.Remove(file.Name()); err != nil {
				logger.Error("failed to remove temp file", "error", err)
			}
		}
	}()

	var writer io.Writer = file
	if opts.checksum != nil {
		writer = io.MultiWriter(writer, opts.checksum)
	}
	if opts.progress {
		writer = &progressWriter{
			w:         writer,
			logger:    logger,
			path:      destPath,
			total:     contentLength,
			startTime: time.Now(),
		}
	}

	n, err := io.Copy(writer, body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return n, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		return n, fmt.Errorf("copying body: %w", err)
	}

	if contentLength >= 0 && n != contentLength {
		return n, &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", contentLength, n),
		}
	}

	if err := opts.checksum.Verify(); err != nil {
		return n, err
	}

	if err := file.Sync(); err != nil {
		return n, fmt.Errorf("syncing temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return n, fmt.Errorf("closing temp file: %w", err)
	}

	if !overwrite {
		// Link refuses to replace a file created while we were writing.
		if err := os.Link(file.Name(), destPath); err != nil {
			if errors.Is(err, os.ErrExist) {
				return n, &Error{Err: ErrFileExists, Detail: destPath}
			}
			return n, fmt.Errorf("linking temp file: %w", err)
		}
		return n, nil // deferred cleanup removes the temp name
	}

	if err := os.Rename(file.Name(), destPath); err != nil {
		return n, fmt.Errorf("renaming temp file: %w", err)
	}

	successful = true

	return n, nil
}

// contextReader fails reads once ctx ends.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
