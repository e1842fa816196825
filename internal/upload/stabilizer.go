// Package upload stabilizes user-selected binary assets before they are
// handed to the network layer. Freshly-written files can still be changing
// (or briefly unreadable) at the moment of selection, so the stabilizer waits
// for the source to settle and retries transient read failures with
// exponential backoff.
package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	defaultInitialDelay = 200 * time.Millisecond
	defaultBaseDelay    = 100 * time.Millisecond
	defaultMaxAttempts  = 3
)

var (
	// ErrNotReadable marks the transient "source not readable yet" failure
	// class. Reads failing with it are retried.
	ErrNotReadable = errors.New("upload source not readable")
	// ErrReadInterrupted marks a read that was cut off mid-way by the source
	// itself. Also transient.
	ErrReadInterrupted = errors.New("upload source read interrupted")
)

// UnstableSourceError reports retry exhaustion. It carries the last
// underlying cause so the caller can present an actionable message instead
// of a generic network failure.
type UnstableSourceError struct {
	Attempts int
	Last     error
}

func (e *UnstableSourceError) Error() string {
	return fmt.Sprintf("upload source still unstable after %d attempts: %v", e.Attempts, e.Last)
}

func (e *UnstableSourceError) Unwrap() error { return e.Last }

// Source supplies the asset bytes. Open may be called once per attempt.
type Source interface {
	Open() (io.ReadCloser, error)
	Name() string
}

// FileSource reads an asset from disk, mapping permission failures into the
// retryable not-readable class.
type FileSource string

func (s FileSource) Open() (io.ReadCloser, error) {
	f, err := os.Open(string(s))
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrNotReadable, err)
		}
		return nil, err
	}
	return f, nil
}

func (s FileSource) Name() string {
	return filepath.Base(string(s))
}

// Config controls the stabilization schedule.
type Config struct {
	// InitialDelay lets the source settle before the first read.
	InitialDelay time.Duration
	// BaseDelay seeds the backoff: attempt n waits base * 2^(n-1).
	BaseDelay time.Duration
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
}

func (c Config) normalized() Config {
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	} else if c.InitialDelay == 0 {
		c.InitialDelay = defaultInitialDelay
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	return c
}

// Asset is a stable, disk-independent copy of the source.
type Asset struct {
	Name   string
	Data   []byte
	SHA256 string
}

// Stabilize reads src into an in-memory content-addressed copy, retrying the
// recognized transient failure classes per the config schedule. Any other
// failure propagates immediately.
func Stabilize(ctx context.Context, src Source, cfg Config) (*Asset, error) {
	if src == nil {
		return nil, errors.New("upload source is required")
	}
	cfg = cfg.normalized()

	if cfg.InitialDelay > 0 {
		if err := sleepContext(ctx, cfg.InitialDelay); err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := readAll(src)
		if err == nil {
			sum := sha256.Sum256(data)
			return &Asset{
				Name:   src.Name(),
				Data:   data,
				SHA256: hex.EncodeToString(sum[:]),
			}, nil
		}
		if !isTransient(err) {
			return nil, err
		}

		lastErr = err
		if attempt == cfg.MaxAttempts {
			break
		}
		delay := cfg.BaseDelay << (attempt - 1)
		if err := sleepContext(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, &UnstableSourceError{Attempts: cfg.MaxAttempts, Last: lastErr}
}

func isTransient(err error) bool {
	return errors.Is(err, ErrNotReadable) || errors.Is(err, ErrReadInterrupted)
}

func readAll(src Source) ([]byte, error) {
	reader, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %v", ErrReadInterrupted, err)
		}
		return nil, err
	}
	return data, nil
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
