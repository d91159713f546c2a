package sheetsql

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/campusinsight/sheetsql/domain/model"
)

// Retry defaults for opening a source that another process may hold open.
const (
	// DefaultRetryAttempts is the number of open attempts before giving up
	DefaultRetryAttempts = 8
	// DefaultRetryDelay is the fixed wait between attempts
	DefaultRetryDelay = 750 * time.Millisecond
)

// Source yields a workbook. Implementations must be safe to call again after
// a failed Open so a RetryPolicy can re-attempt it.
type Source interface {
	// Open reads the whole workbook.
	Open(ctx context.Context) (model.Workbook, error)
	// Describe returns a short human-readable location of the source.
	Describe() string
}

// FileSource reads a workbook from the local filesystem.
// The format is detected from the extension, e.g. "data.xlsx" or "offers.csv.gz".
type FileSource struct {
	Path string
}

// NewFileSource returns a source for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Describe returns the file path.
func (s *FileSource) Describe() string {
	return s.Path
}

// Open reads and parses the file.
func (s *FileSource) Open(ctx context.Context) (model.Workbook, error) {
	if err := ctx.Err(); err != nil {
		return model.Workbook{}, err
	}

	ft, compression := DetectFileType(s.Path)
	if ft == FileTypeUnsupported {
		return model.Workbook{}, NewErrorContext("open source", s.Path).Error(ErrUnsupportedFormat)
	}

	data, err := os.ReadFile(s.Path) //nolint:gosec // reading a user-provided path is the point
	if err != nil {
		return model.Workbook{}, NewErrorContext("open source", s.Path).Error(fmt.Errorf("%w: %w", ErrSourceUnavailable, err))
	}

	return readSource(ctx, s.Path, data, ft, compression)
}

// BytesSource is an in-memory workbook payload, e.g. a downloaded remote document.
type BytesSource struct {
	// Name is used for format detection when Type is unset, and for the
	// sheet name of single-sheet formats.
	Name        string
	Data        []byte
	Type        FileType
	Compression CompressionType
}

// Describe returns the payload name.
func (s *BytesSource) Describe() string {
	return s.Name
}

// Open parses the payload.
func (s *BytesSource) Open(ctx context.Context) (model.Workbook, error) {
	if err := ctx.Err(); err != nil {
		return model.Workbook{}, err
	}

	ft, compression := s.Type, s.Compression
	if ft == FileTypeUnsupported {
		ft, compression = DetectFileType(s.Name)
	}
	if ft == FileTypeUnsupported {
		return model.Workbook{}, NewErrorContext("open source", s.Name).Error(ErrUnsupportedFormat)
	}
	return readSource(ctx, s.Name, s.Data, ft, compression)
}

func readSource(ctx context.Context, name string, data []byte, ft FileType, compression CompressionType) (model.Workbook, error) {
	reader, cleanup, err := decompress(bytes.NewReader(data), compression)
	if err != nil {
		return model.Workbook{}, NewErrorContext("decompress source", name).Error(fmt.Errorf("%w: %w", ErrSourceUnavailable, err))
	}
	defer func() { _ = cleanup() }()

	wb, err := ReadWorkbook(ctx, name, reader, ft)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			return model.Workbook{}, err
		}
		return model.Workbook{}, NewErrorContext("read workbook", name).WithDetails(ft.String()).Error(fmt.Errorf("%w: %w", ErrSourceUnavailable, err))
	}
	return wb, nil
}

// RetryPolicy re-attempts an operation that failed because the resource was
// held by another process. Other errors are returned immediately.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts; values below 1 mean 1.
	MaxAttempts int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry, when set, is called after each retryable failure that will be retried.
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy returns 8 attempts spaced 750ms apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultRetryAttempts,
		Delay:       DefaultRetryDelay,
	}
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempts are used up. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !IsRetryable(err) || attempt == attempts {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if sleepErr := p.sleep(ctx, p.Delay); sleepErr != nil {
			return errors.Join(err, sleepErr)
		}
	}
	return err
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRetryable reports whether err means the resource is temporarily held
// by another process (permission or sharing violations).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EBUSY) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "being used by another process") ||
		strings.Contains(msg, "resource busy")
}
