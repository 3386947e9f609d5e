// Package beatmaps makes .osu files available on local disk for the engine,
// downloading them from a mirror when missing or stale.
package beatmaps

import (
	"context"
	"crypto/md5" //nolint:gosec // beatmaps are identified by md5
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tuyosu/pprating/pkg/logger"
	"github.com/tuyosu/pprating/pkg/metrics"
)

const defaultMaxSize = 16 << 20

// Fetcher resolves a map id to a verified file under dir.
type Fetcher struct {
	dir    string
	mirror string
	client *http.Client
	tokens TokenProvider
	log    logger.Logger
	group  singleflight.Group

	maxSize int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithTokenProvider attaches a bearer token to mirror requests.
func WithTokenProvider(p TokenProvider) Option {
	return func(f *Fetcher) { f.tokens = p }
}

// WithMaxSize bounds the size of a downloaded file; larger downloads are
// rejected.
func WithMaxSize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

// NewFetcher stores files in dir and downloads from mirror, a printf pattern
// taking the map id. An empty mirror disables downloads.
func NewFetcher(dir, mirror string, opts ...Option) *Fetcher {
	f := &Fetcher{
		dir:    dir,
		mirror: mirror,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    logger.Nop(),

		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.Named("beatmaps")
	return f
}

// Path returns where the file of mapID lives.
func (f *Fetcher) Path(mapID int64) string {
	return filepath.Join(f.dir, strconv.FormatInt(mapID, 10)+".osu")
}

// Read returns the file contents of mapID.
func (f *Fetcher) Read(mapID int64) ([]byte, error) {
	data, err := os.ReadFile(f.Path(mapID))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBeatmapFile, err)
	}
	return data, nil
}

// Ensure makes sure the file of mapID exists and, when expectedMD5 is not
// empty, hashes to it. It returns false without an error when the file cannot
// be obtained; errors are reserved for local filesystem failures.
func (f *Fetcher) Ensure(ctx context.Context, mapID int64, expectedMD5 string) (bool, error) {
	v, err, _ := f.group.Do(strconv.FormatInt(mapID, 10)+":"+expectedMD5, func() (any, error) {
		return f.ensure(ctx, mapID, expectedMD5)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (f *Fetcher) ensure(ctx context.Context, mapID int64, expectedMD5 string) (bool, error) {
	path := f.Path(mapID)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if matches(data, expectedMD5) {
			metrics.RecordBeatmapDownload("cached")
			return true, nil
		}
		f.log.Debug(ctx, "stale beatmap file", logger.Int64("map_id", mapID))
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("%w: read %s: %w", ErrBeatmapFile, path, err)
	}

	if f.mirror == "" {
		metrics.RecordBeatmapDownload("unavailable")
		return false, nil
	}

	data, ok := f.download(ctx, mapID)
	if !ok {
		metrics.RecordBeatmapDownload("unavailable")
		return false, nil
	}
	if !matches(data, expectedMD5) {
		f.log.Warn(ctx, "downloaded beatmap does not match md5",
			logger.Int64("map_id", mapID),
			logger.String("expected", expectedMD5))
		metrics.RecordBeatmapDownload("mismatch")
		return false, nil
	}

	if err := writeAtomic(path, data); err != nil {
		return false, err
	}
	metrics.RecordBeatmapDownload("downloaded")
	return true, nil
}

func (f *Fetcher) download(ctx context.Context, mapID int64) ([]byte, bool) {
	url := fmt.Sprintf(f.mirror, mapID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.log.Warn(ctx, "bad mirror request", logger.Error(err))
		return nil, false
	}
	if f.tokens != nil {
		tok, err := f.tokens.Token(ctx)
		switch {
		case err == nil:
			req.Header.Set("Authorization", "Bearer "+tok)
		case !errors.Is(err, ErrNoCredentials):
			f.log.Warn(ctx, "osu! api token unavailable, downloading anonymously", logger.Error(err))
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Warn(ctx, "beatmap download failed", logger.Int64("map_id", mapID), logger.Error(err))
		return nil, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		f.log.Debug(ctx, "beatmap not on mirror",
			logger.Int64("map_id", mapID),
			logger.Int("status", resp.StatusCode))
		return nil, false
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	switch {
	case err != nil || len(data) == 0:
		f.log.Warn(ctx, "beatmap download truncated", logger.Int64("map_id", mapID), logger.Error(err))
		return nil, false
	case int64(len(data)) > f.maxSize:
		f.log.Warn(ctx, "beatmap download too large",
			logger.Int64("map_id", mapID),
			logger.Int64("limit_bytes", f.maxSize))
		return nil, false
	}
	return data, true
}

func matches(data []byte, expected string) bool {
	if expected == "" {
		return true
	}
	sum := md5.Sum(data) //nolint:gosec // identity, not security
	return hex.EncodeToString(sum[:]) == expected
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrBeatmapFile, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeatmapFile, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", ErrBeatmapFile, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", ErrBeatmapFile, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", ErrBeatmapFile, err)
	}
	return nil
}
