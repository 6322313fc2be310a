// Package fetch downloads and verifies package sources.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/semaphore"
)

var _ ports.Downloader = (*Downloader)(nil)

const (
	maxAttempts  = 3
	retryBackoff = 2 * time.Second
)

// Downloader fetches URLs over HTTP with checksum verification and bounded
// parallelism. Requests beyond the bound queue on the semaphore.
type Downloader struct {
	client   *http.Client
	verifier ports.Verifier
	logger   ports.Logger
	sem      *semaphore.Weighted

	// backoff is the base delay between attempts; attempt k waits
	// backoff * 2^(k-1). Shortened in tests.
	backoff time.Duration
}

// NewDownloader creates a downloader allowing at most parallel concurrent
// transfers.
func NewDownloader(verifier ports.Verifier, logger ports.Logger, parallel int64) *Downloader {
	if parallel < 1 {
		parallel = 1
	}
	return &Downloader{
		client:   &http.Client{Timeout: 30 * time.Minute},
		verifier: verifier,
		logger:   logger,
		sem:      semaphore.NewWeighted(parallel),
		backoff:  retryBackoff,
	}
}

// Fetch downloads url into dest and verifies it against sha256. A dest that
// already matches is a no-op unless force is set.
func (d *Downloader) Fetch(ctx context.Context, url, dest, sha256 string, force bool) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return zerr.Wrap(err, "failed to acquire download slot")
	}
	defer d.sem.Release(1)

	if !force {
		if sha256 == "" {
			if _, err := os.Stat(dest); err == nil {
				return nil
			}
		} else if ok, err := d.verifier.Verify(dest, sha256); err == nil && ok {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return zerr.Wrap(err, "failed to create download directory")
	}

	var attempts []error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := d.backoff * (1 << (attempt - 2))
			d.logger.Warn(fmt.Sprintf("retrying download of %s in %s (attempt %d/%d)", url, delay, attempt, maxAttempts))
			select {
			case <-ctx.Done():
				return zerr.Wrap(ctx.Err(), "download canceled")
			case <-time.After(delay):
			}
		}

		err := d.fetchOnce(ctx, url, dest, sha256)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return zerr.Wrap(ctx.Err(), "download canceled")
		}
		attempts = append(attempts, err)
	}

	err := zerr.Wrap(errors.Join(attempts...), domain.ErrDownloadFailed.Error())
	return zerr.With(zerr.With(err, "url", url), "attempts", maxAttempts)
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dest, sha256 string) error {
	tmp := dest + ".part"
	if err := d.download(ctx, url, tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	// An empty digest means the source publishes none; the download is
	// accepted as-is.
	if sha256 == "" {
		return os.Rename(tmp, dest)
	}

	ok, err := d.verifier.Verify(tmp, sha256)
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if !ok {
		actual, _ := d.verifier.FileDigest(tmp)
		// A corrupt download never survives to the next attempt.
		_ = os.Remove(tmp)
		err := zerr.With(domain.ErrChecksumMismatch, "expected", sha256)
		return zerr.With(err, "actual", actual)
	}

	return os.Rename(tmp, dest)
}

func (d *Downloader) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return zerr.Wrap(err, "failed to build request")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return zerr.Wrap(err, "failed to reach source")
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close in defer

	if resp.StatusCode != http.StatusOK {
		return zerr.With(zerr.New("unexpected response status"), "status", resp.Status)
	}

	f, err := os.Create(dest) //nolint:gosec // Destination is under the managed sources dir
	if err != nil {
		return zerr.Wrap(err, "failed to create download file")
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return zerr.Wrap(err, "failed to stream download")
	}
	return f.Close()
}
