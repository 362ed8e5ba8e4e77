// Package download fetches the files of an audiobook with a bounded worker pool.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/crypt"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/audiobook-dl/audiobook-dl/session"
	"github.com/audiobook-dl/audiobook-dl/util"
	"golang.org/x/sync/errgroup"
)

// ChunkSize is the size of a single write to disk and of a progress step.
const ChunkSize = 64 * 1024

// TempSuffix is appended to a destination while it is being written.
const TempSuffix = ".tmp"

// ProgressFunc receives the number of bytes written since the last call.
// A negative value rolls back bytes of a failed attempt that is being retried.
type ProgressFunc func(n int64)

// Orchestrator downloads files concurrently.
type Orchestrator struct {
	// Workers is the maximum number of concurrent transfers.
	Workers int
	// Retries is how many times a transfer is retried after a transient failure.
	Retries int
	// Backoff is the delay before the first retry; it doubles on every further attempt.
	Backoff time.Duration
	// OnState observes state transitions of every file.
	OnState func(index int, state State)
}

// New creates an orchestrator with the given pool size and retry budget.
func New(workers, retries int) *Orchestrator {
	return &Orchestrator{
		Workers: util.Max(workers, 1),
		Retries: util.Max(retries, 0),
		Backoff: time.Second,
	}
}

// Download writes book.Files[i] to paths[i].
// The first failure cancels the remaining transfers and is returned.
// Partially written files of failed transfers are removed.
func (o *Orchestrator) Download(ctx context.Context, book *audiobook.Audiobook, paths []string, onProgress ProgressFunc) error {
	if len(paths) != len(book.Files) {
		return fmt.Errorf("got %d destinations for %d files", len(paths), len(book.Files))
	}

	sess := book.Session
	if sess == nil {
		sess = session.New()
	}

	var mu sync.Mutex
	progress := func(n int64) {
		if onProgress == nil {
			return
		}
		mu.Lock()
		onProgress(n)
		mu.Unlock()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(util.Max(o.Workers, 1))

	for i := range book.Files {
		group.Go(func() error {
			return o.file(groupCtx, sess, i, &book.Files[i], paths[i], progress)
		})
	}

	return group.Wait()
}

func (o *Orchestrator) file(ctx context.Context, sess *session.Session, index int, file *audiobook.File, path string, progress ProgressFunc) error {
	logger := log.WithFields(map[string]any{"file": index, "path": path})
	tmp := path + TempSuffix

	fail := func(err error) error {
		o.state(index, Failed)
		_ = filesystem.API().Remove(tmp)
		logger.WithError(err).Debug("download failed")
		return err
	}

	o.state(index, Pending)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if err := filesystem.API().MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fail(err)
	}

	var err error
	for attempt := 0; attempt <= o.Retries; attempt++ {
		if attempt > 0 {
			delay := o.Backoff << (attempt - 1)
			logger.Debugf("retrying in %s (attempt %d)", delay, attempt+1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fail(ctx.Err())
			}
		}

		var written int64
		written, err = o.fetch(ctx, sess, index, file, tmp, progress)
		if err == nil {
			break
		}

		if written > 0 {
			progress(-written)
		}

		var t *transient
		if !errors.As(err, &t) || ctx.Err() != nil {
			break
		}
		err = t.err
	}
	if err != nil {
		var t *transient
		if errors.As(err, &t) {
			err = t.err
		}
		return fail(err)
	}

	if file.Encryption != nil {
		o.state(index, Decrypting)
		if err := crypt.Decrypt(tmp, file.Encryption); err != nil {
			return fail(err)
		}
	}

	if err := filesystem.API().Rename(tmp, path); err != nil {
		return fail(err)
	}

	o.state(index, Complete)
	logger.Debug("download complete")
	return nil
}

// transient marks errors worth another attempt.
type transient struct {
	err error
}

func (t *transient) Error() string { return t.err.Error() }
func (t *transient) Unwrap() error { return t.err }

func (o *Orchestrator) fetch(ctx context.Context, sess *session.Session, index int, file *audiobook.File, tmp string, progress ProgressFunc) (int64, error) {
	o.state(index, Fetching)

	req, err := sess.NewRequest(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return 0, err
	}
	for k, v := range file.Headers {
		req.Header.Set(k, v)
	}

	resp, err := sess.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &transient{err: err}
	}
	defer resp.Body.Close()

	o.state(index, Validating)
	if err := validate(file, resp); err != nil {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return 0, &transient{err: err}
		}
		return 0, err
	}

	out, err := filesystem.API().Create(tmp)
	if err != nil {
		return 0, err
	}
	defer util.Ignore(out.Close)

	var (
		written int64
		buf     = make([]byte, ChunkSize)
	)
	for {
		n, readErr := io.ReadFull(resp.Body, buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			progress(int64(n))
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			return written, &transient{err: readErr}
		}
	}

	return written, out.Close()
}

func validate(file *audiobook.File, resp *http.Response) error {
	if expected, ok := file.ExpectedStatusCode.Get(); ok {
		if resp.StatusCode != expected {
			return errs.DownloadStatus(file.URL, expected, resp.StatusCode)
		}
	} else if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errs.DownloadStatus(file.URL, http.StatusOK, resp.StatusCode)
	}

	if expected, ok := file.ExpectedContentType.Get(); ok {
		actual := resp.Header.Get("Content-Type")
		if mediaType(actual) != mediaType(expected) {
			return errs.DownloadContentType(file.URL, expected, actual)
		}
	}

	return nil
}

func mediaType(contentType string) string {
	parsed, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return parsed
}

func (o *Orchestrator) state(index int, s State) {
	if o.OnState != nil {
		o.OnState(index, s)
	}
}

// Cleanup removes downloaded files and leftovers of interrupted transfers.
func Cleanup(paths []string) {
	for _, p := range paths {
		_ = filesystem.API().Remove(p)
		_ = filesystem.API().Remove(p + TempSuffix)
	}
}
