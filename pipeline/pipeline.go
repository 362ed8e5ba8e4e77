// Package pipeline runs a download from URL to finished, tagged audiobook.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/config"
	"github.com/audiobook-dl/audiobook-dl/download"
	"github.com/audiobook-dl/audiobook-dl/ffmpeg"
	"github.com/audiobook-dl/audiobook-dl/icon"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/audiobook-dl/audiobook-dl/metadata"
	"github.com/audiobook-dl/audiobook-dl/progress"
	"github.com/audiobook-dl/audiobook-dl/provider"
	"github.com/audiobook-dl/audiobook-dl/source"
	"github.com/audiobook-dl/audiobook-dl/style"
	"github.com/audiobook-dl/audiobook-dl/where"
)

// Context carries everything a run needs. It is built once per invocation.
type Context struct {
	Options      config.Options
	Runner       ffmpeg.Runner
	Orchestrator *download.Orchestrator
	Writer       *metadata.Writer
	Progress     *progress.Bar
	Auth         Auth

	// TempDir holds the parts of books that are combined.
	TempDir string
	// Out receives user facing messages.
	Out io.Writer
}

// New builds a context from opts, running ffmpeg through runner.
func New(opts config.Options, runner ffmpeg.Runner) *Context {
	orchestrator := download.New(opts.Workers, opts.Retries)
	orchestrator.OnState = func(index int, state download.State) {
		log.Tracef("file %d: %s", index, state)
	}

	return &Context{
		Options:      opts,
		Runner:       runner,
		Orchestrator: orchestrator,
		Writer:       metadata.NewWriter(runner),
		Progress:     progress.New(os.Stdout, opts.Progress),
		Auth:         Auth{Keyring: true},
		TempDir:      where.Temp(),
		Out:          os.Stdout,
	}
}

// Resolve finds the provider of url and returns an authenticated source for it.
func (c *Context) Resolve(ctx context.Context, url string) (source.Source, error) {
	p, err := provider.Resolve(url)
	if err != nil {
		return nil, err
	}

	src := p.New(source.Options{
		DatabaseDirectory: c.Options.DatabaseDirectory,
		SkipDownloaded:    c.Options.SkipDownloaded,
	})
	if err := c.Auth.Authenticate(ctx, src, url); err != nil {
		return nil, err
	}
	return src, nil
}

// Run downloads everything url refers to.
// Books of a series are independent: a failing book is reported and the rest continue.
func (c *Context) Run(ctx context.Context, url string) error {
	src, err := c.Resolve(ctx, url)
	if err != nil {
		return err
	}

	result, err := src.Download(ctx, url)
	if err != nil {
		return err
	}

	switch r := result.(type) {
	case *audiobook.Audiobook:
		_, err := c.Assemble(ctx, src, url, r)
		return err
	case *audiobook.Series:
		return c.series(ctx, src, r)
	default:
		return fmt.Errorf("unexpected result %T", result)
	}
}

func (c *Context) series(ctx context.Context, src source.Source, series *audiobook.Series) error {
	c.printf("%s %s: %d books\n", icon.Get(icon.Book), style.Bold(series.Title), len(series.Books))

	var failed []error
	for i, id := range series.Books {
		if err := ctx.Err(); err != nil {
			return err
		}

		log.Infof("series %s: book %d/%d (%s)", series.Title, i+1, len(series.Books), id.ID)
		book, err := src.DownloadByID(ctx, id.ID)
		if err == nil {
			_, err = c.Assemble(ctx, src, id.ID, book)
		}
		if err != nil {
			log.Warnf("series %s: book %s failed: %s", series.Title, id.ID, err)
			c.printf("%s %s: %s\n", icon.Get(icon.Fail), id.ID, err)
			failed = append(failed, fmt.Errorf("%s: %w", id.ID, err))
		}
	}
	return errors.Join(failed...)
}

func (c *Context) printf(format string, args ...any) {
	if c.Out != nil {
		_, _ = fmt.Fprintf(c.Out, format, args...)
	}
}
