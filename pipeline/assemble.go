package pipeline

import (
	"context"
	"path/filepath"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/download"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/audiobook-dl/audiobook-dl/history"
	"github.com/audiobook-dl/audiobook-dl/icon"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/audiobook-dl/audiobook-dl/metadata"
	"github.com/audiobook-dl/audiobook-dl/output"
	"github.com/audiobook-dl/audiobook-dl/source"
	"github.com/audiobook-dl/audiobook-dl/style"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Assemble downloads book and turns it into the final artifact.
// key is what the book was requested by and identifies it in the history.
// It returns the path of the single output file, or of the directory holding the parts.
func (c *Context) Assemble(ctx context.Context, src source.Source, key string, book *audiobook.Audiobook) (string, error) {
	if err := book.Validate(); err != nil {
		return "", err
	}

	name := source.Name(src)
	if c.Options.SkipDownloaded && history.Has(name, key) {
		log.Infof("skipping %s, already downloaded", book.Metadata.Title)
		c.printf("%s %s %s\n", icon.Get(icon.Info), style.Bold(book.Metadata.Title), style.Faint("already downloaded"))
		return "", nil
	}

	location, err := output.GenerateLocation(c.Options.OutputTemplate, book.Metadata, c.Options.RemoveChars)
	if err != nil {
		return "", err
	}

	combine := c.Options.Combine && len(book.Files) > 1
	work := filepath.Join(c.TempDir, uuid.NewString())
	defer func() { _ = filesystem.API().RemoveAll(work) }()

	targets := output.FilePaths(location, book.Files)
	if combine {
		targets = output.FilePaths(filepath.Join(work, "parts"), book.Files)
	}

	artifacts, err := c.fetch(ctx, book, targets, work, location, combine)
	if err != nil {
		return "", err
	}

	if c.Options.OutputFormat != "" {
		converted, err := output.Convert(ctx, c.Runner, artifacts, c.Options.OutputFormat, c.Options.Mp4AudioEncoder,
			c.Progress.Stage("Converting"))
		c.Progress.Done()
		if err != nil {
			download.Cleanup(artifacts)
			removeEmptyDir(location, len(artifacts) > 1)
			return "", err
		}
		artifacts = converted
	}

	directory := len(artifacts) > 1
	artifact := lo.Ternary(directory, location, lo.FirstOr(artifacts, location))
	c.tag(ctx, book, artifacts, artifact, directory)

	if c.Options.WriteJSONMetadata {
		if path, err := metadata.WriteJSON(artifact, directory, book); err != nil {
			log.Warnf("cannot write metadata of %s: %s", book.Metadata.Title, err)
		} else {
			log.Debugf("metadata written to %s", path)
		}
	}

	if completer, ok := src.(source.Completer); ok {
		if err := completer.OnDownloadComplete(book); err != nil {
			log.Warnf("%s: cannot record %s: %s", name, book.Metadata.Title, err)
		}
	}

	if err := history.Save(&history.Record{
		Title:  book.Metadata.Title,
		Source: name,
		URL:    key,
		Path:   artifact,
	}); err != nil {
		log.Warnf("cannot save history: %s", err)
	}

	c.printf("%s %s %s\n", icon.Get(icon.Success), style.Bold(book.Metadata.Title), style.Faint(artifact))
	return artifact, nil
}

// fetch downloads every file and combines them when requested.
// Nothing is left behind when it fails.
func (c *Context) fetch(ctx context.Context, book *audiobook.Audiobook, targets []string, work, location string, combine bool) ([]string, error) {
	c.Progress.Start(book.Metadata.Title, len(book.Files))
	defer c.Progress.Done()

	if err := c.Orchestrator.Download(ctx, book, targets, c.Progress.Add); err != nil {
		download.Cleanup(targets)
		removeEmptyDir(location, !combine && len(targets) > 1)
		return nil, err
	}
	if !combine {
		return targets, nil
	}

	combined := output.CombinedPath(location, book.Files)
	if err := output.Combine(ctx, c.Runner, targets, filepath.Join(work, "combine"), combined, c.Progress.Stage("Combining")); err != nil {
		download.Cleanup(targets)
		download.Cleanup([]string{combined})
		return nil, err
	}
	return []string{combined}, nil
}

// tag embeds metadata in every artifact. Cover and chapters go into a single file,
// a directory of parts gets its cover as a separate image.
// Failures are reported but never undo the download.
func (c *Context) tag(ctx context.Context, book *audiobook.Audiobook, artifacts []string, artifact string, directory bool) {
	warn := func(step, path string, err error) {
		if err != nil {
			log.Warnf("%s of %s failed: %s", step, path, err)
		}
	}

	for _, path := range artifacts {
		warn("metadata", path, c.Writer.AddMetadata(ctx, path, book.Metadata))
	}

	cover, hasCover := book.Cover.Get()
	if directory {
		if hasCover {
			_, err := metadata.WriteCover(artifact, cover)
			warn("cover", artifact, err)
		}
		return
	}

	if hasCover {
		warn("cover", artifact, c.Writer.EmbedCover(ctx, artifact, cover))
	}
	if !c.Options.NoChapters {
		warn("chapters", artifact, c.Writer.AddChapters(ctx, artifact, book.Chapters))
	}
}

// removeEmptyDir removes the part directory of a failed book unless it holds other files.
func removeEmptyDir(location string, directory bool) {
	if !directory {
		return
	}
	fs := filesystem.API()
	if empty, err := fs.IsEmpty(location); err == nil && empty {
		if err := fs.Remove(location); err != nil {
			log.Warnf("cannot remove %s: %s", location, err)
		}
	}
}
