package output

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/ffmpeg"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/audiobook-dl/audiobook-dl/util"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

// CombineChunkSize bounds how many files a single ffmpeg invocation concatenates.
const CombineChunkSize = 500

const concatList = "concat_list.txt"

// ProgressFunc receives the completed fraction of an assembly step, from 0 to 1.
type ProgressFunc func(fraction float64)

// Combine concatenates paths, in order, into outputPath without re-encoding.
//
// The first file is moved into workdir and grown chunk by chunk, so very long
// books never exceed the open file limit. workdir is removed on success.
func Combine(ctx context.Context, runner ffmpeg.Runner, paths []string, workdir, outputPath string, onProgress ProgressFunc) error {
	if len(paths) == 0 {
		return errs.NoFilesFound(outputPath)
	}

	fs := filesystem.API()
	if err := fs.MkdirAll(workdir, 0o755); err != nil {
		return err
	}

	ext := util.Ext(outputPath)
	input := filepath.Join(workdir, "input_file."+ext)
	output := filepath.Join(workdir, "output_file."+ext)
	list := filepath.Join(workdir, concatList)

	chunks := lo.Chunk(paths[1:], CombineChunkSize)
	weights := combineWeights(ctx, runner, paths, len(chunks), onProgress != nil)

	if err := util.Move(paths[0], input); err != nil {
		return err
	}

	var done float64
	for i, chunk := range chunks {
		log.Debugf("combining chunk %d/%d (%s)", i+1, len(chunks), util.Quantify(len(chunk), "file", "files"))

		if err := fs.WriteFile(list, []byte(concatListing(input, chunk)), 0o644); err != nil {
			return err
		}

		args := []string{"-y", "-f", "concat", "-safe", "0", "-i", list, "-c", "copy", output}
		err := runner.Run(ctx, args, func(seconds float64) {
			if onProgress != nil && weights.total > 0 {
				onProgress(util.Min((done+util.Min(seconds, weights.chunks[i]))/weights.total, 1))
			}
		})
		if err != nil {
			return err
		}

		if exists, _ := afero.Exists(fs, output); !exists {
			return errs.FailedCombining(outputPath)
		}

		_ = fs.Remove(input)
		_ = fs.Remove(list)
		if err := fs.Rename(output, input); err != nil {
			return err
		}
		done += weights.chunks[i]
	}

	if err := util.Move(input, outputPath); err != nil {
		return errs.FailedCombining(outputPath).Wrap(err)
	}
	if exists, _ := afero.Exists(fs, outputPath); !exists {
		return errs.FailedCombining(outputPath)
	}

	if onProgress != nil {
		onProgress(1)
	}
	return fs.RemoveAll(workdir)
}

// concatListing is an ffmpeg concat demuxer script.
func concatListing(input string, files []string) string {
	var b strings.Builder
	for _, f := range append([]string{input}, files...) {
		fmt.Fprintf(&b, "file '%s'\n", escapeConcat(f))
	}
	return b.String()
}

// escapeConcat quotes path for the concat demuxer, which resolves relative entries against the list file.
func escapeConcat(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return strings.ReplaceAll(path, "'", `'\''`)
}

type weights struct {
	chunks []float64
	total  float64
}

// combineWeights estimates the seconds each chunk has to write.
// Chunk k rewrites everything combined so far, so its weight is the cumulative duration.
func combineWeights(ctx context.Context, runner ffmpeg.Runner, paths []string, chunks int, wanted bool) weights {
	w := weights{chunks: make([]float64, chunks)}
	if !wanted || chunks == 0 {
		return w
	}

	durations := lo.Map(paths, func(p string, _ int) float64 {
		probe, err := runner.Probe(ctx, p)
		if err != nil {
			return 0
		}
		return probe.Duration
	})

	cumulative := durations[0]
	for i := range chunks {
		from := 1 + i*CombineChunkSize
		to := util.Min(from+CombineChunkSize, len(paths))
		cumulative += lo.Sum(durations[from:to])
		w.chunks[i] = cumulative
		w.total += cumulative
	}
	return w
}
