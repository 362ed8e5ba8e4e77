// Package ffmpegtest provides a scripted ffmpeg.Runner for tests.
package ffmpegtest

import (
	"context"
	"strings"
	"sync"

	"github.com/audiobook-dl/audiobook-dl/ffmpeg"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
)

// Runner records every invocation. By default Run writes the last argument as an
// output file on the active filesystem, concatenating the inputs it was given.
type Runner struct {
	mu       sync.Mutex
	calls    [][]string
	probes   int
	encoders int

	// RunFunc replaces the default Run behaviour when set.
	RunFunc func(args []string) error
	// Probed is returned by Probe.
	Probed ffmpeg.Probe
	// EncoderList is returned by Encoders.
	EncoderList string
	// Missing makes Available report false.
	Missing bool
}

var _ ffmpeg.Runner = (*Runner)(nil)

// New returns a runner that knows the aac encoder.
func New() *Runner {
	return &Runner{EncoderList: " A....D aac                  AAC (Advanced Audio Coding)\n"}
}

func (r *Runner) Run(_ context.Context, args []string, onProgress ffmpeg.ProgressFunc) error {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string(nil), args...))
	r.mu.Unlock()

	if onProgress != nil {
		onProgress(r.Probed.Duration)
	}
	if r.RunFunc != nil {
		return r.RunFunc(args)
	}
	return WriteOutput(args)
}

func (r *Runner) Probe(context.Context, string) (ffmpeg.Probe, error) {
	r.mu.Lock()
	r.probes++
	r.mu.Unlock()
	return r.Probed, nil
}

func (r *Runner) Encoders(context.Context) (string, error) {
	r.mu.Lock()
	r.encoders++
	r.mu.Unlock()
	return r.EncoderList, nil
}

func (r *Runner) Available() bool {
	return !r.Missing
}

// Calls returns the argument lists of every Run.
func (r *Runner) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

// Total is the number of Run, Probe and Encoders invocations.
func (r *Runner) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls) + r.probes + r.encoders
}

// WriteOutput creates the file named by the last argument from the "-i" inputs.
func WriteOutput(args []string) error {
	if len(args) == 0 {
		return nil
	}

	fs := filesystem.API()
	var content strings.Builder
	for i := 0; i+1 < len(args); i++ {
		if args[i] != "-i" {
			continue
		}
		data, err := fs.ReadFile(args[i+1])
		if err == nil {
			content.Write(data)
		}
	}
	return fs.WriteFile(args[len(args)-1], []byte(content.String()), 0o644)
}
