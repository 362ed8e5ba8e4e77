// Package ffmpeg runs the external ffmpeg and ffprobe programs.
package ffmpeg

import (
	"context"
)

// ProgressFunc receives the position in seconds that ffmpeg has written so far.
type ProgressFunc func(seconds float64)

// Probe is the subset of ffprobe output used for conversion decisions.
type Probe struct {
	// BitRateKbps is the bitrate of the first audio stream, 0 when unknown.
	BitRateKbps int64
	// Duration is the container duration in seconds, 0 when unknown.
	Duration float64
}

// Runner abstracts ffmpeg so assembly steps can be exercised without the binaries.
type Runner interface {
	// Run executes ffmpeg with args. A non-zero exit is an errs.ProcessFailed error.
	Run(ctx context.Context, args []string, onProgress ProgressFunc) error
	// Probe inspects a media file with ffprobe.
	Probe(ctx context.Context, path string) (Probe, error)
	// Encoders returns the textual encoder list printed by "ffmpeg -encoders".
	Encoders(ctx context.Context) (string, error)
	// Available reports whether ffmpeg can be run at all.
	Available() bool
}
