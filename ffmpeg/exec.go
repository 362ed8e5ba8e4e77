package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/audiobook-dl/audiobook-dl/constant"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/tidwall/gjson"
)

const (
	progressInterval = 250 * time.Millisecond
	stderrTailLines  = 20
)

// Exec runs the ffmpeg binaries found on PATH.
type Exec struct {
	// FFmpeg and FFprobe override the binary names, mainly for tests.
	FFmpeg  string
	FFprobe string
}

// New returns a runner using the default binary names.
func New() *Exec {
	return &Exec{
		FFmpeg:  constant.FFmpeg,
		FFprobe: constant.FFprobe,
	}
}

func (e *Exec) lookup(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", errs.MissingDependency(name)
	}
	return path, nil
}

// Available reports whether ffmpeg is on PATH.
func (e *Exec) Available() bool {
	_, err := e.lookup(e.FFmpeg)
	return err == nil
}

// Run executes ffmpeg with progress reporting enabled.
//
// Progress is read from stderr in a goroutine and forwarded to onProgress by a ticker,
// so slow callbacks never block ffmpeg. Both goroutines finish before Run returns.
func (e *Exec) Run(ctx context.Context, args []string, onProgress ProgressFunc) error {
	bin, err := e.lookup(e.FFmpeg)
	if err != nil {
		return err
	}

	full := append([]string{"-hide_banner", "-nostdin", "-progress", "pipe:2", "-nostats"}, args...)
	cmd := exec.CommandContext(ctx, bin, full...)
	cmd.SysProcAttr = sysProcAttr()
	cmd.Cancel = func() error { return killProcess(cmd) }

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	log.Debugf("running %s %s", bin, strings.Join(full, " "))
	if err := cmd.Start(); err != nil {
		return err
	}

	var (
		position atomic.Int64
		tail     = &lineTail{max: stderrTailLines}
		scanned  = make(chan struct{})
		exited   = make(chan struct{})
		ticking  sync.WaitGroup
	)

	go func() {
		defer close(scanned)
		scan(stderr, &position, tail)
	}()

	if onProgress != nil {
		ticking.Add(1)
		go func() {
			defer ticking.Done()
			ticker := time.NewTicker(progressInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					onProgress(micros(position.Load()))
				case <-exited:
					onProgress(micros(position.Load()))
					return
				}
			}
		}()
	}

	// stderr must be drained before Wait closes the pipe
	<-scanned
	err = cmd.Wait()
	close(exited)
	ticking.Wait()

	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return errs.ProcessFailed(constant.FFmpeg, code, tail.String()).Wrap(err)
}

// Probe reads the first audio stream's bitrate and the container duration.
func (e *Exec) Probe(ctx context.Context, path string) (Probe, error) {
	bin, err := e.lookup(e.FFprobe)
	if err != nil {
		return Probe{}, err
	}

	out, err := exec.CommandContext(ctx, bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		"-select_streams", "a:0",
		path,
	).Output()
	if err != nil {
		return Probe{}, processError(constant.FFprobe, err)
	}

	return ParseProbe(out), nil
}

// ParseProbe extracts a Probe from ffprobe JSON output.
func ParseProbe(data []byte) Probe {
	bitRate := gjson.GetBytes(data, "streams.0.bit_rate").Int()
	if bitRate == 0 {
		bitRate = gjson.GetBytes(data, "format.bit_rate").Int()
	}

	return Probe{
		BitRateKbps: bitRate / 1000,
		Duration:    gjson.GetBytes(data, "format.duration").Float(),
	}
}

// Encoders returns the output of "ffmpeg -encoders".
func (e *Exec) Encoders(ctx context.Context) (string, error) {
	bin, err := e.lookup(e.FFmpeg)
	if err != nil {
		return "", err
	}

	out, err := exec.CommandContext(ctx, bin, "-hide_banner", "-encoders").Output()
	if err != nil {
		return "", processError(constant.FFmpeg, err)
	}
	return string(out), nil
}

func processError(program string, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errs.ProcessFailed(program, exitErr.ExitCode(), string(exitErr.Stderr)).Wrap(err)
	}
	return err
}

func scan(r io.Reader, position *atomic.Int64, tail *lineTail) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if us, ok := ParseProgressLine(line); ok {
			position.Store(us)
			continue
		}
		if isProgressKey(line) {
			continue
		}
		tail.add(line)
	}
	_, _ = io.Copy(io.Discard, r)
}

func micros(us int64) float64 {
	return float64(us) / float64(time.Second/time.Microsecond)
}

type lineTail struct {
	max   int
	lines []string
	mu    sync.Mutex
}

func (t *lineTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
