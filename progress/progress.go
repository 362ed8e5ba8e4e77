// Package progress renders a single erasable status line for the running book.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/audiobook-dl/audiobook-dl/icon"
	"github.com/audiobook-dl/audiobook-dl/style"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const barWidth = 30

// Bar reports download bytes and assembly stages of one book at a time.
// Its methods match download.ProgressFunc and output.ProgressFunc and are safe for concurrent use.
type Bar struct {
	// Interval throttles redraws. Zero redraws on every update.
	Interval time.Duration

	mu       sync.Mutex
	out      io.Writer
	enabled  bool
	model    progress.Model
	title    string
	stage    string
	files    int
	bytes    int64
	fraction float64
	drawn    time.Time
	width    int
}

// New returns a bar writing to out. A disabled bar never writes.
func New(out io.Writer, enabled bool) *Bar {
	return &Bar{
		Interval: 100 * time.Millisecond,
		out:      out,
		enabled:  enabled,
		model:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
	}
}

// Start begins reporting the download of a book made of files parts.
func (b *Bar) Start(title string, files int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.title, b.files = title, files
	b.stage, b.bytes, b.fraction = "", 0, 0
	b.draw(true)
}

// Add records n downloaded bytes. Negative values undo bytes of a retried attempt.
func (b *Bar) Add(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bytes = max(b.bytes+n, 0)
	b.draw(false)
}

// Bytes returns the downloaded byte count.
func (b *Bar) Bytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}

// Stage switches to an assembly step and returns its fraction reporter.
func (b *Bar) Stage(name string) func(fraction float64) {
	b.mu.Lock()
	b.stage, b.fraction = name, 0
	b.draw(true)
	b.mu.Unlock()

	return func(fraction float64) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.fraction = min(max(fraction, 0), 1)
		b.draw(false)
	}
}

// Done erases the status line.
func (b *Bar) Done() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.erase()
}

// Line renders the current status without writing it.
func (b *Bar) Line() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.line()
}

func (b *Bar) line() string {
	if b.stage != "" {
		return fmt.Sprintf("%s %s %s %s", icon.Get(icon.Progress), b.stage, style.Bold(b.title), b.model.ViewAs(b.fraction))
	}
	return fmt.Sprintf("%s Downloading %s %s %s",
		icon.Get(icon.Download),
		style.Bold(b.title),
		style.Faint(fmt.Sprintf("(%d parts)", b.files)),
		humanize.Bytes(uint64(b.bytes)),
	)
}

func (b *Bar) draw(force bool) {
	if !b.enabled {
		return
	}
	if !force && b.Interval > 0 && time.Since(b.drawn) < b.Interval {
		return
	}
	b.drawn = time.Now()

	b.erase()
	line := b.line()
	b.width = lipgloss.Width(line)
	_, _ = fmt.Fprintf(b.out, "\r%s", line)
}

func (b *Bar) erase() {
	if !b.enabled || b.width == 0 {
		return
	}
	_, _ = fmt.Fprintf(b.out, "\r%s\r", strings.Repeat(" ", b.width))
	b.width = 0
}
