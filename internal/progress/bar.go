package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultBarWidth   = 40
	defaultRenderStep = 100 * time.Millisecond
)

var counterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

// Bar draws a single-line terminal progress bar. Redraws are throttled;
// the final state is always drawn.
type Bar struct {
	mu       sync.Mutex
	out      io.Writer
	model    progress.Model
	label    string
	total    int
	done     int
	lastDraw time.Time
	step     time.Duration
	now      func() time.Time
	finished bool
}

func NewBar(out io.Writer, label string) *Bar {
	return &Bar{
		out:   out,
		model: progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultBarWidth)),
		label: label,
		step:  defaultRenderStep,
		now:   time.Now,
	}
}

// SetTotal announces how many reports make a full bar.
func (b *Bar) SetTotal(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total = total
	b.draw(true)
}

func (b *Bar) Report(increment int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done += increment
	b.draw(b.total > 0 && b.done >= b.total)
}

// Done returns the number of reports received so far.
func (b *Bar) Done() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// Finish draws the final state and ends the line. Further reports are
// counted but not drawn.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.draw(true)
	b.finished = true
	fmt.Fprintln(b.out)
}

func (b *Bar) draw(force bool) {
	if b.finished {
		return
	}
	now := b.now()
	if !force && now.Sub(b.lastDraw) < b.step {
		return
	}
	b.lastDraw = now

	percent := 0.0
	if b.total > 0 {
		percent = float64(b.done) / float64(b.total)
		if percent > 1 {
			percent = 1
		}
	}
	counter := counterStyle.Render(fmt.Sprintf("%d/%d", b.done, b.total))
	fmt.Fprintf(b.out, "\r%s %s %s", b.label, b.model.ViewAs(percent), counter)
}
