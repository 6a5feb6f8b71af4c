// Package terminal renders progress sinks on a terminal, one line per sink.
package terminal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/slok/prun/internal/log"
	"github.com/slok/prun/internal/progress"
)

const (
	ansiClearLine = "\x1b[2K"
	ansiMoveUp    = "\x1b[%dA"
)

// IsTerminal returns true if the file is a terminal, used to select interactive rendering.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// DisplayConfig is the configuration for the terminal display.
type DisplayConfig struct {
	Out io.Writer
	// Interactive redraws all the sinks in place. When disabled only the final
	// line of each sink is printed once it reaches a terminal state.
	Interactive     bool
	NoColor         bool
	BarWidth        int
	RefreshInterval time.Duration
	Logger          log.Logger
}

func (c *DisplayConfig) defaults() error {
	if c.Out == nil {
		return fmt.Errorf("out is required")
	}
	if c.BarWidth <= 0 {
		c.BarWidth = 40
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 100 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "progress.Terminal"})
	return nil
}

// Display is a progress.Display that writes to a terminal.
type Display struct {
	out         io.Writer
	interactive bool
	bar         bprogress.Model
	frames      []string
	okStyle     lipgloss.Style
	failStyle   lipgloss.Style
	spinStyle   lipgloss.Style
	dimStyle    lipgloss.Style
	limiter     *rate.Limiter
	logger      log.Logger

	mu         sync.Mutex
	sinks      []*sink
	drawnLines int
	closed     bool

	stopC chan struct{}
	doneC chan struct{}
}

// NewDisplay returns a new terminal display. Interactive displays start rendering right away.
func NewDisplay(cfg DisplayConfig) (*Display, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	renderer := lipgloss.NewRenderer(cfg.Out)
	barOpts := []bprogress.Option{
		bprogress.WithWidth(cfg.BarWidth),
		bprogress.WithoutPercentage(),
	}
	if cfg.NoColor {
		renderer.SetColorProfile(termenv.Ascii)
		barOpts = append(barOpts, bprogress.WithColorProfile(termenv.Ascii))
	} else {
		barOpts = append(barOpts, bprogress.WithDefaultGradient())
	}

	d := &Display{
		out:         cfg.Out,
		interactive: cfg.Interactive,
		bar:         bprogress.New(barOpts...),
		frames:      spinner.Dot.Frames,
		okStyle:     renderer.NewStyle().Foreground(lipgloss.Color("2")),
		failStyle:   renderer.NewStyle().Foreground(lipgloss.Color("1")),
		spinStyle:   renderer.NewStyle().Foreground(lipgloss.Color("6")),
		dimStyle:    renderer.NewStyle().Faint(true),
		limiter:     rate.NewLimiter(rate.Every(cfg.RefreshInterval), 1),
		logger:      cfg.Logger,
		stopC:       make(chan struct{}),
		doneC:       make(chan struct{}),
	}

	if d.interactive {
		go d.loop(cfg.RefreshInterval)
	} else {
		close(d.doneC)
	}

	return d, nil
}

// Register satisfies progress.Display.
func (d *Display) Register(name string, total int64, style progress.Style) progress.Sink {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := &sink{
		d:       d,
		name:    name,
		total:   total,
		style:   style,
		message: name,
		start:   time.Now(),
	}
	d.sinks = append(d.sinks, s)
	d.logger.Debugf("registered %s sink %q", style, name)
	d.changed(false)

	return s
}

// Close stops the render loop and draws the last state. It's safe to call it multiple times.
func (d *Display) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	if d.interactive {
		close(d.stopC)
		<-d.doneC

		d.mu.Lock()
		d.draw(time.Now())
		d.mu.Unlock()
	}

	return nil
}

func (d *Display) loop(interval time.Duration) {
	defer close(d.doneC)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-d.stopC:
			return
		case now := <-t.C:
			d.mu.Lock()
			for _, s := range d.sinks {
				s.advanceTick(now)
			}
			d.draw(now)
			d.mu.Unlock()
		}
	}
}

// changed must be called with the lock held.
func (d *Display) changed(force bool) {
	if !d.interactive || d.closed {
		return
	}
	if force || d.limiter.Allow() {
		d.draw(time.Now())
	}
}

// draw must be called with the lock held.
func (d *Display) draw(now time.Time) {
	if d.drawnLines > 0 {
		fmt.Fprintf(d.out, ansiMoveUp, d.drawnLines)
	}
	for _, s := range d.sinks {
		fmt.Fprint(d.out, ansiClearLine+d.line(s, now)+"\n")
	}
	d.drawnLines = len(d.sinks)
}

func (d *Display) line(s *sink, now time.Time) string {
	switch {
	case s.abandoned:
		return d.failStyle.Render("✘") + " " + s.message
	case s.finished:
		return d.okStyle.Render("✔") + " " + s.message
	case s.style == progress.StyleSpinner:
		return d.spinStyle.Render(d.frames[s.frame%len(d.frames)]) + " " + s.message
	}

	pct := 0.0
	if s.total > 0 {
		pct = float64(s.position) / float64(s.total)
	}
	if pct > 1 {
		pct = 1
	}

	return fmt.Sprintf("%s %s %s/%s %s",
		d.dimStyle.Render("["+formatElapsed(now.Sub(s.start))+"]"),
		d.bar.ViewAs(pct),
		humanize.Comma(s.position),
		humanize.Comma(s.total),
		s.message,
	)
}

// finalize must be called with the lock held.
func (d *Display) finalize(s *sink) {
	if d.interactive {
		d.changed(true)
		return
	}
	fmt.Fprintln(d.out, d.line(s, time.Now()))
}

// sink is the terminal progress.Sink, all its state is protected by the display lock.
type sink struct {
	d     *Display
	name  string
	style progress.Style
	start time.Time

	total     int64
	position  int64
	message   string
	finished  bool
	abandoned bool

	tickEvery time.Duration
	lastTick  time.Time
	frame     int
}

func (s *sink) SetTotal(n int64) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.total = n
	s.d.changed(false)
}

func (s *sink) SetPosition(n int64) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.position = n
	s.d.changed(false)
}

func (s *sink) Inc(n int64) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.position += n
	s.d.changed(false)
}

func (s *sink) SetMessage(msg string) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.message = msg
	s.d.changed(false)
}

func (s *sink) FinishWithMessage(msg string) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if s.finished {
		return
	}
	s.message = msg
	s.finished = true
	s.d.finalize(s)
}

func (s *sink) AbandonWithMessage(msg string) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if s.finished {
		return
	}
	s.message = msg
	s.finished = true
	s.abandoned = true
	s.d.finalize(s)
}

func (s *sink) EnableTick(interval time.Duration) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.tickEvery = interval
	s.lastTick = time.Now()
}

// advanceTick must be called with the display lock held.
func (s *sink) advanceTick(now time.Time) {
	if s.tickEvery <= 0 || s.finished {
		return
	}
	if now.Sub(s.lastTick) >= s.tickEvery {
		s.frame++
		s.lastTick = now
	}
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}
