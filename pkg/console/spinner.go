package console

import (
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/grammatic/grammatic/pkg/styles"
	"github.com/grammatic/grammatic/pkg/tty"
)

// Spinner shows progress on stderr while a long external tool runs. On a
// non-interactive stderr it does nothing, so callers need not check.
type Spinner struct {
	message string
	enabled bool

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewSpinner creates a spinner with the given message. Call Start and Stop.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		enabled: tty.IsStderrTerminal() && !IsAccessibleMode(),
	}
}

// IsAccessibleMode reports whether animations should be suppressed.
func IsAccessibleMode() bool {
	return os.Getenv("ACCESSIBLE") != "" || os.Getenv("TERM") == "dumb" || os.Getenv("NO_COLOR") != ""
}

// Start begins animating.
func (s *Spinner) Start() {
	if !s.enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.program != nil {
		return
	}

	model := spinnerModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Info)),
		message: s.message,
	}
	s.program = tea.NewProgram(model, tea.WithOutput(os.Stderr), tea.WithInput(nil), tea.WithoutSignalHandler())
	s.done = make(chan struct{})

	go func(p *tea.Program, done chan struct{}) {
		_, _ = p.Run()
		close(done)
	}(s.program, s.done)
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.program == nil {
		return
	}
	s.program.Quit()
	<-s.done
	s.program = nil
	// the renderer leaves its last frame behind
	fmt.Fprint(os.Stderr, "\r\033[K")
}

type spinnerModel struct {
	spinner spinner.Model
	message string
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m spinnerModel) View() string {
	return m.spinner.View() + " " + m.message
}
