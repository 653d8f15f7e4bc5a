package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/bikepaths/internal/client"
)

const pollInterval = time.Second

// phases in the order a run reports them.
var phases = []string{"extract", "transform", "load", "snapshot"}

type pollMsg time.Time

type jobMsg struct {
	job *client.Job
	err error
}

// jobWatcher follows a server-side run until it finishes or the user detaches.
type jobWatcher struct {
	client   *client.Client
	job      *client.Job
	bar      progress.Model
	theme    Theme
	detached bool
	err      error
}

func newJobWatcher(c *client.Client, job *client.Job) jobWatcher {
	return jobWatcher{
		client: c,
		job:    job,
		bar:    progress.New(progress.WithDefaultBlend(), progress.WithWidth(40)),
		theme:  defaultTheme,
	}
}

func (m jobWatcher) Init() tea.Cmd {
	return tea.Batch(poll(), m.bar.Init())
}

func (m jobWatcher) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		if s := msg.String(); s == "ctrl+c" || s == "q" {
			m.detached = true
			return m, tea.Quit
		}

	case pollMsg:
		return m, m.fetch()

	case jobMsg:
		switch {
		case msg.err != nil:
			m.err = fmt.Errorf("failed to fetch job status: %w", msg.err)
			return m, tea.Quit
		case msg.job == nil:
			m.err = fmt.Errorf("job %s no longer known to the server", m.job.ID)
			return m, tea.Quit
		}
		m.job = msg.job
		if m.job.Done() {
			if m.job.Status == "failed" {
				m.err = errors.New(m.job.Error)
			}
			return m, tea.Quit
		}
		return m, poll()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.bar, cmd = m.bar.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m jobWatcher) View() tea.View {
	var b strings.Builder
	switch {
	case m.detached:
		b.WriteString(m.theme.hintStyle().Render(fmt.Sprintf(
			"\nJob %s continues in background.\nUse 'bikepaths jobs %s' to check status.\n", m.job.ID, m.job.ID)))
	case m.err != nil:
		b.WriteString(m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Job failed: %s\n", m.err)))
	case m.job.Done():
		m.writeResult(&b)
	default:
		m.writePhases(&b)
	}
	return tea.NewView(b.String())
}

// writePhases renders one line per phase: done, current (with a bar during
// load) or pending.
func (m jobWatcher) writePhases(b *strings.Builder) {
	current := indexOf(phases, m.job.Phase)
	for i, phase := range phases {
		switch {
		case i < current:
			fmt.Fprintf(b, "  %s %s\n", m.theme.completedStyle().Render("✓"), phase)
		case i == current:
			line := fmt.Sprintf("  %s %-10s", m.theme.statusStyle().Render("▸"), phase)
			if m.job.Total > 0 {
				pct := float64(m.job.Progress) / float64(m.job.Total)
				line += fmt.Sprintf(" %s %d/%d", m.bar.ViewAs(pct), m.job.Progress, m.job.Total)
			}
			b.WriteString(line + "\n")
		default:
			fmt.Fprintf(b, "  %s\n", m.theme.hintStyle().Render("· "+phase))
		}
	}
	b.WriteString(m.theme.hintStyle().Render("Press Ctrl+C to continue in background") + "\n")
}

func (m jobWatcher) writeResult(b *strings.Builder) {
	b.WriteString(m.theme.completedStyle().Render("✓ Completed") + "\n")
	s := m.job.Summary
	if s == nil {
		return
	}
	fmt.Fprintf(b, "\n  processed %d, rejected %d, inserted %d, updated %d\n",
		s.RecordsProcessed, s.RecordsRejected, s.RecordsInserted, s.RecordsUpdated)
	if s.RecordsFailed > 0 {
		b.WriteString(m.theme.errorStyle().Render(fmt.Sprintf("\nWrite errors (%d):\n", s.RecordsFailed)))
		for _, e := range s.Load.Errors {
			fmt.Fprintf(b, "  • %s: %s\n", e.ID, e.Message)
		}
	}
}

// fetch polls the server off the update loop.
func (m jobWatcher) fetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		job, err := m.client.GetJob(ctx, m.job.ID)
		return jobMsg{job: job, err: err}
	}
}

func poll() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return 0
}

// RunJobProgress follows job until it completes. Detaching with Ctrl+C is
// not an error; a failed job is.
func RunJobProgress(c *client.Client, job *client.Job) error {
	final, err := tea.NewProgram(newJobWatcher(c, job)).Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}
	if m, ok := final.(jobWatcher); ok && !m.detached {
		return m.err
	}
	return nil
}
