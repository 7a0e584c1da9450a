// Package tui renders a live progress view for a batch run in the terminal.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/JaimeStill/rapport/internal/batch"
	"github.com/JaimeStill/rapport/internal/reviews"
)

const barWidth = 48

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).Italic(true)
)

// ProgressMsg carries a progress update from the coordinator.
type ProgressMsg batch.Progress

// DoneMsg carries the final result once the coordinator returns.
type DoneMsg struct {
	Result *batch.Result
}

// Model is the bubbletea model of a running batch.
type Model struct {
	title      string
	bar        progress.Model
	progress   batch.Progress
	recent     []batch.OutcomeDigest
	cancel     func()
	cancelling bool
	result     *batch.Result
}

// New creates a Model for a batch of submitted reviews. cancel is invoked
// on the first ctrl+c or q; the view keeps running until the coordinator
// reports the final result.
func New(title string, submitted int, cancel func()) Model {
	return Model{
		title:    title,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
		progress: batch.Progress{Submitted: submitted},
		cancel:   cancel,
	}
}

// Result returns the final batch result, or nil while running.
func (m Model) Result() *batch.Result {
	return m.result
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.cancelling && m.cancel != nil {
				m.cancelling = true
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-4, 10), barWidth)
		return m, nil

	case ProgressMsg:
		m.progress = batch.Progress(msg)
		if last := msg.Last; last != nil {
			m.recent = append(m.recent, *last)
			if len(m.recent) > 5 {
				m.recent = m.recent[len(m.recent)-5:]
			}
		}
		return m, nil

	case DoneMsg:
		m.result = msg.Result
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	p := m.progress

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(p.Fraction()))
	fmt.Fprintf(&b, "  %d/%d\n\n", p.Completed, p.Submitted)

	fmt.Fprintf(&b, "%s %s   %s %s   %s %s   %s %s\n",
		labelStyle.Render("processed"), okStyle.Render(fmt.Sprint(p.Processed)),
		labelStyle.Render("sent"), okStyle.Render(fmt.Sprint(p.MessagesSent)),
		labelStyle.Render("classification failed"), failStyle.Render(fmt.Sprint(p.ClassificationFailed)),
		labelStyle.Render("dispatch failed"), failStyle.Render(fmt.Sprint(p.DispatchFailed)),
	)
	fmt.Fprintf(&b, "%s %s\n",
		labelStyle.Render("elapsed"), mutedStyle.Render(p.Elapsed.Truncate(100*time.Millisecond).String()))

	if len(m.recent) > 0 {
		b.WriteString("\n")
		for _, d := range m.recent {
			fmt.Fprintf(&b, "  %s %s\n", dispositionLabel(d.Disposition), mutedStyle.Render(d.Customer))
		}
	}

	b.WriteString("\n")
	switch {
	case m.result != nil:
		b.WriteString(okStyle.Render("done"))
	case m.cancelling:
		b.WriteString(warnStyle.Render("cancelling: waiting for in-flight reviews"))
	default:
		b.WriteString(footerStyle.Render("ctrl+c to cancel"))
	}
	b.WriteString("\n")

	return b.String()
}

func dispositionLabel(d reviews.Disposition) string {
	text := fmt.Sprintf("%-16s", d)
	switch d {
	case reviews.DispositionResponded:
		return okStyle.Render(text)
	case reviews.DispositionNoResponse:
		return mutedStyle.Render(text)
	case reviews.DispositionUnanalyzed:
		return warnStyle.Render(text)
	default:
		return failStyle.Render(text)
	}
}

// Run executes start under a live progress view. start receives the
// progress callback to hand to the coordinator and must return the final
// result.
func Run(title string, submitted int, cancel func(), start func(onProgress func(batch.Progress)) *batch.Result, opts ...tea.ProgramOption) (*batch.Result, error) {
	p := tea.NewProgram(New(title, submitted, cancel), opts...)

	done := make(chan *batch.Result, 1)
	go func() {
		res := start(func(pr batch.Progress) {
			p.Send(ProgressMsg(pr))
		})
		done <- res
		p.Send(DoneMsg{Result: res})
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		return <-done, fmt.Errorf("progress view: %w", err)
	}

	if m, ok := final.(Model); ok && m.result != nil {
		return m.result, nil
	}
	return <-done, nil
}
