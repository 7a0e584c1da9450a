package tui

import (
	"bytes"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/JaimeStill/rapport/internal/batch"
	"github.com/JaimeStill/rapport/internal/reviews"
)

func TestModelProgress(t *testing.T) {
	m := New("reviews.csv", 4, func() {})

	next, _ := m.Update(ProgressMsg(batch.Progress{
		Submitted:    4,
		Completed:    2,
		Processed:    2,
		MessagesSent: 1,
		Last: &batch.OutcomeDigest{
			RecordID:    uuid.New(),
			Customer:    "Ada",
			Status:      reviews.StatusProcessed,
			Disposition: reviews.DispositionResponded,
		},
	}))
	m = next.(Model)

	view := m.View()
	if !strings.Contains(view, "2/4") {
		t.Errorf("view missing count:\n%s", view)
	}
	if !strings.Contains(view, "Ada") {
		t.Errorf("view missing recent outcome:\n%s", view)
	}
	if !strings.Contains(view, "ctrl+c to cancel") {
		t.Errorf("view missing footer:\n%s", view)
	}
}

func TestModelRecentIsBounded(t *testing.T) {
	m := New("batch", 10, nil)
	for i := range 8 {
		next, _ := m.Update(ProgressMsg(batch.Progress{
			Submitted: 10,
			Completed: i + 1,
			Last:      &batch.OutcomeDigest{Customer: "c", Disposition: reviews.DispositionNoResponse},
		}))
		m = next.(Model)
	}

	if len(m.recent) != 5 {
		t.Errorf("recent = %d, want 5", len(m.recent))
	}
}

func TestModelCancelOnce(t *testing.T) {
	calls := 0
	m := New("batch", 3, func() { calls++ })

	for range 2 {
		next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		m = next.(Model)
		if cmd != nil {
			t.Error("cancel must not quit before the result arrives")
		}
	}

	if calls != 1 {
		t.Errorf("cancel calls = %d, want 1", calls)
	}
	if !strings.Contains(m.View(), "cancelling") {
		t.Error("view does not show cancelling state")
	}
}

func TestModelDone(t *testing.T) {
	m := New("batch", 1, func() {})
	res := &batch.Result{Submitted: 1, Completed: 1}

	next, cmd := m.Update(DoneMsg{Result: res})
	m = next.(Model)

	if m.Result() != res {
		t.Error("result not recorded")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestRun(t *testing.T) {
	var out bytes.Buffer
	res, err := Run("batch", 2, func() {}, func(onProgress func(batch.Progress)) *batch.Result {
		onProgress(batch.Progress{Submitted: 2, Completed: 1})
		onProgress(batch.Progress{Submitted: 2, Completed: 2})
		return &batch.Result{Submitted: 2, Completed: 2, Processed: 2}
	}, tea.WithInput(nil), tea.WithOutput(&out), tea.WithoutRenderer())

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res == nil || res.Processed != 2 {
		t.Errorf("result = %+v", res)
	}
}
