package tui

import (
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handiism/spritefetch/internal/config"
	"github.com/handiism/spritefetch/internal/download"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model
}

func TestNewModel_State(t *testing.T) {
	settings := config.DefaultSettings()

	assert.Equal(t, StateInput, NewModel(settings, nil).state)
	assert.Equal(t, StateInitializing, NewModel(settings, []string{"a.csv"}).state)
}

func TestModel_CycleStrategy(t *testing.T) {
	settings := config.DefaultSettings()
	m := NewModel(settings, nil)

	var seen []string
	for range config.Strategies {
		m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
		seen = append(seen, settings.Strategy)
	}
	assert.ElementsMatch(t, config.Strategies, seen)
	assert.Equal(t, "threads", settings.Strategy, "a full cycle returns to the start")
}

func TestModel_Logs(t *testing.T) {
	m := NewModel(config.DefaultSettings(), nil)

	m = update(t, m, ProgressMsg{Event: download.ProgressEvent{Message: "quiet", Level: download.LevelVerbose}})
	assert.Empty(t, m.logs)

	for i := range maxLogs + 5 {
		m = update(t, m, ProgressMsg{Event: download.ProgressEvent{Message: fmt.Sprint(i), Level: download.LevelError}})
	}
	require.Len(t, m.logs, maxLogs)
	assert.Equal(t, fmt.Sprint(maxLogs+4), m.logs[maxLogs-1].Message)
}

func TestModel_DownloadDone(t *testing.T) {
	m := NewModel(config.DefaultSettings(), []string{"a.csv"})
	summary := &download.Summary{Total: 2, Stored: 1, Failed: 1, Elapsed: time.Second}

	m = update(t, m, DownloadDoneMsg{Summary: summary})
	assert.Equal(t, StateComplete, m.state)
	assert.Contains(t, m.View(), "Stored: 1")

	m.cancel()
	m = update(t, m, DownloadDoneMsg{Summary: summary})
	assert.Equal(t, StateError, m.state)
	assert.ErrorIs(t, m.err, errCancelled)
}

func TestModel_InitFailure(t *testing.T) {
	m := NewModel(config.DefaultSettings(), []string{"a.csv"})
	m = update(t, m, InitDoneMsg{Err: download.ErrSetup})

	assert.Equal(t, StateError, m.state)
	assert.Contains(t, m.View(), download.ErrSetup.Error())
}

func TestModel_WindowSize(t *testing.T) {
	m := NewModel(config.DefaultSettings(), nil)

	m = update(t, m, tea.WindowSizeMsg{Width: 200, Height: 40})
	assert.Equal(t, 80, m.progress.Width)

	m = update(t, m, tea.WindowSizeMsg{Width: 10, Height: 40})
	assert.Equal(t, 20, m.progress.Width)
}

func TestNextStrategy(t *testing.T) {
	assert.Equal(t, "processes", nextStrategy("threads"))
	assert.Equal(t, "sequential", nextStrategy("async"))
	assert.Equal(t, "sequential", nextStrategy("unknown"))
}
