package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0.00s"},
		{50 * time.Millisecond, "0.05s"},
		{1200 * time.Millisecond, "1.2s"},
		{59 * time.Second, "59.0s"},
		{123 * time.Second, "2m3.0s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.d))
		})
	}
}

func TestSpinner_NotATerminal(t *testing.T) {
	DisableColors()

	var buf bytes.Buffer
	s := NewSpinner("Connecting to gpu-1", &buf)
	assert.Equal(t, SpinnerPending, s.State())
	assert.Zero(t, s.Elapsed())

	s.Start()
	assert.Equal(t, SpinnerInProgress, s.State())
	assert.Empty(t, buf.String(), "no animation frames without a terminal")

	s.SetLabel("Connected to gpu-1")
	s.Success()

	assert.Equal(t, SpinnerSuccess, s.State())
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "● Connected to gpu-1 "), out)
	assert.True(t, strings.HasSuffix(out, "s\n"), out)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestSpinner_FinalStates(t *testing.T) {
	DisableColors()

	tests := []struct {
		name   string
		finish func(*Spinner)
		state  SpinnerState
		symbol string
	}{
		{"fail", (*Spinner).Fail, SpinnerFailed, SymbolFail},
		{"skip", (*Spinner).Skip, SpinnerSkipped, SymbolSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			s := NewSpinner("Sync", &buf)
			s.Start()
			tt.finish(s)

			assert.Equal(t, tt.state, s.State())
			assert.True(t, strings.HasPrefix(buf.String(), tt.symbol+" Sync "))
		})
	}
}

func TestSpinner_StopIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("x", &buf)
	s.Stop()
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
	assert.Equal(t, SpinnerInProgress, s.State())
}
