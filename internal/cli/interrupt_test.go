package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestNewInterruptHandler(t *testing.T) {
	tests := []struct {
		writer io.Writer
		name   string
	}{
		{
			name:   "with custom writer",
			writer: &bytes.Buffer{},
		},
		{
			name:   "with nil writer",
			writer: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewInterruptHandler(tt.writer)
			assert.NotNil(t, handler)
			assert.NotNil(t, handler.writer)
			assert.False(t, handler.interrupted)
		})
	}
}

func signalHandler(t *testing.T, handler *InterruptHandler) {
	t.Helper()
	handler.mu.Lock()
	sigChan := handler.sigChan
	handler.mu.Unlock()
	require.NotNil(t, sigChan)
	sigChan <- os.Interrupt
}

func TestHandleInterrupts(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	ctx := handler.HandleInterrupts(context.Background(), "Server", "In-flight requests were drained")

	select {
	case <-ctx.Done():
		t.Fatal("Context should not be canceled initially")
	default:
	}

	signalHandler(t, handler)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Context should be canceled after a signal")
	}

	assert.Eventually(t, handler.WasInterrupted, time.Second, 10*time.Millisecond)
	outputStr := output.String()
	assert.Contains(t, outputStr, "Server interrupted!")
	assert.Contains(t, outputStr, "In-flight requests were drained")
	assert.Contains(t, outputStr, "See you later!")
}

func TestHandleInterrupts_ParentCanceled(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	parent, cancel := context.WithCancel(context.Background())
	ctx := handler.HandleInterrupts(parent, "Analysis", "")
	cancel()

	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)

	assert.False(t, handler.WasInterrupted(), "a canceled parent is not an interrupt")
	assert.Empty(t, output.String())
}

func TestShowInterruptMessage(t *testing.T) {
	tests := []struct {
		name        string
		operation   string
		hint        string
		expected    []string
		notExpected []string
	}{
		{
			name:      "with hint",
			operation: "Analysis",
			hint:      "Nothing was saved. Re-run: readiness analyze --save",
			expected: []string{
				"Analysis interrupted!",
				"Nothing was saved",
				"See you later!",
			},
		},
		{
			name:        "without hint or operation",
			expected:    []string{"Operation interrupted!", "See you later!"},
			notExpected: []string{"Re-run"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			handler := &InterruptHandler{
				writer:    &output,
				operation: tt.operation,
				hint:      tt.hint,
			}

			handler.showInterruptMessage()

			outputStr := output.String()
			for _, expected := range tt.expected {
				assert.Contains(t, outputStr, expected)
			}
			for _, notExpected := range tt.notExpected {
				assert.NotContains(t, outputStr, notExpected)
			}
			assert.Equal(t, 1, strings.Count(outputStr, "interrupted!"))
		})
	}
}
