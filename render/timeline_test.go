package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/genaistack/chat"
)

func TestTimeline_Render(t *testing.T) {
	tl := NewTimeline(&bytes.Buffer{})
	at := time.Date(2026, 2, 3, 12, 0, 1, 0, time.UTC)

	out := tl.Render([]chat.LogEntry{
		{StepName: "Query Processing", Status: chat.StatusStarted, Message: "Received query", Timestamp: at},
		{StepName: "LLM Generation", Status: chat.StatusCompleted, Message: "Response generated", Metadata: map[string]any{"duration_ms": 1250.0}},
		{StepName: "Web Search", Status: chat.StatusError, Message: "SerpAPI key missing"},
		{StepName: "Queue", Status: chat.Status("queued")},
	})

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 4)

	assert.True(t, strings.HasPrefix(lines[0], "12:00:01 ▶ started"))
	assert.Contains(t, lines[0], "Query Processing")
	assert.Contains(t, lines[0], "Received query")
	assert.NotContains(t, lines[0], "ms)")

	assert.True(t, strings.HasPrefix(lines[1], "✓ completed"))
	assert.True(t, strings.HasSuffix(lines[1], "Response generated (1250ms)"))

	assert.True(t, strings.HasPrefix(lines[2], "✗ error"))
	assert.True(t, strings.HasPrefix(lines[3], "? queued"))

	// Step names are padded to a common column.
	assert.Equal(t, strings.Index(lines[1], "LLM Generation"), strings.Index(lines[2], "Web Search"))
}

func TestTimeline_Empty(t *testing.T) {
	assert.Empty(t, NewTimeline(&bytes.Buffer{}).Render(nil))
	assert.Empty(t, LogTimeline(nil))
}
