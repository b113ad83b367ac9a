package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })
	return &buf
}

func TestNonTerminalOutputIsPlain(t *testing.T) {
	buf := captureOutput(t)

	PrintError("Extraction failed", "page not found")
	PrintInfo("Workers", "2")

	assert.Equal(t, "Extraction failed: page not found\nWorkers: 2\n", buf.String())
	assert.NotContains(t, buf.String(), "\033[")
}

func TestPrettyJSON(t *testing.T) {
	yes, no := true, false
	assert.True(t, PrettyJSON(nil, &yes))
	assert.False(t, PrettyJSON(os.Stdout, &no))

	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	assert.False(t, PrettyJSON(f, nil), "regular files are not terminals")
}

func TestStatusTracker(t *testing.T) {
	st := NewStatusTracker(4)
	assert.Equal(t, "[░░░░░░░░░░░░░░░░░░░░] 0/4", st.GetProgress())

	st.Record(false, false)
	st.Record(true, false)
	st.Record(false, true)

	assert.Equal(t, 3, st.Done())
	assert.Equal(t, "[███████████████░░░░░] 3/4", st.GetProgress())
	assert.True(t, strings.HasPrefix(st.Summary(), "ok: 1 | failed: 1 | skipped: 1"))

	buf := captureOutput(t)
	st.PrintProgress(123, "ok")
	assert.Contains(t, buf.String(), "3/4 123 ok")
}

func TestStatusTrackerEmptyBatch(t *testing.T) {
	st := NewStatusTracker(0)
	assert.Equal(t, "[░░░░░░░░░░░░░░░░░░░░] 0/0", st.GetProgress())
}
