package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yareviews/pkg/config"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: make(map[string]interface{})}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "loud"}, wantErr: true},
		{
			name: "rotating file output",
			cfg: &config.LoggingConfig{
				Level:      "info",
				File:       filepath.Join(t.TempDir(), "logs", "yareviews.log"),
				MaxSize:    1,
				MaxBackups: 2,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	l, err := New(&config.LoggingConfig{Level: "info", File: path, MaxSize: 1})
	require.NoError(t, err)

	l.WithField("org_id", int64(42)).Info("extraction started")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "extraction started")
	assert.Contains(t, string(data), `"org_id":42`)
	assert.Contains(t, string(data), `"app":"yareviews"`)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.WithField("session", "abc").
		WithFields(map[string]interface{}{"ordinal": 3, "skipped": true}).
		Warn("item not located")

	out := buf.String()
	assert.Contains(t, out, "item not located")
	assert.Contains(t, out, `"session":"abc"`)
	assert.Contains(t, out, `"ordinal":3`)
	assert.Contains(t, out, `"skipped":true`)
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("tab crashed")).Error("navigation failed")
	assert.Contains(t, buf.String(), "tab crashed")
}

func TestStructuredFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.InfoWithFields("typed", map[string]interface{}{
		"duration": 1500 * time.Millisecond,
		"rating":   4.5,
		"ids":      []int{1, 2},
	})

	out := buf.String()
	assert.Contains(t, out, `"rating":4.5`)
	assert.Contains(t, out, `"ids":[1,2]`)
}

func TestHelpersWithTestLogger(t *testing.T) {
	tl := NewTestLogger()

	LogExtraction(tl, 456, "all", 3, time.Second, nil)
	LogExtraction(tl, 123, "all", 0, time.Second, errors.New("possible block detected"))
	LogRotation(tl, "old", "new", "transport fault")
	LogComponentStart(tl, "worker", map[string]interface{}{"id": 1})
	LogComponentStop(tl, "worker", "done")

	assert.True(t, tl.HasMessage("Extraction completed"))
	warns := tl.GetMessagesByLevel("WARN")
	require.Len(t, warns, 1)
	assert.EqualError(t, warns[0].Error, "possible block detected")
	assert.Equal(t, int64(123), warns[0].Fields["org_id"])
	assert.True(t, tl.HasMessage("Session rotated"))
	assert.Len(t, tl.GetMessages(), 5)

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestTestLoggerScopesShareSink(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("a", 1).WithError(errors.New("boom"))
	child.Info("from child")
	tl.Info("from root")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, 1, msgs[0].Fields["a"])
	assert.Error(t, msgs[0].Error)
	assert.Nil(t, msgs[1].Error)
	assert.Contains(t, tl.String(), "[INFO] from root")
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "disabled"}))
	assert.NotNil(t, GetLogger())

	assert.NotPanics(t, func() {
		Debug("debug")
		Info("info")
		WithField("k", "v").Info("field")
		WithError(errors.New("x")).Warn("error")
	})
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.WithField("a", 1).WithError(errors.New("x")).Info("dropped")
	})
	assert.NotNil(t, l.GetZerolog())
}
