package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/kataras/golog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"off":     LevelNone,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestGologLogger_WritesFormattedMessages(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: LevelDebug, Output: &buf})
	require.NoError(t, err)

	l.Info("ingested %d chunks", 42)
	l.Debug("session %s", "abc")

	out := buf.String()
	assert.Contains(t, out, "ingested 42 chunks")
	assert.Contains(t, out, "session abc")
}

func TestGologLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: LevelError, Output: &buf})
	require.NoError(t, err)

	l.Debug("hidden debug")
	l.Info("hidden info")
	l.Warn("hidden warn")
	l.Error("visible error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible error")
}

func TestGologLogger_SetLevel(t *testing.T) {
	l := NewGologLogger(golog.New(), LevelInfo)
	assert.Equal(t, LevelInfo, l.GetLevel())

	l.SetLevel(LevelNone)
	assert.Equal(t, LevelNone, l.GetLevel())
}

func TestNew_WritesTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer

	l, err := New(Options{Level: LevelInfo, Dir: dir, File: true, Output: &buf})
	require.NoError(t, err)

	l.Info("to file")
	require.NoError(t, l.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^\d{4}_\d{2}_\d{2}_\d{2}_\d{2}_\d{2}\.log$`, entries[0].Name())
}

func TestNop(t *testing.T) {
	l := OrNop(nil)
	l.Info("nothing %d", 1)
	assert.NotNil(t, l)
}
