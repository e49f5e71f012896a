package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, slog.LevelError, LevelFatal.Slog())
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo, Service: "gradebook"})

	log.Debug("hidden")
	log.With(Term("1141")).Info("finalized", Int("updated", 3), Err(errors.New("x")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "gradebook", entry.Service)
	assert.Equal(t, "finalized", entry.Message)
	assert.Equal(t, "1141", entry.Fields["term"])
	assert.EqualValues(t, 3, entry.Fields["updated"])
	assert.Equal(t, "x", entry.Fields["error"])
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelDebug, Format: ParseFormat("TEXT")})

	log.Warn("weights rejected", Term("1141"), Slot("quiz1"))

	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "weights rejected slot=quiz1 term=1141")
}

func TestLogger_WithDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Options{Output: &buf, Level: LevelInfo})
	_ = parent.With(StudentID("stu_1"))

	parent.Info("plain")
	assert.NotContains(t, buf.String(), "student_id")
}

func TestLogger_Fatal(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo})
	code := 0
	log.exit = func(c int) { code = c }

	log.Fatal("boom")
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "FATAL")
}

func TestContext(t *testing.T) {
	log := Discard()
	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
