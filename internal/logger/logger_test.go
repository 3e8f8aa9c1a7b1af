package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

// lastEntry は出力された最後のJSONログ行をデコードする。
func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &entry); err != nil {
		t.Fatalf("failed to parse JSON log line: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func TestSetup_WritesServiceTaggedJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, slog.LevelInfo).Warn("session refresh failed", slog.String("user_id", "u1"))

	entry := lastEntry(t, &buf)
	want := map[string]any{
		"msg":     "session refresh failed",
		"level":   "WARN",
		"user_id": "u1",
		"service": "hagwonmatch",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected time field")
	}
}

func TestSetup_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, slog.LevelWarn).Info("dropped")

	if buf.Len() != 0 {
		t.Errorf("expected no output below level, got %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupDefault_HonorsLogLevelEnv(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Setenv("LOG_LEVEL", "debug")
	var buf bytes.Buffer
	SetupDefault(&buf)

	slog.Debug("auth event", slog.String("kind", "SIGNED_IN"))

	entry := lastEntry(t, &buf)
	if entry["level"] != "DEBUG" || entry["kind"] != "SIGNED_IN" {
		t.Errorf("entry = %v", entry)
	}
}
