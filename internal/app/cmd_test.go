package app

import (
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		args []string
		want Command
	}{
		{nil, CommandServe},
		{[]string{"serve"}, CommandServe},
		{[]string{"worker"}, CommandWorker},
		{[]string{"migrate"}, CommandMigrate},
		{[]string{"healthcheck"}, CommandHealthcheck},
		// 2番目以降の引数は無視する
		{[]string{"worker", "--flag", "value"}, CommandWorker},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.args)
		if err != nil {
			t.Errorf("ParseCommand(%v) returned error: %v", tt.args, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestParseCommand_Unknown(t *testing.T) {
	_, err := ParseCommand([]string{"deploy"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), `"deploy"`) || !strings.Contains(err.Error(), "usage:") {
		t.Errorf("error should name the command and include usage: %v", err)
	}
}

func TestUsage_ListsAllCommands(t *testing.T) {
	usage := Usage()
	for c := range commands {
		if !strings.Contains(usage, string(c)) {
			t.Errorf("usage should list %q", c)
		}
	}
	// アルファベット順に並ぶ
	if strings.Index(usage, "healthcheck") > strings.Index(usage, "worker") {
		t.Error("commands should be sorted")
	}
}
