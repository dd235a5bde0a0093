package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
		"":        InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNamedSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := New(&buf, "XUIHUB", InfoLevel)
	child := root.Named("panel")

	child.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("Expected debug output to be filtered, got %q", buf.String())
	}

	root.SetLevel(DebugLevel)
	child.Debug("visible %d", 1)

	out := buf.String()
	if !strings.Contains(out, "XUIHUB:panel [DEBUG] visible 1") {
		t.Errorf("Unexpected log output: %q", out)
	}
}
