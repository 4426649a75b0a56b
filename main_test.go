package main

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/spaghettifunk/lumen/engine/core"
)

func TestLogRunErrorKeepsPercentSigns(t *testing.T) {
	var buf bytes.Buffer
	core.SetLogOutput(&buf)
	t.Cleanup(func() { core.SetLogOutput(os.Stderr) })

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain", errors.New("open /tmp/100%d/lumen.toml: denied"), "engine stopped: open /tmp/100%d/lumen.toml: denied"},
		{"fatal", core.Fatal("load /tmp/50%s.spv", errors.New("bad")), "fatal: load /tmp/50%s.spv: bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			logRunError(tt.err)
			out := buf.String()
			if !strings.Contains(out, tt.want) {
				t.Fatalf("log output %q does not contain %q", out, tt.want)
			}
			if strings.Contains(out, "%!") || strings.Contains(out, "fatal: fatal") {
				t.Fatalf("log output %q was formatted as a format string", out)
			}
		})
	}
}
