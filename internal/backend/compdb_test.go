package backend

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestWriteCompileCommands(t *testing.T) {
	proj := fixtureProject()
	var buf strings.Builder
	if err := WriteCompileCommands(&buf, "/build", proj); err != nil {
		t.Fatal(err)
	}

	var entries []compileCommand
	if err := json.Unmarshal([]byte(buf.String()), &entries); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, buf.String())
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Directory != "/build" {
		t.Errorf("directory = %q", e.Directory)
	}
	if e.File != "main.c" {
		t.Errorf("file = %q", e.File)
	}
	if e.Output != "app.p/main.c.o" {
		t.Errorf("output = %q", e.Output)
	}
	if len(e.Arguments) == 0 || e.Arguments[0] != "gcc" {
		t.Errorf("arguments = %v", e.Arguments)
	}
}
