package main

import (
	"encoding/json"
	"runtime"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	orig := Version
	Version = "0.1.0-test"
	defer func() { Version = orig }()

	out, err := executeCommand(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	for _, want := range []string{"Hindsight 0.1.0-test", "Go Version: " + runtime.Version()} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := executeCommand(t, "version", "--output", "json")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}

	var info versionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if info.Version != Version || info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("info = %+v", info)
	}
}

func TestVersionCommand_BadOutput(t *testing.T) {
	for _, format := range []string{"csv", "yaml"} {
		if _, err := executeCommand(t, "version", "--output", format); err == nil {
			t.Errorf("version --output %s should fail", format)
		}
	}
}
