package irgen

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/broady/concord/concordgen/ir"
)

const testSchema = `{"definitions":{
	"Role":{"type":"string","enum":["admin"]},
	"Test":{"type":"object","properties":{
		"bar":{"type":"object","properties":{
			"params":{"type":"object","properties":{"a":{"type":"number"}},"required":["a"]},
			"returns":{"type":"string"}}}}}}}`

func setup(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api.json")
	if err := os.WriteFile(path, []byte(testSchema), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRun_Stdout(t *testing.T) {
	var out bytes.Buffer
	cmd := &Cmd{Schema: setup(t), SpecFile: "service.json"}
	if err := cmd.run(context.Background(), &out, quiet); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	var spec ir.ServiceSpec
	if err := json.Unmarshal(out.Bytes(), &spec); err != nil {
		t.Fatalf("stdout is not a ServiceSpec: %v\n%s", err, out.String())
	}
	if spec.FindClass("Test") == nil || len(spec.Enums) != 1 {
		t.Errorf("spec = %+v", spec)
	}
}

func TestRun_Dir(t *testing.T) {
	outDir := t.TempDir()
	var out bytes.Buffer
	cmd := &Cmd{Schema: setup(t), Out: outDir, SpecFile: "api.ir.json", Strict: true}
	if err := cmd.run(context.Background(), &out, quiet); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "api.ir.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Error("written IR is not JSON")
	}
	if !strings.Contains(out.String(), "1 classes, 0 exceptions, 1 enums") {
		t.Errorf("summary = %q", out.String())
	}
}

func TestRun_MissingFile(t *testing.T) {
	cmd := &Cmd{Schema: filepath.Join(t.TempDir(), "nope.json"), SpecFile: "service.json"}
	if err := cmd.run(context.Background(), io.Discard, quiet); err == nil {
		t.Error("expected error for missing schema")
	}
}
