// Package concordtest loads txtar fixture archives for compiler tests.
//
// A fixture archive holds a schema document plus the expectations for it:
//
//	-- schema.json --      (or schema.yaml)
//	{"definitions": {...}}
//	-- spec.json --        expected IR, compared without the "schema" member
//	{...}
//	-- error --            expected error code, instead of spec.json
//	enum_value
package concordtest

import (
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/broady/concord/concordgen/schema"
)

// Fixture is a parsed txtar archive.
type Fixture struct {
	Name    string
	Comment string
	files   map[string][]byte
}

// Load reads the archive at path.
func Load(t testing.TB, path string) *Fixture {
	t.Helper()
	ar, err := txtar.ParseFile(path)
	if err != nil {
		t.Fatalf("load fixture %s: %v", path, err)
	}
	return fromArchive(strings.TrimSuffix(filepath.Base(path), ".txtar"), ar)
}

// Parse reads an archive from memory.
func Parse(name string, data []byte) *Fixture {
	return fromArchive(name, txtar.Parse(data))
}

// Glob loads every archive matching pattern, in lexical order.
func Glob(t testing.TB, pattern string) []*Fixture {
	t.Helper()
	paths, err := filepath.Glob(pattern)
	if err != nil {
		t.Fatalf("glob %s: %v", pattern, err)
	}
	if len(paths) == 0 {
		t.Fatalf("no fixtures match %s", pattern)
	}
	out := make([]*Fixture, 0, len(paths))
	for _, p := range paths {
		out = append(out, Load(t, p))
	}
	return out
}

func fromArchive(name string, ar *txtar.Archive) *Fixture {
	f := &Fixture{Name: name, Comment: strings.TrimSpace(string(ar.Comment)), files: make(map[string][]byte, len(ar.Files))}
	for _, file := range ar.Files {
		f.files[file.Name] = file.Data
	}
	return f
}

// Has reports whether the archive contains a file.
func (f *Fixture) Has(name string) bool {
	_, ok := f.files[name]
	return ok
}

// File returns the content of a file, failing the test if it is missing.
func (f *Fixture) File(t testing.TB, name string) []byte {
	t.Helper()
	data, ok := f.files[name]
	if !ok {
		t.Fatalf("fixture %s: missing file %q", f.Name, name)
	}
	return data
}

// Document parses the fixture's schema.json or schema.yaml.
func (f *Fixture) Document(t testing.TB) *schema.Document {
	t.Helper()
	var (
		doc *schema.Document
		err error
	)
	switch {
	case f.Has("schema.json"):
		doc, err = schema.Parse(f.files["schema.json"])
	case f.Has("schema.yaml"):
		doc, err = schema.ParseYAML(f.files["schema.yaml"])
	default:
		t.Fatalf("fixture %s: no schema.json or schema.yaml", f.Name)
	}
	if err != nil {
		t.Fatalf("fixture %s: %v", f.Name, err)
	}
	return doc
}

// ErrorCode returns the expected error code, or "" when the fixture expects
// success.
func (f *Fixture) ErrorCode() schema.ErrorCode {
	return schema.ErrorCode(strings.TrimSpace(string(f.files["error"])))
}
