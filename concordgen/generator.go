package concordgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/broady/concord/concordgen/ir"
	"github.com/broady/concord/concordgen/schema"
	"github.com/broady/concord/concordgen/sink"
)

// DefaultSpecFile is the file name ToDir writes the IR to.
const DefaultSpecFile = "service.json"

// Generator provides a fluent API over Build.
//
// Example:
//
//	doc, _ := schema.Load("api.schema.json")
//	concordgen.FromDocument(doc).
//	    WithLogger(logger).
//	    ToDir(ctx, "./gen")
type Generator struct {
	doc      *schema.Document
	logger   *slog.Logger
	specFile string
	validate bool
}

// FromDocument creates a Generator for a parsed schema document.
func FromDocument(doc *schema.Document) *Generator {
	return &Generator{doc: doc, specFile: DefaultSpecFile}
}

// FromFile creates a Generator for a schema file on disk.
func FromFile(path string) (*Generator, error) {
	doc, err := schema.Load(path)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc), nil
}

// WithLogger sets the logger used for diagnostics.
// If not set, slog.Default() will be used.
func (g *Generator) WithLogger(logger *slog.Logger) *Generator {
	g.logger = logger
	return g
}

// SpecFile sets the file name the IR is written under.
func (g *Generator) SpecFile(name string) *Generator {
	g.specFile = name
	return g
}

// Strict makes Build fail when the built IR has structural problems
// (see ir.ServiceSpec.Validate).
func (g *Generator) Strict() *Generator {
	g.validate = true
	return g
}

// Build returns the ServiceSpec.
func (g *Generator) Build() (*ir.ServiceSpec, error) {
	spec, err := build(g.doc, g.logger)
	if err != nil {
		return nil, err
	}
	if g.validate {
		if errs := spec.Validate(); len(errs) > 0 {
			return nil, fmt.Errorf("invalid service spec: %w", errors.Join(errs...))
		}
	}
	return spec, nil
}

// Marshal returns the indented JSON form of the ServiceSpec.
func (g *Generator) Marshal() ([]byte, error) {
	spec, err := g.Build()
	if err != nil {
		return nil, err
	}
	return MarshalSpec(spec)
}

// ToSink builds the ServiceSpec and writes it to out.
func (g *Generator) ToSink(ctx context.Context, out sink.OutputSink) (*ir.ServiceSpec, error) {
	spec, err := g.Build()
	if err != nil {
		return nil, err
	}
	data, err := MarshalSpec(spec)
	if err != nil {
		return nil, err
	}
	if err := out.WriteFile(ctx, g.specFile, data); err != nil {
		return nil, fmt.Errorf("write %s: %w", g.specFile, err)
	}
	return spec, nil
}

// ToDir builds the ServiceSpec and writes it into dir.
func (g *Generator) ToDir(ctx context.Context, dir string) (*ir.ServiceSpec, error) {
	return g.ToSink(ctx, sink.NewFilesystemSink(dir))
}

// MarshalSpec encodes a spec as indented JSON with a trailing newline.
// Equal specs always encode to identical bytes.
func MarshalSpec(spec *ir.ServiceSpec) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(spec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
