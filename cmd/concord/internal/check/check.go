package check

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/broady/concord/concordgen/schema"
	"github.com/broady/concord/validate"
)

type Cmd struct {
	Schemas []string `arg:"" type:"existingfile" help:"Schema files to check."`
	Strip   bool     `help:"Compile validators with the strip policy for unknown properties."`
}

func (c *Cmd) Run() error {
	return c.run(os.Stdout, slog.Default())
}

type result struct {
	classes, methods, warnings int
	err                        error
}

func (c *Cmd) run(stdout io.Writer, logger *slog.Logger) error {
	opts := validate.DefaultOptions()
	opts.Logger = logger
	if c.Strip {
		opts.Additional = validate.Strip
	}

	// Each file is checked independently; one failure does not stop the rest.
	results := make([]result, len(c.Schemas))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range c.Schemas {
		g.Go(func() error {
			results[i] = checkFile(path, opts)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for i, r := range results {
		path := c.Schemas[i]
		if r.err != nil {
			fmt.Fprintf(stdout, "✗ %s: %v\n", path, r.err)
			errs = append(errs, fmt.Errorf("%s: %w", path, r.err))
			continue
		}
		fmt.Fprintf(stdout, "✓ %s: %d services, %d methods, %d warnings\n", path, r.classes, r.methods, r.warnings)
	}
	return errors.Join(errs...)
}

func checkFile(path string, opts validate.Options) result {
	doc, err := schema.Load(path)
	if err != nil {
		return result{err: err}
	}
	table, err := validate.NewTable(doc, opts)
	if err != nil {
		return result{err: err}
	}
	r := result{warnings: len(table.Spec().Warnings)}
	for _, name := range table.Classes() {
		c, _ := table.Class(name)
		r.classes++
		r.methods += len(c.Methods())
	}
	return r
}
