package irgen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/broady/concord/concordgen"
)

type Cmd struct {
	Schema   string `arg:"" type:"existingfile" help:"Schema file (.json, .yaml or .yml)."`
	Out      string `help:"Output directory. Prints to stdout when empty." short:"o"`
	SpecFile string `help:"File name of the IR inside the output directory." default:"service.json" name:"spec-file"`
	Strict   bool   `help:"Fail when the IR has structural problems."`
}

func (c *Cmd) Run() error {
	return c.run(context.Background(), os.Stdout, slog.Default())
}

func (c *Cmd) run(ctx context.Context, stdout io.Writer, logger *slog.Logger) error {
	gen, err := concordgen.FromFile(c.Schema)
	if err != nil {
		return err
	}
	gen = gen.WithLogger(logger).SpecFile(c.SpecFile)
	if c.Strict {
		gen = gen.Strict()
	}

	if c.Out == "" {
		data, err := gen.Marshal()
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	}

	spec, err := gen.ToDir(ctx, c.Out)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✓ wrote %s/%s: %d classes, %d exceptions, %d enums, %d aliases\n",
		c.Out, c.SpecFile, len(spec.Classes), len(spec.Exceptions), len(spec.Enums), len(spec.BypassTypes))
	for _, w := range spec.Warnings {
		fmt.Fprintf(stdout, "! %s: %s\n", w.Code, w.Message)
	}
	return nil
}
