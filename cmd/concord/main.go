package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/broady/concord/cmd/concord/internal/check"
	"github.com/broady/concord/cmd/concord/internal/dev"
	"github.com/broady/concord/cmd/concord/internal/irgen"
)

type CLI struct {
	LogLevel string `help:"Log level for diagnostics." enum:"debug,info,warn,error" default:"warn" name:"log-level"`

	Version VersionCmd `cmd:"" help:"Print version information."`
	IR      irgen.Cmd  `cmd:"" name:"ir" help:"Compile a schema into service.json."`
	Check   check.Cmd  `cmd:"" help:"Compile schemas and their validators without writing files."`
	Dev     dev.Cmd    `cmd:"" help:"Serve a schema's endpoints and devtools for exploration."`
}

// AfterApply installs the default logger before any command runs.
func (c *CLI) AfterApply() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("concord"),
		kong.Description("Compile service schemas and explore their dispatch protocol."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
