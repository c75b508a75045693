package dev

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/broady/concord"
	"github.com/broady/concord/concordgen/schema"
	"github.com/broady/concord/devtools"
	"github.com/broady/concord/middleware"
	"github.com/broady/concord/validate"
)

type Cmd struct {
	Schema string `arg:"" type:"existingfile" help:"Schema file to serve."`
	Port   int    `help:"Port to listen on." default:"9000" short:"p"`
	Strip  bool   `help:"Strip unknown properties instead of rejecting them."`
}

func (c *Cmd) Run() error {
	h, err := c.handler(slog.Default())
	if err != nil {
		return err
	}
	addr := fmt.Sprintf("localhost:%d", c.Port)
	fmt.Printf("concord dev listening on http://%s\n", addr)
	return http.ListenAndServe(addr, h)
}

// handler serves every class of the schema without implementations, so
// requests are validated and then answered with InternalServerError, and
// mounts devtools under /__concord.
func (c *Cmd) handler(logger *slog.Logger) (http.Handler, error) {
	doc, err := schema.Load(c.Schema)
	if err != nil {
		return nil, err
	}
	opts := validate.DefaultOptions()
	opts.Logger = logger
	if c.Strip {
		opts.Additional = validate.Strip
	}
	table, err := validate.NewTable(doc, opts)
	if err != nil {
		return nil, err
	}

	app := concord.NewApp(table).
		WithLogger(logger).
		WithStackTraceInError().
		WithMiddleware(middleware.RequestID()).
		WithMiddleware(middleware.CORS(nil)).
		WithUnaryInterceptor(middleware.LoggingInterceptor(logger))
	for _, name := range table.Classes() {
		app.Class(name)
	}

	mux := http.NewServeMux()
	mux.Handle("/", app.Handler())
	mux.Handle("/__concord/", http.StripPrefix("/__concord", devtools.New(app, c.Port).Handler()))
	return mux, nil
}
