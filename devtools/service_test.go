package devtools

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/broady/concord"
	"github.com/broady/concord/concordgen/ir"
	"github.com/broady/concord/concordgen/schema"
	"github.com/broady/concord/testutil"
	"github.com/broady/concord/validate"
)

const devSchema = `{"definitions":{
	"Role":{"type":"string","enum":["admin","user"]},
	"NotFound":{"type":"object","properties":{"name":{"type":"string"},"message":{"type":"string"},"stack":{"type":"string"}}},
	"Users":{"type":"object","properties":{
		"get":{"type":"object","properties":{
			"params":{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]},
			"returns":{"type":"string"}}},
		"list":{"type":"object","properties":{
			"params":{"type":"object","properties":{}},
			"returns":{"type":"array","items":{"type":"string"}}}}
	}}
}}`

func newDevtools(t *testing.T) http.Handler {
	t.Helper()
	doc, err := schema.Parse([]byte(devSchema))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	opts := validate.DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	table, err := validate.NewTable(doc, opts)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	app := concord.NewApp(table)
	app.Class("Users").Method("get", func(ctx context.Context, callCtx concord.Context, args []any) (any, error) {
		return args[0], nil
	})
	return New(app, 8080).Handler()
}

func TestPing(t *testing.T) {
	w := testutil.NewRequest().GET("/ping").Serve(newDevtools(t))
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, &PingResponse{OK: true})
}

func TestInfo(t *testing.T) {
	w := testutil.NewRequest().GET("/info").Serve(newDevtools(t))
	testutil.AssertStatus(t, w, http.StatusOK)

	var info InfoResponse
	testutil.DecodeJSON(t, w, &info)
	if info.Port != 8080 || info.NumCPU == 0 || info.Version == "" {
		t.Errorf("info = %+v", info)
	}
}

func TestStatus(t *testing.T) {
	w := testutil.NewRequest().GET("/status").Serve(newDevtools(t))
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, &StatusResponse{
		OK:            true,
		Port:          8080,
		Declared:      map[string][]string{"Users": {"get", "list"}},
		Registered:    map[string][]string{"Users": {"get"}},
		Unimplemented: []string{"Users.list"},
	})
}

func TestDefinitions(t *testing.T) {
	h := newDevtools(t)

	tests := []struct {
		name  string
		query map[string][]string
		want  []ir.Definition
	}{
		{"all", nil, []ir.Definition{
			{Name: "Role", Kind: ir.KindEnum},
			{Name: "NotFound", Kind: ir.KindException},
			{Name: "Users", Kind: ir.KindService},
		}},
		{"by kind", map[string][]string{"kind": {"enum", "exception"}}, []ir.Definition{
			{Name: "Role", Kind: ir.KindEnum},
			{Name: "NotFound", Kind: ir.KindException},
		}},
		{"by name", map[string][]string{"name": {"Users"}}, []ir.Definition{
			{Name: "Users", Kind: ir.KindService},
		}},
		{"no match", map[string][]string{"kind": {"alias"}}, []ir.Definition{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testutil.NewRequest().GET("/definitions")
			for k, vs := range tt.query {
				for _, v := range vs {
					b.WithQuery(k, v)
				}
			}
			w := b.Serve(h)
			testutil.AssertStatus(t, w, http.StatusOK)
			testutil.AssertJSONResponse(t, w, tt.want)
		})
	}
}

func TestDefinitions_BadKind(t *testing.T) {
	w := testutil.NewRequest().GET("/definitions").WithQuery("kind", "widget").Serve(newDevtools(t))
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestClass(t *testing.T) {
	h := newDevtools(t)

	w := testutil.NewRequest().GET("/classes/Users").Serve(h)
	testutil.AssertStatus(t, w, http.StatusOK)
	var c ir.ClassSpec
	testutil.DecodeJSON(t, w, &c)
	if c.Kind != ir.KindService || len(c.Methods) != 2 || c.Methods[0].Name != "get" {
		t.Errorf("class = %+v", c)
	}

	w = testutil.NewRequest().GET("/classes/NotFound").Serve(h)
	testutil.AssertStatus(t, w, http.StatusOK)

	w = testutil.NewRequest().GET("/classes/Nope").Serve(h)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestMethodNotAllowed(t *testing.T) {
	w := testutil.NewRequest().POST("/ping").Serve(newDevtools(t))
	testutil.AssertStatus(t, w, http.StatusMethodNotAllowed)
}
