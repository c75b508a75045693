package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/broady/concord"
	"github.com/broady/concord/concordgen/schema"
	"github.com/broady/concord/validate"
)

const clientSchema = `{"definitions":{
	"RuntimeError":{"type":"object","properties":{"name":{"type":"string"},"message":{"type":"string"},"stack":{"type":"string"}}},
	"ClientContext":{"type":"object","properties":{"foo":{"type":"string"}},"required":["foo"]},
	"Test":{"type":"object","properties":{
		"bar":{"type":"object","properties":{
			"params":{"type":"object","properties":{"a":{"type":"number"},"b":{"type":"string"}},"propertyOrder":["a","b"],"required":["a"]},
			"returns":{"type":"string"},
			"throws":{"$ref":"#/definitions/RuntimeError"}}},
		"when":{"type":"object","properties":{
			"params":{"type":"object","properties":{}},
			"returns":{"type":"string","format":"date-time"}}},
		"none":{"type":"object","properties":{
			"params":{"type":"object","properties":{}},
			"returns":{"type":"null"}}}
	}}
}}`

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTable(t *testing.T) *validate.Table {
	t.Helper()
	doc, err := schema.Parse([]byte(clientSchema))
	require.NoError(t, err)
	opts := validate.DefaultOptions()
	opts.Logger = quiet
	table, err := validate.NewTable(doc, opts)
	require.NoError(t, err)
	return table
}

// newServer serves Test through a concord.App.
func newServer(t *testing.T, table *validate.Table, bar concord.MethodFunc) *httptest.Server {
	t.Helper()
	app := concord.NewApp(table).WithLogger(quiet)
	app.Class("Test").
		Method("bar", bar).
		Method("when", func(ctx context.Context, callCtx concord.Context, args []any) (any, error) {
			return "2024-05-01T12:00:00Z", nil
		}).
		Method("none", func(ctx context.Context, callCtx concord.Context, args []any) (any, error) {
			return nil, nil
		})
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, table *validate.Table, url string, opts Options) *Client {
	t.Helper()
	opts.Logger = quiet
	c, err := New(url, table, "Test", opts)
	require.NoError(t, err)
	return c
}

func TestCall_Success(t *testing.T) {
	table := newTable(t)
	var gotCtx concord.Context
	var gotArgs []any
	srv := newServer(t, table, func(ctx context.Context, callCtx concord.Context, args []any) (any, error) {
		gotCtx, gotArgs = callCtx, args
		return "3", nil
	})
	c := newClient(t, table, srv.URL, Options{})

	res, err := c.Call(context.Background(), "bar", concord.Context{"foo": "x"}, map[string]any{"a": 3})
	require.NoError(t, err)
	assert.Equal(t, "3", res)
	assert.Equal(t, concord.Context{"foo": "x"}, gotCtx)
	assert.Equal(t, []any{3.0, nil}, gotArgs)
}

func TestCall_PositionalArgs(t *testing.T) {
	table := newTable(t)
	var gotArgs []any
	srv := newServer(t, table, func(ctx context.Context, callCtx concord.Context, args []any) (any, error) {
		gotArgs = args
		return "ok", nil
	})
	c := newClient(t, table, srv.URL, Options{})

	_, err := c.Call(context.Background(), "bar", concord.Context{"foo": "x"}, []any{1, "b"})
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, "b"}, gotArgs)

	_, err = c.Call(context.Background(), "bar", nil, []any{1, "b", "extra"})
	assert.Error(t, err)
}

func TestCall_DateCoercion(t *testing.T) {
	table := newTable(t)
	srv := newServer(t, table, nil)
	c := newClient(t, table, srv.URL, Options{})

	res, err := c.Call(context.Background(), "when", concord.Context{"foo": "x"}, nil)
	require.NoError(t, err)
	got, ok := res.(time.Time)
	require.True(t, ok, "got %T", res)
	assert.True(t, got.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
}

func TestCall_VoidMethod(t *testing.T) {
	table := newTable(t)
	srv := newServer(t, table, nil)
	c := newClient(t, table, srv.URL, Options{})

	res, err := c.Call(context.Background(), "none", concord.Context{"foo": "x"}, nil)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestCall_ValidationError(t *testing.T) {
	table := newTable(t)
	srv := newServer(t, table, nil)
	c := newClient(t, table, srv.URL, Options{})

	_, err := c.Call(context.Background(), "bar", concord.Context{"foo": "x"}, map[string]any{})

	var ve *concord.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, concord.MessageBadRequest, ve.Message)
	require.Len(t, ve.Errors, 1)
	assert.Equal(t, "/args", ve.Errors[0].(map[string]any)["path"])
}

func TestCall_DeclaredException(t *testing.T) {
	table := newTable(t)
	srv := newServer(t, table, func(ctx context.Context, callCtx concord.Context, args []any) (any, error) {
		return nil, concord.NewException("RuntimeError", "boom").WithField("code", 7)
	})
	c := newClient(t, table, srv.URL, Options{})

	_, err := c.Call(context.Background(), "bar", concord.Context{"foo": "x"}, map[string]any{"a": 1})

	var ex *concord.Exception
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, "RuntimeError", ex.Name)
	assert.Equal(t, "boom", ex.Message)
	assert.Equal(t, map[string]any{"code": 7.0}, ex.Fields)
	assert.ErrorIs(t, err, &concord.Exception{Name: "RuntimeError"})
}

func TestCall_InternalServerError(t *testing.T) {
	table := newTable(t)
	srv := newServer(t, table, func(ctx context.Context, callCtx concord.Context, args []any) (any, error) {
		return nil, errors.New("db down")
	})
	c := newClient(t, table, srv.URL, Options{})

	_, err := c.Call(context.Background(), "bar", concord.Context{"foo": "x"}, map[string]any{"a": 1})

	var ise *concord.InternalServerError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "db down", ise.Message)
}

func TestCall_UndeclaredExceptionName(t *testing.T) {
	table := newTable(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"name":"Secret","message":"leaked"}`)
	}))
	t.Cleanup(srv.Close)
	c := newClient(t, table, srv.URL, Options{})

	_, err := c.Call(context.Background(), "bar", nil, map[string]any{"a": 1})

	var ise *concord.InternalServerError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "leaked", ise.Message)
}

func TestCall_InvalidResponse(t *testing.T) {
	table := newTable(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `42`)
	}))
	t.Cleanup(srv.Close)
	c := newClient(t, table, srv.URL, Options{})

	_, err := c.Call(context.Background(), "bar", nil, map[string]any{"a": 1})

	var ve *concord.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, concord.MessageInvalidResponse, ve.Message)
	assert.NotEmpty(t, ve.Errors)
}

func TestCall_NonJSONResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		ctype  string
		body   string
	}{
		{"bad gateway", http.StatusBadGateway, "text/html", "<h1>502</h1>"},
		{"400 not json", http.StatusBadRequest, "text/plain", "nope"},
		{"400 json other name", http.StatusBadRequest, "application/json", `{"name":"Other"}`},
		{"404 json", http.StatusNotFound, "application/json", `{"name":"NotFound","message":"route not found"}`},
	}

	table := newTable(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.ctype)
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()
			c := newClient(t, table, srv.URL, Options{})

			_, err := c.Call(context.Background(), "bar", nil, map[string]any{"a": 1})

			var re *RequestError
			require.ErrorAs(t, err, &re)
			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, "bar", re.Method)
		})
	}
}

func TestCall_Timeout(t *testing.T) {
	table := newTable(t)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	c := newClient(t, table, srv.URL, Options{Timeout: time.Hour})

	_, err := c.Call(context.Background(), "bar", nil, map[string]any{"a": 1}, WithTimeout(20*time.Millisecond))

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 20*time.Millisecond, te.Timeout)
	assert.Equal(t, "bar", te.Method)
}

func TestCall_Canceled(t *testing.T) {
	table := newTable(t)
	srv := newServer(t, table, nil)
	c := newClient(t, table, srv.URL, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Call(ctx, "bar", nil, map[string]any{"a": 1})

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
}

func TestCall_TransportError(t *testing.T) {
	table := newTable(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := newClient(t, table, url, Options{Headers: map[string]string{"X-Env": "test"}})

	_, err := c.Call(context.Background(), "bar", nil, map[string]any{"a": 1})

	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "test", re.Options.Headers["X-Env"])
}

func TestCall_Headers(t *testing.T) {
	table := newTable(t)
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `"ok"`)
	}))
	t.Cleanup(srv.Close)
	c := newClient(t, table, srv.URL, Options{Headers: map[string]string{"Authorization": "Bearer t"}})

	_, err := c.Call(context.Background(), "bar", nil, map[string]any{"a": 1},
		WithRequestID(""), WithHeader("X-Extra", "1"))
	require.NoError(t, err)

	assert.Equal(t, "Bearer t", got.Get("Authorization"))
	assert.Equal(t, "1", got.Get("X-Extra"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	_, err = uuid.Parse(got.Get(concord.HeaderRequestID))
	assert.NoError(t, err)
}

func TestCall_UnknownMethod(t *testing.T) {
	table := newTable(t)
	c := newClient(t, table, "http://localhost", Options{})

	_, err := c.Call(context.Background(), "nope", nil, nil)
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestCallInto(t *testing.T) {
	table := newTable(t)
	srv := newServer(t, table, func(ctx context.Context, callCtx concord.Context, args []any) (any, error) {
		return "hello", nil
	})
	c := newClient(t, table, srv.URL, Options{})

	var out string
	require.NoError(t, c.CallInto(context.Background(), "bar", concord.Context{"foo": "x"}, map[string]any{"a": 1}, &out))
	assert.Equal(t, "hello", out)
}

func TestNew_InvalidOptions(t *testing.T) {
	table := newTable(t)
	tests := []struct {
		name    string
		baseURL string
		class   string
		opts    Options
		want    string
	}{
		{"empty url", "", "Test", Options{}, "BaseURL: required"},
		{"bad url", "not a url", "Test", Options{}, "must be a valid HTTP URL"},
		{"negative timeout", "http://x", "Test", Options{Timeout: -time.Second}, "Timeout: must be at least 0"},
		{"unknown class", "http://x", "Nope", Options{}, "not a service class"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.baseURL, table, tt.class, tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
