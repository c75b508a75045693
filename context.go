package concord

import (
	"context"
	"maps"
	"net/http"
)

// Context is the merged call context a handler receives: the fields of the
// client-supplied context plus those of the server-only context.
type Context map[string]any

// merge combines client and server fields. Server fields win on collision so
// a client can never spoof what the server extracted.
func merge(client, server Context) Context {
	out := make(Context, len(client)+len(server))
	maps.Copy(out, client)
	maps.Copy(out, server)
	return out
}

// HeaderRequestID carries the request id between client, middleware and logs.
const HeaderRequestID = "X-Request-ID"

type contextKey struct {
	name string
}

var (
	requestKey = &contextKey{"request"}
	writerKey  = &contextKey{"writer"}
	callKey    = &contextKey{"call"}
)

// RequestFromContext returns the HTTP request of the current call, for use in
// context extractors.
func RequestFromContext(ctx context.Context) *http.Request {
	if r, ok := ctx.Value(requestKey).(*http.Request); ok {
		return r
	}
	return nil
}

// SetHeader sets an HTTP response header.
// It requires that the handler was called through an App.
func SetHeader(ctx context.Context, key, value string) {
	if w, ok := ctx.Value(writerKey).(http.ResponseWriter); ok {
		w.Header().Set(key, value)
	}
}

// MethodFromContext returns the class and method name of the current call.
func MethodFromContext(ctx context.Context) (class, method string, ok bool) {
	if c, ok := ctx.Value(callKey).(*callInfo); ok {
		return c.class, c.method, true
	}
	return "", "", false
}

type callInfo struct {
	class, method string
}

// NewContext returns a context carrying call metadata, for testing
// interceptors and handlers outside an App.
func NewContext(ctx context.Context, class, method string) context.Context {
	return context.WithValue(ctx, callKey, &callInfo{class: class, method: method})
}

// NewTestContext returns a context carrying the request, the response writer
// and call metadata, as an App sets up for each call. Its signature matches
// testutil.ContextSetupFunc:
//
//	req, w := testutil.NewRequest(concord.NewTestContext).Call("Users", "get").Build()
func NewTestContext(ctx context.Context, w http.ResponseWriter, r *http.Request, class, method string) context.Context {
	return newContext(ctx, w, r, class, method)
}

func newContext(ctx context.Context, w http.ResponseWriter, r *http.Request, class, method string) context.Context {
	ctx = context.WithValue(ctx, writerKey, w)
	ctx = context.WithValue(ctx, requestKey, r)
	return NewContext(ctx, class, method)
}
