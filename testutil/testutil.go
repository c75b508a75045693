// Package testutil provides testing helpers for HTTP handlers and concord
// dispatch endpoints.
// This package is designed to be import-cycle safe and can be used from any package.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// RequestBuilder helps construct test HTTP requests with fluent API.
type RequestBuilder struct {
	method       string
	path         string
	body         []byte
	headers      map[string]string
	query        url.Values
	class        string
	rpcMethod    string
	contextSetup ContextSetupFunc
}

// NewRequest creates a new request builder.
// Optionally accepts a ContextSetupFunc to configure the request context.
func NewRequest(contextSetup ...ContextSetupFunc) *RequestBuilder {
	var setup ContextSetupFunc
	if len(contextSetup) > 0 {
		setup = contextSetup[0]
	}
	return &RequestBuilder{
		method:       "GET",
		path:         "/",
		headers:      make(map[string]string),
		query:        make(url.Values),
		class:        "TestClass",
		rpcMethod:    "testMethod",
		contextSetup: setup,
	}
}

// GET sets the HTTP method to GET.
func (b *RequestBuilder) GET(path string) *RequestBuilder {
	b.method = "GET"
	b.path = path
	return b
}

// POST sets the HTTP method to POST.
func (b *RequestBuilder) POST(path string) *RequestBuilder {
	b.method = "POST"
	b.path = path
	return b
}

// Call targets POST /{class}/{method} and records class and method for the
// context setup.
func (b *RequestBuilder) Call(class, method string) *RequestBuilder {
	b.class = class
	b.rpcMethod = method
	return b.POST("/" + class + "/" + method)
}

// WithJSON sets the request body as JSON.
func (b *RequestBuilder) WithJSON(v any) *RequestBuilder {
	data, _ := json.Marshal(v)
	b.body = data
	b.headers["Content-Type"] = "application/json"
	return b
}

// WithArgs sets the body to the call envelope {"args": args}, adding
// "context" when callCtx is non-nil.
func (b *RequestBuilder) WithArgs(args map[string]any, callCtx map[string]any) *RequestBuilder {
	body := map[string]any{"args": args}
	if callCtx != nil {
		body["context"] = callCtx
	}
	return b.WithJSON(body)
}

// WithBody sets the raw request body.
func (b *RequestBuilder) WithBody(body string) *RequestBuilder {
	b.body = []byte(body)
	return b
}

// WithHeader adds a header to the request.
func (b *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	b.headers[key] = value
	return b
}

// WithQuery adds a query parameter.
func (b *RequestBuilder) WithQuery(key, value string) *RequestBuilder {
	b.query.Add(key, value)
	return b
}

// ContextSetupFunc is a function that sets up the request context.
// It receives the current context, response writer, and request, and returns a new context.
type ContextSetupFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request, class, method string) context.Context

// Build creates the HTTP request and ResponseRecorder.
// Uses the contextSetup provided to NewRequest().
func (b *RequestBuilder) Build() (*http.Request, *httptest.ResponseRecorder) {
	path := b.path
	if len(b.query) > 0 {
		path += "?" + b.query.Encode()
	}

	var req *http.Request
	if len(b.body) > 0 {
		req = httptest.NewRequest(b.method, path, bytes.NewReader(b.body))
	} else {
		req = httptest.NewRequest(b.method, path, nil)
	}

	for k, v := range b.headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()

	if b.contextSetup != nil {
		ctx := b.contextSetup(req.Context(), w, req, b.class, b.rpcMethod)
		req = req.WithContext(ctx)
	}

	return req, w
}

// Serve builds the request and serves it to h.
func (b *RequestBuilder) Serve(h http.Handler) *httptest.ResponseRecorder {
	req, w := b.Build()
	h.ServeHTTP(w, req)
	return w
}

// AssertStatus checks that the response has the expected status code.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int) {
	t.Helper()
	if w.Code != expectedStatus {
		t.Errorf("expected status %d, got %d\nBody: %s", expectedStatus, w.Code, w.Body.String())
	}
}

// AssertJSONResponse decodes the response body and compares it with expected value.
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expected any) {
	t.Helper()

	contentType := w.Header().Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		t.Errorf("expected Content-Type to contain application/json, got %s", contentType)
	}

	expectedJSON, _ := json.Marshal(expected)

	// Compare as JSON to ignore formatting differences
	var expectedData, actualData any
	json.Unmarshal(expectedJSON, &expectedData)
	json.Unmarshal(w.Body.Bytes(), &actualData)

	expectedStr, _ := json.MarshalIndent(expectedData, "", "  ")
	actualStr, _ := json.MarshalIndent(actualData, "", "  ")

	if string(expectedStr) != string(actualStr) {
		t.Errorf("response mismatch:\nExpected:\n%s\nActual:\n%s", expectedStr, actualStr)
	}
}

// ErrorResponse is the error body of a failed call. Fields holds the
// whole decoded body, including name and message.
type ErrorResponse struct {
	Name    string           `json:"name"`
	Message string           `json:"message"`
	Errors  []map[string]any `json:"errors,omitempty"`
	Stack   string           `json:"stack,omitempty"`
	Fields  map[string]any   `json:"-"`
}

// AssertJSONError checks that the response is an error body with the expected name.
func AssertJSONError(t *testing.T, w *httptest.ResponseRecorder, expectedName string) *ErrorResponse {
	t.Helper()

	data := w.Body.Bytes()
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		t.Fatalf("failed to decode error response: %v\nBody: %s", err, data)
	}
	if err := json.Unmarshal(data, &errResp.Fields); err != nil {
		t.Fatalf("failed to decode error response: %v\nBody: %s", err, data)
	}

	if errResp.Name != expectedName {
		t.Errorf("expected error name %s, got %s (message: %s)", expectedName, errResp.Name, errResp.Message)
	}

	return &errResp
}

// AssertHeader checks that a response header has the expected value.
func AssertHeader(t *testing.T, w *httptest.ResponseRecorder, key, expectedValue string) {
	t.Helper()
	actual := w.Header().Get(key)
	if actual != expectedValue {
		t.Errorf("expected header %s=%s, got %s", key, expectedValue, actual)
	}
}

// DecodeJSON decodes the response body into the provided value.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v\nBody: %s", err, w.Body.String())
	}
}
