// Package client calls the methods of one service class over HTTP and
// classifies every response into exactly one terminal state:
//
//   - success: the validated, coerced return value and a nil error
//   - *concord.ValidationError: the server rejected the request, or the
//     response failed return validation
//   - *concord.Exception: the method raised one of its declared exceptions
//   - *concord.InternalServerError: any other server failure
//   - *RequestError: transport failure or a response outside the protocol
//   - *TimeoutError: the deadline passed or the context was canceled
//
// Calls are never retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/broady/concord"
	"github.com/broady/concord/validate"
)

// Client calls one service class.
type Client struct {
	baseURL string
	class   *validate.Class
	opts    Options
}

// New returns a client for class, served by a concord.App at baseURL.
func New(baseURL string, table *validate.Table, class string, opts Options) (*Client, error) {
	if err := (config{BaseURL: baseURL, Class: class, Options: opts}).check(); err != nil {
		return nil, err
	}
	c, ok := table.Class(class)
	if !ok {
		return nil, fmt.Errorf("client: %q is not a service class", class)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), class: c, opts: opts}, nil
}

// Call invokes method. args is either a map of named arguments or a slice
// of positional arguments in declared parameter order. callCtx is sent only
// when the class takes a client context.
func (c *Client) Call(ctx context.Context, method string, callCtx concord.Context, args any, opts ...CallOption) (any, error) {
	m, ok := c.class.Method(method)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, c.class.Name, method)
	}
	named, err := namedArgs(m, args)
	if err != nil {
		return nil, err
	}
	body := map[string]any{"args": named}
	if c.class.ClientContext && callCtx != nil {
		body["context"] = callCtx
	}

	co := c.callOptions(opts)
	if co.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, co.Timeout)
		defer cancel()
	}

	resp, data, err := c.do(ctx, method, body, co)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TimeoutError{Method: method, Timeout: co.Timeout}
		}
		return nil, &RequestError{Cause: err, Method: method, Options: co}
	}
	return c.classify(m, resp, data, co)
}

// CallInto is Call followed by decoding the result into out.
func (c *Client) CallInto(ctx context.Context, method string, callCtx concord.Context, args any, out any, opts ...CallOption) error {
	res, err := c.Call(ctx, method, callCtx, args, opts...)
	if err != nil {
		return err
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("client: re-encode result of %s: %w", method, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode result of %s: %w", method, err)
	}
	return nil
}

func namedArgs(m *validate.Method, args any) (map[string]any, error) {
	switch a := args.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return a, nil
	case []any:
		if len(a) > len(m.ParamOrder) {
			return nil, fmt.Errorf("client: %s takes %d arguments, got %d", m.Name, len(m.ParamOrder), len(a))
		}
		named := make(map[string]any, len(a))
		for i, v := range a {
			named[m.ParamOrder[i]] = v
		}
		return named, nil
	}
	return nil, fmt.Errorf("client: args must be map[string]any or []any, got %T", args)
}

// do sends the request and reads the whole response body. The body is
// closed on every path.
func (c *Client) do(ctx context.Context, method string, body any, co CallOptions) (*http.Response, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("encode request: %w", err)
	}
	url := c.baseURL + "/" + c.class.Name + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	for k, v := range co.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp, data, nil
}

type errorBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Errors  []any  `json:"errors"`
	Stack   string `json:"stack"`
}

func (c *Client) classify(m *validate.Method, resp *http.Response, data []byte, co CallOptions) (any, error) {
	isJSON := strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json")
	statusErr := &RequestError{
		Cause:   &StatusError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)},
		Method:  m.Name,
		Options: co,
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var returns any
		if isJSON {
			if err := json.Unmarshal(data, &returns); err != nil {
				return nil, &RequestError{Cause: fmt.Errorf("decode response: %w", err), Method: m.Name, Options: co}
			}
		}
		wrapped, err := m.Returns.Validate(map[string]any{"returns": returns})
		if err != nil {
			c.opts.Logger.Warn("response failed validation",
				slog.String("class", c.class.Name),
				slog.String("method", m.Name),
				slog.Any("error", err))
			return nil, &concord.ValidationError{Message: concord.MessageInvalidResponse, Errors: fieldErrors(err)}
		}
		return wrapped.(map[string]any)["returns"], nil

	case !isJSON:
		return nil, statusErr

	case resp.StatusCode == http.StatusBadRequest:
		var body errorBody
		if err := json.Unmarshal(data, &body); err == nil && body.Name == concord.NameValidationError {
			return nil, &concord.ValidationError{Message: body.Message, Errors: body.Errors}
		}

	case resp.StatusCode == http.StatusInternalServerError:
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, &concord.InternalServerError{Message: string(data)}
		}
		name, _ := fields["name"].(string)
		message, _ := fields["message"].(string)
		stack, _ := fields["stack"].(string)
		if m.Declares(name) {
			delete(fields, "name")
			delete(fields, "message")
			delete(fields, "stack")
			if len(fields) == 0 {
				fields = nil
			}
			return nil, &concord.Exception{Name: name, Message: message, Fields: fields, Stack: stack}
		}
		return nil, &concord.InternalServerError{Message: message, Stack: stack}
	}
	return nil, statusErr
}

func fieldErrors(err error) []any {
	var errs validate.Errors
	if !errors.As(err, &errs) {
		return []any{err.Error()}
	}
	out := make([]any, len(errs))
	for i, fe := range errs {
		out[i] = fe
	}
	return out
}
