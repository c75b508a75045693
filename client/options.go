package client

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/broady/concord"
)

// Options configure a Client.
type Options struct {
	// Timeout bounds every call. Zero means no timeout.
	Timeout time.Duration `validate:"gte=0"`

	// Headers are sent with every call.
	Headers map[string]string `validate:"dive,keys,required,endkeys,required"`

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client `validate:"-"`

	Logger *slog.Logger `validate:"-"`
}

type config struct {
	BaseURL string `validate:"required,http_url"`
	Class   string `validate:"required"`
	Options Options
}

var optionsValidator = validator.New()

func (c config) check() error {
	err := optionsValidator.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("client: invalid options: %w", err)
	}
	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msgs[i] = fe.Namespace() + ": " + formatValidationError(fe)
	}
	return errors.New("client: invalid options: " + strings.Join(msgs, "; "))
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "http_url":
		return "must be a valid HTTP URL"
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// CallOptions are the effective options of one call, after per-call
// overrides are applied to the client's Options.
type CallOptions struct {
	Timeout time.Duration
	Headers map[string]string
}

// CallOption overrides an option for a single call.
type CallOption func(*CallOptions)

// WithTimeout overrides the client timeout for one call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *CallOptions) { o.Timeout = d }
}

// WithHeader adds a header to one call.
func WithHeader(key, value string) CallOption {
	return func(o *CallOptions) { o.Headers[key] = value }
}

// WithRequestID sends id in the X-Request-ID header. An empty id sends a
// fresh random UUID.
func WithRequestID(id string) CallOption {
	if id == "" {
		id = uuid.NewString()
	}
	return WithHeader(concord.HeaderRequestID, id)
}

func (c *Client) callOptions(opts []CallOption) CallOptions {
	co := CallOptions{Timeout: c.opts.Timeout, Headers: maps.Clone(c.opts.Headers)}
	if co.Headers == nil {
		co.Headers = make(map[string]string)
	}
	for _, opt := range opts {
		opt(&co)
	}
	return co
}
