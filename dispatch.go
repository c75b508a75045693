package concord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/broady/concord/validate"
)

// MethodFunc implements one RPC method. callCtx is the merged context, or nil
// when the class takes none. args are in declared parameter order.
type MethodFunc func(ctx context.Context, callCtx Context, args []any) (any, error)

// ContextExtractor produces the server-only context of a call. It runs once
// per call, after the request is validated and before the handler.
type ContextExtractor func(ctx context.Context) (Context, error)

// Outcome is the terminal state of a dispatched call.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeValidationFailed
	OutcomeDeclaredException
	OutcomeInternalError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeValidationFailed:
		return "validation_failed"
	case OutcomeDeclaredException:
		return "declared_exception"
	case OutcomeInternalError:
		return "internal_error"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// DispatchRequest is one call to dispatch.
type DispatchRequest struct {
	Class  string
	Method string

	// Body is the decoded JSON request body, {context?, args}.
	Body any

	Handler   MethodFunc
	Extractor ContextExtractor

	Interceptors []UnaryInterceptor

	// StackTraceInError adds the stack to 500 response bodies.
	StackTraceInError bool

	// MaskInternalErrors replaces the message of undeclared errors.
	MaskInternalErrors bool

	Logger *slog.Logger
}

// Result is the outcome of Dispatch, ready to be written to a transport.
type Result struct {
	Status int
	Body   any

	// Context is the merged call context, when one was built.
	Context Context

	Outcome Outcome

	// Err is the error behind a failed outcome.
	Err error
}

// Dispatch runs the server side of the protocol for one call:
//
//  1. reject bodies that are not JSON objects
//  2. validate args, and context when the class takes a client context
//  3. run the context extractor when the class takes a server-only context
//  4. merge client and server context, server fields winning
//  5. call the handler with the context and the args in declared order
//  6. validate and coerce the return value
//
// Handler errors that name a declared exception become that exception on
// the wire; every other error becomes an InternalServerError.
func Dispatch(ctx context.Context, table *validate.Table, req DispatchRequest) Result {
	d := &dispatcher{req: req, logger: req.Logger}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d.run(ctx, table)
}

type dispatcher struct {
	req    DispatchRequest
	logger *slog.Logger
	method *validate.Method
}

func (d *dispatcher) run(ctx context.Context, table *validate.Table) Result {
	class, ok := table.Class(d.req.Class)
	if ok {
		d.method, ok = class.Method(d.req.Method)
	}
	if !ok {
		return badRequest(map[string]any{"message": MessageMethodNotSupported, "method": d.req.Method})
	}

	body, ok := d.req.Body.(map[string]any)
	if !ok {
		return badRequest(map[string]any{"message": MessageCouldNotParseBody, "method": d.req.Method})
	}
	args, clientCtx, ok := splitBody(body)
	if !ok {
		return badRequest(map[string]any{"message": MessageCouldNotParseBody, "method": d.req.Method})
	}

	var fieldErrs []any
	validated, err := d.method.Params.Validate(args)
	fieldErrs = appendFieldErrors(fieldErrs, "/args", err)
	if class.Context != nil && clientCtx != nil {
		out, err := class.Context.Validate(map[string]any(clientCtx))
		fieldErrs = appendFieldErrors(fieldErrs, "/context", err)
		if err == nil {
			clientCtx = out.(map[string]any)
		}
	}
	if len(fieldErrs) > 0 {
		ve := &ValidationError{Message: MessageBadRequest, Errors: fieldErrs}
		return Result{Status: http.StatusBadRequest, Body: ve.body(), Outcome: OutcomeValidationFailed, Err: ve}
	}
	args = validated.(map[string]any)
	if !class.ClientContext {
		clientCtx = nil
	}

	var serverCtx Context
	if class.ServerOnlyContext {
		if d.req.Extractor == nil {
			return d.failure(&InternalServerError{Message: "no context extractor registered for " + d.req.Class})
		}
		if serverCtx, err = d.req.Extractor(ctx); err != nil {
			return d.failure(err)
		}
	}

	call := &Call{Class: d.req.Class, Method: d.req.Method}
	if class.ClientContext || class.ServerOnlyContext {
		call.Context = merge(clientCtx, serverCtx)
	}
	call.Args = make([]any, len(d.method.ParamOrder))
	for i, name := range d.method.ParamOrder {
		call.Args[i] = args[name]
	}

	res, err := d.invoke(ctx, call)
	if err != nil {
		r := d.failure(err)
		r.Context = call.Context
		return r
	}
	r := d.success(res)
	r.Context = call.Context
	return r
}

// splitBody separates {context?, args} into its parts. A body without an
// args member is taken to be the arguments itself.
func splitBody(body map[string]any) (args map[string]any, ctx Context, ok bool) {
	if c, present := body["context"]; present && c != nil {
		m, isObj := c.(map[string]any)
		if !isObj {
			return nil, nil, false
		}
		ctx = m
	}
	raw, present := body["args"]
	if !present {
		args = make(map[string]any, len(body))
		for k, v := range body {
			if k != "context" {
				args[k] = v
			}
		}
		return args, ctx, true
	}
	for k := range body {
		if k != "args" && k != "context" {
			return nil, nil, false
		}
	}
	args, ok = raw.(map[string]any)
	return args, ctx, ok
}

func appendFieldErrors(dst []any, prefix string, err error) []any {
	if err == nil {
		return dst
	}
	var errs validate.Errors
	if !errors.As(err, &errs) {
		return append(dst, map[string]any{"message": err.Error()})
	}
	for _, fe := range errs {
		fe.Path = prefix + fe.Path
		dst = append(dst, fe)
	}
	return dst
}

func badRequest(detail map[string]any) Result {
	ve := &ValidationError{Message: MessageBadRequest, Errors: []any{detail}}
	return Result{
		Status:  http.StatusBadRequest,
		Body:    ve.body(),
		Outcome: OutcomeValidationFailed,
		Err:     ve,
	}
}

func (d *dispatcher) invoke(ctx context.Context, call *Call) (any, error) {
	if d.req.Handler == nil {
		return nil, &InternalServerError{Message: "method " + call.EndpointID() + " is not implemented"}
	}
	final := func(ctx context.Context, call *Call) (any, error) {
		return d.req.Handler(ctx, call.Context, call.Args)
	}
	if chain := chainInterceptors(d.req.Interceptors); chain != nil {
		return chain(ctx, call, final)
	}
	return final(ctx, call)
}

// success normalizes the return value to its JSON form and runs it through
// the return validator.
func (d *dispatcher) success(res any) Result {
	normalized, err := normalize(res)
	if err != nil {
		return d.invalidResponse(err)
	}
	wrapped, err := d.method.Returns.Validate(map[string]any{"returns": normalized})
	if err != nil {
		return d.invalidResponse(err)
	}
	return Result{
		Status:  http.StatusOK,
		Body:    wrapped.(map[string]any)["returns"],
		Outcome: OutcomeSucceeded,
	}
}

func (d *dispatcher) invalidResponse(err error) Result {
	d.logger.Error("handler returned an invalid response",
		slog.String("class", d.req.Class),
		slog.String("method", d.req.Method),
		slog.Any("error", err))
	return Result{
		Status:  http.StatusInternalServerError,
		Body:    errorBody(NameInternalServerError, MessageInvalidResponse, nil, ""),
		Outcome: OutcomeInternalError,
		Err:     &InternalServerError{Message: MessageInvalidResponse},
	}
}

// failure classifies a handler or extractor error.
func (d *dispatcher) failure(err error) Result {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return Result{Status: http.StatusBadRequest, Body: ve.body(), Outcome: OutcomeValidationFailed, Err: err}
	}

	var named Named
	if errors.As(err, &named) && d.method.Declares(named.ExceptionName()) {
		d.logger.Info("declared exception",
			slog.String("class", d.req.Class),
			slog.String("method", d.req.Method),
			slog.String("exception", named.ExceptionName()))
		return Result{
			Status:  http.StatusInternalServerError,
			Body:    errorBody(named.ExceptionName(), messageOf(named), fieldsOf(named), d.stack(named)),
			Outcome: OutcomeDeclaredException,
			Err:     err,
		}
	}

	d.logger.Error("handler failed",
		slog.String("class", d.req.Class),
		slog.String("method", d.req.Method),
		slog.Any("error", err))
	msg := messageOf(err)
	if d.req.MaskInternalErrors {
		msg = "internal server error"
	}
	return Result{
		Status:  http.StatusInternalServerError,
		Body:    errorBody(NameInternalServerError, msg, nil, d.stack(err)),
		Outcome: OutcomeInternalError,
		Err:     err,
	}
}

func (d *dispatcher) stack(err error) string {
	if !d.req.StackTraceInError {
		return ""
	}
	return stackOf(err)
}

// normalize converts a handler result to the generic JSON form validators
// work on.
func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64, map[string]any, []any:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode return value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode return value: %w", err)
	}
	return out, nil
}
