package concord

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/broady/concord/validate"
)

// App is the central router for service classes.
// It manages method registration, middleware, interceptors and error reporting.
// Use Handler() to get an http.Handler for use with http.ListenAndServe.
type App struct {
	table *validate.Table

	mu                 sync.RWMutex
	classes            map[string]*Class
	stackTraceInError  bool
	maskInternalErrors bool
	interceptors       []UnaryInterceptor
	middlewares        []func(http.Handler) http.Handler
	logger             *slog.Logger
	maxRequestBodySize uint64
}

// NewApp returns an App serving the service classes of table.
func NewApp(table *validate.Table) *App {
	return &App{
		table:              table,
		classes:            make(map[string]*Class),
		maxRequestBodySize: 1 << 20, // 1MB default
	}
}

// WithStackTraceInError includes stack traces in 500 response bodies.
// Leave it off in production.
func (a *App) WithStackTraceInError() *App {
	a.stackTraceInError = true
	return a
}

// WithMaskInternalErrors enables masking of undeclared error messages.
// The original error is still available to interceptors and logging.
func (a *App) WithMaskInternalErrors() *App {
	a.maskInternalErrors = true
	return a
}

// WithUnaryInterceptor adds a global interceptor.
// Global interceptors are executed before class-level interceptors.
//
// Interceptor execution order:
//  1. Global interceptors (added via App.WithUnaryInterceptor)
//  2. Class interceptors (added via Class.WithUnaryInterceptor)
//  3. Method function
//
// Within each level, interceptors execute in the order they were added.
func (a *App) WithUnaryInterceptor(i UnaryInterceptor) *App {
	a.interceptors = append(a.interceptors, i)
	return a
}

// WithMiddleware adds an HTTP middleware to wrap the app.
// Middleware is applied in the order added (first added is outermost).
func (a *App) WithMiddleware(mw func(http.Handler) http.Handler) *App {
	a.middlewares = append(a.middlewares, mw)
	return a
}

// WithLogger sets a custom logger for the app.
// If not set, slog.Default() will be used.
func (a *App) WithLogger(logger *slog.Logger) *App {
	a.logger = logger
	return a
}

// WithMaxRequestBodySize sets the maximum request body size.
// A value of 0 means no limit. Default is 1MB (1 << 20).
func (a *App) WithMaxRequestBodySize(size uint64) *App {
	a.maxRequestBodySize = size
	return a
}

func (a *App) getLogger() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

// Table returns the validators the app dispatches against.
func (a *App) Table() *validate.Table { return a.table }

// Class returns the registration handle for a service class. It panics if
// the table has no service class of that name. Repeated calls return the
// same handle.
func (a *App) Class(name string) *Class {
	compiled, ok := a.table.Class(name)
	if !ok {
		panic(fmt.Sprintf("concord: %q is not a service class", name))
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.classes[name]; ok {
		return c
	}
	c := &Class{app: a, name: name, compiled: compiled, methods: make(map[string]MethodFunc)}
	a.classes[name] = c
	return c
}

// Routes returns the registered methods of each class, in declaration order.
func (a *App) Routes() map[string][]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	routes := make(map[string][]string, len(a.classes))
	for name, c := range a.classes {
		var methods []string
		for _, m := range c.compiled.Methods() {
			if _, ok := c.methods[m]; ok {
				methods = append(methods, m)
			}
		}
		routes[name] = methods
	}
	return routes
}

// Handler returns an http.Handler for use with http.ListenAndServe or other
// HTTP servers. The returned handler includes all configured middleware.
//
// Example:
//
//	app := concord.NewApp(table).WithMiddleware(cors)
//	http.ListenAndServe(":8080", app.Handler())
func (a *App) Handler() http.Handler {
	var h http.Handler = http.HandlerFunc(a.serveHTTP)
	// Apply middleware in reverse order so first added is outermost
	for i := len(a.middlewares) - 1; i >= 0; i-- {
		h = a.middlewares[i](h)
	}
	return h
}

// serveHTTP handles incoming calls at /{Class}/{method}.
func (a *App) serveHTTP(w http.ResponseWriter, req *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			a.getLogger().Error("PANIC recovered",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			var stack string
			if a.stackTraceInError {
				stack = string(debug.Stack())
			}
			body := errorBody(NameInternalServerError, fmt.Sprintf("internal server error (panic): %v", rec), nil, stack)
			writeJSON(w, http.StatusInternalServerError, body, a.logger)
		}
	}()

	parts := strings.Split(strings.TrimPrefix(req.URL.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeJSON(w, http.StatusNotFound, routeNotFound(), a.logger)
		return
	}
	className, method := parts[0], parts[1]

	a.mu.RLock()
	class, ok := a.classes[className]
	var fn MethodFunc
	var extractor ContextExtractor
	var interceptors []UnaryInterceptor
	if ok {
		fn = class.methods[method]
		extractor = class.extractor
		// Combine: Global + Class
		interceptors = make([]UnaryInterceptor, 0, len(a.interceptors)+len(class.interceptors))
		interceptors = append(interceptors, a.interceptors...)
		interceptors = append(interceptors, class.interceptors...)
	}
	a.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, routeNotFound(), a.logger)
		return
	}

	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		body := map[string]any{"name": "MethodNotAllowed", "message": fmt.Sprintf("method %s not allowed, expected POST", req.Method)}
		writeJSON(w, http.StatusMethodNotAllowed, body, a.logger)
		return
	}

	ctx := newContext(req.Context(), w, req, className, method)

	if a.maxRequestBodySize > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, int64(a.maxRequestBodySize))
	}
	body, err := decodeBody(req.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			body := map[string]any{"name": NameValidationError, "message": "request body too large", "errors": []any{}}
			writeJSON(w, http.StatusRequestEntityTooLarge, body, a.logger)
			return
		}
		// Dispatch reports a non-object body as unparseable.
		body = nil
	}

	res := Dispatch(ctx, a.table, DispatchRequest{
		Class:              className,
		Method:             method,
		Body:               body,
		Handler:            fn,
		Extractor:          extractor,
		Interceptors:       interceptors,
		StackTraceInError:  a.stackTraceInError,
		MaskInternalErrors: a.maskInternalErrors,
		Logger:             a.logger,
	})
	writeJSON(w, res.Status, res.Body, a.logger)
}

func decodeBody(r io.Reader) (any, error) {
	var body any
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}

func routeNotFound() map[string]any {
	return map[string]any{"name": "NotFound", "message": "route not found"}
}

// Class is the registration handle of one service class.
type Class struct {
	app          *App
	name         string
	compiled     *validate.Class
	extractor    ContextExtractor
	interceptors []UnaryInterceptor
	methods      map[string]MethodFunc
}

// Method registers fn as the implementation of a declared method. It panics
// if the class does not declare the method. Registering a method twice
// replaces the earlier function and logs a warning.
func (c *Class) Method(name string, fn MethodFunc) *Class {
	if _, ok := c.compiled.Method(name); !ok {
		panic(fmt.Sprintf("concord: class %s has no method %q", c.name, name))
	}
	c.app.mu.Lock()
	defer c.app.mu.Unlock()
	if _, exists := c.methods[name]; exists {
		c.app.getLogger().Warn("duplicate method registration",
			slog.String("class", c.name),
			slog.String("method", name))
	}
	c.methods[name] = fn
	return c
}

// WithContextExtractor sets the function that builds the server-only
// context of each call. Classes that take a server-only context fail every
// call with an InternalServerError until one is set.
func (c *Class) WithContextExtractor(fn ContextExtractor) *Class {
	c.app.mu.Lock()
	defer c.app.mu.Unlock()
	c.extractor = fn
	return c
}

// WithUnaryInterceptor adds an interceptor to this class.
// Class interceptors execute after global interceptors.
// See App.WithUnaryInterceptor for the complete execution order.
func (c *Class) WithUnaryInterceptor(i UnaryInterceptor) *Class {
	c.app.mu.Lock()
	defer c.app.mu.Unlock()
	c.interceptors = append(c.interceptors, i)
	return c
}
