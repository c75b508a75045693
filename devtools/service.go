// Package devtools serves read-only introspection of a running concord App:
// health, runtime statistics, registered methods and the compiled IR.
package devtools

import (
	"encoding/json"
	"net/http"
	"runtime"
	"slices"

	"github.com/gorilla/schema"

	"github.com/broady/concord"
	"github.com/broady/concord/concordgen/ir"
)

var queryDecoder = schema.NewDecoder()

func init() {
	queryDecoder.IgnoreUnknownKeys(true)
}

// Service provides the devtools endpoints. Mount it next to the app:
//
//	mux.Handle("/", app.Handler())
//	mux.Handle("/_devtools/", http.StripPrefix("/_devtools", devtools.New(app, 8080).Handler()))
type Service struct {
	app  *concord.App
	port int
}

// New creates a new devtools service.
func New(app *concord.App, port int) *Service {
	return &Service{app: app, port: port}
}

// Handler returns the devtools routes:
//
//	GET /ping          health check
//	GET /info          runtime statistics
//	GET /status        declared and registered methods per class
//	GET /definitions   IR definitions, filtered by ?kind=...&name=...
//	GET /classes/{name}  one class, exception or context from the IR
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", s.ping)
	mux.HandleFunc("GET /info", s.info)
	mux.HandleFunc("GET /status", s.status)
	mux.HandleFunc("GET /definitions", s.definitions)
	mux.HandleFunc("GET /classes/{name}", s.class)
	return mux
}

// PingResponse is the response of /ping.
type PingResponse struct {
	OK bool `json:"ok"`
}

func (s *Service) ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &PingResponse{OK: true})
}

// InfoResponse provides runtime information about the server.
type InfoResponse struct {
	Port          int         `json:"port"`
	Version       string      `json:"version"`
	NumGoroutines int         `json:"num_goroutines"`
	NumCPU        int         `json:"num_cpu"`
	Memory        MemoryStats `json:"memory"`
}

// MemoryStats contains memory statistics.
type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

func (s *Service) info(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	writeJSON(w, http.StatusOK, &InfoResponse{
		Port:          s.port,
		Version:       runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		Memory: MemoryStats{
			Alloc:      m.Alloc,
			TotalAlloc: m.TotalAlloc,
			Sys:        m.Sys,
			NumGC:      m.NumGC,
		},
	})
}

// StatusResponse provides server status and method discovery.
type StatusResponse struct {
	OK   bool `json:"ok"`
	Port int  `json:"port"`

	// Declared maps every service class to its declared methods.
	Declared map[string][]string `json:"declared"`

	// Registered maps classes to the methods that have an implementation.
	Registered map[string][]string `json:"registered"`

	// Unimplemented lists declared methods without an implementation, as
	// "Class.method".
	Unimplemented []string `json:"unimplemented"`
}

func (s *Service) status(w http.ResponseWriter, r *http.Request) {
	table := s.app.Table()
	registered := s.app.Routes()
	resp := &StatusResponse{
		OK:            true,
		Port:          s.port,
		Declared:      make(map[string][]string),
		Registered:    registered,
		Unimplemented: []string{},
	}
	for _, name := range table.Classes() {
		c, _ := table.Class(name)
		resp.Declared[name] = c.Methods()
		for _, m := range c.Methods() {
			if !slices.Contains(registered[name], m) {
				resp.Unimplemented = append(resp.Unimplemented, name+"."+m)
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// DefinitionsQuery filters /definitions.
type DefinitionsQuery struct {
	// Kind keeps definitions of the given kinds; empty keeps all.
	Kind []string `schema:"kind"`

	// Name keeps the definition with this exact name.
	Name string `schema:"name"`
}

func (s *Service) definitions(w http.ResponseWriter, r *http.Request) {
	var q DefinitionsQuery
	if err := queryDecoder.Decode(&q, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kinds := make([]ir.DefinitionKind, len(q.Kind))
	for i, k := range q.Kind {
		if err := kinds[i].UnmarshalText([]byte(k)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	out := []ir.Definition{}
	for _, d := range s.app.Table().Spec().Definitions {
		if len(kinds) > 0 && !slices.Contains(kinds, d.Kind) {
			continue
		}
		if q.Name != "" && d.Name != q.Name {
			continue
		}
		out = append(out, d)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) class(w http.ResponseWriter, r *http.Request) {
	spec := s.app.Table().Spec()
	name := r.PathValue("name")
	for _, list := range [][]*ir.ClassSpec{spec.Classes, spec.Exceptions, spec.Contexts} {
		for _, c := range list {
			if c.Name == name {
				writeJSON(w, http.StatusOK, c)
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "no class named "+name)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"name": http.StatusText(status), "message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
