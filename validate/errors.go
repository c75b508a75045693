package validate

import (
	"strings"
)

// FieldError is one failed constraint.
type FieldError struct {
	// Keyword is the schema keyword that failed (type, required, ...).
	Keyword string `json:"keyword"`

	// Path is the JSON pointer of the offending value, "" for the root.
	Path string `json:"path"`

	Message string         `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
}

func (e FieldError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// Errors is the list of every constraint a value failed. Validators never
// stop at the first failure.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

// pointer appends a JSON pointer token to path.
func pointer(path, token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	token = strings.ReplaceAll(token, "/", "~1")
	return path + "/" + token
}
