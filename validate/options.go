package validate

import (
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
)

// AdditionalPolicy selects what happens to properties that an
// "additionalProperties": false schema does not declare.
type AdditionalPolicy int

const (
	// Reject fails validation.
	Reject AdditionalPolicy = iota
	// Strip removes the property and passes.
	Strip
)

func (p AdditionalPolicy) String() string {
	switch p {
	case Reject:
		return "reject"
	case Strip:
		return "strip"
	}
	return fmt.Sprintf("AdditionalPolicy(%d)", int(p))
}

// Options configures validator compilation.
type Options struct {
	Additional AdditionalPolicy `validate:"oneof=0 1"`

	// CoerceDates replaces date-time strings with time.Time values during
	// validation. A node can opt out with "coerce-date": false.
	CoerceDates bool

	// Logger receives compile diagnostics. Defaults to slog.Default().
	Logger *slog.Logger `validate:"-"`
}

// DefaultOptions rejects unknown properties and coerces dates.
func DefaultOptions() Options {
	return Options{Additional: Reject, CoerceDates: true}
}

var optionsValidator = validator.New()

func (o Options) check() error {
	if err := optionsValidator.Struct(o); err != nil {
		return fmt.Errorf("validate: invalid options: %w", err)
	}
	return nil
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
