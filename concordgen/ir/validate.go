package ir

// ValidationError represents a structural problem in a ServiceSpec.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks the ServiceSpec for structural issues.
// Returns all validation errors found (not just the first).
func (s *ServiceSpec) Validate() []error {
	var errs []error

	names := make(map[string]bool, len(s.Definitions))
	for _, d := range s.Definitions {
		if names[d.Name] {
			errs = append(errs, &ValidationError{
				Code:    "duplicate_definition",
				Message: "duplicate definition name: " + d.Name,
			})
		}
		names[d.Name] = true
	}

	exceptions := make(map[string]bool, len(s.Exceptions))
	for _, e := range s.Exceptions {
		exceptions[e.Name] = true
	}

	for _, c := range s.Classes {
		methodNames := make(map[string]bool, len(c.Methods))
		for _, m := range c.Methods {
			if methodNames[m.Name] {
				errs = append(errs, &ValidationError{
					Code:    "duplicate_method",
					Message: "duplicate method name in class " + c.Name + ": " + m.Name,
				})
			}
			methodNames[m.Name] = true

			if m.ClassName != c.Name {
				errs = append(errs, &ValidationError{
					Code:    "invalid_class_name",
					Message: "method " + c.Name + "." + m.Name + " names owning class " + m.ClassName,
				})
			}
			for _, p := range m.Parameters {
				if p.Name == ContextParam {
					errs = append(errs, &ValidationError{
						Code:    "naming_conflict",
						Message: "parameter name '" + ContextParam + "' is reserved: " + c.Name + "." + m.Name,
					})
				}
			}
			for _, t := range m.Throws {
				if !exceptions[t] {
					errs = append(errs, &ValidationError{
						Code:    "unknown_exception",
						Message: "method " + c.Name + "." + m.Name + " throws unknown exception: " + t,
					})
				}
			}
		}
	}
	return errs
}
