package validate

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// formatTags maps string formats to go-playground/validator tags.
var formatTags = map[string]string{
	"date-time": "datetime=" + time.RFC3339,
	"date":      "datetime=2006-01-02",
	"email":     "email",
	"uri":       "uri",
	"uuid":      "uuid",
	"hostname":  "hostname_rfc1123",
	"ipv4":      "ipv4",
	"ipv6":      "ipv6",
}

var formatValidator = validator.New()

func knownFormat(format string) bool {
	_, ok := formatTags[format]
	return ok
}

// run collects the failures of one validation pass.
type run struct {
	strip bool
	errs  []FieldError
}

func (r *run) fail(keyword, path, message string, params map[string]any) {
	r.errs = append(r.errs, FieldError{Keyword: keyword, Path: path, Message: message, Params: params})
}

// check validates v and returns the value to store in its place, which
// differs from v only when a date was coerced or a branch of a union
// produced a transformed copy.
func (c *compiled) check(v any, path string, r *run) any {
	if c.target != nil {
		return c.target.check(v, path, r)
	}
	if c.empty {
		return v
	}
	start := len(r.errs)

	if len(c.types) > 0 && !c.typeMatches(v) {
		r.fail("type", path, "must be "+joinTypes(c.types), map[string]any{"type": joinTypes(c.types)})
		return v
	}
	if c.hasEnum && !slices.ContainsFunc(c.enum, func(e any) bool { return equal(e, v) }) {
		r.fail("enum", path, "must be equal to one of the allowed values", map[string]any{"allowedValues": c.enum})
	}
	if c.hasConst && !equal(c.constant, v) {
		r.fail("const", path, "must be equal to constant", map[string]any{"allowedValue": c.constant})
	}

	switch val := v.(type) {
	case string:
		c.checkString(val, path, r)
	case map[string]any:
		c.checkObject(val, path, r)
	case []any:
		c.checkArray(val, path, r)
	default:
		if f, ok := toFloat(v); ok {
			c.checkNumber(f, path, r)
		}
	}

	for _, sub := range c.allOf {
		v = sub.check(v, path, r)
	}
	if c.anyOf != nil {
		v = c.checkAnyOf(v, path, r)
	}
	if c.oneOf != nil {
		v = c.checkOneOf(v, path, r)
	}
	if c.not != nil {
		probe := &run{strip: r.strip}
		c.not.check(deepCopy(v), path, probe)
		if len(probe.errs) == 0 {
			r.fail("not", path, "must NOT be valid", nil)
		}
	}

	if c.coerce && len(r.errs) == start {
		if s, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t
			}
		}
	}
	return v
}

func (c *compiled) checkString(s, path string, r *run) {
	n := utf8.RuneCountInString(s)
	if c.minLength != nil && n < *c.minLength {
		r.fail("minLength", path, fmt.Sprintf("must NOT have fewer than %d characters", *c.minLength), map[string]any{"limit": *c.minLength})
	}
	if c.maxLength != nil && n > *c.maxLength {
		r.fail("maxLength", path, fmt.Sprintf("must NOT have more than %d characters", *c.maxLength), map[string]any{"limit": *c.maxLength})
	}
	if c.pattern != nil && !c.pattern.MatchString(s) {
		r.fail("pattern", path, fmt.Sprintf("must match pattern %q", c.pattern.String()), map[string]any{"pattern": c.pattern.String()})
	}
	if tag, ok := formatTags[c.format]; ok {
		if err := formatValidator.Var(s, tag); err != nil {
			r.fail("format", path, fmt.Sprintf("must match format %q", c.format), map[string]any{"format": c.format})
		}
	}
}

func (c *compiled) checkNumber(f float64, path string, r *run) {
	limit := func(keyword, op string, bound float64) {
		r.fail(keyword, path, "must be "+op+" "+strconv.FormatFloat(bound, 'g', -1, 64),
			map[string]any{"comparison": op, "limit": bound})
	}
	if c.minimum != nil && f < *c.minimum {
		limit("minimum", ">=", *c.minimum)
	}
	if c.maximum != nil && f > *c.maximum {
		limit("maximum", "<=", *c.maximum)
	}
	if c.exclusiveMinimum != nil && f <= *c.exclusiveMinimum {
		limit("exclusiveMinimum", ">", *c.exclusiveMinimum)
	}
	if c.exclusiveMaximum != nil && f >= *c.exclusiveMaximum {
		limit("exclusiveMaximum", "<", *c.exclusiveMaximum)
	}
	if c.multipleOf != nil && *c.multipleOf != 0 {
		q := f / *c.multipleOf
		if math.Abs(q-math.Round(q)) > 1e-9 {
			r.fail("multipleOf", path, "must be multiple of "+strconv.FormatFloat(*c.multipleOf, 'g', -1, 64),
				map[string]any{"multipleOf": *c.multipleOf})
		}
	}
}

func (c *compiled) checkObject(obj map[string]any, path string, r *run) {
	for _, p := range c.props {
		if _, ok := obj[p.name]; !ok && p.schema.hasDefault {
			obj[p.name] = deepCopy(p.schema.def)
		}
	}
	for _, name := range c.required {
		if _, ok := obj[name]; !ok {
			r.fail("required", path, "must have required property '"+name+"'", map[string]any{"missingProperty": name})
		}
	}
	for _, p := range c.props {
		if pv, ok := obj[p.name]; ok {
			obj[p.name] = p.schema.check(pv, pointer(path, p.name), r)
		}
	}
	if !c.noAdditional && c.additional == nil {
		return
	}
	for _, key := range slices.Sorted(maps.Keys(obj)) {
		if _, declared := c.propIndex[key]; declared {
			continue
		}
		switch {
		case c.noAdditional && r.strip:
			delete(obj, key)
		case c.noAdditional:
			r.fail("additionalProperties", path, "must NOT have additional properties", map[string]any{"additionalProperty": key})
		default:
			obj[key] = c.additional.check(obj[key], pointer(path, key), r)
		}
	}
}

func (c *compiled) checkArray(arr []any, path string, r *run) {
	if c.minItems != nil && len(arr) < *c.minItems {
		r.fail("minItems", path, fmt.Sprintf("must NOT have fewer than %d items", *c.minItems), map[string]any{"limit": *c.minItems})
	}
	if c.maxItems != nil && len(arr) > *c.maxItems {
		r.fail("maxItems", path, fmt.Sprintf("must NOT have more than %d items", *c.maxItems), map[string]any{"limit": *c.maxItems})
	}
	if c.tuple != nil {
		for i := 0; i < len(arr) && i < len(c.tuple); i++ {
			arr[i] = c.tuple[i].check(arr[i], pointer(path, strconv.Itoa(i)), r)
		}
		return
	}
	if c.items != nil {
		for i := range arr {
			arr[i] = c.items.check(arr[i], pointer(path, strconv.Itoa(i)), r)
		}
	}
}

// checkAnyOf tries each branch on a private copy of v and keeps the copy of
// the first branch that passes.
func (c *compiled) checkAnyOf(v any, path string, r *run) any {
	var branchErrs []FieldError
	for _, sub := range c.anyOf {
		probe := &run{strip: r.strip}
		out := sub.check(deepCopy(v), path, probe)
		if len(probe.errs) == 0 {
			return out
		}
		branchErrs = append(branchErrs, probe.errs...)
	}
	r.errs = append(r.errs, branchErrs...)
	r.fail("anyOf", path, "must match a schema in anyOf", nil)
	return v
}

func (c *compiled) checkOneOf(v any, path string, r *run) any {
	var (
		passing    []int
		winner     any
		branchErrs []FieldError
	)
	for i, sub := range c.oneOf {
		probe := &run{strip: r.strip}
		out := sub.check(deepCopy(v), path, probe)
		if len(probe.errs) == 0 {
			if passing == nil {
				winner = out
			}
			passing = append(passing, i)
			continue
		}
		branchErrs = append(branchErrs, probe.errs...)
	}
	switch len(passing) {
	case 1:
		return winner
	case 0:
		r.errs = append(r.errs, branchErrs...)
	}
	r.fail("oneOf", path, "must match exactly one schema in oneOf", map[string]any{"passingSchemas": passing})
	return v
}

func (c *compiled) typeMatches(v any) bool {
	for _, t := range c.types {
		if typeMatches(t, v, c.format) {
			return true
		}
	}
	return false
}

func typeMatches(t string, v any, format string) bool {
	switch t {
	case "null":
		return v == nil
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "string":
		switch v.(type) {
		case string:
			return true
		case time.Time:
			return format == "date-time"
		}
		return false
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	case "number":
		_, ok := toFloat(v)
		return ok
	case "integer":
		f, ok := toFloat(v)
		return ok && !math.IsInf(f, 0) && f == math.Trunc(f)
	}
	return false
}

func joinTypes(types []string) string {
	return strings.Join(types, ",")
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// equal compares two decoded JSON values. Numbers compare by value whatever
// their Go type.
func equal(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// deepCopy copies the containers of a decoded JSON value. Scalars are
// immutable and shared.
func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = deepCopy(e)
		}
		return out
	}
	return v
}
