package validate

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/broady/concord/concordgen/ident"
	"github.com/broady/concord/concordgen/schema"
)

// compiled is the executable form of a schema node. After compilation it is
// never written again, so one tree can serve any number of goroutines.
type compiled struct {
	empty bool

	// target is set for $ref nodes; the other fields are then unused, as
	// siblings of $ref carry no meaning.
	target *compiled

	types []string

	hasEnum  bool
	enum     []any
	hasConst bool
	constant any

	props        []property
	propIndex    map[string]*compiled
	required     []string
	noAdditional bool
	additional   *compiled

	items *compiled
	tuple []*compiled

	minItems, maxItems   *int
	minLength, maxLength *int
	pattern              *regexp.Regexp
	format               string

	minimum, maximum                   *float64
	exclusiveMinimum, exclusiveMaximum *float64
	multipleOf                         *float64

	anyOf, allOf, oneOf []*compiled
	not                 *compiled

	hasDefault bool
	def        any

	// coerce replaces a valid date-time string with a time.Time.
	coerce bool
}

type property struct {
	name   string
	schema *compiled
}

// compiler turns schema nodes into compiled trees. Definitions are
// pre-registered as empty shells so references, including recursive ones,
// resolve by pointer.
type compiler struct {
	opts Options
	defs map[string]*compiled
	errs []error
}

func (cc *compiler) fail(code schema.ErrorCode, path, format string, args ...any) {
	e := schema.Errorf(code, format, args...)
	e.Names = []string{path}
	cc.errs = append(cc.errs, e)
}

func (cc *compiler) compile(n *schema.Node, path string) *compiled {
	c := new(compiled)
	cc.compileInto(c, n, path)
	return c
}

func (cc *compiler) compileInto(c *compiled, n *schema.Node, path string) {
	if n.IsEmpty() {
		c.empty = true
		return
	}
	if n.Ref != "" {
		if !strings.HasPrefix(n.Ref, ident.DefinitionsPrefix) {
			cc.fail(schema.CodeUnresolvedRef, path, "%s: unsupported reference %q", path, n.Ref)
			c.empty = true
			return
		}
		target, ok := cc.defs[ident.FromRef(n.Ref)]
		if !ok {
			cc.fail(schema.CodeUnresolvedRef, path, "%s: reference to unknown definition %q", path, n.Ref)
			c.empty = true
			return
		}
		c.target = target
		return
	}

	c.types = n.Type
	c.hasEnum, c.enum = n.HasEnum, n.Enum
	c.hasConst, c.constant = n.HasConst, n.Const
	c.hasDefault, c.def = n.HasDefault, n.Default
	c.required = n.Required
	c.noAdditional = n.NoAdditional
	c.minItems, c.maxItems = n.MinItems, n.MaxItems
	c.minLength, c.maxLength = n.MinLength, n.MaxLength
	c.minimum, c.maximum = n.Minimum, n.Maximum
	c.exclusiveMinimum, c.exclusiveMaximum = n.ExclusiveMinimum, n.ExclusiveMaximum
	c.multipleOf = n.MultipleOf
	c.format = n.Format

	if n.Pattern != "" {
		re, err := regexp.Compile(n.Pattern)
		if err != nil {
			cc.fail(schema.CodeInvalidPattern, path, "%s: %v", path, err)
		}
		c.pattern = re
	}

	if n.CoerceDate != nil && !n.IsDateTime() {
		cc.fail(schema.CodeInvalidCoerceDate, path, "%s: format should be %s when using %s", path, schema.FormatDateTime, schema.KeywordCoerceDate)
	}
	if n.IsDateTime() && cc.opts.CoerceDates && (n.CoerceDate == nil || *n.CoerceDate) {
		c.coerce = true
	}
	if n.Format != "" && !knownFormat(n.Format) {
		cc.opts.logger().Warn("unknown string format, not checked",
			slog.String("path", path),
			slog.String("format", n.Format))
	}

	if n.Properties != nil {
		c.propIndex = make(map[string]*compiled, n.Properties.Len())
		for name, p := range n.Properties.All() {
			pc := cc.compile(p, path+"/properties/"+name)
			c.props = append(c.props, property{name: name, schema: pc})
			c.propIndex[name] = pc
		}
	}
	if n.AdditionalProperties != nil {
		c.additional = cc.compile(n.AdditionalProperties, path+"/additionalProperties")
	}
	if n.Items != nil {
		c.items = cc.compile(n.Items, path+"/items")
	}
	for i, item := range n.TupleItems {
		c.tuple = append(c.tuple, cc.compile(item, path+"/items/"+strconv.Itoa(i)))
	}
	c.anyOf = cc.compileList(n.AnyOf, path+"/anyOf")
	c.allOf = cc.compileList(n.AllOf, path+"/allOf")
	c.oneOf = cc.compileList(n.OneOf, path+"/oneOf")
	if n.Not != nil {
		c.not = cc.compile(n.Not, path+"/not")
	}
}

func (cc *compiler) compileList(nodes []*schema.Node, path string) []*compiled {
	if nodes == nil {
		return nil
	}
	out := make([]*compiled, len(nodes))
	for i, n := range nodes {
		out[i] = cc.compile(n, path+"/"+strconv.Itoa(i))
	}
	return out
}

// coercesAtRoot reports whether validating a value against c could replace
// the value itself rather than a member of it.
func coercesAtRoot(c *compiled, seen map[*compiled]bool) bool {
	if c == nil || seen[c] {
		return false
	}
	seen[c] = true
	if c.target != nil {
		return coercesAtRoot(c.target, seen)
	}
	if c.coerce {
		return true
	}
	for _, list := range [][]*compiled{c.anyOf, c.allOf, c.oneOf} {
		for _, sub := range list {
			if coercesAtRoot(sub, seen) {
				return true
			}
		}
	}
	return false
}
