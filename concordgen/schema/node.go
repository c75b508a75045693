// Package schema models the structural type schema consumed by the concord
// compiler: a JSON Schema document whose "definitions" map describes service
// interfaces, exceptions, enums and plain data types.
//
// Nodes keep the declaration order of object properties and definitions,
// because parameter order, attribute order and the order of the generated IR
// all derive from it.
package schema

import (
	"encoding/json"
	"iter"
)

// Keyword names with special meaning to concord.
const (
	// KeywordConcordType overrides the rendered type of a node.
	KeywordConcordType = "concordType"

	// KeywordCoerceDate toggles date coercion for a date-time node.
	KeywordCoerceDate = "coerce-date"

	// FormatDateTime is the string format that resolves to a date type and
	// is coerced to a date value during validation.
	FormatDateTime = "date-time"
)

// Node is a single schema fragment.
//
// The zero value is the empty node, which places no constraint on a value.
type Node struct {
	// Type holds the "type" keyword. A plain string yields one element;
	// TypeList records that the document used the list form.
	Type     []string
	TypeList bool

	Format string
	Ref    string

	// Items is set when "items" is a single schema; TupleItems when it is a
	// list. InvalidItems records an "items" value of any other shape.
	Items        *Node
	TupleItems   []*Node
	InvalidItems bool

	Properties    *NodeMap
	PropertyOrder []string
	Required      []string

	// NoAdditional is set for "additionalProperties": false.
	// AdditionalProperties holds the schema form.
	NoAdditional         bool
	AdditionalProperties *Node

	Enum     []any
	HasEnum  bool
	Const    any
	HasConst bool

	AnyOf []*Node
	AllOf []*Node
	OneOf []*Node
	Not   *Node

	Default    any
	HasDefault bool

	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum *float64
	ExclusiveMaximum *float64
	MultipleOf       *float64
	MinLength        *int
	MaxLength        *int
	MinItems         *int
	MaxItems         *int
	Pattern          string

	// ConcordType is the value of the concordType override, if present.
	ConcordType *string

	// CoerceDate is the value of an explicit coerce-date keyword.
	CoerceDate *bool

	// Keywords lists every keyword present on the node in document order,
	// including ones concord does not interpret (description, title, ...).
	Keywords []string
}

// IsEmpty reports whether the node carries no keywords at all.
func (n *Node) IsEmpty() bool {
	return n == nil || len(n.Keywords) == 0
}

// Has reports whether keyword was present on the node.
func (n *Node) Has(keyword string) bool {
	if n == nil {
		return false
	}
	for _, k := range n.Keywords {
		if k == keyword {
			return true
		}
	}
	return false
}

// SingleType returns the type name when "type" is a plain string.
func (n *Node) SingleType() (string, bool) {
	if n == nil || n.TypeList || len(n.Type) != 1 {
		return "", false
	}
	return n.Type[0], true
}

// IsRequired reports whether name appears in the node's required list.
func (n *Node) IsRequired(name string) bool {
	for _, r := range n.Required {
		if r == name {
			return true
		}
	}
	return false
}

// IsDateTime reports whether the node is a string with date-time format.
func (n *Node) IsDateTime() bool {
	return n != nil && n.Format == FormatDateTime
}

// NodeMap is an insertion-ordered mapping from names to nodes.
// It backs both object properties and the document's definitions.
type NodeMap struct {
	names []string
	nodes map[string]*Node
}

// NewNodeMap returns an empty map.
func NewNodeMap() *NodeMap {
	return &NodeMap{nodes: make(map[string]*Node)}
}

// Set adds or replaces an entry. New names are appended to the order.
func (m *NodeMap) Set(name string, n *Node) {
	if m.nodes == nil {
		m.nodes = make(map[string]*Node)
	}
	if _, ok := m.nodes[name]; !ok {
		m.names = append(m.names, name)
	}
	m.nodes[name] = n
}

// Get looks up name.
func (m *NodeMap) Get(name string) (*Node, bool) {
	if m == nil {
		return nil, false
	}
	n, ok := m.nodes[name]
	return n, ok
}

// Len returns the number of entries.
func (m *NodeMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.names)
}

// Names returns the entry names in declaration order.
func (m *NodeMap) Names() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// All iterates entries in declaration order.
func (m *NodeMap) All() iter.Seq2[string, *Node] {
	return func(yield func(string, *Node) bool) {
		if m == nil {
			return
		}
		for _, name := range m.names {
			if !yield(name, m.nodes[name]) {
				return
			}
		}
	}
}

// UnmarshalJSON decodes a JSON object keeping key order.
func (m *NodeMap) UnmarshalJSON(data []byte) error {
	keys, fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*m = NodeMap{nodes: make(map[string]*Node, len(keys))}
	for _, k := range keys {
		n := new(Node)
		if err := json.Unmarshal(fields[k], n); err != nil {
			return &PathError{Path: k, Err: err}
		}
		m.Set(k, n)
	}
	return nil
}
