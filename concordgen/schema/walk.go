package schema

import (
	"slices"
	"strconv"
)

// WalkFunc is called for every node visited by Walk. path is a
// slash-separated location relative to the walk root. Returning false skips
// the node's children.
type WalkFunc func(path string, n *Node) bool

// Walk visits n and its subschemas depth-first. References are not followed.
func Walk(n *Node, path string, fn WalkFunc) {
	if n == nil || !fn(path, n) {
		return
	}
	Walk(n.Items, join(path, "items"), fn)
	for i, c := range n.TupleItems {
		Walk(c, join(path, "items", strconv.Itoa(i)), fn)
	}
	for name, c := range n.Properties.All() {
		Walk(c, join(path, "properties", name), fn)
	}
	Walk(n.AdditionalProperties, join(path, "additionalProperties"), fn)
	for i, c := range n.AnyOf {
		Walk(c, join(path, "anyOf", strconv.Itoa(i)), fn)
	}
	for i, c := range n.AllOf {
		Walk(c, join(path, "allOf", strconv.Itoa(i)), fn)
	}
	for i, c := range n.OneOf {
		Walk(c, join(path, "oneOf", strconv.Itoa(i)), fn)
	}
	Walk(n.Not, join(path, "not"), fn)
}

func join(path string, elems ...string) string {
	for _, e := range elems {
		if path == "" {
			path = e
		} else {
			path += "/" + e
		}
	}
	return path
}

// FindRefs returns every $ref reachable from n, in first-encountered order.
// A node carrying a $ref is not searched further.
func FindRefs(n *Node) []string {
	var refs []string
	Walk(n, "", func(_ string, c *Node) bool {
		if c.Ref != "" {
			refs = append(refs, c.Ref)
			return false
		}
		return true
	})
	return refs
}

// ParamOrder returns the property names of an object node sorted by its
// propertyOrder list. Names missing from the list sort first, in declaration
// order.
func ParamOrder(n *Node) []string {
	if n == nil {
		return nil
	}
	names := n.Properties.Names()
	rank := func(name string) int { return slices.Index(n.PropertyOrder, name) }
	slices.SortStableFunc(names, func(a, b string) int {
		return rank(a) - rank(b)
	})
	return names
}
