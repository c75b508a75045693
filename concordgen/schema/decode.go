package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// PathError reports a decoding failure at a location within the document.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

// UnmarshalJSON decodes a schema node, recording the keywords it carries.
func (n *Node) UnmarshalJSON(data []byte) error {
	keys, fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*n = Node{Keywords: keys}
	for _, k := range keys {
		if err := n.decodeKeyword(k, fields[k]); err != nil {
			return &PathError{Path: k, Err: err}
		}
	}
	return nil
}

func (n *Node) decodeKeyword(k string, raw json.RawMessage) error {
	switch k {
	case "type":
		return n.decodeType(raw)
	case "format":
		return json.Unmarshal(raw, &n.Format)
	case "$ref":
		return json.Unmarshal(raw, &n.Ref)
	case "items":
		return n.decodeItems(raw)
	case "properties":
		n.Properties = NewNodeMap()
		return json.Unmarshal(raw, n.Properties)
	case "propertyOrder":
		return json.Unmarshal(raw, &n.PropertyOrder)
	case "required":
		return json.Unmarshal(raw, &n.Required)
	case "additionalProperties":
		return n.decodeAdditional(raw)
	case "enum":
		n.HasEnum = true
		return json.Unmarshal(raw, &n.Enum)
	case "const":
		n.HasConst = true
		return json.Unmarshal(raw, &n.Const)
	case "anyOf":
		return decodeList(raw, &n.AnyOf)
	case "allOf":
		return decodeList(raw, &n.AllOf)
	case "oneOf":
		return decodeList(raw, &n.OneOf)
	case "not":
		n.Not = new(Node)
		return json.Unmarshal(raw, n.Not)
	case "default":
		n.HasDefault = true
		return json.Unmarshal(raw, &n.Default)
	case "minimum":
		return json.Unmarshal(raw, &n.Minimum)
	case "maximum":
		return json.Unmarshal(raw, &n.Maximum)
	case "exclusiveMinimum":
		return json.Unmarshal(raw, &n.ExclusiveMinimum)
	case "exclusiveMaximum":
		return json.Unmarshal(raw, &n.ExclusiveMaximum)
	case "multipleOf":
		return json.Unmarshal(raw, &n.MultipleOf)
	case "minLength":
		return json.Unmarshal(raw, &n.MinLength)
	case "maxLength":
		return json.Unmarshal(raw, &n.MaxLength)
	case "minItems":
		return json.Unmarshal(raw, &n.MinItems)
	case "maxItems":
		return json.Unmarshal(raw, &n.MaxItems)
	case "pattern":
		return json.Unmarshal(raw, &n.Pattern)
	case KeywordConcordType:
		var s any
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		// Non-string overrides are ignored, as if absent.
		if str, ok := s.(string); ok {
			n.ConcordType = &str
		}
		return nil
	case KeywordCoerceDate:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return err
		}
		n.CoerceDate = &b
		return nil
	}
	return nil
}

func (n *Node) decodeType(raw json.RawMessage) error {
	switch firstByte(raw) {
	case '[':
		n.TypeList = true
		return json.Unmarshal(raw, &n.Type)
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		n.Type = []string{s}
		return nil
	}
	return fmt.Errorf("expected string or list of strings, got %s", raw)
}

func (n *Node) decodeItems(raw json.RawMessage) error {
	switch firstByte(raw) {
	case '{':
		n.Items = new(Node)
		return json.Unmarshal(raw, n.Items)
	case '[':
		n.TupleItems = []*Node{}
		return decodeList(raw, &n.TupleItems)
	}
	n.InvalidItems = true
	return nil
}

func (n *Node) decodeAdditional(raw json.RawMessage) error {
	switch firstByte(raw) {
	case '{':
		n.AdditionalProperties = new(Node)
		return json.Unmarshal(raw, n.AdditionalProperties)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return err
		}
		n.NoAdditional = !b
		return nil
	}
	return fmt.Errorf("expected boolean or schema, got %s", raw)
}

func decodeList(raw json.RawMessage, dst *[]*Node) error {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return err
	}
	out := make([]*Node, 0, len(items))
	for i, item := range items {
		n := new(Node)
		if err := json.Unmarshal(item, n); err != nil {
			return &PathError{Path: fmt.Sprint(i), Err: err}
		}
		out = append(out, n)
	}
	*dst = out
	return nil
}

// decodeObject splits a JSON object into its keys, in document order, and
// their raw values. A repeated key keeps its first position and last value.
func decodeObject(data []byte) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}
	var keys []string
	fields := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		if _, dup := fields[key]; !dup {
			keys = append(keys, key)
		}
		fields[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, nil, errors.New("unexpected data after object")
	}
	return keys, fields, nil
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
