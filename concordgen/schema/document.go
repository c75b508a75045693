package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a parsed schema document.
// A Document is never modified after parsing and may be shared freely.
type Document struct {
	// Definitions holds the named definitions in declaration order.
	// It is nil when the document has no "definitions" member.
	Definitions *NodeMap

	// Raw is the compact JSON encoding of the whole document.
	Raw json.RawMessage
}

// Definition looks up a definition by its raw (unsanitized) name.
func (d *Document) Definition(name string) (*Node, bool) {
	return d.Definitions.Get(name)
}

// Parse decodes a JSON schema document.
func Parse(data []byte) (*Document, error) {
	keys, fields, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	doc := &Document{Raw: compact.Bytes()}
	for _, k := range keys {
		if k != "definitions" {
			continue
		}
		doc.Definitions = NewNodeMap()
		if err := json.Unmarshal(fields[k], doc.Definitions); err != nil {
			return nil, fmt.Errorf("parse schema: definitions/%w", err)
		}
	}
	return doc, nil
}

// ParseYAML decodes a YAML schema document. Mapping order is preserved.
func ParseYAML(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	var buf bytes.Buffer
	if err := writeYAMLAsJSON(&buf, &root); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return Parse(buf.Bytes())
}

// Load reads a schema document from path. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	}
	return Parse(data)
}

func writeYAMLAsJSON(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeYAMLAsJSON(buf, n.Content[0])
	case yaml.AliasNode:
		return writeYAMLAsJSON(buf, n.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeYAMLAsJSON(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, c := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeYAMLAsJSON(buf, c); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.Write(b)
		return nil
	}
	return fmt.Errorf("line %d: unsupported YAML node", n.Line)
}
