package compose

import (
	"bytes"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Small builders for yaml.Node trees. Building nodes instead of marshalling maps
// keeps key order exactly as written and makes quoting explicit.

func str(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func quoted(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v, Style: yaml.DoubleQuotedStyle}
}

func seq(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Content: items}
}

func flowSeq(items ...*yaml.Node) *yaml.Node {
	n := seq(items...)
	n.Style = yaml.FlowStyle
	return n
}

func strs(vs ...string) []*yaml.Node {
	out := make([]*yaml.Node, len(vs))
	for i, v := range vs {
		out[i] = str(v)
	}
	return out
}

func quotedStrs(vs ...string) []*yaml.Node {
	out := make([]*yaml.Node, len(vs))
	for i, v := range vs {
		out[i] = quoted(v)
	}
	return out
}

func emptyMap() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Style: yaml.FlowStyle}
}

// mapping is an ordered YAML mapping under construction.
type mapping struct {
	node *yaml.Node
}

func newMapping() *mapping {
	return &mapping{node: &yaml.Node{Kind: yaml.MappingNode}}
}

func (m *mapping) set(key string, value *yaml.Node) *mapping {
	m.node.Content = append(m.node.Content, str(key), value)
	return m
}

func (m *mapping) setStr(key, value string) *mapping {
	return m.set(key, str(value))
}

func portMapping(host, container int) *yaml.Node {
	return quoted(strconv.Itoa(host) + ":" + strconv.Itoa(container))
}

const header = "Generated by stackgen from stack.yaml. Manual edits are overwritten on the next render."

func encode(root *mapping) ([]byte, error) {
	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: header,
		Content:     []*yaml.Node{root.node},
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding compose document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding compose document: %w", err)
	}
	return buf.Bytes(), nil
}
