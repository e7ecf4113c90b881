package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
)

// SyntaxNode is the part of a parser's JSON tree that grammatic reads.
// Other fields are ignored.
type SyntaxNode struct {
	Type     string       `json:"type"`
	Children []SyntaxNode `json:"children,omitempty"`
}

// NodeCount is 1 plus the node counts of all children.
func (n SyntaxNode) NodeCount() int {
	count := 1
	for _, c := range n.Children {
		count += c.NodeCount()
	}
	return count
}

// HasErrors reports whether n or any descendant is an ERROR node.
func (n SyntaxNode) HasErrors() bool {
	if n.Type == "ERROR" {
		return true
	}
	for _, c := range n.Children {
		if c.HasErrors() {
			return true
		}
	}
	return false
}

var errNotATree = errors.New("output is not a syntax tree: expected an object with a \"type\" or \"root_node\" field")

// decodeTree accepts either the root node itself or an object wrapping it
// as "root_node". The raw root node is returned alongside the decoded one.
func decodeTree(data []byte) (SyntaxNode, json.RawMessage, error) {
	data = bytes.TrimSpace(data)

	var wrapper struct {
		RootNode json.RawMessage `json:"root_node"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return SyntaxNode{}, nil, err
	}
	raw := json.RawMessage(data)
	if len(wrapper.RootNode) > 0 && !bytes.Equal(wrapper.RootNode, []byte("null")) {
		raw = wrapper.RootNode
	}

	var root SyntaxNode
	if err := json.Unmarshal(raw, &root); err != nil {
		return SyntaxNode{}, nil, err
	}
	if root.Type == "" {
		return SyntaxNode{}, nil, errNotATree
	}
	return root, raw, nil
}
