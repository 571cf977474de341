// Package syntax wraps the tree-sitter JavaScript grammar with the node
// helpers the analyzer needs.
package syntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// Tree is a parsed source unit. Close releases the parser memory.
type Tree struct {
	tree *sitter.Tree
	src  []byte
}

// Parse parses src as a JavaScript program.
func Parse(ctx context.Context, src []byte) (*Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse javascript: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parse javascript: no tree produced")
	}
	return &Tree{tree: tree, src: src}, nil
}

// Root returns the program node.
func (t *Tree) Root() *sitter.Node { return t.tree.RootNode() }

// Source returns the parsed bytes.
func (t *Tree) Source() []byte { return t.src }

// HasError reports whether the parser had to recover from syntax errors.
func (t *Tree) HasError() bool { return t.Root().HasError() }

// Close frees the underlying tree.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}
