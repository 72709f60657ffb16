package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Visitor is called for every element in pre-order. Returning false skips the
// element's children.
type Visitor func(e *Element) bool

// Walk visits e and its descendants in document order.
func Walk(e *Element, visit Visitor) {
	if e == nil {
		return
	}
	if !visit(e) {
		return
	}
	for _, child := range e.children {
		Walk(child, visit)
	}
}

// Descendants returns every element strictly below e in document order.
func Descendants(e *Element) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	for _, child := range e.children {
		Walk(child, func(el *Element) bool {
			out = append(out, el)
			return true
		})
	}
	return out
}

// Find returns the first element of e's subtree (e included) matching pred.
func Find(e *Element, pred func(*Element) bool) *Element {
	var found *Element
	Walk(e, func(el *Element) bool {
		if found != nil {
			return false
		}
		if pred(el) {
			found = el
			return false
		}
		return true
	})
	return found
}

// treeBuilder copies the named nodes of a tree-sitter tree into Elements so the
// tree can be closed right after parsing.
type treeBuilder struct {
	file *SourceFile
}

func (b *treeBuilder) build(root *sitter.Node) *Element {
	if root == nil {
		return nil
	}
	holder := &Element{}
	b.visit(root, holder)
	if len(holder.children) == 0 {
		return nil
	}
	top := holder.children[0]
	top.parent = nil
	top.index = 0
	return top
}

// visit attaches named nodes to the nearest named ancestor; anonymous tokens
// are dropped.
func (b *treeBuilder) visit(node *sitter.Node, parent *Element) {
	current := parent
	if node.IsNamed() {
		current = b.newElement(node, parent)
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		b.visit(child, current)
	}
}

func (b *treeBuilder) newElement(node *sitter.Node, parent *Element) *Element {
	start := node.StartPosition()
	end := node.EndPosition()
	el := &Element{
		kind:    node.Kind(),
		file:    b.file,
		parent:  parent,
		index:   len(parent.children),
		start:   int(node.StartByte()),
		end:     int(node.EndByte()),
		line:    int(start.Row) + 1,
		column:  int(start.Column) + 1,
		endLine: int(end.Row) + 1,
	}
	parent.children = append(parent.children, el)
	return el
}
