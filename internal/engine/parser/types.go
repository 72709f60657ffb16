package parser

import "time"

// SourceFile is a parsed Python module together with its element tree.
// A SourceFile and its elements are immutable once ParseFile returns, so they
// may be shared between concurrent analyses.
type SourceFile struct {
	Path     string
	Language string
	Text     string
	Root     *Element
	ParsedAt time.Time
}

type Location struct {
	File   string
	Line   int
	Column int
}

// Element is one named node of the syntax tree with its text span and
// parent/sibling links.
type Element struct {
	kind     string
	file     *SourceFile
	parent   *Element
	children []*Element
	index    int // position among parent.children
	start    int
	end      int
	line     int
	column   int
	endLine  int
}

func (e *Element) Kind() string      { return e.kind }
func (e *Element) File() *SourceFile { return e.file }
func (e *Element) Parent() *Element  { return e.parent }
func (e *Element) StartByte() int    { return e.start }
func (e *Element) EndByte() int      { return e.end }
func (e *Element) Line() int         { return e.line }
func (e *Element) EndLine() int      { return e.endLine }
func (e *Element) Column() int       { return e.column }
func (e *Element) IsRoot() bool      { return e.parent == nil }

// Path returns the containing file path.
func (e *Element) Path() string {
	if e.file == nil {
		return ""
	}
	return e.file.Path
}

func (e *Element) Text() string {
	if e.file == nil {
		return ""
	}
	return e.file.Text[e.start:e.end]
}

func (e *Element) Location() Location {
	return Location{File: e.Path(), Line: e.line, Column: e.column}
}

func (e *Element) Children() []*Element {
	return e.children
}

func (e *Element) FirstChild() *Element {
	if len(e.children) == 0 {
		return nil
	}
	return e.children[0]
}

func (e *Element) PrevSibling() *Element {
	if e.parent == nil || e.index == 0 {
		return nil
	}
	return e.parent.children[e.index-1]
}

func (e *Element) NextSibling() *Element {
	if e.parent == nil || e.index+1 >= len(e.parent.children) {
		return nil
	}
	return e.parent.children[e.index+1]
}

// Contains reports whether other lies in the subtree rooted at e.
func (e *Element) Contains(other *Element) bool {
	for cur := other; cur != nil; cur = cur.parent {
		if cur == e {
			return true
		}
	}
	return false
}
