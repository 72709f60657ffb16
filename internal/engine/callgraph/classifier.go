package callgraph

import (
	"fmt"
	"regexp"
	"strings"

	"callctx/internal/engine/parser"
)

const (
	ClassifierText    = "text"
	ClassifierGrammar = "grammar"
)

// Classifier decides which elements are definitions and call sites.
type Classifier interface {
	Name() string
	IsFunctionOrMethod(e *parser.Element) bool
	IsClassDefinition(e *parser.Element) bool
	IsCallExpression(e *parser.Element) bool
}

func NewClassifier(kind string) (Classifier, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", ClassifierGrammar:
		return GrammarClassifier{}, nil
	case ClassifierText:
		return TextClassifier{}, nil
	default:
		return nil, fmt.Errorf("unknown classifier %q (expected %q or %q)", kind, ClassifierText, ClassifierGrammar)
	}
}

var (
	defPattern   = regexp.MustCompile(`^[ \t]*(?:async[ \t]+)?def[ \t]+[A-Za-z_]\w*[ \t]*\(`)
	classPattern = regexp.MustCompile(`^[ \t]*class[ \t]+[A-Za-z_]\w*`)
	calleeTail   = regexp.MustCompile(`[A-Za-z_][\w.]*$`)
	identPattern = regexp.MustCompile(`^[A-Za-z_]\w*$`)
)

// TextClassifier classifies elements from their source text and indentation
// alone, without looking at node kinds.
type TextClassifier struct{}

func (TextClassifier) Name() string { return ClassifierText }

func (TextClassifier) IsFunctionOrMethod(e *parser.Element) bool {
	if e == nil || !isDefText(e.Text()) {
		return false
	}
	return !isWrapper(e, isDefText)
}

func (TextClassifier) IsClassDefinition(e *parser.Element) bool {
	if e == nil || !isClassText(e.Text()) {
		return false
	}
	return !isWrapper(e, isClassText)
}

func (TextClassifier) IsCallExpression(e *parser.Element) bool {
	if e == nil {
		return false
	}
	text := strings.TrimSpace(e.Text())
	if !strings.Contains(text, "(") {
		return false
	}
	return !strings.HasPrefix(text, "def ") && !strings.HasPrefix(text, "async def ")
}

// isDefText reports whether text opens with a def line. Decorators are
// separate sibling elements, so text starting with "@" is never a definition.
func isDefText(text string) bool {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	if strings.HasPrefix(trimmed, "@") {
		return false
	}
	return defPattern.MatchString(trimmed)
}

func isClassText(text string) bool {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	if strings.HasPrefix(trimmed, "@") {
		return false
	}
	return classPattern.MatchString(trimmed)
}

// isWrapper reports whether e merely encloses a first child that starts at the
// same position and matches the same way, e.g. a block or module whose first
// statement is a definition.
func isWrapper(e *parser.Element, match func(string) bool) bool {
	first := e.FirstChild()
	if first == nil {
		return false
	}
	file := e.File()
	if file == nil || first.StartByte() < e.StartByte() {
		return false
	}
	if strings.TrimSpace(file.Text[e.StartByte():first.StartByte()]) != "" {
		return false
	}
	return match(first.Text())
}

// GrammarClassifier uses tree-sitter node kinds.
type GrammarClassifier struct{}

func (GrammarClassifier) Name() string { return ClassifierGrammar }

func (GrammarClassifier) IsFunctionOrMethod(e *parser.Element) bool {
	return e != nil && e.Kind() == "function_definition"
}

func (GrammarClassifier) IsClassDefinition(e *parser.Element) bool {
	return e != nil && e.Kind() == "class_definition"
}

func (GrammarClassifier) IsCallExpression(e *parser.Element) bool {
	return e != nil && e.Kind() == "call"
}

// ExtractName returns a definition's name: leading decorator lines,
// indentation, "async" and "def" are skipped and the text up to "(" is kept.
func ExtractName(e *parser.Element) string {
	if e == nil {
		return ""
	}
	text := skipDecoratorLines(e.Text())
	text = strings.TrimLeft(text, " \t")
	text = trimKeyword(text, "async")
	text = trimKeyword(text, "def")
	if idx := strings.IndexAny(text, "(:\n"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// ExtractClassName returns the text between "class " and the first "(" or ":".
func ExtractClassName(e *parser.Element) string {
	if e == nil {
		return ""
	}
	text := skipDecoratorLines(e.Text())
	text = strings.TrimLeft(text, " \t")
	text = trimKeyword(text, "class")
	if idx := strings.IndexAny(text, "(:\n"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func skipDecoratorLines(text string) string {
	for {
		trimmed := strings.TrimLeft(text, " \t\r\n")
		if !strings.HasPrefix(trimmed, "@") {
			return strings.TrimLeft(text, "\r\n")
		}
		idx := strings.IndexByte(trimmed, '\n')
		if idx < 0 {
			return ""
		}
		text = trimmed[idx+1:]
	}
}

func trimKeyword(text, keyword string) string {
	if !strings.HasPrefix(text, keyword) {
		return text
	}
	rest := text[len(keyword):]
	if rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return text
	}
	return strings.TrimLeft(rest, " \t")
}

// callHead returns the text before the first "(" and whether one exists.
func callHead(text string) (string, bool) {
	idx := strings.IndexByte(text, '(')
	if idx < 0 {
		return "", false
	}
	return text[:idx], true
}

// CallName returns the callee name of a call expression: the trailing dotted
// name before the first "(", reduced to its last segment.
func CallName(e *parser.Element) string {
	if e == nil {
		return ""
	}
	return callNameFromText(e.Text())
}

func callNameFromText(text string) string {
	head, ok := callHead(strings.TrimSpace(text))
	if !ok {
		return ""
	}
	head = strings.TrimRight(head, " \t")
	if head == "" {
		return ""
	}
	chain := calleeTail.FindString(head)
	if idx := strings.LastIndexByte(chain, '.'); idx >= 0 {
		chain = chain[idx+1:]
	}
	if !identPattern.MatchString(chain) {
		return ""
	}
	return chain
}

// isMethodCallText reports whether a "." appears before the first "(".
func isMethodCallText(text string) bool {
	head, ok := callHead(text)
	return ok && strings.Contains(head, ".")
}

// decorators returns the consecutive decorator siblings preceding e in
// document order.
func decorators(e *parser.Element) []*parser.Element {
	var out []*parser.Element
	for prev := e.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		if !strings.HasPrefix(strings.TrimSpace(prev.Text()), "@") {
			break
		}
		out = append([]*parser.Element{prev}, out...)
	}
	return out
}

// DecoratedText is e's text preceded by its decorator lines.
func DecoratedText(e *parser.Element) string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	for _, d := range decorators(e) {
		b.WriteString(strings.TrimSpace(d.Text()))
		b.WriteByte('\n')
	}
	b.WriteString(e.Text())
	return b.String()
}
