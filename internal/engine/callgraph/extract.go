package callgraph

import (
	"path/filepath"
	"strings"

	"callctx/internal/engine/parser"
)

const indentWidth = 4

// ExtractText returns the source span of def: from its first decorator to the
// start of the next sibling at the same or a lower indentation level, or to
// the end of def when there is none.
func ExtractText(def *parser.Element, includeComments bool) string {
	if def == nil || def.File() == nil {
		return ""
	}
	text := def.File().Text

	start := def.StartByte()
	if decs := decorators(def); len(decs) > 0 {
		start = decs[0].StartByte()
	}

	end := def.EndByte()
	level := indentLevelAt(text, def.StartByte())
	for sib := def.NextSibling(); sib != nil; sib = sib.NextSibling() {
		if strings.TrimSpace(sib.Text()) == "" {
			continue
		}
		if indentLevelAt(text, sib.StartByte()) <= level {
			end = sib.StartByte()
			break
		}
	}

	span := text[start:end]
	if includeComments {
		return span
	}
	return StripComments(span)
}

// indentLevelAt measures the leading whitespace of the line containing offset
// in units of four columns; a tab counts as four.
func indentLevelAt(text string, offset int) int {
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	columns := 0
	for _, c := range text[lineStart:] {
		switch c {
		case ' ':
			columns++
		case '\t':
			columns += indentWidth
		default:
			return columns / indentWidth
		}
	}
	return columns / indentWidth
}

// StripComments drops triple-quoted blocks and "#" comments line by line and
// removes the lines left blank. Every line opening with a triple quote flips
// the block state, including one that also closes on the same line.
func StripComments(src string) string {
	var b strings.Builder
	inBlock := false
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, `'''`) {
			inBlock = !inBlock
			continue
		}
		if inBlock {
			continue
		}
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// PackageName joins the directory segments that follow the first "src" or
// "python" segment of path.
func PackageName(path string) string {
	parts := strings.Split(filepath.ToSlash(filepath.Dir(path)), "/")
	var pkg []string
	found := false
	for _, part := range parts {
		if found && part != "" {
			pkg = append(pkg, part)
		}
		if part == "src" || part == "python" {
			found = true
		}
	}
	return strings.Join(pkg, ".")
}

// IsProjectPath reports whether path is outside installed-package directories.
func IsProjectPath(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "site-packages" || part == "dist-packages" {
			return false
		}
	}
	return true
}
