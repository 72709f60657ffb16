package callgraph

import (
	"strings"

	"callctx/internal/engine/parser"
)

// ImportRecord is one imported name. FromModule is empty for plain imports.
type ImportRecord struct {
	FromModule   string
	ImportedName string
	Alias        string
}

// ParseImports collects the import records of every import statement in file,
// including statements nested in functions.
func ParseImports(file *parser.SourceFile) []ImportRecord {
	if file == nil || file.Root == nil {
		return nil
	}
	var records []ImportRecord
	parser.Walk(file.Root, func(e *parser.Element) bool {
		text := strings.TrimLeft(e.Text(), " \t\r\n")
		if !isImportText(text) {
			return true
		}
		if isWrapper(e, func(s string) bool { return isImportText(strings.TrimLeft(s, " \t\r\n")) }) {
			return true
		}
		records = append(records, parseImportStatement(text)...)
		return false
	})
	return records
}

func isImportText(text string) bool {
	return strings.HasPrefix(text, "from ") || strings.HasPrefix(text, "import ")
}

func parseImportStatement(text string) []ImportRecord {
	text = normalizeImportText(text)
	if strings.HasPrefix(text, "from ") {
		rest := strings.TrimPrefix(text, "from ")
		idx := strings.Index(rest, " import ")
		if idx < 0 {
			return nil
		}
		module := strings.TrimSpace(rest[:idx])
		var records []ImportRecord
		for _, item := range splitImportItems(rest[idx+len(" import "):]) {
			name, alias := splitAlias(item)
			if name == "" || name == "*" {
				continue
			}
			records = append(records, ImportRecord{FromModule: module, ImportedName: name, Alias: alias})
		}
		return records
	}

	var records []ImportRecord
	for _, item := range splitImportItems(strings.TrimPrefix(text, "import ")) {
		name, alias := splitAlias(item)
		if name == "" {
			continue
		}
		records = append(records, ImportRecord{ImportedName: name, Alias: alias})
	}
	return records
}

// normalizeImportText joins continuation lines and drops comments and
// parentheses so the statement reads as one line.
func normalizeImportText(text string) string {
	lines := strings.Split(text, "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), "\\"))
		if line != "" {
			parts = append(parts, line)
		}
	}
	joined := strings.Join(parts, " ")
	joined = strings.NewReplacer("(", " ", ")", " ", ";", " ").Replace(joined)
	return strings.Join(strings.Fields(joined), " ")
}

func splitImportItems(list string) []string {
	var items []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func splitAlias(item string) (string, string) {
	fields := strings.Fields(item)
	switch {
	case len(fields) == 0:
		return "", ""
	case len(fields) >= 3 && fields[1] == "as":
		return fields[0], fields[2]
	default:
		return fields[0], ""
	}
}
