package formats

import (
	"fmt"
	"strings"
	"unicode"
)

func nodeLabel(fn Function) string {
	location := fn.File
	if fn.Line > 0 {
		location = fmt.Sprintf("%s:%d", fn.File, fn.Line)
	}
	return fmt.Sprintf("%s\\n%s", fn.Name, location)
}

func sanitizeID(name string) string {
	if name == "" {
		return "f"
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	first := rune(out[0])
	if unicode.IsDigit(first) {
		return "f_" + out
	}
	return out
}

func makeIDs(names []string) map[string]string {
	ids := make(map[string]string, len(names))
	used := make(map[string]int, len(names))
	for _, name := range names {
		if _, ok := ids[name]; ok {
			continue
		}
		base := sanitizeID(name)
		idx := used[base]
		used[base] = idx + 1
		if idx == 0 {
			ids[name] = base
			continue
		}
		ids[name] = fmt.Sprintf("%s_%d", base, idx+1)
	}
	return ids
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

// codeFence returns a backtick fence longer than any backtick run in src.
func codeFence(src string) string {
	longest, run := 0, 0
	for _, r := range src {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return strings.Repeat("`", max(3, longest+1))
}
