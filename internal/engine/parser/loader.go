package parser

import (
	"fmt"
	"sort"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

const LanguagePython = "python"

type LanguageSpec struct {
	Name       string
	Extensions []string
}

var defaultLanguages = map[string]LanguageSpec{
	LanguagePython: {Name: LanguagePython, Extensions: []string{".py", ".pyi"}},
}

type GrammarLoader struct {
	languages map[string]*sitter.Language
	registry  map[string]LanguageSpec
}

func NewGrammarLoader() (*GrammarLoader, error) {
	gl := &GrammarLoader{
		languages: make(map[string]*sitter.Language),
		registry:  make(map[string]LanguageSpec, len(defaultLanguages)),
	}
	for id, spec := range defaultLanguages {
		switch id {
		case LanguagePython:
			gl.languages[id] = sitter.NewLanguage(tree_sitter_python.Language())
		default:
			return nil, fmt.Errorf("language %q is registered but runtime grammar loading is not implemented", id)
		}
		gl.registry[id] = spec
	}
	return gl, nil
}

func (gl *GrammarLoader) Language(id string) *sitter.Language {
	return gl.languages[id]
}

func (gl *GrammarLoader) SupportedExtensions() []string {
	var extensions []string
	for _, spec := range gl.registry {
		extensions = append(extensions, spec.Extensions...)
	}
	sort.Strings(extensions)
	return extensions
}
