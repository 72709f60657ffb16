package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"callctx/internal/core/errors"
	"callctx/internal/shared/observability"
)

type Parser struct {
	loader     *GrammarLoader
	pools      map[string]*ParserPool
	extensions map[string]string
}

func NewParser(loader *GrammarLoader) *Parser {
	p := &Parser{
		loader:     loader,
		pools:      make(map[string]*ParserPool),
		extensions: make(map[string]string),
	}
	for id, spec := range loader.registry {
		for _, ext := range spec.Extensions {
			p.extensions[strings.ToLower(ext)] = id
		}
		p.pools[id] = NewParserPool(loader.Language(id))
	}
	return p
}

// ParseFile parses content and materializes its named nodes. The tree-sitter
// tree is released before returning.
func (p *Parser) ParseFile(path string, content []byte) (*SourceFile, error) {
	lang := p.detectLanguage(path)
	if lang == "" {
		return nil, errors.AddContext(errors.New(errors.CodeNotSupported, "unsupported language"), errors.CtxPath, path)
	}

	pool := p.pools[lang]
	if pool == nil {
		return nil, errors.New(errors.CodeInternal, fmt.Sprintf("grammar not loaded: %s", lang))
	}

	start := time.Now()
	sp := pool.Get()
	defer pool.Put(sp)

	tree := sp.Parse(content, nil)
	if tree == nil {
		return nil, errors.AddContext(errors.New(errors.CodeInternal, "parse failed"), errors.CtxPath, path)
	}
	defer tree.Close()

	file := &SourceFile{
		Path:     path,
		Language: lang,
		Text:     string(content),
		ParsedAt: time.Now(),
	}
	file.Root = (&treeBuilder{file: file}).build(tree.RootNode())
	if file.Root == nil {
		return nil, errors.AddContext(errors.New(errors.CodeInternal, "empty syntax tree"), errors.CtxPath, path)
	}
	observability.ParsingDuration.WithLabelValues(lang).Observe(time.Since(start).Seconds())
	return file, nil
}

func (p *Parser) detectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := p.extensions[ext]; ok {
		return lang
	}
	return ""
}

func (p *Parser) IsSupportedPath(path string) bool {
	return p.detectLanguage(path) != ""
}
