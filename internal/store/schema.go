package store

import (
	"fmt"
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/length"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/bold-kg/termdex/internal/errors"
)

// Field names of the term document.
const (
	FieldIRI     = "iri"
	FieldIRIText = "iri_text"
	FieldLabel   = "label"
	FieldCount   = "count"
	FieldPos     = "pos"
	FieldType    = "type"
	FieldIsURL   = "is_url"
)

// Analyzer and tokenizer names stored in the index mapping.
const (
	NgramTokenizerName = "ngram"
	LengthFilterName   = "ngram_max_length"
	NgramAnalyzerName  = "ngram"
	WordAnalyzerName   = "word"
)

// FieldKind is the engine type of a field.
type FieldKind string

const (
	KindText    FieldKind = "text"
	KindNumeric FieldKind = "number"
	KindBoolean FieldKind = "boolean"
)

// TokenizerConfig is the n-gram window used for substring search.
type TokenizerConfig struct {
	NgramMin       int
	NgramMax       int
	MaxTokenLength int
}

// DefaultTokenizerConfig returns trigrams with a 40 character cap.
func DefaultTokenizerConfig() TokenizerConfig {
	return TokenizerConfig{
		NgramMin:       3,
		NgramMax:       3,
		MaxTokenLength: 40,
	}
}

// Validate rejects windows the tokenizer cannot honor.
func (c TokenizerConfig) Validate() error {
	if _, err := NewNgramTokenizer(c.NgramMin, c.NgramMax); err != nil {
		return err
	}
	if c.MaxTokenLength < c.NgramMin {
		return fmt.Errorf("max token length (%d) must not be below ngram min (%d)", c.MaxTokenLength, c.NgramMin)
	}
	return nil
}

// FieldSpec declares one field of the schema.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Analyzer string
}

// fieldSpecs is the fixed, ordered field set of every index.
var fieldSpecs = []FieldSpec{
	{Name: FieldIRIText, Kind: KindText, Analyzer: NgramAnalyzerName},
	{Name: FieldIRI, Kind: KindText, Analyzer: WordAnalyzerName},
	{Name: FieldLabel, Kind: KindText, Analyzer: NgramAnalyzerName},
	{Name: FieldCount, Kind: KindNumeric},
	{Name: FieldPos, Kind: KindNumeric},
	{Name: FieldType, Kind: KindText, Analyzer: WordAnalyzerName},
	{Name: FieldIsURL, Kind: KindBoolean},
}

// NewMapping builds the index mapping for cfg: the custom analyzers and the
// static document mapping with every field stored.
func NewMapping(cfg TokenizerConfig) (*mapping.IndexMappingImpl, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigError("invalid tokenizer config", err)
	}

	im := bleve.NewIndexMapping()

	if err := im.AddCustomTokenizer(NgramTokenizerName, map[string]interface{}{
		"type": NgramTokenizerType,
		"min":  float64(cfg.NgramMin),
		"max":  float64(cfg.NgramMax),
	}); err != nil {
		return nil, fmt.Errorf("failed to add ngram tokenizer: %w", err)
	}
	if err := im.AddCustomTokenFilter(LengthFilterName, map[string]interface{}{
		"type": length.Name,
		"min":  1.0,
		"max":  float64(cfg.MaxTokenLength),
	}); err != nil {
		return nil, fmt.Errorf("failed to add length filter: %w", err)
	}
	if err := im.AddCustomAnalyzer(NgramAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     NgramTokenizerName,
		"token_filters": []string{LengthFilterName, lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("failed to add ngram analyzer: %w", err)
	}
	if err := im.AddCustomAnalyzer(WordAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("failed to add word analyzer: %w", err)
	}

	doc := bleve.NewDocumentStaticMapping()
	for _, spec := range fieldSpecs {
		doc.AddFieldMappingsAt(spec.Name, fieldMapping(spec))
	}

	im.DefaultMapping = doc
	im.DefaultAnalyzer = WordAnalyzerName
	im.IndexDynamic = false
	im.StoreDynamic = false
	im.DocValuesDynamic = false

	return im, nil
}

func fieldMapping(spec FieldSpec) *mapping.FieldMapping {
	var fm *mapping.FieldMapping
	switch spec.Kind {
	case KindNumeric:
		fm = bleve.NewNumericFieldMapping()
		fm.DocValues = true
	case KindBoolean:
		fm = bleve.NewBooleanFieldMapping()
	default:
		fm = bleve.NewTextFieldMapping()
		fm.Analyzer = spec.Analyzer
		fm.IncludeTermVectors = true
	}
	fm.Store = true
	fm.Index = true
	fm.IncludeInAll = false
	return fm
}

// Schema is the field set and analyzer registry of one open index.
//
// It is always read back from the index mapping, so the analyzers used to
// compile a query are the ones the documents were indexed with.
type Schema struct {
	mapping *mapping.IndexMappingImpl
	fields  map[string]FieldSpec
	names   []string
	config  TokenizerConfig
}

// SchemaFromMapping inspects an index mapping.
func SchemaFromMapping(m mapping.IndexMapping) (*Schema, error) {
	im, ok := m.(*mapping.IndexMappingImpl)
	if !ok {
		return nil, errors.New(errors.ErrCodeCorruptIndex,
			fmt.Sprintf("unsupported index mapping type %T", m), nil)
	}
	if im.DefaultMapping == nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex, "index mapping has no document mapping", nil)
	}

	s := &Schema{
		mapping: im,
		fields:  make(map[string]FieldSpec),
	}
	for name, dm := range im.DefaultMapping.Properties {
		if dm == nil || len(dm.Fields) == 0 {
			continue
		}
		fm := dm.Fields[0]
		s.fields[name] = FieldSpec{
			Name:     name,
			Kind:     FieldKind(fm.Type),
			Analyzer: fm.Analyzer,
		}
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)

	if tok, ok := im.CustomAnalysis.Tokenizers[NgramTokenizerName]; ok {
		s.config.NgramMin, _ = intOption(tok, "min")
		s.config.NgramMax, _ = intOption(tok, "max")
	}
	if f, ok := im.CustomAnalysis.TokenFilters[LengthFilterName]; ok {
		s.config.MaxTokenLength, _ = intOption(f, "max")
	}

	return s, nil
}

// Fields returns the declared field names in sorted order.
func (s *Schema) Fields() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// HasField reports whether name is declared.
func (s *Schema) HasField(name string) bool {
	_, ok := s.fields[name]
	return ok
}

// Kind returns the engine type of name, or "" when it is not declared.
func (s *Schema) Kind(name string) FieldKind {
	return s.fields[name].Kind
}

// TokenizerConfig returns the n-gram window recorded in the mapping.
func (s *Schema) TokenizerConfig() TokenizerConfig {
	return s.config
}

// Analyze runs the analyzer bound to field over text and returns the terms
// grouped by position, in position order.
func (s *Schema) Analyze(field, text string) ([][]string, error) {
	spec, ok := s.fields[field]
	if !ok {
		return nil, errors.New(errors.ErrCodeFieldNotInSchema,
			fmt.Sprintf("field %q is not part of the index schema", field), nil)
	}
	if spec.Kind != KindText {
		return nil, errors.New(errors.ErrCodeInvalidQuery,
			fmt.Sprintf("field %q is not a text field", field), nil)
	}

	name := spec.Analyzer
	if name == "" {
		name = s.mapping.DefaultAnalyzer
	}
	analyzer := s.mapping.AnalyzerNamed(name)
	if analyzer == nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex,
			fmt.Sprintf("analyzer %q of field %q is not available", name, field), nil)
	}

	var groups [][]string
	lastPos := 0
	for _, tok := range analyzer.Analyze([]byte(text)) {
		if tok.Position != lastPos || len(groups) == 0 {
			groups = append(groups, nil)
			lastPos = tok.Position
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], string(tok.Term))
	}
	return groups, nil
}

// NewSchema builds the mapping for cfg and returns its schema.
func NewSchema(cfg TokenizerConfig) (*Schema, error) {
	im, err := NewMapping(cfg)
	if err != nil {
		return nil, err
	}
	return SchemaFromMapping(im)
}
