// Package vectorizer turns review text into sparse feature rows using a
// vocabulary fitted offline. Both TF-IDF and plain count vectorizers are
// supported, following scikit-learn's transform semantics.
package vectorizer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/spacesedan/reviewscope/internal/textproc"
)

const (
	KIND_TFIDF = "tfidf"
	KIND_COUNT = "count"

	NORM_L2   = "l2"
	NORM_L1   = "l1"
	NORM_NONE = "none"
)

var ErrInvalid = errors.New("invalid vectorizer artifact")

// Spec is the serialized form of a fitted vectorizer.
type Spec struct {
	Kind         string         `json:"kind" msgpack:"kind"`
	Lowercase    *bool          `json:"lowercase,omitempty" msgpack:"lowercase,omitempty"`
	StripAccents string         `json:"strip_accents,omitempty" msgpack:"strip_accents,omitempty"`
	TokenPattern string         `json:"token_pattern,omitempty" msgpack:"token_pattern,omitempty"`
	NGramRange   []int          `json:"ngram_range,omitempty" msgpack:"ngram_range,omitempty"`
	StopWords    []string       `json:"stop_words,omitempty" msgpack:"stop_words,omitempty"`
	Vocabulary   map[string]int `json:"vocabulary" msgpack:"vocabulary"`
	IDF          []float64      `json:"idf,omitempty" msgpack:"idf,omitempty"`
	Norm         *string        `json:"norm,omitempty" msgpack:"norm,omitempty"`
	SublinearTF  bool           `json:"sublinear_tf,omitempty" msgpack:"sublinear_tf,omitempty"`
	Binary       bool           `json:"binary,omitempty" msgpack:"binary,omitempty"`
}

// SparseVector is one transformed document: column indices in ascending
// order and their weights.
type SparseVector struct {
	Indices []int
	Values  []float64
}

func (s SparseVector) Len() int { return len(s.Indices) }

// Vectorizer is immutable after New and safe for concurrent use.
type Vectorizer struct {
	kind         string
	lowercase    bool
	stripAccents string
	tokenizer    *textproc.Tokenizer
	minN, maxN   int
	stopWords    map[string]struct{}
	vocabulary   map[string]int
	idf          []float64
	norm         string
	sublinearTF  bool
	binary       bool
}

func New(spec Spec) (*Vectorizer, error) {
	kind := strings.ToLower(strings.TrimSpace(spec.Kind))
	if kind == "" {
		kind = KIND_TFIDF
	}
	if kind != KIND_TFIDF && kind != KIND_COUNT {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalid, spec.Kind)
	}

	if len(spec.Vocabulary) == 0 {
		return nil, fmt.Errorf("%w: empty vocabulary", ErrInvalid)
	}
	seen := make([]bool, len(spec.Vocabulary))
	for term, idx := range spec.Vocabulary {
		if idx < 0 || idx >= len(seen) || seen[idx] {
			return nil, fmt.Errorf("%w: term %q has bad column %d", ErrInvalid, term, idx)
		}
		seen[idx] = true
	}

	minN, maxN := 1, 1
	if len(spec.NGramRange) > 0 {
		if len(spec.NGramRange) != 2 {
			return nil, fmt.Errorf("%w: ngram_range must have two values", ErrInvalid)
		}
		minN, maxN = spec.NGramRange[0], spec.NGramRange[1]
		if minN < 1 || maxN < minN {
			return nil, fmt.Errorf("%w: bad ngram_range [%d, %d]", ErrInvalid, minN, maxN)
		}
	}

	if kind == KIND_TFIDF && len(spec.IDF) != 0 && len(spec.IDF) != len(spec.Vocabulary) {
		return nil, fmt.Errorf("%w: %d idf weights for %d terms", ErrInvalid, len(spec.IDF), len(spec.Vocabulary))
	}

	norm := NORM_NONE
	if kind == KIND_TFIDF {
		norm = NORM_L2
	}
	if spec.Norm != nil {
		norm = strings.ToLower(*spec.Norm)
		if norm == "" {
			norm = NORM_NONE
		}
	}
	if norm != NORM_L2 && norm != NORM_L1 && norm != NORM_NONE {
		return nil, fmt.Errorf("%w: unknown norm %q", ErrInvalid, norm)
	}

	tokenizer, err := textproc.NewTokenizer(spec.TokenPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := textproc.StripAccents("", spec.StripAccents); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	stopWords := make(map[string]struct{}, len(spec.StopWords))
	for _, w := range spec.StopWords {
		stopWords[w] = struct{}{}
	}

	v := &Vectorizer{
		kind:         kind,
		lowercase:    spec.Lowercase == nil || *spec.Lowercase,
		stripAccents: spec.StripAccents,
		tokenizer:    tokenizer,
		minN:         minN,
		maxN:         maxN,
		stopWords:    stopWords,
		vocabulary:   spec.Vocabulary,
		norm:         norm,
		binary:       spec.Binary,
	}
	if kind == KIND_TFIDF {
		v.idf = spec.IDF
		v.sublinearTF = spec.SublinearTF
	}
	return v, nil
}

func (v *Vectorizer) Kind() string { return v.kind }

// Features is the number of columns in a transformed row.
func (v *Vectorizer) Features() int { return len(v.vocabulary) }

// Analyze returns the terms of doc before vocabulary lookup.
func (v *Vectorizer) Analyze(doc string) []string {
	if v.lowercase {
		doc = strings.ToLower(doc)
	}
	// mode was checked in New, so this cannot fail
	doc, _ = textproc.StripAccents(doc, v.stripAccents)
	return textproc.WordNGrams(v.tokenizer.Tokenize(doc), v.stopWords, v.minN, v.maxN)
}

func (v *Vectorizer) Transform(docs []string) []SparseVector {
	rows := make([]SparseVector, len(docs))
	for i, doc := range docs {
		rows[i] = v.TransformOne(doc)
	}
	return rows
}

func (v *Vectorizer) TransformOne(doc string) SparseVector {
	counts := make(map[int]float64)
	for _, term := range v.Analyze(doc) {
		if idx, ok := v.vocabulary[term]; ok {
			counts[idx]++
		}
	}

	row := SparseVector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, len(counts)),
	}
	for idx := range counts {
		row.Indices = append(row.Indices, idx)
	}
	sort.Ints(row.Indices)

	for i, idx := range row.Indices {
		tf := counts[idx]
		if v.binary {
			tf = 1
		}
		if v.sublinearTF {
			tf = 1 + math.Log(tf)
		}
		if v.idf != nil {
			tf *= v.idf[idx]
		}
		row.Values[i] = tf
	}

	var n float64
	switch v.norm {
	case NORM_L2:
		n = floats.Norm(row.Values, 2)
	case NORM_L1:
		n = floats.Norm(row.Values, 1)
	}
	if n > 0 {
		floats.Scale(1/n, row.Values)
	}
	return row
}
