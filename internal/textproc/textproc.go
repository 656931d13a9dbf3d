// Package textproc holds the text analysis steps shared by the vectorizer:
// accent stripping, tokenization and word n-gram expansion. The behaviour
// mirrors scikit-learn's analyzers so exported vocabularies line up.
package textproc

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultTokenPattern is scikit-learn's default token_pattern.
const DefaultTokenPattern = `(?u)\b\w\w+\b`

const (
	AccentsNone    = ""
	AccentsUnicode = "unicode"
	AccentsASCII   = "ascii"
)

// StripAccents decomposes s (NFKD) and drops combining marks. In ascii mode
// every remaining non-ASCII rune is dropped as well.
func StripAccents(s, mode string) (string, error) {
	var t transform.Transformer
	switch mode {
	case AccentsNone:
		return s, nil
	case AccentsUnicode:
		t = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	case AccentsASCII:
		t = transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
			return r > unicode.MaxASCII
		})))
	default:
		return "", fmt.Errorf("unknown strip_accents mode %q", mode)
	}
	out, _, err := transform.String(t, s)
	if err != nil {
		return "", fmt.Errorf("strip accents: %w", err)
	}
	return out, nil
}

// Tokenizer splits a document into tokens.
type Tokenizer struct {
	re *regexp.Regexp
}

// NewTokenizer compiles pattern. The default pattern (or an empty one) is
// served by a Unicode-aware word scanner since RE2's \w and \b are ASCII only.
// Custom patterns may carry at most one capture group, which then becomes
// the token.
func NewTokenizer(pattern string) (*Tokenizer, error) {
	if pattern == "" || pattern == DefaultTokenPattern {
		return &Tokenizer{}, nil
	}
	re, err := regexp.Compile(strings.TrimPrefix(pattern, "(?u)"))
	if err != nil {
		return nil, fmt.Errorf("compile token pattern: %w", err)
	}
	if re.NumSubexp() > 1 {
		return nil, fmt.Errorf("token pattern %q has more than one capture group", pattern)
	}
	return &Tokenizer{re: re}, nil
}

func (t *Tokenizer) Tokenize(doc string) []string {
	if t.re == nil {
		return wordRuns(doc)
	}
	if t.re.NumSubexp() == 0 {
		return t.re.FindAllString(doc, -1)
	}
	matches := t.re.FindAllStringSubmatch(doc, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, m[1])
	}
	return tokens
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// wordRuns returns every maximal run of word runes that is at least two
// runes long.
func wordRuns(doc string) []string {
	var tokens []string
	start, length := -1, 0
	for i, r := range doc {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			length++
			continue
		}
		if start >= 0 && length >= 2 {
			tokens = append(tokens, doc[start:i])
		}
		start, length = -1, 0
	}
	if start >= 0 && length >= 2 {
		tokens = append(tokens, doc[start:])
	}
	return tokens
}

// WordNGrams removes stop words and expands tokens into n-grams for every n
// in [minN, maxN], joined by a single space.
func WordNGrams(tokens []string, stopWords map[string]struct{}, minN, maxN int) []string {
	if len(stopWords) > 0 {
		kept := tokens[:0:0]
		for _, tok := range tokens {
			if _, stop := stopWords[tok]; !stop {
				kept = append(kept, tok)
			}
		}
		tokens = kept
	}
	if maxN == 1 {
		return tokens
	}

	var grams []string
	if minN == 1 {
		grams = append(grams, tokens...)
		minN++
	}
	for n := minN; n <= maxN && n <= len(tokens); n++ {
		for i := 0; i+n <= len(tokens); i++ {
			grams = append(grams, strings.Join(tokens[i:i+n], " "))
		}
	}
	return grams
}
