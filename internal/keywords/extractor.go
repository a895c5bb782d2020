package keywords

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/words"

	"NewsIngest/internal/ports"
)

// Extractor ranks salient keywords by term frequency over UAX#29 word
// segmentation. Han text segments one rune per token, so consecutive Han
// runes are recombined into bigrams, the usual trick for CJK retrieval
// without a dictionary.
type Extractor struct {
	stopwords map[string]struct{}
}

var _ ports.KeywordExtractor = (*Extractor)(nil)

// New builds an extractor with the default stopword list.
func New() *Extractor {
	stop := make(map[string]struct{}, len(defaultStopwords))
	for _, w := range defaultStopwords {
		stop[w] = struct{}{}
	}
	return &Extractor{stopwords: stop}
}

// ExtractKeywords returns up to topN keywords ordered by descending
// frequency. Input shorter than 10 runes yields an empty result.
func (e *Extractor) ExtractKeywords(text string, topN int) []string {
	text = strings.TrimSpace(text)
	if topN <= 0 || utf8.RuneCountInString(text) < 10 {
		return nil
	}

	counts := map[string]int{}
	for _, token := range e.tokenize(strings.ToLower(text)) {
		counts[token]++
	}
	if len(counts) == 0 {
		return nil
	}

	ranked := make([]string, 0, len(counts))
	for token := range counts {
		ranked = append(ranked, token)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// tokenize segments text and folds runs of single Han runes into bigrams.
func (e *Extractor) tokenize(text string) []string {
	var (
		tokens []string
		hanRun []rune
	)

	flushHan := func() {
		switch {
		case len(hanRun) == 1:
			tokens = append(tokens, string(hanRun[0]))
		case len(hanRun) > 1:
			for i := 0; i+1 < len(hanRun); i++ {
				tokens = append(tokens, string(hanRun[i:i+2]))
			}
		}
		hanRun = hanRun[:0]
	}

	segments := words.FromString(text)
	for segments.Next() {
		token := strings.TrimSpace(segments.Value())
		if token == "" || !isWordLike(token) {
			flushHan()
			continue
		}

		if r, size := utf8.DecodeRuneInString(token); size == len(token) && unicode.Is(unicode.Han, r) {
			hanRun = append(hanRun, r)
			continue
		}
		flushHan()

		if utf8.RuneCountInString(token) < 2 {
			continue
		}
		if _, skip := e.stopwords[token]; skip {
			continue
		}
		tokens = append(tokens, token)
	}
	flushHan()

	filtered := tokens[:0]
	for _, token := range tokens {
		if _, skip := e.stopwords[token]; !skip {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func isWordLike(token string) bool {
	for _, r := range token {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var defaultStopwords = []string{
	// English function words that survive segmentation.
	"the", "and", "for", "that", "with", "this", "from", "are", "was",
	"has", "have", "will", "been", "were", "its", "but", "not", "all",
	// Common Chinese particles and their bigram spillover.
	"的", "了", "是", "在", "和", "與", "及", "等", "並", "也",
	"今日", "昨日", "表示", "指出",
}
