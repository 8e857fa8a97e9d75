package generation

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/iliyamo/notes-marketplace/internal/model"
)

// HeuristicGenerator derives study content from the document itself
// without any external service. Output is deterministic for a given
// input: an extractive summary, definition or cloze flashcards, and
// cloze quiz questions whose distractors come from the same text.
type HeuristicGenerator struct {
	SummarySentences int
	MaxFlashcards    int
	MaxQuiz          int
}

// NewHeuristicGenerator returns a generator with default sizes.
func NewHeuristicGenerator() *HeuristicGenerator {
	return &HeuristicGenerator{SummarySentences: 3, MaxFlashcards: 5, MaxQuiz: 3}
}

var (
	sentenceEnd = regexp.MustCompile(`([.!?])\s+`)
	definition  = regexp.MustCompile(`^([A-Z][\w\s\-/]{1,60}?)\s+(is|are|means|refers to)\s+(.{8,})$`)
	wordRe      = regexp.MustCompile(`[\p{L}][\p{L}\p{N}\-]*`)
)

var stopwords = map[string]bool{
	"the": true, "and": true, "that": true, "with": true, "this": true, "from": true,
	"which": true, "there": true, "their": true, "have": true, "were": true, "been": true,
	"into": true, "also": true, "such": true, "than": true, "then": true, "these": true,
	"those": true, "when": true, "where": true, "while": true, "about": true, "other": true,
}

func (g *HeuristicGenerator) Generate(ctx context.Context, text string) (model.StudyContent, error) {
	if err := ctx.Err(); err != nil {
		return model.StudyContent{}, err
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return model.StudyContent{}, ErrUnreadable
	}
	freq := termFrequencies(sentences)

	c := model.StudyContent{
		Summary:    g.summarize(sentences, freq),
		Flashcards: g.flashcards(sentences, freq),
		Quiz:       g.quiz(sentences, freq),
	}
	if err := Validate(c); err != nil {
		return model.StudyContent{}, err
	}
	return c, nil
}

func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	marked := sentenceEnd.ReplaceAllString(text, "$1\n")
	var out []string
	for _, s := range strings.Split(marked, "\n") {
		s = strings.TrimSpace(s)
		if len(wordRe.FindAllString(s, -1)) >= 4 {
			out = append(out, s)
		}
	}
	return out
}

func keywords(s string) []string {
	var out []string
	for _, w := range wordRe.FindAllString(s, -1) {
		lw := strings.ToLower(w)
		if len([]rune(lw)) >= 4 && !stopwords[lw] {
			out = append(out, w)
		}
	}
	return out
}

func termFrequencies(sentences []string) map[string]int {
	freq := map[string]int{}
	for _, s := range sentences {
		for _, w := range keywords(s) {
			freq[strings.ToLower(w)]++
		}
	}
	return freq
}

func score(s string, freq map[string]int) int {
	total := 0
	for _, w := range keywords(s) {
		total += freq[strings.ToLower(w)]
	}
	return total
}

// summarize picks the highest scoring sentences and keeps document order.
func (g *HeuristicGenerator) summarize(sentences []string, freq map[string]int) string {
	n := g.SummarySentences
	if n <= 0 {
		n = 3
	}
	idx := make([]int, len(sentences))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return score(sentences[idx[a]], freq) > score(sentences[idx[b]], freq)
	})
	if len(idx) > n {
		idx = idx[:n]
	}
	sort.Ints(idx)
	parts := make([]string, 0, len(idx))
	for _, i := range idx {
		parts = append(parts, sentences[i])
	}
	return strings.Join(parts, " ")
}

// anchor returns the most frequent keyword of s, ties broken by length
// then position.
func anchor(s string, freq map[string]int) string {
	best := ""
	for _, w := range keywords(s) {
		lw, lb := strings.ToLower(w), strings.ToLower(best)
		if best == "" || freq[lw] > freq[lb] || (freq[lw] == freq[lb] && len(w) > len(best)) {
			best = w
		}
	}
	return best
}

func cloze(s, word string) string {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	return re.ReplaceAllString(s, "_____")
}

func (g *HeuristicGenerator) flashcards(sentences []string, freq map[string]int) []model.Flashcard {
	limit := g.MaxFlashcards
	if limit <= 0 {
		limit = 5
	}
	var out []model.Flashcard
	for _, s := range sentences {
		if len(out) == limit {
			break
		}
		body := strings.TrimRight(s, ".!?")
		if m := definition.FindStringSubmatch(body); m != nil {
			out = append(out, model.Flashcard{
				Question: fmt.Sprintf("What %s %s?", strings.ToLower(m[2]), strings.TrimSpace(m[1])),
				Answer:   upperFirst(strings.TrimSpace(m[3])) + ".",
			})
			continue
		}
		if w := anchor(s, freq); w != "" {
			out = append(out, model.Flashcard{
				Question: "Fill in the blank: " + cloze(s, w),
				Answer:   w,
			})
		}
	}
	return out
}

// quiz builds cloze questions whose distractors are other frequent terms.
// The correct option rotates through positions so answers are not
// always in the same slot.
func (g *HeuristicGenerator) quiz(sentences []string, freq map[string]int) []model.QuizQuestion {
	limit := g.MaxQuiz
	if limit <= 0 {
		limit = 3
	}
	terms := make([]string, 0, len(freq))
	for w := range freq {
		terms = append(terms, w)
	}
	sort.Slice(terms, func(a, b int) bool {
		if freq[terms[a]] != freq[terms[b]] {
			return freq[terms[a]] > freq[terms[b]]
		}
		return terms[a] < terms[b]
	})

	var out []model.QuizQuestion
	for _, s := range sentences {
		if len(out) == limit {
			break
		}
		answer := anchor(s, freq)
		if answer == "" {
			continue
		}
		la := strings.ToLower(answer)
		options := []string{}
		for _, t := range terms {
			if t != la && !strings.Contains(strings.ToLower(s), t) {
				options = append(options, t)
			}
			if len(options) == 3 {
				break
			}
		}
		if len(options) == 0 {
			continue
		}
		correct := len(out) % (len(options) + 1)
		options = append(options[:correct], append([]string{la}, options[correct:]...)...)
		out = append(out, model.QuizQuestion{
			Question:    "Which term completes the statement? " + cloze(s, answer),
			Options:     options,
			Correct:     correct,
			Explanation: s,
		})
	}
	return out
}

func upperFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
