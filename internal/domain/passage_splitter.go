package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	// MinPassageLength is the shortest standalone passage, in runes.
	// Shorter paragraphs are merged with a neighbor before storage.
	MinPassageLength = 60
	// MaxPassageLength caps a stored passage; longer paragraphs are
	// split at sentence boundaries.
	MaxPassageLength = 600
)

// SplitPassages breaks a best-practice document body into passages
// sized for embedding and retrieval. Paragraphs are the unit; short
// ones are merged forward, long ones split at sentence boundaries.
// Empty input yields nil.
func SplitPassages(body string) []string {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var paragraphs []string
	for _, part := range strings.Split(normalized, "\n\n") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	if len(paragraphs) == 0 {
		return nil
	}

	merged := mergeShortPassages(paragraphs)

	var passages []string
	for _, p := range merged {
		if utf8.RuneCountInString(p) <= MaxPassageLength {
			passages = append(passages, p)
			continue
		}
		passages = append(passages, splitAtSentences(p)...)
	}
	return passages
}

// mergeShortPassages joins paragraphs shorter than MinPassageLength
// onto the following paragraph, or the preceding one at the tail.
func mergeShortPassages(paragraphs []string) []string {
	var merged []string
	carry := ""
	for _, para := range paragraphs {
		if carry != "" {
			para = carry + "\n\n" + para
			carry = ""
		}
		if utf8.RuneCountInString(para) < MinPassageLength {
			carry = para
			continue
		}
		merged = append(merged, para)
	}
	if carry != "" {
		if len(merged) > 0 {
			merged[len(merged)-1] += "\n\n" + carry
		} else {
			merged = append(merged, carry)
		}
	}
	return merged
}

func splitAtSentences(para string) []string {
	var out []string
	var current strings.Builder
	for _, sentence := range splitSentences(para) {
		if current.Len() > 0 &&
			utf8.RuneCountInString(current.String())+1+utf8.RuneCountInString(sentence) > MaxPassageLength {
			out = append(out, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

// splitSentences performs a conservative split on terminal punctuation
// followed by whitespace. It never splits inside numbers like "3.5".
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && runes[i+1] != ' ' && runes[i+1] != '\n' && runes[i+1] != '\t' {
			continue
		}
		sentence := strings.TrimSpace(string(runes[start : i+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
