package search

import "strings"

const titleBoost = 5.0

// levenshtein is the edit distance between a and b, in runes.
func levenshtein(a, b string) int {
	r1, r2 := []rune(a), []rune(b)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	cur := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		cur[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(r2)]
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// typoTolerance grows with the term length; short terms must match exactly.
func typoTolerance(term string) int {
	switch n := len([]rune(term)); {
	case n <= 3:
		return 0
	case n < 8:
		return 1
	default:
		return 2
	}
}

// termScore rates how well one query term matches a field.
func termScore(term, field string) float64 {
	best := 0.0
	for _, word := range strings.Fields(field) {
		switch {
		case word == term:
			return 1.0
		case strings.HasPrefix(word, term):
			best = max(best, 0.7)
		default:
			if tol := typoTolerance(term); tol > 0 {
				if d := levenshtein(term, word); d <= tol {
					best = max(best, 0.5-0.1*float64(d))
				}
			}
		}
	}
	if best == 0 && strings.Contains(field, term) {
		best = 0.3
	}
	return best
}

// score weights title matches over content and tags.
func score(query string, doc Document) float64 {
	title := normalize(doc.Title)
	content := normalize(doc.Content)
	tags := normalize(strings.Join(doc.Tags, " "))

	total := 0.0
	for _, term := range strings.Fields(normalize(query)) {
		total += titleBoost*termScore(term, title) + termScore(term, content) + termScore(term, tags)
	}
	return total
}
