package tiktok

import "strings"

// fillerWords are dropped from product names before comparison. Marketing
// noise, not identity.
var fillerWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"for": true, "with": true, "of": true, "to": true, "in": true,
	"on": true, "new": true, "hot": true, "free": true, "sale": true,
	"shipping": true, "best": true, "original": true, "genuine": true,
}

// normalizeProductName lowercases, strips everything but letters, digits and
// spaces, collapses whitespace, and drops filler words and single-character
// tokens.
func normalizeProductName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	var kept []string
	for _, token := range strings.Fields(b.String()) {
		if len(token) <= 1 || fillerWords[token] {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

// nameSimilarity blends a character-overlap ratio (60%) with a Levenshtein
// similarity (40%). Inputs are assumed normalized.
func nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	lev := 1 - float64(levenshtein(a, b))/float64(maxLen)
	return 0.6*similarText(a, b) + 0.4*lev
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// similarText returns the character-overlap ratio 2*common/(len(a)+len(b)),
// where common is the recursive longest-common-substring count.
func similarText(a, b string) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 0
	}
	common := similarChars([]byte(a), []byte(b))
	return 2 * float64(common) / float64(total)
}

func similarChars(a, b []byte) int {
	posA, posB, maxLen := 0, 0, 0
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			k := 0
			for i+k < len(a) && j+k < len(b) && a[i+k] == b[j+k] {
				k++
			}
			if k > maxLen {
				posA, posB, maxLen = i, j, k
			}
		}
	}
	if maxLen == 0 {
		return 0
	}
	sum := maxLen
	sum += similarChars(a[:posA], b[:posB])
	sum += similarChars(a[posA+maxLen:], b[posB+maxLen:])
	return sum
}
