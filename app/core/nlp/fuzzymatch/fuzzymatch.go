package fuzzymatch

import (
	"math"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// DefaultThreshold is the minimum confidence a candidate needs to be
// reported at all.
const DefaultThreshold = 60

// Match is one candidate title with its 0-100 confidence.
type Match struct {
	Title string
	Score int
}

// Rank scores query against every candidate title and returns the ones at
// or above threshold, best first. Empty query or candidate set yields an
// empty result, never an error. Ties on the token-set score break on
// whole-string similarity so the ordering is deterministic.
func Rank(query string, candidates []string, threshold int) []Match {
	query = strings.TrimSpace(query)
	if query == "" || len(candidates) == 0 {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	lev := metrics.NewLevenshtein()
	type scored struct {
		Match
		plain float64
		pos   int
	}
	ranked := make([]scored, 0, len(candidates))
	for i, cand := range candidates {
		score := TokenSetRatio(query, cand)
		if score < threshold {
			continue
		}
		ranked = append(ranked, scored{
			Match: Match{Title: cand, Score: score},
			plain: strutil.Similarity(normalize(query), normalize(cand), lev),
			pos:   i,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].plain != ranked[j].plain {
			return ranked[i].plain > ranked[j].plain
		}
		return ranked[i].pos < ranked[j].pos
	})

	out := make([]Match, len(ranked))
	for i, r := range ranked {
		out[i] = r.Match
	}
	return out
}

// TokenSetRatio computes a token-order-insensitive similarity between two
// strings on a 0-100 scale. Shared tokens are factored out so that word
// order, repeated words and partial overlap ("buy milk" vs "milk") score
// high, while typos still degrade gracefully through the underlying edit
// distance.
func TokenSetRatio(a, b string) int {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var inter, restA, restB []string
	for tok := range ta {
		if tb[tok] {
			inter = append(inter, tok)
		} else {
			restA = append(restA, tok)
		}
	}
	for tok := range tb {
		if !ta[tok] {
			restB = append(restB, tok)
		}
	}
	sort.Strings(inter)
	sort.Strings(restA)
	sort.Strings(restB)

	base := strings.Join(inter, " ")
	s1 := strings.TrimSpace(base + " " + strings.Join(restA, " "))
	s2 := strings.TrimSpace(base + " " + strings.Join(restB, " "))

	lev := metrics.NewLevenshtein()
	best := strutil.Similarity(base, s1, lev)
	if v := strutil.Similarity(base, s2, lev); v > best {
		best = v
	}
	if v := strutil.Similarity(s1, s2, lev); v > best {
		best = v
	}
	if base == "" {
		// no shared tokens at all; only the cross comparison is meaningful
		best = strutil.Similarity(s1, s2, lev)
	}
	return int(math.Round(best * 100))
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[strings.Trim(tok, ".,!?:;'\"")] = true
	}
	delete(set, "")
	return set
}
