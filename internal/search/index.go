// Package search provides a simple, deterministic, concurrency-safe
// in-memory search index over persisted message bodies. It is intentionally
// small and dependency-free, but engineered with production-grade
// ergonomics:
//
//   - No logging in the library (callers decide how/what to log)
//   - Indexing is scoped per chat; queries never cross chat boundaries
//   - Unicode-aware tokenization, case-insensitive matching
//   - Deterministic result order (ascending message number)
//
// Matching follows phrase-prefix semantics: a message matches when the query
// tokens appear consecutively in the body, with the final query token
// allowed to match as a prefix. "hel" matches "hello world"; "world hel"
// does not.
package search

import (
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Result is a matching message within the queried chat.
type Result struct {
	Number int64
	Body   string
}

// entry is one indexed message.
type entry struct {
	number int64
	body   string
	tokens []string
}

// Index holds per-chat postings of message bodies. It is safe for
// concurrent readers and writers.
type Index struct {
	mu     sync.RWMutex
	byChat map[string][]entry
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{byChat: make(map[string][]entry)}
}

// Add indexes one message body under its chat. Adding the same (chat,
// number) twice keeps the first entry; the pipeline never rewrites a
// persisted body.
func (ix *Index) Add(chatID string, number int64, body string) {
	toks := tokenize(body)
	if len(toks) == 0 {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, e := range ix.byChat[chatID] {
		if e.number == number {
			return
		}
	}
	ix.byChat[chatID] = append(ix.byChat[chatID], entry{number: number, body: body, tokens: toks})
}

// Search returns messages in chatID whose bodies match query with
// phrase-prefix semantics, ordered by ascending number, capped at limit
// (limit <= 0 means no cap). An empty or token-free query matches nothing.
func (ix *Index) Search(chatID, query string, limit int) []Result {
	qtoks := tokenize(query)
	if len(qtoks) == 0 {
		return nil
	}

	ix.mu.RLock()
	entries := ix.byChat[chatID]
	out := make([]Result, 0, len(entries))
	for _, e := range entries {
		if matchPhrasePrefix(e.tokens, qtoks) {
			out = append(out, Result{Number: e.number, Body: e.body})
		}
	}
	ix.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len reports the number of indexed messages for chatID. Test helper.
func (ix *Index) Len(chatID string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byChat[chatID])
}

// matchPhrasePrefix reports whether query tokens appear consecutively in the
// body tokens, final token matched as a prefix.
func matchPhrasePrefix(body, query []string) bool {
	if len(query) > len(body) {
		return false
	}
	last := len(query) - 1
	for start := 0; start+len(query) <= len(body); start++ {
		ok := true
		for i := 0; i < last; i++ {
			if body[start+i] != query[i] {
				ok = false
				break
			}
		}
		if ok && strings.HasPrefix(body[start+last], query[last]) {
			return true
		}
	}
	return false
}

// tokenize lowercases s and splits it on anything that is not a letter or a
// digit.
func tokenize(s string) []string {
	s = strings.ToLower(s)
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
