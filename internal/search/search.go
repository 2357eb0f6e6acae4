package search

import (
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"notebuddy/internal/ai"
	"notebuddy/internal/domain"
)

const (
	DefaultLimit = 20

	// Title matches count double, same as the client-side index weights.
	titleWeight = 2

	previewRadius   = 60
	previewFallback = 150
)

// Result is one ranked hit with a plain-text preview clipped around the
// first content match.
type Result struct {
	NoteID     string    `json:"id"`
	Title      string    `json:"title"`
	Preview    string    `json:"preview"`
	UpdatedAt  time.Time `json:"updated_at"`
	IsFavorite bool      `json:"is_favorite"`
	Score      int       `json:"score"`
}

// Notes ranks the given notes against a fuzzy query over title and content.
// Notes matching neither field are dropped; an empty query returns nothing.
func Notes(notes []*domain.Note, query string, limit int) []Result {
	query = strings.TrimSpace(query)
	if query == "" || len(notes) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	titles := make([]string, len(notes))
	contents := make([]string, len(notes))
	for i, note := range notes {
		titles[i] = note.Title
		contents[i] = ai.StripHTML(note.Content)
	}

	type hit struct {
		score        int
		contentMatch *fuzzy.Match
	}
	hits := make(map[int]*hit)

	for _, m := range fuzzy.Find(query, titles) {
		hits[m.Index] = &hit{score: titleWeight * m.Score}
	}
	for _, m := range fuzzy.Find(query, contents) {
		h, ok := hits[m.Index]
		if !ok {
			h = &hit{}
			hits[m.Index] = h
		}
		h.score += m.Score
		match := m
		h.contentMatch = &match
	}

	results := make([]Result, 0, len(hits))
	for i, h := range hits {
		note := notes[i]
		results = append(results, Result{
			NoteID:     note.ID,
			Title:      note.Title,
			Preview:    preview(contents[i], h.contentMatch),
			UpdatedAt:  note.UpdatedAt,
			IsFavorite: note.IsFavorite,
			Score:      h.score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].UpdatedAt.After(results[j].UpdatedAt)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// preview clips a window around the first matched character, or the head of
// the content when only the title matched.
func preview(content string, match *fuzzy.Match) string {
	if match == nil || len(match.MatchedIndexes) == 0 {
		if len(content) <= previewFallback {
			return content
		}
		return content[:previewFallback] + "..."
	}

	first := match.MatchedIndexes[0]
	start := first - previewRadius
	if start < 0 {
		start = 0
	}
	end := first + previewRadius
	if end > len(content) {
		end = len(content)
	}

	clipped := content[start:end]
	if start > 0 {
		clipped = "..." + clipped
	}
	if end < len(content) {
		clipped = clipped + "..."
	}
	return clipped
}
