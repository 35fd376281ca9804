package chords

import (
	"regexp"
	"sort"
	"strings"

	"github.com/desertthunder/chordypi/internal/models"
)

// artistPrefix matches a leading "Artist - " up to the first dash.
var artistPrefix = regexp.MustCompile(`^[^-]*-\s*`)

// knownArtists are stripped when a title starts with them, e.g. "beatles let it be".
var knownArtists = []string{"bob marley", "beatles", "eagles", "oasis", "luis fonsi"}

var keys = sortedKeys()

func sortedKeys() []string {
	out := make([]string, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Normalize lowercases a song title and strips artist noise so it can be used as a table key.
func Normalize(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = strings.TrimSpace(artistPrefix.ReplaceAllString(s, ""))

	for _, artist := range knownArtists {
		if strings.HasPrefix(s, artist) {
			s = strings.TrimSpace(strings.TrimPrefix(s, artist))
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// Lookup finds the chord chart for title.
//
// An exact normalized match wins. Otherwise the first key (in sorted order) that contains
// the title or is contained by it is returned.
func Lookup(title string) (*models.SongProgression, bool) {
	q := Normalize(title)
	if q == "" {
		return nil, false
	}

	if p, ok := table[q]; ok {
		return clone(p), true
	}

	for _, k := range keys {
		if strings.Contains(q, k) || strings.Contains(k, q) {
			return clone(table[k]), true
		}
	}
	return nil, false
}

// clone copies p so callers can't modify the shared table.
func clone(p models.SongProgression) *models.SongProgression {
	p.Chords = append([]models.ChordEvent(nil), p.Chords...)
	return &p
}
