// Package naming is the single authority for canonical episode IDs and
// artifact folder layout. Every component that needs a path or ID calls
// this package; any divergence between two call sites is a bug.
package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// UncategorizedFolder is the show folder for episodes whose show could
// not be determined.
const UncategorizedFolder = "_uncategorized"

var (
	slugPattern      = regexp.MustCompile(`[^a-z0-9]+`)
	episodeIDPattern = regexp.MustCompile(`^(.+)_ep(\d{3,})_(\d{4}-\d{2}-\d{2})$`)

	stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Slugify lowercases the input, folds diacritics to their base letters,
// and collapses every non-alphanumeric run into a single hyphen.
func Slugify(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	slug := slugPattern.ReplaceAllString(strings.ToLower(folded), "-")
	return strings.Trim(slug, "-")
}

// Service maps extracted show names to canonical folder names and
// generates episode IDs. All methods are pure; the mapping table is
// fixed at construction.
type Service struct {
	// exact holds configured mappings keyed by the lowercased variant.
	exact map[string]string
}

// NewService builds a naming service from a show mapping table of
// {raw variant → canonical folder name}. Keys are matched
// case-insensitively.
func NewService(showMappings map[string]string) *Service {
	exact := make(map[string]string, len(showMappings))
	for variant, canonical := range showMappings {
		exact[strings.ToLower(strings.TrimSpace(variant))] = canonical
	}
	return &Service{exact: exact}
}

// MapShow returns the canonical folder name for a raw show name.
// Configured mappings win; unknown shows fall back to the slugified
// raw name. An empty raw name maps to the empty string.
func (s *Service) MapShow(rawName string) string {
	raw := strings.TrimSpace(rawName)
	if raw == "" {
		return ""
	}
	if canonical, ok := s.exact[strings.ToLower(raw)]; ok {
		return canonical
	}
	return Slugify(raw)
}

// EpisodeID generates the canonical episode ID. When show, episode
// number, and air date are all present the ID is
// {show}_ep{NNN}_{YYYY-MM-DD}; otherwise FallbackEpisodeID applies.
func (s *Service) EpisodeID(rawShow string, episodeNumber int, airDate string) string {
	show := s.MapShow(rawShow)
	if show != "" && episodeNumber > 0 && validDate(airDate) {
		return fmt.Sprintf("%s_ep%03d_%s", show, episodeNumber, airDate)
	}
	return s.FallbackEpisodeID(rawShow, time.Now())
}

// FallbackEpisodeID generates an ID for episodes missing show, number,
// or date: the slugified source name plus a timestamp. Nanosecond
// precision keeps IDs unique when several fallbacks land in the same
// second.
func (s *Service) FallbackEpisodeID(rawName string, now time.Time) string {
	slug := Slugify(rawName)
	if slug == "" {
		slug = "episode"
	}
	return fmt.Sprintf("%s_%d", slug, now.UnixNano())
}

// ParsedEpisodeID is the decomposition of a canonical episode ID.
type ParsedEpisodeID struct {
	Show          string
	EpisodeNumber int
	AirDate       string
}

// ParseEpisodeID splits a canonical episode ID back into its parts.
// Fallback-form IDs do not parse and return ok=false.
func ParseEpisodeID(id string) (ParsedEpisodeID, bool) {
	m := episodeIDPattern.FindStringSubmatch(id)
	if m == nil {
		return ParsedEpisodeID{}, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || !validDate(m[3]) {
		return ParsedEpisodeID{}, false
	}
	return ParsedEpisodeID{Show: m[1], EpisodeNumber: n, AirDate: m[3]}, true
}

// EpisodeFolder returns the artifact folder for an episode:
// {root}/{show}/{YYYY}/{episodeID}. Episodes without a known show go
// under {root}/_uncategorized/{episodeID}.
func (s *Service) EpisodeFolder(root, rawShow, airDate, episodeID string) string {
	show := s.MapShow(rawShow)
	if show == "" {
		return joinSlash(root, UncategorizedFolder, episodeID)
	}
	year := yearOf(airDate)
	return joinSlash(root, show, strconv.Itoa(year), episodeID)
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func yearOf(airDate string) int {
	if t, err := time.Parse("2006-01-02", airDate); err == nil {
		return t.Year()
	}
	return time.Now().Year()
}

// joinSlash joins path elements with forward slashes regardless of
// platform; stored paths are always slash-separated.
func joinSlash(elems ...string) string {
	parts := make([]string, 0, len(elems))
	for _, e := range elems {
		e = strings.Trim(e, "/")
		if e != "" {
			parts = append(parts, e)
		}
	}
	joined := strings.Join(parts, "/")
	if len(elems) > 0 && strings.HasPrefix(elems[0], "/") {
		return "/" + joined
	}
	return joined
}
