package scoring

import (
	"strings"
	"time"

	"github.com/spigell/jobscout/internal/listing"
)

// neutral is used when the profile gives nothing to compare against.
const neutral = 0.5

func (e *Engine) skillMatch(text *Text) (float64, []string) {
	if len(e.skills) == 0 {
		return neutral, nil
	}

	var matched []string
	for _, s := range e.skills {
		if text.Contains(s.normalized) {
			matched = append(matched, s.raw)
		}
	}

	return float64(len(matched)) / float64(len(e.skills)), matched
}

var titleStopWords = map[string]struct{}{
	"and": {}, "the": {}, "of": {}, "for": {}, "with": {}, "in": {}, "to": {}, "a": {}, "m": {}, "f": {}, "w": {}, "d": {},
}

func significant(tokens []string) []string {
	out := tokens[:0:0]
	for _, tok := range tokens {
		if _, stop := titleStopWords[tok]; !stop {
			out = append(out, tok)
		}
	}
	return out
}

// titleRelevance is the best share of a target title's words found in the
// listing title.
func (e *Engine) titleRelevance(l listing.Listing) float64 {
	if len(e.titles) == 0 {
		return neutral
	}

	words := NewText(l.Title).Words()
	best := 0.0
	for _, target := range e.titles {
		hits := 0
		for _, tok := range target {
			if _, ok := words[tok]; ok {
				hits++
			}
		}
		if share := float64(hits) / float64(len(target)); share > best {
			best = share
		}
	}
	return best
}

const levelUnknown = -1

// levelWords maps title words to an ordinal seniority level.
var levelWords = map[string]int{
	"intern":       0,
	"internship":   0,
	"trainee":      0,
	"junior":       1,
	"jr":           1,
	"entry":        1,
	"graduate":     1,
	"mid":          2,
	"middle":       2,
	"intermediate": 2,
	"senior":       3,
	"sr":           3,
	"lead":         4,
	"staff":        4,
	"principal":    5,
	"architect":    5,
	"head":         5,
}

func levelOf(s string) int {
	level := levelUnknown
	for _, tok := range Tokenize(s) {
		if l, ok := levelWords[tok]; ok && l > level {
			level = l
		}
	}
	return level
}

// seniorityFit falls off with the distance between the listing level read
// from its title and the target level. Titles without a level are treated
// as mid-level postings.
func (e *Engine) seniorityFit(l listing.Listing) float64 {
	if e.seniority == levelUnknown {
		return neutral
	}

	level := levelOf(l.Title)
	if level == levelUnknown {
		level = 2
	}

	switch d := abs(level - e.seniority); d {
	case 0:
		return 1.0
	case 1:
		return 0.6
	case 2:
		return 0.25
	default:
		return 0
	}
}

func (e *Engine) locationFit(l listing.Listing) float64 {
	remote := l.Arrangement == listing.ArrangementRemote

	if remote && e.profile.RemoteOK {
		return 1.0
	}

	if len(e.locations) == 0 {
		if e.profile.RemoteOK {
			// Remote candidate, on-site posting.
			return 0.2
		}
		return neutral
	}

	where := NewText(l.Location)
	for _, loc := range e.locations {
		if where.Contains(loc) {
			return 1.0
		}
	}

	switch {
	case remote:
		// Remote posting for a candidate who did not ask for remote work.
		return 0.4
	case strings.TrimSpace(l.Location) == "":
		return neutral
	default:
		return 0
	}
}

func (e *Engine) domainFit(text *Text) float64 {
	if len(e.domains) == 0 {
		return neutral
	}

	hits := 0
	for _, d := range e.domains {
		if text.Contains(d.normalized) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	return 0.6 + 0.4*float64(hits)/float64(len(e.domains))
}

// responseLikelihood favours fresh postings and postings read from the
// employer's own board.
func (e *Engine) responseLikelihood(l listing.Listing) float64 {
	score := neutral
	if age, ok := l.Age(e.now()); ok {
		switch {
		case age <= 3*24*time.Hour:
			score = 1.0
		case age <= 7*24*time.Hour:
			score = 0.8
		case age <= 14*24*time.Hour:
			score = 0.6
		case age <= 30*24*time.Hour:
			score = 0.4
		default:
			score = 0.2
		}
	}

	switch l.Origin {
	case listing.OriginDirect:
		score += 0.1
	case listing.OriginScraped:
		score -= 0.1
	}

	return clamp(score, 0, 1)
}

// staffingMarkers identify postings published by staffing and recruiting
// agencies rather than the hiring company.
var staffingMarkers = []string{
	"staffing",
	"recruiting",
	"recruitment",
	"recruiters",
	"talent solutions",
	"on behalf of our client",
	"our client is",
	"robert half",
	"teksystems",
	"randstad",
	"adecco",
	"kforce",
	"insight global",
	"aerotek",
	"manpower",
	"hays",
}

var staffingTerms = terms(staffingMarkers)

// IsStaffingFirm reports whether the listing looks like it was posted by a
// staffing agency.
func IsStaffingFirm(l listing.Listing) bool {
	org := NewText(l.Organization)
	desc := NewText(l.Description)
	for _, marker := range staffingTerms {
		if org.Contains(marker.normalized) {
			return true
		}
		// Client phrases only make sense in the description.
		if strings.Contains(marker.raw, "client") && desc.Contains(marker.normalized) {
			return true
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
