// Package listing defines the normalized job posting produced by every source.
package listing

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Origin classifies where a listing came from. Lower values win during
// deduplication.
type Origin int

const (
	// OriginDirect is a company-owned board such as Greenhouse or Lever.
	OriginDirect Origin = iota
	// OriginAPI is an aggregator with a documented API.
	OriginAPI
	// OriginScraped is an aggregator read through HTML scraping.
	OriginScraped
)

func (o Origin) String() string {
	switch o {
	case OriginDirect:
		return "direct"
	case OriginAPI:
		return "api"
	case OriginScraped:
		return "scraped"
	default:
		return "unknown"
	}
}

// Confidence tags how trustworthy the normalized fields are.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// ConfidenceFor returns the confidence tag for an origin class.
func ConfidenceFor(o Origin) Confidence {
	if o == OriginScraped {
		return ConfidenceMedium
	}
	return ConfidenceHigh
}

// Arrangement is the remote/onsite tag of a posting.
type Arrangement string

const (
	ArrangementRemote  Arrangement = "remote"
	ArrangementHybrid  Arrangement = "hybrid"
	ArrangementOnsite  Arrangement = "onsite"
	ArrangementUnknown Arrangement = "unknown"
)

// Listing is one normalized job posting. Sources create it and nothing
// mutates it afterwards; the deduplicator works on copies.
type Listing struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Organization string      `json:"organization"`
	Location     string      `json:"location,omitempty"`
	Compensation string      `json:"compensation,omitempty"`
	PostedAt     *time.Time  `json:"posted_at,omitempty"`
	Arrangement  Arrangement `json:"arrangement"`
	Description  string      `json:"description,omitempty"`
	URL          string      `json:"url,omitempty"`
	Source       string      `json:"source"`
	Backend      string      `json:"backend"`
	Origin       Origin      `json:"origin"`
	Confidence   Confidence  `json:"confidence"`
	Provenance   []string    `json:"provenance,omitempty"`
}

// Key identifies the listing for cross-run tracking.
func (l Listing) Key() string {
	id := l.ID
	if id == "" {
		id = l.URL
	}
	return l.Source + ":" + id
}

// Text returns the searchable text of the listing.
func (l Listing) Text() string {
	return strings.Join([]string{l.Title, l.Organization, l.Location, l.Description}, "\n")
}

// Age returns how long ago the listing was posted. The second value is false
// when the posting date is unknown.
func (l Listing) Age(now time.Time) (time.Duration, bool) {
	if l.PostedAt == nil || l.PostedAt.IsZero() {
		return 0, false
	}
	age := now.Sub(*l.PostedAt)
	if age < 0 {
		age = 0
	}
	return age, true
}

var amountRe = regexp.MustCompile(`(\d[\d,. ]*\d|\d)\s*([kK])?`)

// CompensationRange extracts the lowest and highest amount from the free-form
// compensation text. ok is false when the text carries no number.
func (l Listing) CompensationRange() (lo, hi float64, ok bool) {
	return ParseCompensation(l.Compensation)
}

// ParseCompensation performs the simple numeric extraction used for salary
// floors: every number is read, "k" multiplies by a thousand, and numbers
// below 1000 without a suffix are ignored as noise (years, percentages).
func ParseCompensation(text string) (lo, hi float64, ok bool) {
	for _, m := range amountRe.FindAllStringSubmatch(text, -1) {
		raw := strings.NewReplacer(",", "", " ", "").Replace(m[1])
		if strings.Count(raw, ".") > 1 {
			raw = strings.ReplaceAll(raw, ".", "")
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if m[2] != "" {
			v *= 1000
		} else if v < 1000 {
			continue
		}
		if !ok || v < lo {
			lo = v
		}
		if !ok || v > hi {
			hi = v
		}
		ok = true
	}
	return lo, hi, ok
}

// DetectArrangement guesses the arrangement tag from free text.
func DetectArrangement(texts ...string) Arrangement {
	joined := strings.ToLower(strings.Join(texts, " "))
	switch {
	case strings.Contains(joined, "hybrid"):
		return ArrangementHybrid
	case strings.Contains(joined, "remote"), strings.Contains(joined, "anywhere"), strings.Contains(joined, "work from home"):
		return ArrangementRemote
	case strings.Contains(joined, "on-site"), strings.Contains(joined, "onsite"), strings.Contains(joined, "in office"):
		return ArrangementOnsite
	default:
		return ArrangementUnknown
	}
}

// ParseTime tries the timestamp layouts used by the supported sources.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		time.RFC1123Z,
		time.RFC1123,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			n /= 1000
		}
		t := time.Unix(n, 0).UTC()
		return &t
	}
	return nil
}
