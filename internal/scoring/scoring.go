// Package scoring ranks listings against a candidate profile.
//
// Six components are scored in [0, 1] and combined with the profile weights
// into a base score of 1 + 4 * sum(weight * component). The staffing-firm
// preference is applied after the weighted sum, and the result is clamped to
// [1, 5]. A listing mentioning a dealbreaker term is excluded before any
// component is computed.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/spigell/jobscout/internal/dedupe"
	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/profile"
)

const (
	MinScore = 1.0
	MaxScore = 5.0

	StaffingBoostDelta    = 0.25
	StaffingPenalizeDelta = -0.75
)

type Tier string

const (
	TierStrong   Tier = "strong"
	TierGood     Tier = "good"
	TierPossible Tier = "possible"
	TierWeak     Tier = "weak"
	TierExcluded Tier = "excluded"
)

// TierFor maps a final score to its recommendation tier.
func TierFor(score float64) Tier {
	switch {
	case score >= 4.0:
		return TierStrong
	case score >= 3.25:
		return TierGood
	case score >= 2.5:
		return TierPossible
	default:
		return TierWeak
	}
}

// Components are the sub-scores of a listing, each in [0, 1].
type Components struct {
	Skill     float64 `json:"skill"`
	Title     float64 `json:"title"`
	Seniority float64 `json:"seniority"`
	Location  float64 `json:"location"`
	Domain    float64 `json:"domain"`
	Response  float64 `json:"response"`
}

func (c Components) weighted(w profile.Weights) float64 {
	return w.Skill*c.Skill +
		w.Title*c.Title +
		w.Seniority*c.Seniority +
		w.Location*c.Location +
		w.Domain*c.Domain +
		w.Response*c.Response
}

type Result struct {
	Score         float64    `json:"score"`
	Components    Components `json:"components"`
	Tier          Tier       `json:"tier"`
	Filtered      bool       `json:"filtered"`
	Dealbreaker   string     `json:"dealbreaker,omitempty"`
	MatchedSkills []string   `json:"matched_skills,omitempty"`
	StaffingFirm  bool       `json:"staffing_firm,omitempty"`
	Adjustment    float64    `json:"adjustment,omitempty"`
}

// Scored pairs a listing with its result.
type Scored struct {
	Listing listing.Listing
	Result  Result
}

type term struct {
	raw        string
	normalized string
}

func terms(values []string) []term {
	out := make([]term, 0, len(values))
	for _, v := range values {
		if n := NormalizeTerm(v); n != "" {
			out = append(out, term{raw: v, normalized: n})
		}
	}
	return out
}

// Engine scores listings against one profile. Profile terms are normalized
// once; the engine is safe for concurrent use.
type Engine struct {
	profile      *profile.Profile
	weights      profile.Weights
	skills       []term
	domains      []term
	dealbreakers []term
	titles       [][]string
	locations    []string
	seniority    int
	now          func() time.Time
}

// New builds an engine. Weights that fail validation are replaced by the
// defaults; profile.Load already warns about that.
func New(p *profile.Profile) *Engine {
	weights := p.Weights
	if weights.Validate() != nil {
		weights = profile.DefaultWeights()
	}

	e := &Engine{
		profile:      p,
		weights:      weights,
		skills:       terms(p.Skills),
		domains:      terms(p.Domains),
		dealbreakers: terms(p.Dealbreakers),
		seniority:    levelOf(p.Seniority),
		now:          time.Now,
	}
	for _, title := range p.TargetTitles {
		if tokens := significant(Tokenize(title)); len(tokens) > 0 {
			e.titles = append(e.titles, tokens)
		}
	}
	for _, loc := range p.Locations {
		if n := NormalizeTerm(loc); n != "" {
			e.locations = append(e.locations, n)
		}
	}

	return e
}

// Score computes the result for one listing.
func (e *Engine) Score(l listing.Listing) Result {
	text := NewText(l.Title, l.Organization, l.Location, l.Description)

	for _, d := range e.dealbreakers {
		if text.Contains(d.normalized) {
			return Result{
				Score:       MinScore,
				Tier:        TierExcluded,
				Filtered:    true,
				Dealbreaker: d.raw,
			}
		}
	}

	var res Result
	res.Components.Skill, res.MatchedSkills = e.skillMatch(text)
	res.Components.Title = e.titleRelevance(l)
	res.Components.Seniority = e.seniorityFit(l)
	res.Components.Location = e.locationFit(l)
	res.Components.Domain = e.domainFit(text)
	res.Components.Response = e.responseLikelihood(l)

	score := MinScore + (MaxScore-MinScore)*res.Components.weighted(e.weights)

	res.StaffingFirm = IsStaffingFirm(l)
	if res.StaffingFirm {
		switch e.profile.Staffing {
		case profile.StaffingBoost:
			res.Adjustment = StaffingBoostDelta
		case profile.StaffingPenalize:
			res.Adjustment = StaffingPenalizeDelta
		}
	}

	res.Score = round2(clamp(score+res.Adjustment, MinScore, MaxScore))
	res.Tier = TierFor(res.Score)

	return res
}

// Score is a shortcut for scoring a single listing.
func Score(l listing.Listing, p *profile.Profile) Result {
	return New(p).Score(l)
}

// Rank scores every listing and orders them by score, highest first.
// Excluded listings come last. Ties are broken by the deduplication key so
// the order does not depend on the input order.
func (e *Engine) Rank(listings []listing.Listing) []Scored {
	scored := make([]Scored, len(listings))
	for i, l := range listings {
		scored[i] = Scored{Listing: l, Result: e.Score(l)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Result.Filtered != b.Result.Filtered {
			return !a.Result.Filtered
		}
		if a.Result.Score != b.Result.Score {
			return a.Result.Score > b.Result.Score
		}
		ka, kb := dedupe.Key(a.Listing), dedupe.Key(b.Listing)
		if ka != kb {
			return ka < kb
		}
		return a.Listing.Key() < b.Listing.Key()
	})

	return scored
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
