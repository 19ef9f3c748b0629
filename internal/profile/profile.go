// Package profile loads the candidate profile the listings are ranked
// against. Profiles are versioned JSON documents migrated in place.
package profile

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CurrentVersion is the schema version written by this build.
const CurrentVersion = 3

// WeightTolerance is the allowed distance of the weight sum from 1.
const WeightTolerance = 1e-6

var ErrUnsupportedVersion = errors.New("unsupported profile version")

// StaffingPreference controls how postings from staffing firms are treated.
type StaffingPreference string

const (
	StaffingBoost    StaffingPreference = "boost"
	StaffingNeutral  StaffingPreference = "neutral"
	StaffingPenalize StaffingPreference = "penalize"
)

// Weights are the relative importance of the six scoring components.
type Weights struct {
	Skill     float64 `json:"skill"`
	Title     float64 `json:"title"`
	Seniority float64 `json:"seniority"`
	Location  float64 `json:"location"`
	Domain    float64 `json:"domain"`
	Response  float64 `json:"response"`
}

func DefaultWeights() Weights {
	return Weights{
		Skill:     0.30,
		Title:     0.20,
		Seniority: 0.15,
		Location:  0.15,
		Domain:    0.10,
		Response:  0.10,
	}
}

func (w Weights) Sum() float64 {
	return w.Skill + w.Title + w.Seniority + w.Location + w.Domain + w.Response
}

// Map returns the weights keyed by component name.
func (w Weights) Map() map[string]float64 {
	return map[string]float64{
		"skill":     w.Skill,
		"title":     w.Title,
		"seniority": w.Seniority,
		"location":  w.Location,
		"domain":    w.Domain,
		"response":  w.Response,
	}
}

// Validate checks that every weight is in [0, 1] and that they sum to 1.
func (w Weights) Validate() error {
	for name, value := range w.Map() {
		if math.IsNaN(value) || value < 0 || value > 1 {
			return fmt.Errorf("weight %s=%v is outside [0, 1]", name, value)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > WeightTolerance {
		return fmt.Errorf("weights sum to %.6f, expected 1.0", sum)
	}
	return nil
}

type Profile struct {
	Version         int                `json:"version" validate:"eq=3"`
	TargetTitles    []string           `json:"target_titles" validate:"required,min=1,dive,required"`
	Skills          []string           `json:"skills" validate:"dive,required"`
	Locations       []string           `json:"locations" validate:"dive,required"`
	RemoteOK        bool               `json:"remote_ok"`
	Seniority       string             `json:"seniority" validate:"omitempty,oneof=intern junior mid senior staff principal lead"`
	Domains         []string           `json:"domains" validate:"dive,required"`
	MinCompensation float64            `json:"min_compensation" validate:"gte=0"`
	Dealbreakers    []string           `json:"dealbreakers" validate:"dive,required"`
	Staffing        StaffingPreference `json:"staffing" validate:"omitempty,oneof=boost neutral penalize"`
	Weights         Weights            `json:"weights"`
}

// Validate checks the structural constraints of the profile. Weights are
// checked separately because invalid weights are not fatal.
func (p *Profile) Validate() error {
	validate := validator.New()
	return validate.Struct(p)
}

// Normalize trims every list entry and drops empty ones.
func (p *Profile) Normalize() {
	p.TargetTitles = clean(p.TargetTitles)
	p.Skills = clean(p.Skills)
	p.Locations = clean(p.Locations)
	p.Domains = clean(p.Domains)
	p.Dealbreakers = clean(p.Dealbreakers)
	p.Seniority = strings.ToLower(strings.TrimSpace(p.Seniority))
	if p.Staffing == "" {
		p.Staffing = StaffingNeutral
	}
}

// PrimaryLocation is the first preferred location, if any.
func (p *Profile) PrimaryLocation() string {
	if len(p.Locations) == 0 {
		return ""
	}
	return p.Locations[0]
}

func clean(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
