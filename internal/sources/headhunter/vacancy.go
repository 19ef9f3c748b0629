package headhunter

import (
	"fmt"
	"strings"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/sources"
)

type Named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type Salary struct {
	From     int    `json:"from,omitempty"`
	To       int    `json:"to,omitempty"`
	Currency string `json:"currency,omitempty"`
	Gross    bool   `json:"gross,omitempty"`
}

type Employer struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Trusted bool   `json:"trusted,omitempty"`
}

type Snippet struct {
	Requirement    string `json:"requirement,omitempty"`
	Responsibility string `json:"responsibility,omitempty"`
}

type Vacancy struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name,omitempty"`
	Area         Named    `json:"area,omitempty"`
	Salary       *Salary  `json:"salary,omitempty"`
	Experience   Named    `json:"experience,omitempty"`
	Schedule     Named    `json:"schedule,omitempty"`
	Employment   Named    `json:"employment,omitempty"`
	Employer     Employer `json:"employer,omitempty"`
	AlternateURL string   `json:"alternate_url,omitempty"`
	Description  string   `json:"description,omitempty"`
	KeySkills    []Named  `json:"key_skills,omitempty"`
	Snippet      Snippet  `json:"snippet,omitempty"`
	PublishedAt  string   `json:"published_at,omitempty"`
	Archived     bool     `json:"archived,omitempty"`
}

// ToListing normalizes the vacancy. Source fields are stamped by the fetcher.
func (v *Vacancy) ToListing() listing.Listing {
	description := v.Description
	if description == "" {
		description = strings.TrimSpace(v.Snippet.Requirement + " " + v.Snippet.Responsibility)
	}
	description = sources.PlainText(description)

	if len(v.KeySkills) > 0 {
		skills := make([]string, 0, len(v.KeySkills))
		for _, skill := range v.KeySkills {
			skills = append(skills, skill.Name)
		}
		description = strings.TrimSpace(description + " Key skills: " + strings.Join(skills, ", "))
	}

	return listing.Listing{
		ID:           v.ID,
		Title:        strings.TrimSpace(v.Name),
		Organization: strings.TrimSpace(v.Employer.Name),
		Location:     v.Area.Name,
		Compensation: v.Salary.String(),
		PostedAt:     listing.ParseTime(v.PublishedAt),
		Arrangement:  arrangement(v.Schedule.ID),
		Description:  description,
		URL:          v.AlternateURL,
	}
}

func (s *Salary) String() string {
	if s == nil {
		return ""
	}
	currency := strings.TrimSpace(s.Currency)
	switch {
	case s.From > 0 && s.To > 0:
		return strings.TrimSpace(fmt.Sprintf("%d-%d %s", s.From, s.To, currency))
	case s.From > 0:
		return strings.TrimSpace(fmt.Sprintf("from %d %s", s.From, currency))
	case s.To > 0:
		return strings.TrimSpace(fmt.Sprintf("up to %d %s", s.To, currency))
	default:
		return ""
	}
}

func arrangement(scheduleID string) listing.Arrangement {
	switch scheduleID {
	case "remote":
		return listing.ArrangementRemote
	case "fullDay", "shift", "flyInFlyOut":
		return listing.ArrangementOnsite
	default:
		return ""
	}
}
