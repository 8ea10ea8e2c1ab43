// Package profile owns the single owner profile document.
package profile

import "errors"

var (
	// ErrDuplicateSkill is returned by Save when a skill appears twice.
	ErrDuplicateSkill = errors.New("duplicate skill")
	// ErrDuplicateID is returned by Save when two entries of one list share an id.
	ErrDuplicateID = errors.New("duplicate entry id")
)

// Profile is the owner's resume-like document. It is replaced wholesale
// on every save.
type Profile struct {
	Name           string       `json:"name" toml:"name"`
	Headline       string       `json:"headline" toml:"headline"`
	Location       string       `json:"location" toml:"location"`
	ShortSummary   string       `json:"shortSummary" toml:"short_summary"`
	AboutLong      string       `json:"aboutLong" toml:"about_long"`
	Experience     []Experience `json:"experience" toml:"experience"`
	Education      []Education  `json:"education" toml:"education"`
	Projects       []Project    `json:"projects" toml:"projects"`
	Skills         []string     `json:"skills" toml:"skills"`
	WhatLookingFor []string     `json:"whatLookingFor" toml:"what_looking_for"`
	Contact        Contact      `json:"contact" toml:"contact"`
	AvatarURL      string       `json:"avatarUrl" toml:"avatar_url"`
	CoverURL       string       `json:"coverUrl" toml:"cover_url"`
}

type Experience struct {
	ID             string   `json:"id" toml:"id"`
	Company        string   `json:"company" toml:"company"`
	Title          string   `json:"title" toml:"title"`
	Dates          string   `json:"dates" toml:"dates"`
	Location       string   `json:"location" toml:"location"`
	Description    []string `json:"description" toml:"description"`
	LogoURL        string   `json:"logoUrl,omitempty" toml:"logo_url"`
	EmploymentType string   `json:"employmentType,omitempty" toml:"employment_type"`
}

type Education struct {
	ID      string `json:"id" toml:"id"`
	School  string `json:"school" toml:"school"`
	Degree  string `json:"degree" toml:"degree"`
	Dates   string `json:"dates" toml:"dates"`
	LogoURL string `json:"logoUrl,omitempty" toml:"logo_url"`
}

type Project struct {
	ID          string   `json:"id" toml:"id"`
	Name        string   `json:"name" toml:"name"`
	Description string   `json:"description" toml:"description"`
	Stack       []string `json:"stack" toml:"stack"`
	Link        string   `json:"link,omitempty" toml:"link"`
}

type Contact struct {
	Email        string `json:"email" toml:"email"`
	GithubURL    string `json:"githubUrl" toml:"github_url"`
	WhatsappLink string `json:"whatsappLink,omitempty" toml:"whatsapp_link"`
}

// Clone returns a deep copy so callers cannot alias the stored document.
func (p Profile) Clone() Profile {
	out := p
	out.Experience = make([]Experience, len(p.Experience))
	for i, e := range p.Experience {
		e.Description = append([]string(nil), e.Description...)
		out.Experience[i] = e
	}
	out.Education = append([]Education(nil), p.Education...)
	out.Projects = make([]Project, len(p.Projects))
	for i, pr := range p.Projects {
		pr.Stack = append([]string(nil), pr.Stack...)
		out.Projects[i] = pr
	}
	out.Skills = append([]string(nil), p.Skills...)
	out.WhatLookingFor = append([]string(nil), p.WhatLookingFor...)
	return out
}
