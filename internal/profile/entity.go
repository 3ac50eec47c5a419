package profile

import (
	"fmt"
	"strings"

	"github.com/nzsystems/rezume/internal/apierr"
)

// Kind names one of the four profile collections.
type Kind string

const (
	KindExperience Kind = "experiences"
	KindEducation  Kind = "education"
	KindSkill      Kind = "skills"
	KindLanguage   Kind = "languages"
)

// Kinds lists the collections in the order they are displayed.
var Kinds = []Kind{KindExperience, KindEducation, KindSkill, KindLanguage}

// Path is the collection endpoint.
func (k Kind) Path() string {
	return "/api/profile/" + string(k)
}

// ItemPath is the endpoint of a single persisted entity.
func (k Kind) ItemPath(id int64) string {
	return fmt.Sprintf("%s/%d", k.Path(), id)
}

// Entity is an element of a profile collection.
type Entity interface {
	EntityID() ID
	Kind() Kind
	// Validate checks required fields before the entity is sent.
	Validate() error
	withID(id ID) Entity
}

// Skill categories assigned to imported skills.
const (
	CategoryHard = "Hard Skills"
	CategorySoft = "Soft Skills"
)

type Experience struct {
	ID          ID     `json:"id,omitzero" mapstructure:"-"`
	Title       string `json:"title" mapstructure:"title"`
	Company     string `json:"company,omitempty" mapstructure:"company"`
	Location    string `json:"location,omitempty" mapstructure:"location"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	StartDate   string `json:"start_date,omitempty" mapstructure:"start_date"`
	EndDate     string `json:"end_date,omitempty" mapstructure:"end_date"`
}

func (e Experience) EntityID() ID { return e.ID }

func (e Experience) Kind() Kind { return KindExperience }

func (e Experience) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return apierr.Required("title")
	}
	return nil
}

func (e Experience) withID(id ID) Entity {
	e.ID = id
	return e
}

type Education struct {
	ID          ID     `json:"id,omitzero" mapstructure:"-"`
	Institution string `json:"institution" mapstructure:"institution"`
	Degree      string `json:"degree,omitempty" mapstructure:"degree"`
	StartDate   string `json:"start_date,omitempty" mapstructure:"start_date"`
	EndDate     string `json:"end_date,omitempty" mapstructure:"end_date"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	Mention     string `json:"mention,omitempty" mapstructure:"mention"`
}

func (e Education) EntityID() ID { return e.ID }

func (e Education) Kind() Kind { return KindEducation }

func (e Education) Validate() error {
	if strings.TrimSpace(e.Institution) == "" {
		return apierr.Required("institution")
	}
	return nil
}

func (e Education) withID(id ID) Entity {
	e.ID = id
	return e
}

type Skill struct {
	ID       ID     `json:"id,omitzero" mapstructure:"-"`
	Name     string `json:"name" mapstructure:"name"`
	Category string `json:"category,omitempty" mapstructure:"category"`
}

func (s Skill) EntityID() ID { return s.ID }

func (s Skill) Kind() Kind { return KindSkill }

func (s Skill) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return apierr.Required("name")
	}
	return nil
}

func (s Skill) withID(id ID) Entity {
	s.ID = id
	return s
}

type Language struct {
	ID    ID     `json:"id,omitzero" mapstructure:"-"`
	Name  string `json:"name" mapstructure:"name"`
	Level string `json:"level,omitempty" mapstructure:"level"`
}

func (l Language) EntityID() ID { return l.ID }

func (l Language) Kind() Kind { return KindLanguage }

func (l Language) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return apierr.Required("name")
	}
	return nil
}

func (l Language) withID(id ID) Entity {
	l.ID = id
	return l
}

// validatePersisted checks an entity decoded from a backend response.
func validatePersisted(e Entity, path string) error {
	if _, ok := e.EntityID().Server(); !ok {
		return apierr.Malformed(path, "entity has no id")
	}
	return nil
}

// WithLocalID returns a copy of e carrying a fresh local ID.
func WithLocalID(e Entity) Entity {
	return e.withID(NewLocalID())
}
