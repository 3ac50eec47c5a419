package profile

import (
	"strings"

	"github.com/nzsystems/rezume/internal/apierr"
)

const (
	MePath          = "/api/profile/me"
	UploadCVPath    = "/api/profile/upload-cv"
	UploadPhotoPath = "/api/profile/upload-photo"
)

const (
	LanguageFR = "fr"
	LanguageEN = "en"

	ThemeLight = "light"
	ThemeDark  = "dark"
)

// User is the identity and preference record returned by /api/profile/me.
type User struct {
	Email            string `json:"email"`
	FullName         string `json:"full_name,omitempty"`
	AvatarImage      string `json:"avatar_image,omitempty"`
	PhotoCV          string `json:"photo_cv,omitempty"`
	Title            string `json:"title,omitempty"`
	Summary          string `json:"summary,omitempty"`
	PortfolioURL     string `json:"portfolio_url,omitempty"`
	LinkedinURL      string `json:"linkedin_url,omitempty"`
	Language         string `json:"language,omitempty"`
	Theme            string `json:"theme,omitempty"`
	SelectedTemplate string `json:"selected_template,omitempty"`
	SearchStatus     string `json:"search_status,omitempty"`
	LLMProvider      string `json:"llm_provider,omitempty"`
	LLMModel         string `json:"llm_model,omitempty"`
}

// ValidateResponse rejects an identity payload without an email.
func (u *User) ValidateResponse() error {
	if strings.TrimSpace(u.Email) == "" {
		return apierr.Malformed(MePath, "email is missing")
	}
	return nil
}

// UserUpdate is a partial profile update. Nil fields are left untouched.
type UserUpdate struct {
	FullName         *string `json:"full_name,omitempty"`
	AvatarImage      *string `json:"avatar_image,omitempty"`
	Title            *string `json:"title,omitempty"`
	Summary          *string `json:"summary,omitempty"`
	PortfolioURL     *string `json:"portfolio_url,omitempty"`
	LinkedinURL      *string `json:"linkedin_url,omitempty"`
	Language         *string `json:"language,omitempty"`
	Theme            *string `json:"theme,omitempty"`
	SelectedTemplate *string `json:"selected_template,omitempty"`
	SearchStatus     *string `json:"search_status,omitempty"`
	LLMProvider      *string `json:"llm_provider,omitempty"`
	LLMModel         *string `json:"llm_model,omitempty"`
	OpenAIAPIKey     *string `json:"openai_api_key,omitempty"`
}

// Validate checks the enum-valued fields before the update is sent.
func (u UserUpdate) Validate() error {
	if u.Language != nil && *u.Language != LanguageFR && *u.Language != LanguageEN {
		return &apierr.ValidationError{Field: "language", Reason: "must be fr or en"}
	}
	if u.Theme != nil && *u.Theme != ThemeLight && *u.Theme != ThemeDark {
		return &apierr.ValidationError{Field: "theme", Reason: "must be light or dark"}
	}
	return nil
}

// Apply merges the non-nil fields of upd into a copy of u.
func (u User) Apply(upd UserUpdate) User {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&u.FullName, upd.FullName)
	set(&u.AvatarImage, upd.AvatarImage)
	set(&u.Title, upd.Title)
	set(&u.Summary, upd.Summary)
	set(&u.PortfolioURL, upd.PortfolioURL)
	set(&u.LinkedinURL, upd.LinkedinURL)
	set(&u.Language, upd.Language)
	set(&u.Theme, upd.Theme)
	set(&u.SelectedTemplate, upd.SelectedTemplate)
	set(&u.SearchStatus, upd.SearchStatus)
	set(&u.LLMProvider, upd.LLMProvider)
	set(&u.LLMModel, upd.LLMModel)
	return u
}

// Snapshot is the full update that rewrites every editable field of u.
// Empty enum fields are left out so the backend keeps its defaults.
func (u User) Snapshot() UserUpdate {
	upd := UserUpdate{
		FullName:         &u.FullName,
		AvatarImage:      &u.AvatarImage,
		Title:            &u.Title,
		Summary:          &u.Summary,
		PortfolioURL:     &u.PortfolioURL,
		LinkedinURL:      &u.LinkedinURL,
		SelectedTemplate: &u.SelectedTemplate,
		SearchStatus:     &u.SearchStatus,
		LLMProvider:      &u.LLMProvider,
		LLMModel:         &u.LLMModel,
	}
	if u.Language != "" {
		upd.Language = &u.Language
	}
	if u.Theme != "" {
		upd.Theme = &u.Theme
	}
	return upd
}

// String returns a pointer to s, for building a UserUpdate inline.
func String(s string) *string {
	return &s
}
