package profile

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/nzsystems/rezume/internal/apierr"
	"github.com/nzsystems/rezume/internal/pdfdoc"
)

// extractedCV is the profile-shaped object returned by the CV import. The
// backend builds it from an LLM answer, so every field is optional and loosely
// typed.
type extractedCV struct {
	FullName     string       `mapstructure:"full_name"`
	Title        string       `mapstructure:"title"`
	Summary      string       `mapstructure:"summary"`
	LinkedinURL  string       `mapstructure:"linkedin_url"`
	PortfolioURL string       `mapstructure:"portfolio_url"`
	Experiences  []Experience `mapstructure:"experiences"`
	Education    []Education  `mapstructure:"education"`
	Skills       []string     `mapstructure:"skills"`
	SoftSkills   []string     `mapstructure:"soft_skills"`
	Languages    []Language   `mapstructure:"languages"`
}

type importResponse struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

type photoResponse struct {
	Path string `json:"path"`
}

// Imported counts the entries staged by ImportCV.
type Imported struct {
	Experiences int
	Education   int
	Skills      int
	Languages   int
}

// Total is the number of staged entries.
func (i Imported) Total() int {
	return i.Experiences + i.Education + i.Skills + i.Languages
}

// ImportCV uploads a PDF résumé and stages the extracted data in the cache for
// review: non-empty identity fields are merged into the cached user and the
// four collections are replaced by entries carrying local IDs. Nothing is
// persisted until SaveAll.
func (s *Service) ImportCV(ctx context.Context, filename string, data []byte) (*Imported, error) {
	if err := pdfdoc.CheckUpload(filename, data); err != nil {
		return nil, err
	}

	var resp importResponse
	err := s.api.Upload(ctx, UploadCVPath, "file", filename, "application/pdf", bytes.NewReader(data), &resp)
	if err != nil {
		return nil, fmt.Errorf("import cv: %w", err)
	}
	if resp.Data == nil {
		return nil, apierr.Malformed(UploadCVPath, "data is missing")
	}

	cv, err := decodeExtracted(resp.Data)
	if err != nil {
		return nil, &apierr.MalformedResponseError{Path: UploadCVPath, Err: err}
	}

	s.cache.SetProfile(UserUpdate{
		FullName:     nonEmpty(cv.FullName),
		Title:        nonEmpty(cv.Title),
		Summary:      nonEmpty(cv.Summary),
		LinkedinURL:  nonEmpty(cv.LinkedinURL),
		PortfolioURL: nonEmpty(cv.PortfolioURL),
	})

	skills := make([]Skill, 0, len(cv.Skills)+len(cv.SoftSkills))
	for _, name := range cv.Skills {
		skills = append(skills, Skill{Name: name, Category: CategoryHard})
	}
	for _, name := range cv.SoftSkills {
		skills = append(skills, Skill{Name: name, Category: CategorySoft})
	}

	s.cache.ReplaceCollection(KindExperience, staged(cv.Experiences))
	s.cache.ReplaceCollection(KindEducation, staged(cv.Education))
	s.cache.ReplaceCollection(KindSkill, staged(skills))
	s.cache.ReplaceCollection(KindLanguage, staged(cv.Languages))

	imported := &Imported{
		Experiences: len(cv.Experiences),
		Education:   len(cv.Education),
		Skills:      len(skills),
		Languages:   len(cv.Languages),
	}

	s.logger.Info("cv imported",
		zap.String("filename", filename),
		zap.Int("experiences", imported.Experiences),
		zap.Int("education", imported.Education),
		zap.Int("skills", imported.Skills),
		zap.Int("languages", imported.Languages),
	)

	return imported, nil
}

// UploadPhoto sends an avatar image and records the stored path on the user.
func (s *Service) UploadPhoto(ctx context.Context, filename string, data []byte) (string, error) {
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", &apierr.ValidationError{Field: "file", Reason: "must be an image"}
	}

	var resp photoResponse
	err := s.api.Upload(ctx, UploadPhotoPath, "file", filename, contentType, bytes.NewReader(data), &resp)
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}

	path := strings.TrimSpace(resp.Path)
	if path == "" {
		return "", apierr.Malformed(UploadPhotoPath, "path is missing")
	}

	s.cache.SetProfile(UserUpdate{AvatarImage: &path})
	return path, nil
}

func decodeExtracted(data map[string]any) (*extractedCV, error) {
	var cv extractedCV
	cfg := &mapstructure.DecoderConfig{
		Result:           &cv,
		WeaklyTypedInput: true,
		ZeroFields:       true,
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(data); err != nil {
		return nil, err
	}

	return &cv, nil
}

func staged[T Entity](items []T) []Entity {
	out := make([]Entity, 0, len(items))
	for _, item := range items {
		out = append(out, WithLocalID(item))
	}
	return out
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
