// Package builder calls the backend endpoints that analyze a job offer and
// turn the matched profile into a PDF résumé.
package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/nzsystems/rezume/internal/apierr"
	"github.com/nzsystems/rezume/internal/pdfdoc"
	"github.com/nzsystems/rezume/internal/session"
)

const (
	AnalyzePath   = "/api/analyze"
	GeneratePath  = "/api/generate-cv"
	TemplatesPath = "/api/templates"
	OptimizePath  = "/api/optimize-description"

	ReportHeader       = "X-CV-Validation-Report"
	GenerationIDHeader = "X-Generation-ID"

	DefaultTone = "standard"
)

// API is the part of the session client the builder needs.
type API interface {
	JSON(ctx context.Context, method, path string, in, out any) error
	Do(ctx context.Context, method, path string, body io.Reader, contentType string) (*session.Response, error)
}

type Builder struct {
	api    API
	logger *zap.Logger
}

func New(api API, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{api: api, logger: logger}
}

// Match is one experience selected by the analysis. Its shape belongs to the
// backend and is sent back verbatim when generating.
type Match map[string]any

type Analysis struct {
	Score        int
	Summary      string
	Skills       []string
	BulletPoints []string
	RawMatches   []Match
}

type analysisPayload struct {
	Score        *int     `json:"score"`
	Summary      *string  `json:"summary"`
	Skills       []string `json:"skills"`
	BulletPoints []string `json:"bulletPoints"`
	RawMatches   []Match  `json:"raw_matches"`
}

func (p *analysisPayload) ValidateResponse() error {
	switch {
	case p.Score == nil:
		return apierr.Malformed(AnalyzePath, "score is missing")
	case *p.Score < 0 || *p.Score > 100:
		return apierr.Malformed(AnalyzePath, fmt.Sprintf("score %d is out of range", *p.Score))
	case p.Summary == nil:
		return apierr.Malformed(AnalyzePath, "summary is missing")
	}
	return nil
}

// Analyze scores the profile against a pasted job offer.
func (b *Builder) Analyze(ctx context.Context, rawText string) (*Analysis, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, apierr.Required("raw_text")
	}

	var p analysisPayload
	in := map[string]string{"raw_text": rawText}
	if err := b.api.JSON(ctx, http.MethodPost, AnalyzePath, in, &p); err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	a := &Analysis{
		Score:        *p.Score,
		Summary:      *p.Summary,
		Skills:       p.Skills,
		BulletPoints: p.BulletPoints,
		RawMatches:   p.RawMatches,
	}

	b.logger.Info("job offer analyzed",
		zap.Int("score", a.Score),
		zap.Int("skills", len(a.Skills)),
		zap.Int("matches", len(a.RawMatches)),
	)

	return a, nil
}

type GenerateRequest struct {
	Experiences  []Match `json:"experiences"`
	JobOfferText string  `json:"job_offer_text,omitempty"`
	// GenerationID asks the backend to serve a previously generated PDF.
	GenerationID string `json:"generation_id,omitempty"`
}

// ValidationReport is the backend's compliance check of the generated CV.
type ValidationReport struct {
	Valid      bool     `json:"valid"`
	Cached     bool     `json:"cached,omitempty"`
	PageCount  int      `json:"page_count,omitempty"`
	PageStatus string   `json:"page_status,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

type GeneratedCV struct {
	PDF          []byte
	GenerationID string
	// Report is nil when the backend sent none.
	Report *ValidationReport
	// Pages is counted locally from PDF.
	Pages int
}

// GenerateCV renders the matched experiences into a PDF.
func (b *Builder) GenerateCV(ctx context.Context, req GenerateRequest) (*GeneratedCV, error) {
	if len(req.Experiences) == 0 {
		return nil, apierr.Required("experiences")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}

	resp, err := b.api.Do(ctx, http.MethodPost, GeneratePath, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, fmt.Errorf("generate cv: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("generate cv: read body: %w: %w", apierr.ErrNetwork, err)
	}
	if err := resp.Err(data); err != nil {
		return nil, fmt.Errorf("generate cv: %w", err)
	}

	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, apierr.Malformed(GeneratePath, "body is not a PDF")
	}

	pages, err := pdfdoc.Pages(data)
	if err != nil {
		return nil, &apierr.MalformedResponseError{Path: GeneratePath, Reason: "unreadable PDF", Err: err}
	}

	report, err := parseReport(resp.Header.Get(ReportHeader))
	if err != nil {
		return nil, &apierr.MalformedResponseError{Path: GeneratePath, Reason: "bad validation report", Err: err}
	}

	cv := &GeneratedCV{
		PDF:          data,
		GenerationID: strings.TrimSpace(resp.Header.Get(GenerationIDHeader)),
		Report:       report,
		Pages:        pages,
	}

	b.logger.Info("cv generated",
		zap.String("generation_id", cv.GenerationID),
		zap.Int("pages", cv.Pages),
		zap.Int("bytes", len(cv.PDF)),
		zap.Bool("reused", req.GenerationID != "" && req.GenerationID == cv.GenerationID),
	)

	return cv, nil
}

// parseReport decodes the URL-encoded JSON report header.
func parseReport(header string) (*ValidationReport, error) {
	if strings.TrimSpace(header) == "" {
		return nil, nil
	}

	raw, err := url.QueryUnescape(header)
	if err != nil {
		return nil, err
	}

	var report ValidationReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Preview     string `json:"preview,omitempty"`
}

type templateList []Template

func (l *templateList) ValidateResponse() error {
	for i, t := range *l {
		if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.Name) == "" {
			return apierr.Malformed(TemplatesPath, fmt.Sprintf("template %d has no id or name", i))
		}
	}
	return nil
}

// Templates lists the CV designs the backend can render.
func (b *Builder) Templates(ctx context.Context) ([]Template, error) {
	var list templateList
	if err := b.api.JSON(ctx, http.MethodGet, TemplatesPath, nil, &list); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return list, nil
}

type optimizeResponse struct {
	OptimizedText *string `json:"optimized_text"`
}

func (r *optimizeResponse) ValidateResponse() error {
	if r.OptimizedText == nil {
		return apierr.Malformed(OptimizePath, "optimized_text is missing")
	}
	return nil
}

// OptimizeDescription rewrites an experience description in the given tone.
func (b *Builder) OptimizeDescription(ctx context.Context, text, tone string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", apierr.Required("text")
	}
	if strings.TrimSpace(tone) == "" {
		tone = DefaultTone
	}

	var resp optimizeResponse
	in := map[string]string{"text": text, "tone": tone}
	if err := b.api.JSON(ctx, http.MethodPost, OptimizePath, in, &resp); err != nil {
		return "", fmt.Errorf("optimize description: %w", err)
	}

	return *resp.OptimizedText, nil
}
