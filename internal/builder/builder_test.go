package builder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzsystems/rezume/internal/apierr"
	"github.com/nzsystems/rezume/internal/pdfdoc/pdfdoctest"
	"github.com/nzsystems/rezume/internal/session"
)

func newBuilder(t *testing.T, handler http.HandlerFunc) *Builder {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := session.New(srv.URL, nil)
	require.NoError(t, err)

	return New(client, nil)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestAnalyze(t *testing.T) {
	var got map[string]string
	b := newBuilder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, AnalyzePath, r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, map[string]any{
			"score":        82,
			"summary":      "Strong backend match",
			"skills":       []string{"Go", "SQL"},
			"bulletPoints": []string{"Built APIs"},
			"raw_matches":  []map[string]any{{"title": "Backend Developer", "company": "Acme"}},
		})
	})

	a, err := b.Analyze(context.Background(), "We are hiring a Go developer")
	require.NoError(t, err)

	assert.Equal(t, "We are hiring a Go developer", got["raw_text"])
	assert.Equal(t, 82, a.Score)
	assert.Equal(t, []string{"Go", "SQL"}, a.Skills)
	require.Len(t, a.RawMatches, 1)
	assert.Equal(t, "Acme", a.RawMatches[0]["company"])
}

func TestAnalyzeValidation(t *testing.T) {
	b := newBuilder(t, func(http.ResponseWriter, *http.Request) {
		t.Errorf("no request expected")
	})

	_, err := b.Analyze(context.Background(), "   ")
	assert.ErrorIs(t, err, apierr.ErrValidation)
}

func TestAnalyzeMalformed(t *testing.T) {
	tests := map[string]any{
		"missing score":   map[string]any{"summary": "x"},
		"score too large": map[string]any{"score": 140, "summary": "x"},
		"missing summary": map[string]any{"score": 10},
		"wrong type":      map[string]any{"score": "high", "summary": "x"},
	}

	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			b := newBuilder(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, payload)
			})

			_, err := b.Analyze(context.Background(), "offer")
			assert.ErrorIs(t, err, apierr.ErrMalformedResponse)
		})
	}
}

func TestGenerateCV(t *testing.T) {
	pdf := pdfdoctest.Minimal(2)
	report := url.QueryEscape(`{"valid":false,"page_count":2,"page_status":"error","warnings":["❌ Page count violation: 2 pages (Limit: 1)"]}`)

	var got GenerateRequest
	b := newBuilder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, GeneratePath, r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set(ReportHeader, report)
		w.Header().Set(GenerationIDHeader, "rezume_llm_42")
		_, _ = w.Write(pdf)
	})

	cv, err := b.GenerateCV(context.Background(), GenerateRequest{
		Experiences:  []Match{{"title": "Backend Developer"}},
		JobOfferText: "Go developer",
	})
	require.NoError(t, err)

	assert.Equal(t, "Go developer", got.JobOfferText)
	assert.Empty(t, got.GenerationID)
	assert.Equal(t, pdf, cv.PDF)
	assert.Equal(t, "rezume_llm_42", cv.GenerationID)
	assert.Equal(t, 2, cv.Pages)
	require.NotNil(t, cv.Report)
	assert.False(t, cv.Report.Valid)
	assert.Equal(t, 2, cv.Report.PageCount)
	assert.Len(t, cv.Report.Warnings, 1)
}

func TestGenerateCVWithoutReport(t *testing.T) {
	b := newBuilder(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pdfdoctest.Minimal(1))
	})

	cv, err := b.GenerateCV(context.Background(), GenerateRequest{Experiences: []Match{{"title": "Dev"}}, GenerationID: "rezume_llm_1"})
	require.NoError(t, err)

	assert.Nil(t, cv.Report)
	assert.Empty(t, cv.GenerationID)
	assert.Equal(t, 1, cv.Pages)
}

func TestGenerateCVRejects(t *testing.T) {
	t.Run("no experiences", func(t *testing.T) {
		b := newBuilder(t, func(http.ResponseWriter, *http.Request) {
			t.Errorf("no request expected")
		})
		_, err := b.GenerateCV(context.Background(), GenerateRequest{})
		assert.ErrorIs(t, err, apierr.ErrValidation)
	})

	t.Run("not a pdf", func(t *testing.T) {
		b := newBuilder(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]string{"detail": "oops"})
		})
		_, err := b.GenerateCV(context.Background(), GenerateRequest{Experiences: []Match{{"title": "Dev"}}})
		assert.ErrorIs(t, err, apierr.ErrMalformedResponse)
	})

	t.Run("bad report", func(t *testing.T) {
		b := newBuilder(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set(ReportHeader, "%7Bnot-json")
			_, _ = w.Write(pdfdoctest.Minimal(1))
		})
		_, err := b.GenerateCV(context.Background(), GenerateRequest{Experiences: []Match{{"title": "Dev"}}})
		assert.ErrorIs(t, err, apierr.ErrMalformedResponse)
	})

	t.Run("backend rejects", func(t *testing.T) {
		b := newBuilder(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]string{"detail": "Failed to process knowledge base"})
		})
		_, err := b.GenerateCV(context.Background(), GenerateRequest{Experiences: []Match{{"title": "Dev"}}})
		assert.ErrorIs(t, err, apierr.ErrRequestFailed)
		assert.Equal(t, "Failed to process knowledge base", apierr.Detail(err))
	})

	t.Run("server down", func(t *testing.T) {
		b := newBuilder(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := b.GenerateCV(context.Background(), GenerateRequest{Experiences: []Match{{"title": "Dev"}}})
		assert.ErrorIs(t, err, apierr.ErrServerDown)
	})
}

func TestTemplates(t *testing.T) {
	b := newBuilder(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []map[string]string{
			{"id": "modern", "name": "Moderne", "description": "Deux colonnes", "preview": "modern.png"},
			{"id": "classic", "name": "Classique"},
		})
	})

	templates, err := b.Templates(context.Background())
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, "modern.png", templates[0].Preview)
	assert.Equal(t, "classic", templates[1].ID)
}

func TestTemplatesMalformed(t *testing.T) {
	b := newBuilder(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []map[string]string{{"name": "No id"}})
	})

	_, err := b.Templates(context.Background())
	assert.ErrorIs(t, err, apierr.ErrMalformedResponse)
}

func TestOptimizeDescription(t *testing.T) {
	var got map[string]string
	b := newBuilder(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, map[string]string{"optimized_text": "Led the migration of 12 services."})
	})

	out, err := b.OptimizeDescription(context.Background(), "did migration", "")
	require.NoError(t, err)

	assert.Equal(t, "Led the migration of 12 services.", out)
	assert.Equal(t, DefaultTone, got["tone"])

	_, err = b.OptimizeDescription(context.Background(), "", "formal")
	assert.ErrorIs(t, err, apierr.ErrValidation)
}

func TestOptimizeDescriptionMalformed(t *testing.T) {
	b := newBuilder(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"text": "wrong key"})
	})

	_, err := b.OptimizeDescription(context.Background(), "text", "formal")
	assert.ErrorIs(t, err, apierr.ErrMalformedResponse)
}
