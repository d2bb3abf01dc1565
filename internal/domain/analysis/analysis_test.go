package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type geminiRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
}

func geminiServer(t *testing.T, status int, body string) (*httptest.Server, *geminiRequest) {
	t.Helper()
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, &got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestGeminiClient_Generate(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     string
		wantErr  bool
		contains string
	}{
		{
			name:   "concatenates parts of first candidate",
			status: http.StatusOK,
			body:   `{"candidates":[{"content":{"role":"model","parts":[{"text":"**1. Conocimientos**\n"},{"text":"**2. Opinión**"}]}}]}`,
			want:   "**1. Conocimientos**\n**2. Opinión**",
		},
		{
			name:     "non 2xx",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`,
			wantErr:  true,
			contains: "status 429: quota exceeded",
		},
		{
			name:     "no candidates",
			status:   http.StatusOK,
			body:     `{"candidates":[]}`,
			wantErr:  true,
			contains: "no text",
		},
		{
			name:     "blank text",
			status:   http.StatusOK,
			body:     `{"candidates":[{"content":{"parts":[{"text":"  \n"}]}}]}`,
			wantErr:  true,
			contains: "no text",
		},
		{
			name:     "blocked prompt",
			status:   http.StatusOK,
			body:     `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			wantErr:  true,
			contains: "SAFETY",
		},
		{
			name:    "malformed json",
			status:  http.StatusOK,
			body:    `{"candidates":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := geminiServer(t, tt.status, tt.body)
			client, err := NewGeminiClient(context.Background(), "secret", "gemini-test", srv.URL+"/", nil)
			require.NoError(t, err)

			text, err := client.Generate(context.Background(), "hola")
			require.Len(t, got.Contents, 1)
			assert.Equal(t, "user", got.Contents[0].Role)
			assert.Equal(t, "hola", got.Contents[0].Parts[0].Text)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUpstream)
				assert.Contains(t, err.Error(), tt.contains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestNewGeminiClient(t *testing.T) {
	client, err := NewGeminiClient(context.Background(), "k", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, client.Model())

	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	_, err = NewGeminiClient(context.Background(), "", "", "", nil)
	assert.Error(t, err)
}

type stubGenerator struct {
	prompt string
	text   string
	err    error
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.text, g.err
}

func TestService_AnalyzePosition(t *testing.T) {
	tests := []struct {
		name    string
		gen     *stubGenerator
		title   string
		wantErr error
	}{
		{name: "no credential", gen: nil, title: "Chofer", wantErr: ErrAnalysisUnavailable},
		{name: "no credential wins over blank title", gen: nil, title: "  ", wantErr: ErrAnalysisUnavailable},
		{name: "blank title", gen: &stubGenerator{text: "x"}, title: " \t ", wantErr: ErrEmptyTitle},
		{name: "upstream failure", gen: &stubGenerator{err: errors.New("timeout")}, title: "Chofer", wantErr: ErrUpstream},
		{name: "success", gen: &stubGenerator{text: "análisis"}, title: "  Chofer de bus  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gen Generator
			if tt.gen != nil {
				gen = tt.gen
			}
			svc := NewService(gen, nil)
			assert.Equal(t, tt.gen != nil, svc.Available())

			res, err := svc.AnalyzePosition(context.Background(), tt.title)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Chofer de bus", res.JobTitle)
			assert.Equal(t, "análisis", res.Text)
			assert.Contains(t, tt.gen.prompt, `"Chofer de bus"`)
		})
	}
}

func TestService_RateLimitHonoursContext(t *testing.T) {
	svc := NewService(&stubGenerator{text: "ok"}, nil).WithRateLimit(rate.Every(time.Hour), 1)

	_, err := svc.AnalyzePosition(context.Background(), "Chofer")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.AnalyzePosition(ctx, "Chofer")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Peón agrícola")
	assert.Contains(t, p, `"Peón agrícola"`)
	assert.Contains(t, p, "Costa Rica")
	assert.Contains(t, p, "**Conocimientos y Habilidades Sugeridas:**")
	assert.Contains(t, p, "**Opinión desde la Perspectiva de un Reclutador Profesional:**")
}
