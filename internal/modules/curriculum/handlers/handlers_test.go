package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/llamaforge/internal/clients/gemini"
	"github.com/aristath/llamaforge/internal/database"
	"github.com/aristath/llamaforge/internal/domain"
	"github.com/aristath/llamaforge/internal/modules/curriculum"
	"github.com/aristath/llamaforge/internal/modules/settings"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

// stubGenerator returns fixed provider answers, or err when set
type stubGenerator struct {
	err error
}

func (s stubGenerator) GenerateLessons(_ context.Context, _, topic string, count int, _ bool) ([]domain.Lesson, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Lesson, count)
	for i := range out {
		out[i] = domain.Lesson{Instruction: topic, Response: "answer"}
	}
	return out, nil
}

func (s stubGenerator) GenerateToolLessons(_ context.Context, _ string, tool domain.ToolDefinition, count int) ([]domain.Lesson, error) {
	return s.GenerateLessons(context.Background(), "", tool.Name, count, false)
}

func (s stubGenerator) VerifyDataset(_ context.Context, _ string, lessons []domain.Lesson) ([]domain.VerificationResult, error) {
	out := make([]domain.VerificationResult, len(lessons))
	for i, l := range lessons {
		out[i] = domain.VerificationResult{ID: l.ID, Status: "pass"}
	}
	return out, s.err
}

func (s stubGenerator) ForgePlan(context.Context, string, string, []string) (domain.ForgePlan, error) {
	return domain.ForgePlan{Config: domain.DefaultConfiguration(), Lessons: []domain.Lesson{}, Protocol: []string{}}, s.err
}

func (s stubGenerator) RankPreference(context.Context, string, string, string, string) (domain.PreferenceRanking, error) {
	return domain.PreferenceRanking{Winner: "A", Critique: "better"}, s.err
}

func setupRouter(t *testing.T, gen curriculum.Generator) (*chi.Mux, *settings.Credentials) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := database.Schema(database.StudioName)
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	config := settings.NewService(settings.NewRepository(db, log), domain.DefaultConfiguration(), false, nil, log)
	creds := settings.NewCredentials()
	creds.Set(curriculum.ProviderName, "key")
	service := curriculum.NewService(curriculum.NewRepository(db, log), gen, creds, config, nil, nil, log)

	router := chi.NewRouter()
	router.Route("/api", NewHandler(service, log).RegisterRoutes)
	return router, creds
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(v))
}

func TestLessonLifecycle(t *testing.T) {
	router, _ := setupRouter(t, stubGenerator{})

	rec := do(t, router, http.MethodPost, "/api/curriculum/lessons", `{"instruction":"i","response":"r"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var lesson domain.Lesson
	decode(t, rec, &lesson)
	assert.NotEmpty(t, lesson.ID)

	rec = do(t, router, http.MethodGet, "/api/curriculum", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Lessons     []domain.Lesson         `json:"lessons"`
		Preferences []domain.PreferencePair `json:"preferences"`
		Counts      curriculum.Counts       `json:"counts"`
	}
	decode(t, rec, &body)
	assert.Len(t, body.Lessons, 1)
	assert.NotNil(t, body.Preferences)
	assert.Equal(t, 1, body.Counts.Total)

	rec = do(t, router, http.MethodDelete, "/api/curriculum/lessons/"+lesson.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodDelete, "/api/curriculum/lessons/"+lesson.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddInvalidItems(t *testing.T) {
	router, _ := setupRouter(t, stubGenerator{})

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/curriculum/lessons", `{"instruction":"i"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/curriculum/lessons", `nope`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/curriculum/preferences", `{"prompt":"p"}`).Code)
}

func TestPreferenceLifecycle(t *testing.T) {
	router, _ := setupRouter(t, stubGenerator{})

	rec := do(t, router, http.MethodPost, "/api/curriculum/preferences", `{"prompt":"p","chosen":"c","rejected":"r"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var pair domain.PreferencePair
	decode(t, rec, &pair)

	rec = do(t, router, http.MethodGet, "/api/curriculum/counts", "")
	var counts curriculum.Counts
	decode(t, rec, &counts)
	assert.Equal(t, curriculum.Counts{Preferences: 1, Total: 1}, counts)

	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/api/curriculum/preferences/"+pair.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, "/api/curriculum/preferences/"+pair.ID, "").Code)
}

func TestImportExportAndClear(t *testing.T) {
	router, _ := setupRouter(t, stubGenerator{})

	rec := do(t, router, http.MethodPost, "/api/curriculum/import", `[{"instruction":"a","response":"b"}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	var result curriculum.ImportResult
	decode(t, rec, &result)
	assert.Equal(t, 1, result.Lessons)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/curriculum/import", `"text"`).Code)

	rec = do(t, router, http.MethodGet, "/api/curriculum/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "curriculum.json")
	var lessons []domain.Lesson
	decode(t, rec, &lessons)
	assert.Len(t, lessons, 1)

	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/api/curriculum", "").Code)
	rec = do(t, router, http.MethodGet, "/api/curriculum/counts", "")
	var counts curriculum.Counts
	decode(t, rec, &counts)
	assert.Zero(t, counts.Total)
}

func TestGenerate(t *testing.T) {
	router, creds := setupRouter(t, stubGenerator{})

	rec := do(t, router, http.MethodPost, "/api/curriculum/generate", `{"topic":"rust","count":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var lessons []domain.Lesson
	decode(t, rec, &lessons)
	assert.Len(t, lessons, 2)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/curriculum/generate", `{"topic":""}`).Code)

	creds.Set(curriculum.ProviderName, "")
	rec = do(t, router, http.MethodPost, "/api/curriculum/generate", `{"topic":"rust"}`)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestProviderErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"rate limited", gemini.ErrRateLimited, http.StatusTooManyRequests},
		{"bad key", gemini.ErrUnauthorized, http.StatusBadGateway},
		{"garbage", gemini.ErrInvalidResponse, http.StatusBadGateway},
		{"missing key", gemini.ErrMissingCredential, http.StatusPreconditionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupRouter(t, stubGenerator{err: tt.err})
			rec := do(t, router, http.MethodPost, "/api/curriculum/generate", `{"topic":"x"}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestGenerateForUnknownTool(t *testing.T) {
	router, _ := setupRouter(t, stubGenerator{})

	rec := do(t, router, http.MethodPost, "/api/curriculum/generate/tool", `{"toolId":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyForgeAndRank(t *testing.T) {
	router, _ := setupRouter(t, stubGenerator{})
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/curriculum/lessons", `{"id":"a","instruction":"i","response":"r"}`).Code)

	rec := do(t, router, http.MethodPost, "/api/curriculum/verify", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var results []domain.VerificationResult
	decode(t, rec, &results)
	assert.Equal(t, []domain.VerificationResult{{ID: "a", Status: "pass"}}, results)

	rec = do(t, router, http.MethodPost, "/api/curriculum/forge", `{"mission":"tutor"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var plan domain.ForgePlan
	decode(t, rec, &plan)
	assert.Equal(t, domain.DefaultConfiguration().BaseModel, plan.Config.BaseModel)

	rec = do(t, router, http.MethodPost, "/api/curriculum/rank", `{"prompt":"p","optionA":"a","optionB":"b","save":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var ranked struct {
		Winner string                 `json:"winner"`
		Pair   *domain.PreferencePair `json:"pair"`
	}
	decode(t, rec, &ranked)
	assert.Equal(t, "A", ranked.Winner)
	require.NotNil(t, ranked.Pair)
	assert.Equal(t, "a", ranked.Pair.Chosen)
}
