package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/aristath/llamaforge/internal/clients/gemini"
	"github.com/aristath/llamaforge/internal/domain"
	"github.com/aristath/llamaforge/internal/modules/curriculum"
	"github.com/aristath/llamaforge/internal/modules/settings"
	testingpkg "github.com/aristath/llamaforge/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupMockRouter(t *testing.T, gen *testingpkg.MockGenerator, models *testingpkg.MockModelLister) (*chi.Mux, *curriculum.Service) {
	db := testingpkg.NewTestDB(t)
	log := zerolog.Nop()

	config := settings.NewService(settings.NewRepository(db.Conn(), log), testingpkg.NewConfigurationFixture(2), false, nil, log)
	creds := settings.NewCredentials()
	creds.Set(curriculum.ProviderName, "key")
	service := curriculum.NewService(curriculum.NewRepository(db.Conn(), log), gen, creds, config, models, nil, log)

	router := chi.NewRouter()
	router.Route("/api", NewHandler(service, log).RegisterRoutes)
	return router, service
}

func setupMediaRouter(t *testing.T, media *testingpkg.MockMediaSynthesizer) (*chi.Mux, *curriculum.Service) {
	db := testingpkg.NewTestDB(t)
	log := zerolog.Nop()

	config := settings.NewService(settings.NewRepository(db.Conn(), log), testingpkg.NewConfigurationFixture(2), false, nil, log)
	creds := settings.NewCredentials()
	creds.Set(curriculum.ProviderName, "key")
	service := curriculum.NewService(curriculum.NewRepository(db.Conn(), log), new(testingpkg.MockGenerator), creds, config, nil, nil, log)
	if media != nil {
		service.SetMediaSynthesizer(media)
	}

	handler := NewHandler(service, log)
	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterMediaRoutes(r)
		handler.RegisterRoutes(r)
	})
	return router, service
}

func TestRank_SavesWinnerAsChosen(t *testing.T) {
	gen := new(testingpkg.MockGenerator)
	gen.On("RankPreference", mock.Anything, "key", "p", "short", "long").
		Return(domain.PreferenceRanking{Winner: "B", Critique: "more detail"}, nil)
	router, service := setupMockRouter(t, gen, nil)

	rec := do(t, router, http.MethodPost, "/api/curriculum/rank",
		`{"prompt":"p","optionA":"short","optionB":"long","save":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result curriculum.RankResult
	decode(t, rec, &result)
	assert.Equal(t, "B", result.Winner)
	require.NotNil(t, result.Pair)
	assert.Equal(t, "long", result.Pair.Chosen)
	assert.Equal(t, "short", result.Pair.Rejected)

	counts, err := service.Counts()
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Preferences)
	gen.AssertExpectations(t)
}

func TestForge_PassesInstalledModels(t *testing.T) {
	gen := new(testingpkg.MockGenerator)
	models := new(testingpkg.MockModelLister)
	models.On("ModelNames", mock.Anything).Return([]string{"llama3:8b", "qwen2:7b"}, nil)

	planned := domain.DefaultConfiguration()
	planned.BaseModel = "qwen2:7b"
	gen.On("ForgePlan", mock.Anything, "key", "answer support tickets", []string{"llama3:8b", "qwen2:7b"}).
		Return(domain.ForgePlan{
			Config:   planned,
			Lessons:  testingpkg.NewLessonFixtures(2),
			Protocol: []string{"collect", "train"},
		}, nil)
	router, service := setupMockRouter(t, gen, models)

	rec := do(t, router, http.MethodPost, "/api/curriculum/forge",
		`{"mission":"answer support tickets","apply":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var plan domain.ForgePlan
	decode(t, rec, &plan)
	assert.Equal(t, "qwen2:7b", plan.Config.BaseModel)
	require.Len(t, plan.Config.Tools, 1, "tools are kept from the current configuration")
	assert.Equal(t, testingpkg.NewToolFixture().ID, plan.Config.Tools[0].ID)

	size, err := service.DatasetSize()
	require.NoError(t, err)
	assert.Equal(t, 2, size)
	gen.AssertExpectations(t)
	models.AssertExpectations(t)
}

func TestForge_ProviderFailure(t *testing.T) {
	gen := new(testingpkg.MockGenerator)
	models := new(testingpkg.MockModelLister)
	models.On("ModelNames", mock.Anything).Return(nil, errors.New("runtime offline"))
	gen.On("ForgePlan", mock.Anything, "key", "m", []string(nil)).
		Return(domain.ForgePlan{}, errors.New("upstream 500"))
	router, _ := setupMockRouter(t, gen, models)

	rec := do(t, router, http.MethodPost, "/api/curriculum/forge", `{"mission":"m"}`)
	assert.GreaterOrEqual(t, rec.Code, http.StatusBadRequest)
	gen.AssertExpectations(t)
}

func TestMedia_AudioPreview(t *testing.T) {
	media := new(testingpkg.MockMediaSynthesizer)
	media.On("SynthesizeAudio", mock.Anything, "key", "welcome aboard", "").
		Return("data:audio/pcm;base64,UENN", nil)
	router, service := setupMediaRouter(t, media)

	rec := do(t, router, http.MethodPost, "/api/curriculum/media", `{"type":"audio","prompt":"welcome aboard"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result curriculum.MediaResult
	decode(t, rec, &result)
	assert.Equal(t, domain.MediaAudio, result.Type)
	assert.Equal(t, "data:audio/pcm;base64,UENN", result.URL)
	assert.Nil(t, result.Lesson)

	counts, err := service.Counts()
	require.NoError(t, err)
	assert.Zero(t, counts.Lessons)
	media.AssertExpectations(t)
}

func TestMedia_VideoAddedToDataset(t *testing.T) {
	media := new(testingpkg.MockMediaSynthesizer)
	media.On("SynthesizeVideo", mock.Anything, "key", "sparks").
		Return("data:video/mp4;base64,Y2xpcA==", nil)
	router, service := setupMediaRouter(t, media)

	rec := do(t, router, http.MethodPost, "/api/curriculum/media", `{"type":"video","prompt":"sparks","addToDataset":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var result curriculum.MediaResult
	decode(t, rec, &result)
	require.NotNil(t, result.Lesson)
	assert.Equal(t, "data:video/mp4;base64,Y2xpcA==", result.Lesson.Video)

	size, err := service.DatasetSize()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
	media.AssertExpectations(t)
}

func TestMedia_Errors(t *testing.T) {
	media := new(testingpkg.MockMediaSynthesizer)
	media.On("SynthesizeVideo", mock.Anything, "key", "p").Return("", gemini.ErrRateLimited)
	router, _ := setupMediaRouter(t, media)

	rec := do(t, router, http.MethodPost, "/api/curriculum/media", `{"type":"image","prompt":"p"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/curriculum/media", `{"type":"video","prompt":"p"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	unwired, _ := setupMediaRouter(t, nil)
	rec = do(t, unwired, http.MethodPost, "/api/curriculum/media", `{"type":"audio","prompt":"p"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	media.AssertExpectations(t)
}
