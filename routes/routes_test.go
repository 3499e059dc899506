package routes

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/merchant-survey/app"
	"github.com/mbolis/merchant-survey/catalog"
	"github.com/mbolis/merchant-survey/config"
	"github.com/mbolis/merchant-survey/database"
	"github.com/mbolis/merchant-survey/form"
	"github.com/mbolis/merchant-survey/geo"
	"github.com/mbolis/merchant-survey/log"
	"github.com/mbolis/merchant-survey/model"
	"github.com/mbolis/merchant-survey/routes/middlewares"
	"github.com/mbolis/merchant-survey/store"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type testEnv struct {
	t       *testing.T
	app     app.App
	handler http.Handler
	cookie  *http.Cookie
}

type stubGeocoder struct{}

func (stubGeocoder) Reverse(context.Context, float64, float64) (string, error) {
	return "Olaya St, Riyadh", nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat, err := catalog.New([]model.Category{
		{
			Name: "Retail",
			Questions: []model.Question{
				{Text: "Do you accept cards?", Options: []string{"Yes", "No"}},
				{Text: "Opening hours?", Options: []string{"Morning", "Evening"}},
			},
		},
		{
			Name: "Cafes",
			Questions: []model.Question{
				{Text: "Seating?", Options: []string{"Indoor", "Outdoor"}},
			},
		},
	})
	require.NoError(t, err)

	st := store.New(db)
	cfg := config.Default()
	a := app.App{
		Store:      st,
		Controller: form.NewController(cat, st, stubGeocoder{}),
		Sessions:   form.NewSessions(time.Hour),
		Config:     cfg,
		Now:        func() time.Time { return time.Date(2025, 4, 1, 10, 30, 0, 0, time.UTC) },
	}
	return &testEnv{t: t, app: a, handler: Wire(a)}
}

func (e *testEnv) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == middlewares.SessionCookie {
			e.cookie = c
		}
	}
	return rec
}

func (e *testEnv) get(target string) *httptest.ResponseRecorder {
	return e.do(http.MethodGet, target, nil, "")
}

func (e *testEnv) postForm(target string, values url.Values) *httptest.ResponseRecorder {
	return e.do(http.MethodPost, target, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded")
}

func (e *testEnv) count() int {
	e.t.Helper()
	n, err := e.app.Count(context.Background())
	require.NoError(e.t, err)
	return n
}

func TestRootRedirects(t *testing.T) {
	e := newTestEnv(t)
	rec := e.get("/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/survey", rec.Header().Get("Location"))
}

func TestSurveyPage(t *testing.T) {
	e := newTestEnv(t)

	rec := e.get("/survey")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, e.cookie, "session cookie is set")
	body := rec.Body.String()
	assert.Contains(t, body, "Questions about: Retail")
	assert.Contains(t, body, "Do you accept cards?")
	assert.Contains(t, body, `name="answers.0"`)

	rec = e.get("/survey?category=Cafes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Seating?")

	rec = e.get("/survey?category=Bakeries")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unknown category: Bakeries")
}

func TestSubmitSurvey(t *testing.T) {
	e := newTestEnv(t)
	e.get("/survey")

	rec := e.postForm("/survey", url.Values{
		"category":      {"Retail"},
		"merchant_name": {"Al-Noor Store"},
		"answers.0":     {"No"},
		"answers.1":     {"Evening"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Response #1 saved")

	got, ok, err := e.app.Get(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Al-Noor Store", got.MerchantName)
	assert.Equal(t, model.Answers{
		{Question: "Do you accept cards?", Answer: "No"},
		{Question: "Opening hours?", Answer: "Evening"},
	}, got.Answers)
}

func TestSubmitSurvey_EmptyMerchant(t *testing.T) {
	e := newTestEnv(t)

	rec := e.postForm("/survey", url.Values{
		"category":      {"Retail"},
		"merchant_name": {"  "},
		"answers.0":     {"No"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, form.ErrMerchantRequired.Error())
	assert.Contains(t, body, `value="No" checked`, "selected answers are kept")
	assert.Zero(t, e.count())
}

func TestSubmitSurvey_InvalidInput(t *testing.T) {
	e := newTestEnv(t)

	rec := e.postForm("/survey", url.Values{
		"category":      {"Retail"},
		"merchant_name": {"Shop"},
		"answers.0":     {"Maybe"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.postForm("/survey", url.Values{
		"category":      {"Retail"},
		"merchant_name": {"Shop"},
		"latitude":      {"95"},
		"longitude":     {"10"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), geo.ErrLatitudeRange.Error())

	rec = e.postForm("/survey", url.Values{
		"category":      {"Nope"},
		"merchant_name": {"Shop"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, e.count())
}

func TestSubmitSurvey_WithBrowserLocation(t *testing.T) {
	e := newTestEnv(t)
	e.get("/survey")

	rec := e.do(http.MethodPost, "/api/session/location",
		strings.NewReader(`{"latitude": 24.6911, "longitude": 46.6853}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var loc geo.Location
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loc))
	assert.Equal(t, "Olaya St, Riyadh", loc.Address)

	rec = e.postForm("/survey", url.Values{
		"category":      {"Cafes"},
		"merchant_name": {"Brew"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	got, ok, err := e.app.Get(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "24.6911", got.Latitude)
	assert.Equal(t, "46.6853", got.Longitude)
	assert.Equal(t, "Olaya St, Riyadh", got.LocationAddress)

	rec = e.do(http.MethodPost, "/api/session/location",
		strings.NewReader(`{"latitude": 200, "longitude": 0}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, "/api/session/location", strings.NewReader(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodDelete, "/api/session/location", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func seed(t *testing.T, e *testEnv, responses ...model.SurveyResponse) {
	t.Helper()
	for _, r := range responses {
		_, err := e.app.Create(context.Background(), r)
		require.NoError(t, err)
	}
}

func sampleResponses() []model.SurveyResponse {
	return []model.SurveyResponse{
		{Category: "Retail", MerchantName: "Al-Noor Store", Answers: model.Answers{{Question: "A", Answer: "Yes"}, {Question: "B", Answer: "No"}}},
		{Category: "Cafes", MerchantName: "Brew", Answers: model.Answers{{Question: "A", Answer: "No"}, {Question: "C", Answer: "Outdoor"}}},
		{Category: "Retail", MerchantName: "Corner Shop", Answers: model.Answers{{Question: "A", Answer: "No"}}},
	}
}

func TestBrowseResponses(t *testing.T) {
	e := newTestEnv(t)
	seed(t, e, sampleResponses()...)

	rec := e.get("/responses?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "3 responses stored")
	assert.Contains(t, body, "Corner Shop")
	assert.Contains(t, body, "Brew")
	assert.NotContains(t, body, "Al-Noor Store")

	rec = e.get("/responses?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.get("/responses?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResponseDetail(t *testing.T) {
	e := newTestEnv(t)
	seed(t, e, sampleResponses()...)

	rec := e.get("/responses/2")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Response #2")
	assert.Contains(t, body, "Outdoor")
	assert.Contains(t, body, "/responses/2/export?format=csv")

	rec = e.get("/responses/99")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Response #99 does not exist.")
}

func TestExportResponses(t *testing.T) {
	e := newTestEnv(t)
	seed(t, e, sampleResponses()...)

	rec := e.get("/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "3 responses stored")

	rec = e.get("/export/download?format=csv&category=Retail")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=survey_category_Retail_20250401_103000.csv`, rec.Header().Get("Content-Disposition"))

	body := rec.Body.Bytes()
	require.True(t, bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}))
	lines := strings.Split(strings.TrimSpace(string(body[3:])), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,category,merchant_name,timestamp,latitude,longitude,A,B", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1,Retail,Al-Noor Store,"))
	assert.True(t, strings.HasPrefix(lines[2], "3,Retail,Corner Shop,"))
	assert.True(t, strings.HasSuffix(lines[2], ",No,"), lines[2])

	rec = e.get("/export/download?format=json&merchant=Brew")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []model.SurveyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, sampleResponses()[1].Answers, out[0].Answers)

	rec = e.get("/export/download?format=xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "survey_all_20250401_103000.xlsx")

	rec = e.get("/export/download?format=pdf")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportResponse(t *testing.T) {
	e := newTestEnv(t)
	seed(t, e, sampleResponses()...)

	rec := e.get("/responses/2/export?format=json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "survey_response_2_20250401_103000.json")

	rec = e.get("/responses/42/export?format=json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI(t *testing.T) {
	e := newTestEnv(t)
	seed(t, e, sampleResponses()...)

	rec := e.get("/api/categories")
	require.Equal(t, http.StatusOK, rec.Code)
	var cats struct {
		Categories []model.Category `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cats))
	require.Len(t, cats.Categories, 2)
	assert.Equal(t, "Retail", cats.Categories[0].Name)

	rec = e.get("/api/responses?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var recent struct {
		Responses []model.SurveyResponse `json:"responses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recent))
	require.Len(t, recent.Responses, 2)
	assert.Equal(t, int64(3), recent.Responses[0].ID)
	assert.Equal(t, int64(2), recent.Responses[1].ID)

	rec = e.get("/api/responses/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var one model.SurveyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, "Al-Noor Store", one.MerchantName)
	assert.Equal(t, sampleResponses()[0].Answers, one.Answers)

	rec = e.get("/api/responses/77")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStorageFailureIsShownToTheUser(t *testing.T) {
	e := newTestEnv(t)
	e.get("/survey")

	db, err := database.Open(filepath.Join(t.TempDir(), "closed.sqlite"))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	broken := store.New(db)
	e.app.Store = broken
	e.app.Controller = form.NewController(e.app.Catalog(), broken, nil)
	e.handler = Wire(e.app)
	e.cookie = nil

	rec := e.postForm("/survey", url.Values{
		"category":      {"Retail"},
		"merchant_name": {"Shop"},
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "could not be saved")

	rec = e.get("/responses")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Responses could not be loaded.")

	rec = e.get("/api/responses/1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestParseLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/responses", nil)

	limit, err := parseLimit(req, 500)
	require.NoError(t, err)
	assert.Equal(t, config.MaxRecentLimit, limit, "an out of range default is clamped")

	limit, err = parseLimit(req, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, limit)

	limit, err = parseLimit(httptest.NewRequest(http.MethodGet, "/responses?limit=25", nil), 10)
	require.NoError(t, err)
	assert.Equal(t, 25, limit)

	_, err = parseLimit(httptest.NewRequest(http.MethodGet, "/responses?limit=101", nil), 10)
	assert.Error(t, err)
}
