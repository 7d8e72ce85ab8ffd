package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdoportal/internal/domain"
)

const testSecret = "test-secret"

type fakeCatalog struct {
	lastKind   domain.Kind
	lastFilter domain.Filter
	items      []domain.Item
	stats      domain.Stats
	err        error
}

func (f *fakeCatalog) List(_ context.Context, kind domain.Kind, filter domain.Filter) ([]domain.Item, error) {
	f.lastKind = kind
	f.lastFilter = filter
	return f.items, f.err
}

func (f *fakeCatalog) Stats(_ context.Context, kind domain.Kind) (domain.Stats, error) {
	f.lastKind = kind
	return f.stats, f.err
}

type fakeSeeder struct {
	calls []domain.Kind
	count int
}

func (f *fakeSeeder) SeedSample(_ context.Context, kind domain.Kind) (int, error) {
	f.calls = append(f.calls, kind)
	return f.count, nil
}

type fakeCareer struct {
	reply    string
	err      error
	messages []domain.Message
}

func (f *fakeCareer) ReviewResume(_ context.Context, resumeText, _ string) (string, error) {
	if resumeText == "" {
		return "", fmt.Errorf("%w: resume text is required", domain.ErrInvalidInput)
	}
	return f.reply, f.err
}

func (f *fakeCareer) PrepareInterview(_ context.Context, jobTitle, _ string) (string, error) {
	return f.reply, f.err
}

func (f *fakeCareer) SendMessage(_ context.Context, messages []domain.Message) (string, error) {
	f.messages = messages
	return f.reply, f.err
}

type testServer struct {
	catalog *fakeCatalog
	seeder  *fakeSeeder
	career  *fakeCareer
	handler http.Handler
}

func newTestServer(secret string) *testServer {
	ts := &testServer{
		catalog: &fakeCatalog{},
		seeder:  &fakeSeeder{count: 8},
		career:  &fakeCareer{reply: "ok"},
	}
	ts.handler = NewServer(Deps{
		Catalog:   ts.catalog,
		Seeder:    ts.seeder,
		Career:    ts.career,
		Metrics:   http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		JWTSecret: secret,
	})
	return ts
}

func (ts *testServer) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func signToken(t *testing.T, secret, role string) string {
	t.Helper()
	claims := AdminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(testSecret)

	rec := ts.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = ts.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}

func TestListNewsBindsFilter(t *testing.T) {
	ts := newTestServer(testSecret)
	ts.catalog.items = []domain.Item{{Kind: domain.KindNews, Title: "AI guidance", Source: "FedScoop"}}

	rec := ts.do(http.MethodGet, "/api/news/list?category=technology&source=FedScoop&limit=5", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.KindNews, ts.catalog.lastKind)
	assert.Equal(t, "technology", ts.catalog.lastFilter.Category)
	assert.Equal(t, "FedScoop", ts.catalog.lastFilter.Source)
	assert.Equal(t, 5, ts.catalog.lastFilter.Limit)

	var items []domain.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "AI guidance", items[0].Title)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestListJobsBindsFilter(t *testing.T) {
	ts := newTestServer(testSecret)

	rec := ts.do(http.MethodGet, "/api/jobs/list?agency=NASA&keyword=data&clearanceLevel=secret&remote=true", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	f := ts.catalog.lastFilter
	assert.Equal(t, "NASA", f.Agency)
	assert.Equal(t, "data", f.Keyword)
	assert.Equal(t, "secret", f.ClearanceLevel)
	require.NotNil(t, f.Remote)
	assert.True(t, *f.Remote)
	assert.Zero(t, f.Limit)
}

func TestListRejectsBadQuery(t *testing.T) {
	ts := newTestServer(testSecret)

	cases := map[string]string{
		"limit too small":  "/api/news/list?limit=0",
		"limit too large":  "/api/policy/list?limit=101",
		"limit not number": "/api/jobs/list?limit=ten",
		"unknown category": "/api/news/list?category=sports",
		"policy category":  "/api/policy/list?category=technology",
		"remote not bool":  "/api/jobs/list?remote=maybe",
		"limit negative":   "/api/jobs/list?limit=-3",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			rec := ts.do(http.MethodGet, target, "", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListValidationMessages(t *testing.T) {
	ts := newTestServer(testSecret)

	rec := ts.do(http.MethodGet, "/api/news/list?category=sports", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `unknown category \"sports\"`)

	rec = ts.do(http.MethodGet, "/api/policy/list?limit=500", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "limit must be between 1 and 100")

	rec = ts.do(http.MethodGet, "/api/jobs/list?remote=false&limit=100", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ts.catalog.lastFilter.Remote)
	assert.False(t, *ts.catalog.lastFilter.Remote)
	assert.Equal(t, 100, ts.catalog.lastFilter.Limit)
}

func TestStatsRoute(t *testing.T) {
	ts := newTestServer(testSecret)
	active := 3
	ts.catalog.stats = domain.Stats{Total: 8, BySource: map[string]int{"USAJOBS": 8}, ActiveJobs: &active}

	rec := ts.do(http.MethodGet, "/api/jobs/stats", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.KindJobs, ts.catalog.lastKind)
	assert.Contains(t, rec.Body.String(), `"activeJobs":3`)
	assert.Contains(t, rec.Body.String(), `"lastUpdate":null`)
}

func TestCatalogErrorMapping(t *testing.T) {
	ts := newTestServer(testSecret)

	ts.catalog.err = fmt.Errorf("list news: %w", domain.ErrInvalidInput)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/news/list", "", nil).Code)

	ts.catalog.err = errors.New("database is locked")
	rec := ts.do(http.MethodGet, "/api/news/stats", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "locked")
}

func TestSeedSampleRequiresAdmin(t *testing.T) {
	ts := newTestServer(testSecret)

	rec := ts.do(http.MethodPost, "/api/jobs/seed-sample", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/jobs/seed-sample", "", map[string]string{"Authorization": "Bearer not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/jobs/seed-sample", "", map[string]string{"Authorization": "Bearer " + signToken(t, "other", "admin")})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/jobs/seed-sample", "", map[string]string{"Authorization": "Bearer " + signToken(t, testSecret, "viewer")})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Empty(t, ts.seeder.calls)

	rec = ts.do(http.MethodPost, "/api/jobs/seed-sample", "", map[string]string{"Authorization": "Bearer " + signToken(t, testSecret, "admin")})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"count":8}`, rec.Body.String())
	assert.Equal(t, []domain.Kind{domain.KindJobs}, ts.seeder.calls)
}

func TestSeedSampleDisabledWithoutSecret(t *testing.T) {
	ts := newTestServer("")

	rec := ts.do(http.MethodPost, "/api/policy/seed-sample", "", map[string]string{"Authorization": "Bearer " + signToken(t, "anything", "admin")})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, ts.seeder.calls)
}

func TestCareerRoutes(t *testing.T) {
	ts := newTestServer(testSecret)
	ts.career.reply = "Use the STAR method."

	rec := ts.do(http.MethodPost, "/api/career/review-resume", `{"resumeText":"10 years of analytics"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"feedback":"Use the STAR method."}`, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/career/prepare-interview", `{"jobTitle":"Data Scientist","agency":"NASA"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"questions":"Use the STAR method."}`, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/chat/send-message", `{"messages":[{"role":"user","content":"hi"}]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"Use the STAR method."}`, rec.Body.String())
	assert.Equal(t, []domain.Message{{Role: domain.RoleUser, Content: "hi"}}, ts.career.messages)
}

func TestCareerErrorMapping(t *testing.T) {
	ts := newTestServer(testSecret)

	rec := ts.do(http.MethodPost, "/api/career/review-resume", `{"resumeText":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/career/review-resume", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/career/prepare-interview", `{"agency":"NASA"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "jobTitle is required")

	rec = ts.do(http.MethodPost, "/api/chat/send-message", `{"messages":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/chat/send-message", `{"messages":[{"role":"tool","content":"x"}]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "role must be one of")
	assert.Nil(t, ts.career.messages, "invalid chat never reaches the career service")

	ts.career.err = fmt.Errorf("send message: %w: %w", domain.ErrUpstream, errors.New("chatgpt error 429"))
	rec = ts.do(http.MethodPost, "/api/chat/send-message", `{"messages":[{"role":"user","content":"hi"}]}`, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "chatgpt error 429")
}

func TestUnknownKindRouteNotFound(t *testing.T) {
	ts := newTestServer(testSecret)

	rec := ts.do(http.MethodGet, "/api/sports/list", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
