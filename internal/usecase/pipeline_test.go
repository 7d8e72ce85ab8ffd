package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdoportal/internal/domain"
	"cdoportal/internal/infrastructure/storage"
	"cdoportal/internal/ports"
	"cdoportal/internal/scanner"
)

type fakeSource struct {
	requests map[domain.Kind][]scanner.Request
	items    map[string][]domain.Item
	errs     map[string]error
	fetched  []string
}

func (f *fakeSource) Sources(kind domain.Kind) []scanner.Request {
	return f.requests[kind]
}

func (f *fakeSource) Fetch(_ context.Context, req scanner.Request) ([]domain.Item, error) {
	f.fetched = append(f.fetched, req.Name)
	if err := f.errs[req.Name]; err != nil {
		return nil, err
	}
	return f.items[req.Name], nil
}

type memoryStore struct {
	mu     sync.Mutex
	rows   map[string]domain.Item
	failOn string
	runs   []domain.FeedRun
	runErr error
	nextID int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[string]domain.Item{}}
}

func (m *memoryStore) Upsert(_ context.Context, item domain.Item) (domain.Item, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.NaturalKey == m.failOn {
		return domain.Item{}, false, errors.New("disk full")
	}
	key := string(item.Kind) + "|" + item.NaturalKey
	if existing, ok := m.rows[key]; ok {
		return existing, false, nil
	}
	m.nextID++
	item.ID = m.nextID
	m.rows[key] = item
	return item, true, nil
}

func (m *memoryStore) RecordRun(_ context.Context, run domain.FeedRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return m.runErr
}

type countingMetrics struct {
	items map[string]int
	runs  map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{items: map[string]int{}, runs: map[string]int{}}
}

func (c *countingMetrics) ItemProcessed(_ domain.Kind, _ string, outcome string) {
	c.items[outcome]++
}

func (c *countingMetrics) SourceCompleted(_ domain.Kind, _ string, status domain.RunStatus) {
	c.runs[string(status)]++
}

func newsReq(name string) scanner.Request {
	return scanner.Request{Kind: domain.KindNews, Name: name, Source: name, Category: "technology"}
}

func story(key string) domain.Item {
	return domain.Item{Kind: domain.KindNews, NaturalKey: key, URL: key, Title: "T " + key, Category: "technology"}
}

func TestRunIsolatesFailingSources(t *testing.T) {
	src := &fakeSource{
		requests: map[domain.Kind][]scanner.Request{
			domain.KindNews: {newsReq("FedScoop"), newsReq("GovExec"), newsReq("MeriTalk")},
		},
		items: map[string][]domain.Item{
			"FedScoop": {story("https://a"), story("https://b")},
			"MeriTalk": {story("https://c"), story("https://broken"), story("https://d")},
		},
		errs: map[string]error{"GovExec": errors.New("scanner gopher is not registered")},
	}
	store := newMemoryStore()
	store.failOn = "https://broken"
	metrics := newCountingMetrics()

	p := NewPipeline(PipelineDeps{Source: src, Store: store, RunLog: store, Metrics: metrics})
	res, err := p.Run(context.Background(), domain.KindNews)
	require.NoError(t, err)

	assert.Equal(t, []string{"FedScoop", "GovExec", "MeriTalk"}, src.fetched)
	assert.Equal(t, 3, res.Stored)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 2, res.Failed())

	require.Len(t, store.runs, 3)
	assert.Equal(t, domain.RunSuccess, store.runs[0].Status)
	assert.Equal(t, 2, store.runs[0].ItemsCount)
	assert.Equal(t, domain.RunError, store.runs[1].Status)
	assert.Contains(t, store.runs[1].ErrorMessage, "not registered")
	assert.Equal(t, domain.RunError, store.runs[2].Status)
	assert.Contains(t, store.runs[2].ErrorMessage, "disk full")

	assert.Equal(t, 3, metrics.items[OutcomeCreated])
	assert.Equal(t, 1, metrics.items[OutcomeFailed])
	assert.Equal(t, 1, metrics.runs["success"])
	assert.Equal(t, 2, metrics.runs["error"])
}

func TestRunIsIdempotent(t *testing.T) {
	src := &fakeSource{
		requests: map[domain.Kind][]scanner.Request{domain.KindNews: {newsReq("FedScoop")}},
		items:    map[string][]domain.Item{"FedScoop": {story("https://a"), story("https://b")}},
	}
	store := newMemoryStore()
	p := NewPipeline(PipelineDeps{Source: src, Store: store, RunLog: store})

	first, err := p.Run(context.Background(), domain.KindNews)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), domain.KindNews)
	require.NoError(t, err)

	assert.Equal(t, 2, first.Created)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Stored)
	assert.Len(t, store.rows, 2)
	assert.Len(t, store.runs, 2, "every run appends to the run log")
}

func TestRunLogFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{
		requests: map[domain.Kind][]scanner.Request{domain.KindNews: {newsReq("FedScoop"), newsReq("GovExec")}},
		items:    map[string][]domain.Item{"FedScoop": {story("https://a")}, "GovExec": {story("https://b")}},
	}
	store := newMemoryStore()
	store.runErr = errors.New("run log unavailable")

	res, err := NewPipeline(PipelineDeps{Source: src, Store: store, RunLog: store}).Run(context.Background(), domain.KindNews)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stored)
	assert.Zero(t, res.Failed())
}

func TestRunRejectsUnknownKind(t *testing.T) {
	p := NewPipeline(PipelineDeps{Source: &fakeSource{}, Store: newMemoryStore()})
	_, err := p.Run(context.Background(), "podcasts")
	assert.True(t, errors.Is(err, domain.ErrUnknownKind))
}

func TestRunStopsOnCancellation(t *testing.T) {
	src := &fakeSource{
		requests: map[domain.Kind][]scanner.Request{domain.KindNews: {newsReq("FedScoop"), newsReq("GovExec")}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(PipelineDeps{Source: src, Store: newMemoryStore(), Pacing: time.Hour})
	_, err := p.Run(ctx, domain.KindNews)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, src.fetched)
}

type recordingPacer struct{ waits int }

func (r *recordingPacer) Wait(context.Context) error {
	r.waits++
	return nil
}

func TestRunPacesBetweenSources(t *testing.T) {
	src := &fakeSource{
		requests: map[domain.Kind][]scanner.Request{domain.KindNews: {newsReq("FedScoop"), newsReq("GovExec"), newsReq("MeriTalk")}},
	}
	pacer := &recordingPacer{}
	p := NewPipeline(PipelineDeps{Source: src, Store: newMemoryStore()})
	p.newPacer = func() ports.Pacer { return pacer }

	_, err := p.Run(context.Background(), domain.KindNews)
	require.NoError(t, err)
	assert.Equal(t, 2, pacer.waits)
}

type slowSource struct {
	fakeSource
	delay    time.Duration
	started  []time.Time
	finished []time.Time
}

func (s *slowSource) Fetch(ctx context.Context, req scanner.Request) ([]domain.Item, error) {
	s.started = append(s.started, time.Now())
	time.Sleep(s.delay)
	defer func() { s.finished = append(s.finished, time.Now()) }()
	return s.fakeSource.Fetch(ctx, req)
}

func TestRunPacingCountsFromSourceFinish(t *testing.T) {
	const pacing = 40 * time.Millisecond
	src := &slowSource{
		fakeSource: fakeSource{requests: map[domain.Kind][]scanner.Request{domain.KindNews: {newsReq("FedScoop"), newsReq("GovExec")}}},
		delay:      2 * pacing,
	}
	p := NewPipeline(PipelineDeps{Source: src, Store: newMemoryStore(), Pacing: pacing})

	_, err := p.Run(context.Background(), domain.KindNews)
	require.NoError(t, err)
	require.Len(t, src.started, 2)
	gap := src.started[1].Sub(src.finished[0])
	assert.GreaterOrEqual(t, gap, pacing-5*time.Millisecond, "a slow fetch must not eat the pause before the next source")
}

func TestRunAllOrder(t *testing.T) {
	src := &fakeSource{
		requests: map[domain.Kind][]scanner.Request{
			domain.KindJobs:   {{Kind: domain.KindJobs, Name: "USAJOBS: data scientist"}},
			domain.KindPolicy: {{Kind: domain.KindPolicy, Name: "NIST"}},
			domain.KindNews:   {newsReq("FedScoop")},
		},
	}
	results, err := NewPipeline(PipelineDeps{Source: src, Store: newMemoryStore()}).RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"FedScoop", "NIST", "USAJOBS: data scientist"}, src.fetched)
	assert.Equal(t, domain.KindJobs, results[2].Kind)
}

func TestSeedSampleFallsBackOnce(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(ctx, storage.DriverSQLite, filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := storage.NewSQLRepository(db, storage.DriverSQLite)
	require.NoError(t, repo.Migrate(ctx))

	src := &fakeSource{
		requests: map[domain.Kind][]scanner.Request{domain.KindJobs: {{Kind: domain.KindJobs, Name: "USAJOBS: data scientist"}}},
	}
	p := NewPipeline(PipelineDeps{Source: src, Store: repo, RunLog: repo})

	count, err := p.SeedSample(ctx, domain.KindJobs)
	require.NoError(t, err)
	assert.Equal(t, 8, count)

	again, err := p.SeedSample(ctx, domain.KindJobs)
	require.NoError(t, err)
	assert.Equal(t, 8, again, "seeding twice reports stored items without duplicating them")

	stats, err := repo.Stats(ctx, domain.KindJobs)
	require.NoError(t, err)
	assert.Equal(t, 8, stats.Total)
	require.NotNil(t, stats.ActiveJobs)
	assert.Equal(t, 8, *stats.ActiveJobs)
	require.NotNil(t, stats.LastUpdate)
}

func TestSeedSamplePrefersLiveItems(t *testing.T) {
	src := &fakeSource{
		requests: map[domain.Kind][]scanner.Request{domain.KindPolicy: {{Kind: domain.KindPolicy, Name: "NIST", Source: "NIST"}}},
		items: map[string][]domain.Item{"NIST": {
			{NaturalKey: "https://nist.gov/a", URL: "https://nist.gov/a", Title: "A", Category: "standards_practices"},
		}},
	}
	store := newMemoryStore()
	count, err := NewPipeline(PipelineDeps{Source: src, Store: store}).SeedSample(context.Background(), domain.KindPolicy)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Len(t, store.rows, 1)
}

func TestSeedSampleSkipsFailingSeed(t *testing.T) {
	store := newMemoryStore()
	store.failOn = "USAJOBS-001-DS"
	metrics := newCountingMetrics()

	count, err := NewPipeline(PipelineDeps{Source: &fakeSource{}, Store: store, Metrics: metrics}).SeedSample(context.Background(), domain.KindJobs)

	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.Len(t, store.rows, 7)
	assert.Equal(t, 1, metrics.items[OutcomeFailed])
	assert.Equal(t, 7, metrics.items[OutcomeCreated])
}

func TestSeedSampleNewsHasNoSeeds(t *testing.T) {
	count, err := NewPipeline(PipelineDeps{Source: &fakeSource{}, Store: newMemoryStore()}).SeedSample(context.Background(), domain.KindNews)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSeedItems(t *testing.T) {
	now := time.Date(2025, time.November, 5, 12, 0, 0, 0, time.UTC)

	policies := SeedItems(domain.KindPolicy, now)
	require.Len(t, policies, 10)
	for _, p := range policies {
		assert.True(t, domain.KindPolicy.ValidCategory(p.Category), p.Category)
		assert.Equal(t, p.URL, p.NaturalKey)
	}

	jobs := SeedItems(domain.KindJobs, now)
	require.Len(t, jobs, 8)
	assert.Equal(t, "USAJOBS-001-DS", jobs[0].NaturalKey)
	assert.Equal(t, "https://www.usajobs.gov/job/001", jobs[0].URL)
	require.NotNil(t, jobs[0].ClosingAt)
	assert.Equal(t, now.Add(30*24*time.Hour), *jobs[0].ClosingAt)
	assert.Nil(t, jobs[1].ClearanceLevel)
	assert.NotSame(t, jobs[0].SalaryMin, jobs[1].SalaryMin)

	assert.Empty(t, SeedItems(domain.KindNews, now))
}

func TestBuildDigest(t *testing.T) {
	digest := BuildDigest([]RunResult{
		{Kind: domain.KindNews, Stored: 4, Created: 2},
		{Kind: domain.KindJobs, Sources: []SourceResult{{Source: "USAJOBS: data analyst", Err: errors.New("timeout")}}},
	})
	assert.Contains(t, digest, "news: 4 stored, 2 new\n")
	assert.Contains(t, digest, "jobs: 0 stored, 0 new, 1 failed sources")
	assert.Contains(t, digest, "USAJOBS: data analyst: timeout")
}
