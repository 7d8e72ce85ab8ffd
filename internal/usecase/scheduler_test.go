package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdoportal/internal/domain"
	"cdoportal/internal/scanner"
)

type fakeNotifier struct {
	digests []string
	err     error
}

func (f *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	f.digests = append(f.digests, digest)
	return f.err
}

type immediateDriver struct {
	started bool
	stopped bool
}

func (d *immediateDriver) Start(_ context.Context, job func(time.Time)) error {
	d.started = true
	job(time.Date(2025, time.November, 5, 6, 0, 0, 0, time.UTC))
	return nil
}

func (d *immediateDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerPublishesDigestOnChanges(t *testing.T) {
	src := &fakeSource{
		requests: map[domain.Kind][]scanner.Request{domain.KindNews: {newsReq("FedScoop")}},
		items:    map[string][]domain.Item{"FedScoop": {story("https://a")}},
	}
	notifier := &fakeNotifier{}
	driver := &immediateDriver{}
	s := NewScheduler(driver, NewPipeline(PipelineDeps{Source: src, Store: newMemoryStore()}), notifier, nil)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	assert.True(t, driver.started)
	assert.True(t, driver.stopped)
	require.Len(t, notifier.digests, 1)
	assert.Contains(t, notifier.digests[0], "news: 1 stored, 1 new")
}

func TestSchedulerSkipsQuietRuns(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("should not be called")}
	s := NewScheduler(nil, NewPipeline(PipelineDeps{Source: &fakeSource{}, Store: newMemoryStore()}), notifier, nil)

	s.Tick(context.Background(), time.Now())
	assert.Empty(t, notifier.digests)
	assert.NoError(t, s.Start(context.Background()), "nil driver is a no-op")
}
