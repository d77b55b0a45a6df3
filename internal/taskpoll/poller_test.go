package taskpoll

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"labelweb/internal/auth"
	"labelweb/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	task models.Task
	err  error
}

// scriptedFetcher отдает заранее заданную последовательность ответов.
// После конца сценария повторяет последний ответ.
type scriptedFetcher struct {
	mu    sync.Mutex
	steps []step
	calls int
	// inFlight считает одновременные запросы.
	inFlight, maxInFlight int
}

func (f *scriptedFetcher) TaskStatus(ctx context.Context, id string) (models.Task, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	i := f.calls
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	f.calls++
	s := f.steps[i]
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return s.task, s.err
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func intPtr(n int) *int { return &n }

func TestPoller_CompletesOnce(t *testing.T) {
	f := &scriptedFetcher{steps: []step{
		{task: models.Task{ID: "t1", Status: models.TaskPending}},
		{task: models.Task{ID: "t1", Status: models.TaskProcessing, Progress: 40}},
		{task: models.Task{ID: "t1", Status: models.TaskProcessing, Progress: 90}},
		{task: models.Task{ID: "t1", Status: models.TaskCompleted, Progress: 100, ResultURL: "X", LabelsCount: intPtr(12)}},
	}}

	var completions []models.Task
	var updates []models.Task
	errCalls := 0
	p := &Poller{
		Fetcher:  f,
		Interval: time.Millisecond,
		Callbacks: Callbacks{
			OnUpdate:   func(t models.Task) { updates = append(updates, t) },
			OnComplete: func(t models.Task) { completions = append(completions, t) },
			OnError:    func(string) { errCalls++ },
		},
	}

	final := p.Run(context.Background(), "t1")

	require.Len(t, completions, 1)
	assert.Equal(t, models.TaskCompleted, completions[0].Status)
	assert.Equal(t, "X", completions[0].ResultURL)
	require.NotNil(t, completions[0].LabelsCount)
	assert.Equal(t, 12, *completions[0].LabelsCount)
	assert.Equal(t, final, completions[0])
	assert.Zero(t, errCalls)

	require.Len(t, updates, 4)
	assert.Equal(t, 40, updates[1].Progress)
	assert.Equal(t, 90, updates[2].Progress)

	// Больше запросов не было.
	assert.Equal(t, 4, f.Calls())
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 4, f.Calls())
	assert.Equal(t, 1, f.maxInFlight)
}

func TestPoller_FailedStops(t *testing.T) {
	f := &scriptedFetcher{steps: []step{
		{task: models.Task{Status: models.TaskProcessing, Progress: 10}},
		{task: models.Task{Status: models.TaskFailed, Error: "boom"}},
	}}
	var msgs []string
	completed := false
	p := &Poller{
		Fetcher:  f,
		Interval: time.Millisecond,
		Callbacks: Callbacks{
			OnComplete: func(models.Task) { completed = true },
			OnError:    func(m string) { msgs = append(msgs, m) },
		},
	}

	final := p.Run(context.Background(), "t2")

	assert.Equal(t, []string{"boom"}, msgs)
	assert.False(t, completed)
	assert.Equal(t, models.TaskFailed, final.Status)
	assert.Equal(t, 2, f.Calls())
}

func TestPoller_FailedWithoutMessage(t *testing.T) {
	f := &scriptedFetcher{steps: []step{{task: models.Task{Status: models.TaskFailed}}}}
	var msg string
	p := &Poller{Fetcher: f, Callbacks: Callbacks{OnError: func(m string) { msg = m }}}

	p.Run(context.Background(), "t")
	assert.Equal(t, MsgTaskFailed, msg)
}

func TestPoller_RequestErrorFailsLocally(t *testing.T) {
	f := &scriptedFetcher{steps: []step{
		{task: models.Task{Status: models.TaskProcessing, Progress: 50}},
		{err: errors.New("connection reset")},
	}}
	var msgs []string
	p := &Poller{
		Fetcher:   f,
		Interval:  time.Millisecond,
		Callbacks: Callbacks{OnError: func(m string) { msgs = append(msgs, m) }},
	}

	final := p.Run(context.Background(), "t3")

	assert.Equal(t, models.TaskFailed, final.Status)
	assert.Equal(t, MsgStatusUnavailable, final.Error)
	assert.Equal(t, []string{MsgStatusUnavailable}, msgs)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, f.Calls())
}

func TestPoller_IdleWithoutTaskID(t *testing.T) {
	f := &scriptedFetcher{steps: []step{{task: models.Task{Status: models.TaskCompleted}}}}
	p := &Poller{Fetcher: f}

	st := p.Run(context.Background(), "")
	assert.Equal(t, models.TaskIdle, st.Status)
	assert.Zero(t, f.Calls())
}

// blockingFetcher держит запрос, пока тест не отпустит его.
type blockingFetcher struct {
	started chan struct{}
	release chan models.Task
}

func (b *blockingFetcher) TaskStatus(ctx context.Context, id string) (models.Task, error) {
	b.started <- struct{}{}
	return <-b.release, nil
}

func TestPoller_CancelDiscardsInFlightResult(t *testing.T) {
	b := &blockingFetcher{started: make(chan struct{}, 1), release: make(chan models.Task, 1)}
	updates := 0
	p := &Poller{Fetcher: b, Callbacks: Callbacks{
		OnUpdate:   func(models.Task) { updates++ },
		OnComplete: func(models.Task) { updates++ },
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan models.Task)
	go func() { done <- p.Run(ctx, "t4") }()

	<-b.started
	cancel()
	b.release <- models.Task{Status: models.TaskCompleted, ResultURL: "late"}

	final := <-done
	assert.Zero(t, updates)
	assert.Equal(t, models.TaskPending, final.Status)
}

func TestTracker_StopDuringProcessing(t *testing.T) {
	b := &blockingFetcher{started: make(chan struct{}, 1), release: make(chan models.Task, 1)}
	tr := NewTracker(b, time.Millisecond)

	var mu sync.Mutex
	var seen []models.Task
	unsubscribe := tr.Subscribe("ui", func(task models.Task) {
		mu.Lock()
		seen = append(seen, task)
		mu.Unlock()
	})
	defer unsubscribe()

	tr.Track("t5")
	<-b.started
	b.release <- models.Task{Status: models.TaskProcessing, Progress: 30}
	<-b.started // второй запрос в полете
	assert.Equal(t, models.TaskProcessing, tr.State().Status)

	tr.Stop()
	b.release <- models.Task{Status: models.TaskCompleted, ResultURL: "late"}
	tr.Wait()

	assert.Equal(t, models.TaskProcessing, tr.State().Status)
	assert.Equal(t, 30, tr.State().Progress)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, 30, seen[0].Progress)
}

func TestTracker_TaskIDChangeDropsOldUpdates(t *testing.T) {
	old := &blockingFetcher{started: make(chan struct{}, 1), release: make(chan models.Task, 1)}
	tr := NewTracker(old, time.Millisecond)

	tr.Track("old")
	<-old.started

	fresh := &scriptedFetcher{steps: []step{{task: models.Task{Status: models.TaskCompleted, ResultURL: "new"}}}}
	tr.fetcher = fresh
	tr.Track("new")
	old.release <- models.Task{Status: models.TaskFailed, Error: "stale"}
	tr.Wait()

	st := tr.State()
	assert.Equal(t, "new", st.ID)
	assert.Equal(t, models.TaskCompleted, st.Status)
	assert.Equal(t, "new", st.ResultURL)

	tr.Track("")
	assert.Equal(t, models.TaskIdle, tr.State().Status)
}

func TestTracker_SubscribeReplacesAndUnsubscribes(t *testing.T) {
	f := &scriptedFetcher{steps: []step{{task: models.Task{Status: models.TaskCompleted, ResultURL: "r"}}}}
	tr := NewTracker(f, time.Millisecond)

	first, second := 0, 0
	unsubFirst := tr.Subscribe("widget", func(models.Task) { first++ })
	unsubSecond := tr.Subscribe("widget", func(models.Task) { second++ })
	unsubFirst() // не должен снять вторую регистрацию

	tr.Track("t6")
	tr.Wait()
	assert.Zero(t, first)
	assert.Equal(t, 1, second)

	unsubSecond()
	unsubSecond()
	tr.Track("t7")
	tr.Wait()
	assert.Equal(t, 1, second)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(auth.CookieName)
		if err != nil || ck.Value != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Не авторизован"}`))
			return
		}
		assert.Equal(t, "/api/tasks/a%2Fb", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"id":"a/b","status":"processing","progress":40}`))
	}))
	defer srv.Close()

	task, err := HTTPFetcher{BaseURL: srv.URL + "/", Token: "tok"}.TaskStatus(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, models.TaskProcessing, task.Status)
	assert.Equal(t, 40, task.Progress)

	_, err = HTTPFetcher{BaseURL: srv.URL}.TaskStatus(context.Background(), "a/b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Не авторизован")
}

func TestMerge(t *testing.T) {
	st := merge(models.Task{ID: "keep", Status: models.TaskProcessing, Progress: 50},
		models.Task{ID: "other", Status: "weird", Progress: 150})
	assert.Equal(t, "keep", st.ID)
	assert.Equal(t, models.TaskProcessing, st.Status)
	assert.Equal(t, 100, st.Progress)
}
