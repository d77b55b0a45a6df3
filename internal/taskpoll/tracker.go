package taskpoll

import (
	"context"
	"sync"
	"time"

	"labelweb/internal/models"
)

// Tracker держит состояние одной отслеживаемой задачи для долгоживущего потребителя.
//
// Каждый вызов Track начинает новое поколение опроса и отменяет предыдущее;
// обновления устаревшего поколения и обновления после Stop отбрасываются.
// Слушатели вызываются под внутренней блокировкой, поэтому не должны
// синхронно вызывать методы Tracker.
type Tracker struct {
	fetcher  Fetcher
	interval time.Duration

	mu        sync.Mutex
	gen       uint64
	cancel    context.CancelFunc
	done      chan struct{}
	state     models.Task
	listeners map[string]listener
	nextID    uint64
}

type listener struct {
	id uint64
	fn func(models.Task)
}

// NewTracker создает трекер в состоянии idle.
func NewTracker(f Fetcher, interval time.Duration) *Tracker {
	return &Tracker{
		fetcher:   f,
		interval:  interval,
		state:     models.Task{Status: models.TaskIdle},
		listeners: make(map[string]listener),
	}
}

// Track начинает опрос задачи taskID, отменяя текущий.
// Пустой taskID переводит трекер в idle без сетевых запросов.
func (t *Tracker) Track(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	if taskID == "" {
		t.state = models.Task{Status: models.TaskIdle}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	gen := t.gen
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done
	t.state = models.Task{ID: taskID, Status: models.TaskPending}

	p := &Poller{
		Fetcher:  t.fetcher,
		Interval: t.interval,
		Callbacks: Callbacks{
			OnUpdate: func(task models.Task) { t.apply(gen, task) },
		},
	}
	go func() {
		defer close(done)
		defer cancel()
		p.Run(ctx, taskID)
	}()
}

// Stop прекращает опрос. Состояние остается последним известным.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// stopLocked отменяет текущее поколение; вызывается под t.mu.
func (t *Tracker) stopLocked() {
	t.gen++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Wait блокируется до выхода текущего цикла опроса (если он есть).
func (t *Tracker) Wait() {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done != nil {
		<-done
	}
}

// State возвращает копию текущего состояния.
func (t *Tracker) State() models.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Subscribe регистрирует слушателя под ключом key. Повторная регистрация
// с тем же ключом заменяет прежнего слушателя. Возвращаемая функция снимает
// именно эту регистрацию и безопасна для повторного вызова.
func (t *Tracker) Subscribe(key string, fn func(models.Task)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.listeners[key] = listener{id: id, fn: fn}

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if l, ok := t.listeners[key]; ok && l.id == id {
			delete(t.listeners, key)
		}
	}
}

// apply применяет обновление поколения gen, если оно еще актуально.
func (t *Tracker) apply(gen uint64, task models.Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	t.state = task
	for _, l := range t.listeners {
		l.fn(task)
	}
}
