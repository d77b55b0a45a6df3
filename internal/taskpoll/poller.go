// Package taskpoll опрашивает статус фоновой задачи генерации до конечного состояния.
//
// Каждый следующий запрос планируется только после завершения предыдущего,
// поэтому запросы по одной задаче никогда не перекрываются. Повторов при сетевых
// ошибках нет: ошибка запроса переводит задачу в failed локально.
package taskpoll

import (
	"context"
	"time"

	"labelweb/internal/models"
)

// DefaultInterval - пауза между запросами статуса.
const DefaultInterval = 3 * time.Second

// MsgStatusUnavailable - текст локальной ошибки, когда статус получить не удалось.
const MsgStatusUnavailable = "Не удалось получить статус задачи"

// MsgTaskFailed - текст ошибки, если бэкенд перевел задачу в failed без сообщения.
const MsgTaskFailed = "Ошибка генерации"

// Fetcher получает текущее состояние задачи.
type Fetcher interface {
	TaskStatus(ctx context.Context, taskID string) (models.Task, error)
}

// Callbacks - реакции на изменения. Любое поле может быть nil.
type Callbacks struct {
	OnUpdate   func(models.Task)   // Каждое новое состояние, включая конечное
	OnComplete func(models.Task)   // Ровно один раз при completed
	OnError    func(message string) // Ровно один раз при failed
}

// Poller - цикл опроса одной задачи.
type Poller struct {
	Fetcher  Fetcher
	Interval time.Duration // 0 - DefaultInterval
	Callbacks
}

// Run опрашивает задачу taskID, пока она не завершится или не отменен ctx.
// Пустой taskID - состояние idle, запросов нет. После отмены ctx никакие
// колбэки больше не вызываются, даже если запрос уже был в полете.
// Возвращает последнее локальное состояние.
func (p *Poller) Run(ctx context.Context, taskID string) models.Task {
	if taskID == "" {
		return models.Task{Status: models.TaskIdle}
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	state := models.Task{ID: taskID, Status: models.TaskPending}
	for {
		task, err := p.Fetcher.TaskStatus(ctx, taskID)
		if ctx.Err() != nil {
			return state
		}

		if err != nil {
			state.Status = models.TaskFailed
			state.Error = MsgStatusUnavailable
			p.update(state)
			p.fail(state.Error)
			return state
		}

		state = merge(state, task)
		p.update(state)

		switch state.Status {
		case models.TaskCompleted:
			if p.OnComplete != nil {
				p.OnComplete(state)
			}
			return state
		case models.TaskFailed:
			p.fail(state.Error)
			return state
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return state
		case <-timer.C:
		}
	}
}

func (p *Poller) update(t models.Task) {
	if p.OnUpdate != nil {
		p.OnUpdate(t)
	}
}

func (p *Poller) fail(msg string) {
	if p.OnError != nil {
		p.OnError(msg)
	}
}

// merge переносит в локальное состояние поля ответа.
// ID задачи не меняется; неизвестный или пустой статус оставляет прежний.
func merge(state, got models.Task) models.Task {
	switch got.Status {
	case models.TaskPending, models.TaskProcessing, models.TaskCompleted, models.TaskFailed:
		state.Status = got.Status
	}
	state.Progress = clamp(got.Progress)
	if got.LabelsCount != nil {
		n := *got.LabelsCount
		state.LabelsCount = &n
	}
	switch state.Status {
	case models.TaskCompleted:
		state.Progress = 100
		state.ResultURL = got.ResultURL
		state.Error = ""
	case models.TaskFailed:
		state.Error = got.Error
		if state.Error == "" {
			state.Error = MsgTaskFailed
		}
		state.ResultURL = ""
	}
	return state
}

func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
