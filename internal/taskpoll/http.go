package taskpoll

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"labelweb/internal/auth"
	"labelweb/internal/models"
)

// HTTPFetcher получает статус задачи через прокси-маршрут GET /api/tasks/{id}.
type HTTPFetcher struct {
	BaseURL string // Адрес веб-приложения, например https://labels.example.com
	Token   string // Значение cookie "token"
	Client  *http.Client
}

// TaskStatus реализует Fetcher.
func (f HTTPFetcher) TaskStatus(ctx context.Context, taskID string) (models.Task, error) {
	u := strings.TrimRight(f.BaseURL, "/") + "/api/tasks/" + url.PathEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.Task{}, fmt.Errorf("ошибка создания запроса статуса: %w", err)
	}
	if f.Token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: f.Token})
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return models.Task{}, fmt.Errorf("запрос статуса задачи %s не выполнен: %w", taskID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e models.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return models.Task{}, fmt.Errorf("статус задачи %s: HTTP %d: %s", taskID, resp.StatusCode, e.Error)
	}

	var task models.Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return models.Task{}, fmt.Errorf("ошибка разбора статуса задачи %s: %w", taskID, err)
	}
	return task, nil
}
