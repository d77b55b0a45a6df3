// Package backend - HTTP-клиент внешнего сервиса генерации этикеток.
//
// Все запросы уходят на {base}/api/v1/<resource>. Клиент не разбирает ответы
// ресурсов: это делает прокси-слой. Исключение - обмен подтверждения личности
// на токен сессии (ExchangeToken).
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// APIPrefix - префикс версии API бэкенда.
const APIPrefix = "/api/v1"

// ErrTokenMissing - бэкенд ответил 2xx, но в ответе нет токена.
var ErrTokenMissing = errors.New("в ответе бэкенда нет токена")

// Client отправляет запросы во внешний бэкенд.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New создает клиент. httpClient == nil означает http.DefaultClient
// (собственного таймаута клиент не задает).
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Request описывает один исходящий запрос.
type Request struct {
	Method        string
	Path          string // Путь ресурса после /api/v1, например "/products/123"
	RawQuery      string // Строка запроса без '?'
	Body          io.Reader
	ContentLength int64 // Длина тела, если известна (> 0)
	ContentType   string
	Token         string      // Bearer-токен; пустой - без заголовка Authorization
	Header        http.Header // Дополнительные заголовки (IP клиента, X-Request-Id)
}

// URL собирает полный адрес ресурса.
func (c *Client) URL(path, rawQuery string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + APIPrefix + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

// Do выполняет запрос. Ответ с любым статусом возвращается как есть,
// ошибка означает сбой на уровне сети. Закрыть тело ответа должен вызывающий.
func (c *Client) Do(ctx context.Context, r Request) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, c.URL(r.Path, r.RawQuery), r.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса к бэкенду: %w", err)
	}
	if r.ContentLength > 0 {
		req.ContentLength = r.ContentLength
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос %s %s не выполнен: %w", r.Method, r.Path, err)
	}
	return resp, nil
}

// TokenResponse - ответ бэкенда на обмен подтверждения личности.
// Разные эндпоинты называют поле по-разному.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
}

// Credential возвращает непустое значение токена.
func (t TokenResponse) Credential() string {
	if t.AccessToken != "" {
		return t.AccessToken
	}
	return t.Token
}

// StatusError - бэкенд отказал в обмене на токен.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("бэкенд ответил %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("бэкенд ответил %d", e.Status)
}

// ExchangeToken отправляет payload методом POST в JSON и возвращает токен сессии.
// Отказ бэкенда возвращается как *StatusError, сетевая ошибка - как есть.
func (c *Client) ExchangeToken(ctx context.Context, path string, payload any, header http.Header) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации запроса входа: %w", err)
	}
	resp, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        bytes.NewReader(body),
		ContentType: "application/json",
		Header:      header,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ошибка чтения ответа бэкенда: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Status: resp.StatusCode, Detail: Detail(raw)}
	}

	var tr TokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return "", fmt.Errorf("ошибка разбора ответа входа: %w", err)
	}
	if tr.Credential() == "" {
		return "", ErrTokenMissing
	}
	return tr.Credential(), nil
}

// Detail извлекает поле detail из тела ошибки бэкенда.
// detail бывает строкой или списком объектов с полем msg (ошибки валидации);
// во втором случае сообщения объединяются через "; ". Если извлечь нечего - "".
func Detail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if m := strings.TrimSpace(it.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

// ForwardQuery копирует в строку запроса только разрешенные параметры.
// Пустой список allowed означает "все параметры".
func ForwardQuery(q url.Values, allowed ...string) string {
	if len(allowed) == 0 {
		return q.Encode()
	}
	out := url.Values{}
	for _, k := range allowed {
		if vs, ok := q[k]; ok {
			out[k] = vs
		}
	}
	return out.Encode()
}
