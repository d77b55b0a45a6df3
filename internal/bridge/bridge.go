// Package bridge выбирает способ подтверждения личности пользователя VK Mini App.
//
// Провайдеры перебираются строго по порядку; первый успешный определяет,
// куда и с какими данными идти на бэкенд за токеном сессии.
package bridge

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrAllProvidersFailed - ни один провайдер не смог подтвердить личность.
var ErrAllProvidersFailed = errors.New("не удалось подтвердить личность ни одним способом")

// ErrNotApplicable - у провайдера нет нужных данных в запросе.
var ErrNotApplicable = errors.New("нет данных для этого способа входа")

// Assertion - подтверждение личности, готовое к обмену на токен.
type Assertion struct {
	Provider string            // Имя провайдера для журнала
	Path     string            // Путь обмена на бэкенде после /api/v1
	Payload  map[string]string // Тело запроса обмена
}

// Provider - один способ подтверждения личности.
type Provider[T any] interface {
	Name() string
	Assert(in T) (Assertion, error)
}

// Chain - упорядоченный список провайдеров.
type Chain[T any] []Provider[T]

// Resolve возвращает результат первого успешного провайдера.
// Если все отказали, ошибка оборачивает ErrAllProvidersFailed и причины отказов.
func (ch Chain[T]) Resolve(in T) (Assertion, error) {
	errs := []error{ErrAllProvidersFailed}
	for _, p := range ch {
		a, err := p.Assert(in)
		if err == nil {
			return a, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return Assertion{}, errors.Join(errs...)
}

// VKLaunch - тело запроса входа из VK Mini App.
type VKLaunch struct {
	// LaunchParams - подписанная строка параметров запуска (vk_user_id=...&sign=...).
	LaunchParams string `json:"launch_params"`
	// AccessToken - токен, полученный напрямую через мост приложения, когда
	// подписанных параметров нет (встроенные браузеры с ограничениями).
	AccessToken string `json:"access_token"`
}

// LaunchParamsProvider - основной способ: подписанные параметры запуска.
// Подпись проверяет бэкенд; здесь только отсеиваются заведомо неполные строки.
type LaunchParamsProvider struct{}

func (LaunchParamsProvider) Name() string { return "vk" }

func (LaunchParamsProvider) Assert(in VKLaunch) (Assertion, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(in.LaunchParams), "?")
	if raw == "" {
		return Assertion{}, ErrNotApplicable
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return Assertion{}, fmt.Errorf("параметры запуска не разобраны: %w", err)
	}
	if q.Get("sign") == "" || q.Get("vk_user_id") == "" {
		return Assertion{}, fmt.Errorf("в параметрах запуска нет sign или vk_user_id")
	}
	return Assertion{
		Provider: "vk",
		Path:     "/auth/vk",
		Payload:  map[string]string{"launch_params": raw},
	}, nil
}

// BridgeTokenProvider - запасной способ: токен доступа от моста приложения.
type BridgeTokenProvider struct{}

func (BridgeTokenProvider) Name() string { return "vk_bridge" }

func (BridgeTokenProvider) Assert(in VKLaunch) (Assertion, error) {
	token := strings.TrimSpace(in.AccessToken)
	if token == "" {
		return Assertion{}, ErrNotApplicable
	}
	return Assertion{
		Provider: "vk_bridge",
		Path:     "/auth/vk/token",
		Payload:  map[string]string{"access_token": token},
	}, nil
}

// VKChain - порядок способов входа в Mini App.
func VKChain() Chain[VKLaunch] {
	return Chain[VKLaunch]{LaunchParamsProvider{}, BridgeTokenProvider{}}
}
