// Package nudge хранит счетчики подсказок интерфейса (баннеры, напоминания)
// в серверной cookie-сессии. Счетчики создаются при входе (Init) и
// удаляются при выходе (Clear); других мест записи нет.
package nudge

import (
	"errors"
	"fmt"

	"github.com/gin-contrib/sessions"
)

// Names - известные счетчики подсказок.
var Names = []string{
	"upgrade_banner", // Предложение перейти на платный тариф
	"support_hint",   // Подсказка про чат поддержки
	"preflight_tip",  // Совет проверить качество DataMatrix перед печатью
}

const keyPrefix = "nudge:"

// ErrUnknown возвращается для имени счетчика, которого нет в Names.
var ErrUnknown = errors.New("неизвестная подсказка")

func known(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// Init обнуляет все счетчики в сессии. Сохранение сессии остается за вызывающим.
func Init(s sessions.Session) {
	for _, n := range Names {
		s.Set(keyPrefix+n, 0)
	}
}

// Clear удаляет все счетчики из сессии.
func Clear(s sessions.Session) {
	for _, n := range Names {
		s.Delete(keyPrefix + n)
	}
}

// Get возвращает текущие значения всех счетчиков; отсутствующие считаются нулем.
func Get(s sessions.Session) map[string]int {
	out := make(map[string]int, len(Names))
	for _, n := range Names {
		out[n] = value(s, n)
	}
	return out
}

// Increment увеличивает счетчик name на единицу и возвращает новое значение.
func Increment(s sessions.Session, name string) (int, error) {
	if !known(name) {
		return 0, fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	v := value(s, name) + 1
	s.Set(keyPrefix+name, v)
	return v, nil
}

func value(s sessions.Session, name string) int {
	v, _ := s.Get(keyPrefix + name).(int)
	return v
}
