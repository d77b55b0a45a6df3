// Package logger настраивает глобальный zap-логгер приложения.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// New создает логгер для режима mode ("production" - JSON, "development" - консольный вывод)
// и устанавливает его глобальным, чтобы пакеты могли писать через zap.L().
func New(mode string) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	switch mode {
	case "development":
		l, err = zap.NewDevelopment()
	case "production", "":
		l, err = zap.NewProduction()
	default:
		return nil, fmt.Errorf("неизвестный режим логирования: %s", mode)
	}
	if err != nil {
		return nil, fmt.Errorf("не удалось создать логгер: %w", err)
	}
	zap.ReplaceGlobals(l)
	return l, nil
}
