// Command labelctl следит за задачей генерации этикеток из терминала:
//
//	labelctl -url https://labels.example.com -task 42
//
// Токен берется из LABEL_TOKEN или запрашивается без эха.
// Код выхода 0 - задача выполнена (печатается ссылка на результат), 1 - ошибка.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"labelweb/internal/models"
	"labelweb/internal/taskpoll"

	"golang.org/x/term"
)

// readPassword подменяется в тестах, чтобы не трогать терминал.
var readPassword = term.ReadPassword

var errNoToken = errors.New("токен не задан")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

// run разбирает аргументы и опрашивает задачу. Возвращает код выхода.
func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("labelctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baseURL := fs.String("url", "http://localhost:8080", "адрес веб-приложения")
	taskID := fs.String("task", "", "идентификатор задачи")
	interval := fs.Duration("interval", taskpoll.DefaultInterval, "пауза между запросами статуса")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *taskID == "" {
		fmt.Fprintln(stderr, "не указан -task")
		return 2
	}

	token, err := readToken(getenv, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Ошибка: %v\n", err)
		return 1
	}

	p := &taskpoll.Poller{
		Fetcher:  taskpoll.HTTPFetcher{BaseURL: *baseURL, Token: token},
		Interval: *interval,
		Callbacks: taskpoll.Callbacks{
			OnUpdate: func(t models.Task) {
				fmt.Fprintf(stdout, "%s %3d%%\n", t.Status, t.Progress)
			},
			OnComplete: func(t models.Task) {
				if t.LabelsCount != nil {
					fmt.Fprintf(stdout, "Готово: %d этикеток\n", *t.LabelsCount)
				}
				fmt.Fprintln(stdout, t.ResultURL)
			},
			OnError: func(msg string) {
				fmt.Fprintf(stderr, "Ошибка: %s\n", msg)
			},
		},
	}

	final := p.Run(ctx, *taskID)
	if final.Status == models.TaskCompleted {
		return 0
	}
	if !final.Status.IsTerminal() {
		fmt.Fprintln(stderr, "Опрос прерван")
	}
	return 1
}

// readToken берет токен из LABEL_TOKEN, иначе спрашивает его в терминале.
func readToken(getenv func(string) string, w io.Writer) (string, error) {
	if t := strings.TrimSpace(getenv("LABEL_TOKEN")); t != "" {
		return t, nil
	}
	fmt.Fprint(w, "Токен: ")
	raw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("не удалось прочитать токен: %w", err)
	}
	if t := strings.TrimSpace(string(raw)); t != "" {
		return t, nil
	}
	return "", errNoToken
}
