package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
)

// errQuit is returned by readLine on EOF at an empty prompt.
var errQuit = errors.New("quit")

type prompt struct {
	rl *readline.Instance
}

func newPrompt(historyFile string) (*prompt, error) {
	if err := os.MkdirAll(filepath.Dir(historyFile), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            color.GreenString("➤ "),
		HistoryFile:       historyFile,
		HistorySearchFold: true,
		InterruptPrompt:   "^C",
		EOFPrompt:         "bye",
	})
	if err != nil {
		return nil, fmt.Errorf("create readline instance: %w", err)
	}
	return &prompt{rl: rl}, nil
}

// readLine reads one input. A line ending in a backslash, or a line that
// opens with "<<<", continues until a single "." line. Ctrl-C discards the
// current input.
func (p *prompt) readLine() (string, error) {
	defer p.rl.SetPrompt(color.GreenString("➤ "))

	var lines []string
	multi := false
	for {
		line, err := p.rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			return "", nil
		case errors.Is(err, io.EOF):
			if len(lines) == 0 {
				return "", errQuit
			}
			return joinInput(lines), nil
		case err != nil:
			return "", err
		}

		line = strings.TrimRight(line, " \t")
		switch {
		case len(lines) == 0 && line == "<<<":
			multi = true
		case multi && line == ".":
			return joinInput(lines), nil
		case strings.HasSuffix(line, "\\"):
			lines = append(lines, strings.TrimSuffix(line, "\\"))
		default:
			lines = append(lines, line)
			if !multi {
				return joinInput(lines), nil
			}
		}
		p.rl.SetPrompt(color.GreenString("... "))
	}
}

func joinInput(lines []string) string {
	return strings.Join(lines, "\n")
}

func (p *prompt) Close() error {
	return p.rl.Close()
}
