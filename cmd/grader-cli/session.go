package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"examgrader/internal/grader/sandbox"
	"examgrader/internal/grader/sandbox/result"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
)

type evaluator interface {
	Evaluate(ctx context.Context, req sandbox.ExecutionRequest) ([]result.Outcome, error)
}

// session runs the loaded program once per input line.
type session struct {
	ev       evaluator
	lang     string
	code     string
	out      io.Writer
	expected *string
}

func newSession(ev evaluator, lang, code string, out io.Writer) (*session, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("source is empty")
	}
	return &session{ev: ev, lang: lang, code: code, out: out}, nil
}

// Run reads lines until EOF or :quit.
func (s *session) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.lang + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintln(s.out, "each line is one test case input; \"quoted\" lines accept escapes such as \\n")
	fmt.Fprintln(s.out, "commands: :expect <output>, :clear, :quit")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		done, err := s.handleLine(ctx, line)
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if done || ctx.Err() != nil {
			return nil
		}
	}
}

func (s *session) handleLine(ctx context.Context, line string) (bool, error) {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == ":quit" || trimmed == ":exit":
		return true, nil
	case trimmed == ":clear":
		s.expected = nil
		fmt.Fprintln(s.out, "expected output cleared")
		return false, nil
	case strings.HasPrefix(trimmed, ":expect"):
		value, err := parseInputLine(strings.TrimSpace(strings.TrimPrefix(trimmed, ":expect")))
		if err != nil {
			return false, err
		}
		s.expected = &value
		fmt.Fprintf(s.out, "expecting %q\n", value)
		return false, nil
	}

	input, err := parseInputLine(line)
	if err != nil {
		return false, err
	}
	req := sandbox.ExecutionRequest{
		RequestID:  "cli-" + uuid.NewString(),
		LanguageID: s.lang,
		Code:       s.code,
		Inputs:     []string{input},
	}
	if s.expected != nil {
		req.Expected = []string{*s.expected}
	}
	outcomes, err := s.ev.Evaluate(ctx, req)
	if err != nil {
		return false, err
	}
	for _, o := range outcomes {
		s.render(o)
	}
	return false, nil
}

func (s *session) render(o result.Outcome) {
	if o.Stdout != "" {
		fmt.Fprint(s.out, o.Stdout)
		if !strings.HasSuffix(o.Stdout, "\n") {
			fmt.Fprintln(s.out)
		}
	}
	if o.Stderr != "" {
		fmt.Fprintf(s.out, "stderr: %s\n", strings.TrimRight(o.Stderr, "\n"))
	}
	summary := fmt.Sprintf("[%s exit=%d %dms]", o.Status, o.ExitCode, o.TimeMs)
	if o.Verdict != result.VerdictNone {
		summary += " " + string(o.Verdict)
	}
	fmt.Fprintln(s.out, summary)
}

// parseInputLine returns line unchanged unless it is a Go quoted string.
func parseInputLine(line string) (string, error) {
	if len(line) >= 2 && line[0] == '"' && line[len(line)-1] == '"' {
		v, err := strconv.Unquote(line)
		if err != nil {
			return "", fmt.Errorf("invalid quoted input: %w", err)
		}
		return v, nil
	}
	return line, nil
}
