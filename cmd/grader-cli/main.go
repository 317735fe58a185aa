package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"examgrader/internal/grader/sandbox"
	"examgrader/internal/grader/sandbox/engine"
	"examgrader/internal/grader/sandbox/profile"
	"examgrader/internal/grader/sandbox/spec"
	"examgrader/internal/grader/sandbox/workspace"
	"examgrader/pkg/utils/logger"

	"github.com/google/uuid"
)

func main() {
	lang := flag.String("lang", "python", "Language id (python, java, c)")
	file := flag.String("file", "", "Path to the source file")
	oneshot := flag.Bool("oneshot", false, "Build and run once through a single shell command")
	input := flag.String("input", "", "Stdin for oneshot mode; '-' reads it from stdin")
	timeout := flag.Duration("timeout", sandbox.DefaultTimeout, "Per step wall-clock limit")
	workRoot := flag.String("work-root", "", "Parent directory for workspaces")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	if err := logger.Init(logger.Config{Level: *logLevel, Format: "console", OutputPath: "stderr", ErrorPath: "stderr"}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "-file is required")
		flag.Usage()
		os.Exit(2)
	}
	code, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read source failed: %v\n", err)
		os.Exit(1)
	}

	host := profile.CurrentHost()
	languages := profile.DefaultRegistry(host)
	mgr, err := workspace.NewManager(*workRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init workspace failed: %v\n", err)
		os.Exit(1)
	}
	eng := engine.NewEngine(engine.Config{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *oneshot {
		stdin := *input
		if stdin == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fmt.Fprintf(os.Stderr, "read stdin failed: %v\n", err)
				os.Exit(1)
			}
			stdin = string(data)
		}
		exitCode, err := runOneshot(ctx, languages, mgr, eng, host, *lang, string(code), stdin, *timeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(exitCode)
	}

	ev := sandbox.NewEvaluator(languages, mgr, eng, sandbox.WithHost(host), sandbox.WithTimeout(*timeout))
	session, err := newSession(ev, *lang, string(code), os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init session failed: %v\n", err)
		os.Exit(1)
	}
	if err := session.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runOneshot builds and runs code with one compound shell command and
// mirrors the child's streams. A failed build skips the run.
func runOneshot(ctx context.Context, languages *profile.Registry, mgr *workspace.Manager, eng engine.Engine, host profile.HostFamily, langID, code, stdin string, timeout time.Duration) (int, error) {
	lang, err := languages.Resolve(langID)
	if err != nil {
		return 0, err
	}
	exitCode := 0
	err = mgr.With(ctx, func(ws *workspace.Workspace) error {
		path, err := mgr.WriteSource(ws, lang, code)
		if err != nil {
			return err
		}
		argv, err := profile.CompoundCommand(lang, path, host)
		if err != nil {
			return err
		}
		res, err := eng.Run(ctx, spec.RunSpec{
			RequestID: "cli-" + uuid.NewString(),
			TestID:    "0",
			WorkDir:   ws.Dir,
			Cmd:       argv,
			Env:       lang.Env,
			Stdin:     stdin,
			Timeout:   timeout,
		})
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, res.Stdout)
		fmt.Fprint(os.Stderr, res.Stderr)
		switch {
		case res.TimedOut:
			fmt.Fprintln(os.Stderr, "Execution timed out.")
		case res.SpawnErr != nil:
			fmt.Fprintf(os.Stderr, "start failed: %v\n", res.SpawnErr)
		}
		exitCode = res.ExitCode
		return nil
	})
	if exitCode < 0 {
		exitCode = 1
	}
	return exitCode, err
}
