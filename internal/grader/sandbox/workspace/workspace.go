// Package workspace manages per-request scratch directories.
package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"examgrader/internal/grader/sandbox/profile"
	appErr "examgrader/pkg/errors"
	"examgrader/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Workspace is an exclusively owned scratch directory.
type Workspace struct {
	ID  string
	Dir string

	once       sync.Once
	releaseErr error
}

// Manager creates and removes workspaces under Root.
type Manager struct {
	// Root is the parent directory; empty means os.TempDir().
	Root string
}

// NewManager creates the root directory if needed.
func NewManager(root string) (*Manager, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, appErr.Wrapf(err, appErr.WorkspaceError, "create workspace root failed")
		}
	}
	return &Manager{Root: root}, nil
}

// Acquire creates a fresh uniquely named directory.
func (m *Manager) Acquire(ctx context.Context) (*Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	dir, err := os.MkdirTemp(m.Root, "ws-"+id+"-")
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "create workspace failed")
	}
	logger.Debug(ctx, "workspace acquired", zap.String("workspace", dir))
	return &Workspace{ID: id, Dir: dir}, nil
}

// WriteSource writes code to the canonical source file of lang and returns its path.
func (m *Manager) WriteSource(ws *Workspace, lang profile.LanguageSpec, code string) (string, error) {
	if ws == nil || ws.Dir == "" {
		return "", appErr.New(appErr.WorkspaceError).WithMessage("workspace is not acquired")
	}
	path := filepath.Join(ws.Dir, lang.SourceFile())
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return "", appErr.Wrapf(err, appErr.WorkspaceError, "write source failed")
	}
	return path, nil
}

// Release removes the directory tree. Repeated calls return the first result.
func (m *Manager) Release(ws *Workspace) error {
	if ws == nil {
		return nil
	}
	ws.once.Do(func() {
		if err := os.RemoveAll(ws.Dir); err != nil {
			ws.releaseErr = appErr.Wrapf(err, appErr.WorkspaceError, "remove workspace failed")
		}
	})
	return ws.releaseErr
}

// With acquires a workspace, runs fn and releases the workspace on every
// exit path, panics included.
func (m *Manager) With(ctx context.Context, fn func(ws *Workspace) error) (err error) {
	ws, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := m.Release(ws); relErr != nil {
			logger.Warn(ctx, "release workspace failed", zap.String("workspace", ws.Dir), zap.Error(relErr))
			if err == nil {
				err = relErr
			}
		}
	}()
	return fn(ws)
}
