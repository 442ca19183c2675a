// Package session persists batch checkpoints as JSON documents, one
// file per session, overwritten in place after every device.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rcc-labs/rcc/internal/domain"
)

// FileRepository stores checkpoints under a directory, keyed by
// session id. Writes are atomic: temp file then rename, so a crash
// mid-write never leaves a torn checkpoint.
type FileRepository struct {
	dir string
}

// NewFileRepository creates a repository rooted at dir.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

func (r *FileRepository) path(sessionID string) string {
	return filepath.Join(r.dir, fmt.Sprintf("rcc_checkpoint_%s.json", sessionID))
}

// Save writes the session checkpoint.
func (r *FileRepository) Save(_ context.Context, s *domain.Session) error {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	target := r.path(s.SessionID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// Load reads a checkpoint back by session id.
func (r *FileRepository) Load(_ context.Context, sessionID string) (*domain.Session, error) {
	b, err := os.ReadFile(r.path(sessionID))
	if err != nil {
		return nil, err
	}
	var s domain.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
