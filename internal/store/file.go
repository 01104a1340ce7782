package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/driversdk"
)

// FileMirror keeps one JSON file per object and per state under dir.
// Useful in dev setups where no broker or table is available.
type FileMirror struct {
	mu  sync.Mutex
	dir string
}

func NewFileMirror(dir string) *FileMirror {
	return &FileMirror{dir: dir}
}

func (p *FileMirror) ensure() error {
	return os.MkdirAll(p.dir, 0o755)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (p *FileMirror) MirrorObject(ctx context.Context, id string, obj driversdk.ObjectDescriptor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensure(); err != nil {
		return err
	}
	return writeJSON(p.ObjectPath(id), obj)
}

func (p *FileMirror) MirrorState(ctx context.Context, id string, st driversdk.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensure(); err != nil {
		return err
	}
	return writeJSON(p.StatePath(id), st)
}

func (p *FileMirror) ObjectPath(id string) string {
	return filepath.Join(p.dir, "object_"+sanitize(id)+".json")
}

func (p *FileMirror) StatePath(id string) string {
	return filepath.Join(p.dir, "state_"+sanitize(id)+".json")
}

// sanitize keeps ids readable as file names.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		}
		return '_'
	}, s)
}
