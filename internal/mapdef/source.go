package mapdef

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source provides map definitions by id.
type Source interface {
	Definition(ctx context.Context, id string) (*Definition, error)
	List(ctx context.Context) ([]string, error)
}

// FileSource reads definitions from <dir>/<id>.json.
type FileSource struct {
	dir string
}

// NewFileSource creates a source reading from dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Definition loads and validates the definition of id.
func (s *FileSource) Definition(ctx context.Context, id string) (*Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, fmt.Errorf("%w: bad id %q", ErrNotFound, id)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading map %s: %w", id, err)
	}

	return Decode(id, data)
}

// List returns the ids of every definition file in the directory.
func (s *FileSource) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing maps in %s: %w", s.dir, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Decode parses a JSON definition. A missing id is filled from fallbackID.
func Decode(fallbackID string, data []byte) (*Definition, error) {
	var d Definition
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, fallbackID, err)
	}
	if d.ID == "" {
		d.ID = fallbackID
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}
