package triggerstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const fileExt = ".json"

// FileStore keeps each record in <root>/<session>/triggers/<name>.json as
// an indented JSON document of the form {"type": ..., "options": {...}}.
type FileStore struct {
	root string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a [FileStore] rooted at dir. The directory is created
// lazily by the first Put.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

func (s *FileStore) dir(session string) string {
	return filepath.Join(s.root, session, "triggers")
}

// List implements [Store]. Entries that are not *.json files are ignored.
// A missing session directory is an empty session. An entry that cannot be
// read is listed by name only, with an empty type, so one bad file never
// hides the rest of the session.
func (s *FileStore) List(ctx context.Context, session string) ([]Record, error) {
	if err := ValidateName(session); err != nil {
		return nil, fmt.Errorf("triggerstore: list: %w", err)
	}
	entries, err := os.ReadDir(s.dir(session))
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("triggerstore: list %q: %w", session, err)
	}

	recs := make([]Record, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), fileExt)
		rec, err := s.read(session, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			rec = Record{Name: name}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Get implements [Store].
func (s *FileStore) Get(_ context.Context, session, name string) (Record, error) {
	if err := validateKey(session, name); err != nil {
		return Record{}, fmt.Errorf("triggerstore: get: %w", err)
	}
	return s.read(session, name)
}

func (s *FileStore) read(session, name string) (Record, error) {
	path := filepath.Join(s.dir(session), name+fileExt)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, fmt.Errorf("triggerstore: %s/%s: %w", session, name, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("triggerstore: read %s: %w", path, err)
	}

	// A malformed document is still listed: the type stays empty and the
	// raw bytes are handed on so the caller can report the bad record.
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		rec = Record{Options: json.RawMessage(bytes.TrimSpace(data))}
	}
	rec.Name = name
	return rec, nil
}

// Put implements [Store]. The document is written to a temporary file and
// renamed into place.
func (s *FileStore) Put(_ context.Context, session string, rec Record) error {
	if err := validateKey(session, rec.Name); err != nil {
		return fmt.Errorf("triggerstore: put: %w", err)
	}
	rec.Options = optionsOrEmpty(rec.Options)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("triggerstore: encode %q: %w", rec.Name, err)
	}

	dir := s.dir(session)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("triggerstore: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+rec.Name+".*.tmp")
	if err != nil {
		return fmt.Errorf("triggerstore: put %q: %w", rec.Name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("triggerstore: put %q: %w", rec.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("triggerstore: put %q: %w", rec.Name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, rec.Name+fileExt)); err != nil {
		return fmt.Errorf("triggerstore: put %q: %w", rec.Name, err)
	}
	return nil
}
