// Package storage owns the on-disk layout for uploaded sources and
// conversion artifacts. Uploads are stored under a generated UUID with their
// original extension, next to a JSON sidecar carrying the original filename
// and upload metadata. Artifacts are named after the job that produced them.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no stored file matches the given ID.
var ErrNotFound = errors.New("file not found")

// FileInfo describes one stored upload.
type FileInfo struct {
	ID           uuid.UUID `json:"file_id"`
	OriginalName string    `json:"original_name"`
	Ext          string    `json:"ext"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type"`
	UploadedAt   time.Time `json:"uploaded_at"`

	// Path is the absolute location of the stored data file. Not part of
	// the API surface.
	Path string `json:"-"`
}

// Store is a directory-backed file store. All methods are safe for
// concurrent use; the filesystem is the source of truth and no state is
// cached in memory.
type Store struct {
	dir string
}

// NewStore opens (creating if needed) the store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// Save streams r into the store under a fresh UUID, keeping the original
// extension, and writes the metadata sidecar. The data file is written to a
// temp name and renamed so a partially written upload is never visible.
func (s *Store) Save(originalName, contentType string, r io.Reader) (FileInfo, error) {
	info := FileInfo{
		ID:           uuid.New(),
		OriginalName: filepath.Base(originalName),
		Ext:          strings.ToLower(filepath.Ext(originalName)),
		ContentType:  contentType,
		UploadedAt:   time.Now().UTC(),
	}
	info.Path = s.dataPath(info.ID, info.Ext)

	tmp, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return FileInfo{}, fmt.Errorf("create upload temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return FileInfo{}, fmt.Errorf("write upload: %w", err)
	}
	info.Size = n

	if err := s.writeSidecar(info); err != nil {
		return FileInfo{}, err
	}
	if err := os.Rename(tmp.Name(), info.Path); err != nil {
		os.Remove(s.sidecarPath(info.ID))
		return FileInfo{}, fmt.Errorf("finalize upload: %w", err)
	}
	return info, nil
}

// Lookup returns the metadata for a stored file.
func (s *Store) Lookup(id uuid.UUID) (FileInfo, error) {
	b, err := os.ReadFile(s.sidecarPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return FileInfo{}, ErrNotFound
	}
	if err != nil {
		return FileInfo{}, fmt.Errorf("read file metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return FileInfo{}, fmt.Errorf("decode file metadata: %w", err)
	}
	info.Path = s.dataPath(info.ID, info.Ext)

	if _, err := os.Stat(info.Path); errors.Is(err, os.ErrNotExist) {
		return FileInfo{}, ErrNotFound
	} else if err != nil {
		return FileInfo{}, err
	}
	return info, nil
}

// Open returns the stored file's metadata together with an open handle on
// its data.
func (s *Store) Open(id uuid.UUID) (FileInfo, *os.File, error) {
	info, err := s.Lookup(id)
	if err != nil {
		return FileInfo{}, nil, err
	}
	f, err := os.Open(info.Path)
	if errors.Is(err, os.ErrNotExist) {
		return FileInfo{}, nil, ErrNotFound
	}
	if err != nil {
		return FileInfo{}, nil, err
	}
	return info, f, nil
}

// Delete removes a stored file and its sidecar. Deleting a file that does
// not exist returns ErrNotFound.
func (s *Store) Delete(id uuid.UUID) error {
	info, err := s.Lookup(id)
	if err != nil {
		return err
	}
	if err := os.Remove(info.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.Remove(s.sidecarPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List returns metadata for every stored upload, in no particular order.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var infos []FileInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, sidecarSuffix) {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(name, sidecarSuffix))
		if err != nil {
			continue
		}
		info, err := s.Lookup(id)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// ArtifactPath returns where the output of a job is stored. The name embeds
// the job ID and the output format, e.g. "<jobID>_converted.jsonl".
func (s *Store) ArtifactPath(jobID uuid.UUID, format string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_converted.%s", jobID, format))
}

const sidecarSuffix = ".meta.json"

func (s *Store) dataPath(id uuid.UUID, ext string) string {
	return filepath.Join(s.dir, id.String()+ext)
}

func (s *Store) sidecarPath(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+sidecarSuffix)
}

func (s *Store) writeSidecar(info FileInfo) error {
	b, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode file metadata: %w", err)
	}
	if err := os.WriteFile(s.sidecarPath(info.ID), b, 0o644); err != nil {
		return fmt.Errorf("write file metadata: %w", err)
	}
	return nil
}
