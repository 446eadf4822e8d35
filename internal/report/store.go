package report

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Store writes the artifacts of one run under:
//
//	<baseDir>/<run-id>/
//
// Every write is atomic and durable (file sync, atomic rename, dir sync), so
// a crashed run never leaves a half-written report behind.
type Store struct {
	baseDir string
	runID   string
	digests map[string]string
}

// NewRunID returns a fresh random run id.
func NewRunID() string { return uuid.New() }

// NewStore returns a Store for runID under baseDir. An empty runID is
// replaced by a fresh one.
func NewStore(baseDir, runID string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("baseDir is required")
	}
	if strings.TrimSpace(runID) == "" {
		runID = NewRunID()
	}
	if strings.ContainsAny(runID, `/\`) {
		return nil, errors.Errorf("invalid run id %q", runID)
	}
	return &Store{baseDir: baseDir, runID: runID, digests: make(map[string]string)}, nil
}

// RunID returns the id of the run this store writes.
func (s *Store) RunID() string { return s.runID }

// RunDir returns the directory of this run.
func (s *Store) RunDir() string { return filepath.Join(s.baseDir, s.runID) }

// Path returns the absolute location of a run-relative artifact.
func (s *Store) Path(rel string) string { return filepath.Join(s.RunDir(), filepath.FromSlash(rel)) }


// Write renders an artifact with render and stores it at rel.
func (s *Store) Write(rel string, render func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return errors.Wrapf(err, "rendering %s", rel)
	}
	if err := writeFileAtomicDurable(s.Path(rel), buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", rel)
	}
	s.digests[rel] = Digest(buf.Bytes())
	return nil
}

// Digest is the hex sha256 of an artifact's bytes.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Digests returns the digest of every artifact written so far, keyed by its
// run-relative path.
func (s *Store) Digests() map[string]string {
	out := make(map[string]string, len(s.digests))
	for k, v := range s.digests {
		out[k] = v
	}
	return out
}

// WriteYAML stores v as YAML at rel.
func (s *Store) WriteYAML(rel string, v interface{}) error {
	return s.Write(rel, func(w io.Writer) error {
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true

	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
