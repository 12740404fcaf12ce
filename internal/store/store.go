// Package store persists sketches and folders as two JSON array files.
//
// Every successful write regenerates the gallery snapshot with the data that
// was just persisted, so the snapshot never shows a state the files don't hold.
// A write whose snapshot cannot be regenerated restores the record file and
// fails, so callers never see a half-committed mutation.
package store

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hpungsan/showcase/internal/fileio"
	"github.com/hpungsan/showcase/internal/gallery"
	"github.com/hpungsan/showcase/internal/projector"
)

// File names inside the data directory.
const (
	SketchesFile = "sketches.json"
	FoldersFile  = "folders.json"
)

// Projector regenerates the derived snapshot after a write.
type Projector interface {
	Regenerate(sketches []gallery.Sketch, folders []gallery.Folder) error
	Path() string
}

// Store reads and writes the record files in one data directory.
type Store struct {
	sketchesPath string
	foldersPath  string
	projector    Projector
	legacyPath   string
	logger       *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLegacyArtifact names a generated module (array literal form) to seed
// sketches from when neither the sketches file nor a usable snapshot exists.
func WithLegacyArtifact(path string) Option {
	return func(s *Store) {
		s.legacyPath = path
	}
}

// New returns a Store rooted at dir.
func New(dir string, p Projector, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		sketchesPath: filepath.Join(dir, SketchesFile),
		foldersPath:  filepath.Join(dir, FoldersFile),
		projector:    p,
		logger:       logger.Named("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadSketches returns all sketches in file order.
// A missing file falls back to the sketches held by the last snapshot.
func (s *Store) ReadSketches() ([]gallery.Sketch, error) {
	data, err := os.ReadFile(s.sketchesPath)
	if stderrors.Is(err, fs.ErrNotExist) {
		return s.bootstrapSketches(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sketches: %w", err)
	}

	var sketches []gallery.Sketch
	if err := json.Unmarshal(data, &sketches); err != nil {
		s.logger.Warn("sketches file is not valid JSON; treating as empty",
			zap.String("path", s.sketchesPath), zap.Error(err))
		return []gallery.Sketch{}, nil
	}
	if sketches == nil {
		sketches = []gallery.Sketch{}
	}
	return sketches, nil
}

func (s *Store) bootstrapSketches() []gallery.Sketch {
	if s.projector != nil {
		if sketches, ok := s.seedFrom(s.projector.Path(), "snapshot"); ok {
			return sketches
		}
	}
	if s.legacyPath != "" {
		if sketches, ok := s.seedFrom(s.legacyPath, "legacy artifact"); ok {
			return sketches
		}
	}
	return []gallery.Sketch{}
}

// seedFrom extracts sketches from a snapshot or legacy artifact.
// ok is false when the file is missing, unreadable or holds no sketches.
func (s *Store) seedFrom(path, kind string) ([]gallery.Sketch, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !stderrors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cannot read "+kind+" for bootstrap", zap.String("path", path), zap.Error(err))
		}
		return nil, false
	}

	sketches, err := projector.ExtractSketches(data)
	if err != nil {
		s.logger.Warn(kind+" holds no usable sketches",
			zap.String("path", path), zap.Error(err))
		return nil, false
	}
	if len(sketches) == 0 {
		return nil, false
	}
	s.logger.Info("bootstrapped sketches from "+kind,
		zap.String("path", path), zap.Int("count", len(sketches)))
	return sketches, true
}

// ReadFolders returns all folders in file order. A missing file means no folders.
func (s *Store) ReadFolders() ([]gallery.Folder, error) {
	data, err := os.ReadFile(s.foldersPath)
	if stderrors.Is(err, fs.ErrNotExist) {
		return []gallery.Folder{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read folders: %w", err)
	}

	var folders []gallery.Folder
	if err := json.Unmarshal(data, &folders); err != nil {
		s.logger.Warn("folders file is not valid JSON; treating as empty",
			zap.String("path", s.foldersPath), zap.Error(err))
		return []gallery.Folder{}, nil
	}
	if folders == nil {
		folders = []gallery.Folder{}
	}
	return folders, nil
}

// WriteSketches replaces the sketches file and regenerates the snapshot.
func (s *Store) WriteSketches(sketches []gallery.Sketch) error {
	if sketches == nil {
		sketches = []gallery.Sketch{}
	}
	return s.replace(s.sketchesPath, sketches, func() error {
		folders, err := s.ReadFolders()
		if err != nil {
			return err
		}
		return s.project(sketches, folders)
	})
}

// WriteFolders replaces the folders file and regenerates the snapshot.
func (s *Store) WriteFolders(folders []gallery.Folder) error {
	if folders == nil {
		folders = []gallery.Folder{}
	}
	return s.replace(s.foldersPath, folders, func() error {
		sketches, err := s.ReadSketches()
		if err != nil {
			return err
		}
		return s.project(sketches, folders)
	})
}

// replace writes v to path and then runs after. If after fails, path is put
// back the way it was before the write.
func (s *Store) replace(path string, v any, after func() error) error {
	prev, err := os.ReadFile(path)
	existed := err == nil
	if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	if err := fileio.WriteJSON(path, v); err != nil {
		return err
	}
	if err := after(); err != nil {
		if rbErr := restore(path, prev, existed); rbErr != nil {
			s.logger.Error("failed to roll back record file",
				zap.String("path", path), zap.Error(rbErr))
		}
		return err
	}
	return nil
}

func restore(path string, prev []byte, existed bool) error {
	if !existed {
		if err := os.Remove(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return fileio.WriteAtomic(path, prev, 0o644)
}

// Regenerate rebuilds the snapshot from the current files.
func (s *Store) Regenerate() error {
	sketches, err := s.ReadSketches()
	if err != nil {
		return err
	}
	folders, err := s.ReadFolders()
	if err != nil {
		return err
	}
	return s.project(sketches, folders)
}

func (s *Store) project(sketches []gallery.Sketch, folders []gallery.Folder) error {
	if s.projector == nil {
		return nil
	}
	if err := s.projector.Regenerate(sketches, folders); err != nil {
		return fmt.Errorf("failed to regenerate snapshot: %w", err)
	}
	return nil
}
