package ops

import (
	"context"

	"github.com/hpungsan/showcase/internal/errors"
	"github.com/hpungsan/showcase/internal/gallery"
	"github.com/hpungsan/showcase/internal/journal"
)

// FolderInput contains the fields of a new folder.
type FolderInput struct {
	ID        string `json:"id" validate:"required,folderid"`
	Name      string `json:"name" validate:"required,notblank,max=100,nocontrol"`
	IsDefault bool   `json:"isDefault"`
}

// FolderPatch contains the fields to change on a folder (nil = keep).
// ID may be repeated but not changed.
type FolderPatch struct {
	ID        *string
	Name      *string
	IsDefault *bool
}

type folderName struct {
	Name string `json:"name" validate:"required,notblank,max=100,nocontrol"`
}

// CreateFolder appends a folder. The first folder becomes the default, and a
// folder created with IsDefault takes the flag from every other folder.
func (s *Service) CreateFolder(ctx context.Context, in FolderInput) (*gallery.Folder, error) {
	in.ID = clean(in.ID)
	in.Name = clean(in.Name)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	folders, err := s.store.ReadFolders()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if gallery.FindFolder(folders, in.ID) >= 0 {
		return nil, errors.NewFolderExists(in.ID)
	}

	f := gallery.Folder{
		ID:        in.ID,
		Name:      in.Name,
		IsDefault: in.IsDefault || len(folders) == 0,
	}
	if f.IsDefault {
		clearDefault(folders)
	}
	folders = append(folders, f)

	if err := s.store.WriteFolders(folders); err != nil {
		return nil, errors.NewInternal(err)
	}

	s.committed(ctx, journal.FolderCreated, f.ID, "")
	return &f, nil
}

// UpdateFolder renames a folder or promotes it to default. Demoting the
// current default is rejected; promote another folder instead.
func (s *Service) UpdateFolder(ctx context.Context, id string, patch FolderPatch) (*gallery.Folder, error) {
	if id == "" {
		return nil, errors.NewInvalidRequest("folder id is required")
	}
	if patch.ID != nil && clean(*patch.ID) != id {
		return nil, errors.NewValidationFailed("id", "folder ids cannot be changed")
	}

	var name string
	if patch.Name != nil {
		name = clean(*patch.Name)
		if err := s.validator.Struct(folderName{Name: name}); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	folders, err := s.store.ReadFolders()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	idx := gallery.FindFolder(folders, id)
	if idx < 0 {
		return nil, errors.NewNotFound("folder", id)
	}

	if patch.Name != nil {
		folders[idx].Name = name
	}
	if patch.IsDefault != nil {
		switch {
		case *patch.IsDefault:
			clearDefault(folders)
			folders[idx].IsDefault = true
		case folders[idx].IsDefault:
			return nil, errors.NewValidationFailed("isDefault", "promote another folder to default instead of clearing the flag")
		}
	}

	if err := s.store.WriteFolders(folders); err != nil {
		return nil, errors.NewInternal(err)
	}

	f := folders[idx]
	s.committed(ctx, journal.FolderUpdated, f.ID, "")
	return &f, nil
}

// DeleteFolder removes an unreferenced folder. If it was the default, the
// first remaining folder becomes the default.
func (s *Service) DeleteFolder(ctx context.Context, id string) (*DeleteOutput, error) {
	if id == "" {
		return nil, errors.NewInvalidRequest("folder id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sketches, folders, err := s.readAll()
	if err != nil {
		return nil, err
	}

	idx := gallery.FindFolder(folders, id)
	if idx < 0 {
		return nil, errors.NewNotFound("folder", id)
	}
	if n := gallery.CountInWeek(sketches, id); n > 0 {
		return nil, errors.NewFolderInUse(id, n)
	}

	wasDefault := folders[idx].IsDefault
	remaining := make([]gallery.Folder, 0, len(folders)-1)
	remaining = append(remaining, folders[:idx]...)
	remaining = append(remaining, folders[idx+1:]...)
	if wasDefault && len(remaining) > 0 {
		clearDefault(remaining)
		remaining[0].IsDefault = true
	}

	if err := s.store.WriteFolders(remaining); err != nil {
		return nil, errors.NewInternal(err)
	}

	s.committed(ctx, journal.FolderDeleted, id, "")
	return &DeleteOutput{OK: true}, nil
}

// ListFolders returns every folder in store order.
func (s *Service) ListFolders() ([]gallery.Folder, error) {
	folders, err := s.store.ReadFolders()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return folders, nil
}

func clearDefault(folders []gallery.Folder) {
	for i := range folders {
		folders[i].IsDefault = false
	}
}
