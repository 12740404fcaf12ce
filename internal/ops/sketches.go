package ops

import (
	"context"

	"github.com/hpungsan/showcase/internal/embedurl"
	"github.com/hpungsan/showcase/internal/errors"
	"github.com/hpungsan/showcase/internal/gallery"
	"github.com/hpungsan/showcase/internal/journal"
	"github.com/hpungsan/showcase/internal/slug"
)

// SketchInput contains the fields of a new sketch.
// An empty Week places the sketch in the default folder.
type SketchInput struct {
	Author      string `json:"author" validate:"required,notblank,max=100,nocontrol"`
	Title       string `json:"title" validate:"required,notblank,max=200,nocontrol"`
	Description string `json:"description" validate:"max=500,nocontrol"`
	URL         string `json:"url" validate:"required,httpurl"`
	Width       int    `json:"width" validate:"gte=1,lte=10000"`
	Height      int    `json:"height" validate:"gte=1,lte=10000"`
	Week        string `json:"week" validate:"omitempty,folderid"`
}

// SketchPatch contains the fields to change on an existing sketch (nil = keep).
type SketchPatch struct {
	Author      *string
	Title       *string
	Description *string
	URL         *string
	Width       *int
	Height      *int
	Week        *string
}

func (p SketchPatch) empty() bool {
	return p.Author == nil && p.Title == nil && p.Description == nil && p.URL == nil &&
		p.Width == nil && p.Height == nil && p.Week == nil
}

func (p SketchPatch) apply(in *SketchInput) {
	if p.Author != nil {
		in.Author = *p.Author
	}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.URL != nil {
		in.URL = *p.URL
	}
	if p.Width != nil {
		in.Width = *p.Width
	}
	if p.Height != nil {
		in.Height = *p.Height
	}
	if p.Week != nil {
		in.Week = *p.Week
	}
}

func inputOf(sk gallery.Sketch) SketchInput {
	return SketchInput{
		Author:      sk.Author,
		Title:       sk.Title,
		Description: sk.Description,
		URL:         sk.URL,
		Width:       sk.Width,
		Height:      sk.Height,
		Week:        sk.Week,
	}
}

// prepareSketch sanitizes and validates input, resolves its folder and
// normalizes its URL. skip is the index of the sketch being replaced, or -1.
func (s *Service) prepareSketch(in SketchInput, sketches []gallery.Sketch, folders []gallery.Folder, skip int) (gallery.Sketch, error) {
	in.Author = clean(in.Author)
	in.Title = clean(in.Title)
	in.Description = clean(in.Description)
	in.URL = clean(in.URL)
	in.Week = clean(in.Week)

	if err := s.validator.Struct(in); err != nil {
		return gallery.Sketch{}, err
	}

	week, err := resolveWeek(in.Week, folders)
	if err != nil {
		return gallery.Sketch{}, err
	}

	sk := gallery.Sketch{
		Author:      in.Author,
		Title:       in.Title,
		Description: in.Description,
		URL:         embedurl.Normalize(in.URL),
		Width:       in.Width,
		Height:      in.Height,
		Week:        week,
	}

	id := sk.Identity()
	if id == "" {
		return gallery.Sketch{}, errors.NewValidationFailed("title", "title and author must contain at least one letter or digit")
	}
	for i, other := range sketches {
		if i != skip && other.Identity() == id {
			return gallery.Sketch{}, errors.NewSlugConflict(id.String())
		}
	}

	return sk, nil
}

// resolveWeek returns week if a folder has that id, or the default folder's
// id when week is empty.
func resolveWeek(week string, folders []gallery.Folder) (string, error) {
	if week == "" {
		def, ok := gallery.DefaultFolder(folders)
		if !ok {
			return "", errors.NewFolderMismatch("")
		}
		return def.ID, nil
	}
	if gallery.FindFolder(folders, week) < 0 {
		return "", errors.NewFolderMismatch(week)
	}
	return week, nil
}

// CreateSketch validates and appends a new sketch.
func (s *Service) CreateSketch(ctx context.Context, in SketchInput) (*SketchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sketches, folders, err := s.readAll()
	if err != nil {
		return nil, err
	}

	sk, err := s.prepareSketch(in, sketches, folders, -1)
	if err != nil {
		return nil, err
	}

	if err := s.store.WriteSketches(append(sketches, sk)); err != nil {
		return nil, errors.NewInternal(err)
	}

	view := viewOf(sk)
	s.committed(ctx, journal.SketchCreated, view.Slug, "")
	return &view, nil
}

// UpdateSketch applies patch to the sketch currently deriving id.
// The slug changes when the title or author does.
func (s *Service) UpdateSketch(ctx context.Context, id slug.Identity, patch SketchPatch) (*SketchView, error) {
	if id == "" {
		return nil, errors.NewInvalidRequest("slug is required")
	}
	if patch.empty() {
		return nil, errors.NewInvalidRequest("at least one field must be provided")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sketches, folders, err := s.readAll()
	if err != nil {
		return nil, err
	}

	idx := gallery.FindSketch(sketches, id)
	if idx < 0 {
		return nil, errors.NewNotFound("sketch", id.String())
	}

	in := inputOf(sketches[idx])
	patch.apply(&in)

	sk, err := s.prepareSketch(in, sketches, folders, idx)
	if err != nil {
		return nil, err
	}

	updated := make([]gallery.Sketch, len(sketches))
	copy(updated, sketches)
	updated[idx] = sk
	if err := s.store.WriteSketches(updated); err != nil {
		return nil, errors.NewInternal(err)
	}

	view := viewOf(sk)
	detail := ""
	if view.Slug != id.String() {
		detail = view.Slug
	}
	s.committed(ctx, journal.SketchUpdated, id.String(), detail)
	return &view, nil
}

// DeleteSketch removes the sketch currently deriving id.
func (s *Service) DeleteSketch(ctx context.Context, id slug.Identity) (*DeleteOutput, error) {
	if id == "" {
		return nil, errors.NewInvalidRequest("slug is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sketches, err := s.store.ReadSketches()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	idx := gallery.FindSketch(sketches, id)
	if idx < 0 {
		return nil, errors.NewNotFound("sketch", id.String())
	}

	remaining := make([]gallery.Sketch, 0, len(sketches)-1)
	remaining = append(remaining, sketches[:idx]...)
	remaining = append(remaining, sketches[idx+1:]...)
	if err := s.store.WriteSketches(remaining); err != nil {
		return nil, errors.NewInternal(err)
	}

	s.committed(ctx, journal.SketchDeleted, id.String(), "")
	return &DeleteOutput{OK: true}, nil
}

// ListSketches returns every sketch with its slug, in store order.
func (s *Service) ListSketches() ([]SketchView, error) {
	sketches, err := s.store.ReadSketches()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	views := make([]SketchView, 0, len(sketches))
	for _, sk := range sketches {
		views = append(views, viewOf(sk))
	}
	return views, nil
}

// GetSketch returns the sketch currently deriving id.
func (s *Service) GetSketch(id slug.Identity) (*SketchView, error) {
	if id == "" {
		return nil, errors.NewInvalidRequest("slug is required")
	}
	sketches, err := s.store.ReadSketches()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	idx := gallery.FindSketch(sketches, id)
	if idx < 0 {
		return nil, errors.NewNotFound("sketch", id.String())
	}
	view := viewOf(sketches[idx])
	return &view, nil
}

func (s *Service) readAll() ([]gallery.Sketch, []gallery.Folder, error) {
	sketches, err := s.store.ReadSketches()
	if err != nil {
		return nil, nil, errors.NewInternal(err)
	}
	folders, err := s.store.ReadFolders()
	if err != nil {
		return nil, nil, errors.NewInternal(err)
	}
	return sketches, folders, nil
}
