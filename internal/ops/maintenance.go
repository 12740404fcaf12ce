package ops

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"

	"go.uber.org/zap"

	"github.com/hpungsan/showcase/internal/errors"
	"github.com/hpungsan/showcase/internal/gallery"
	"github.com/hpungsan/showcase/internal/journal"
	"github.com/hpungsan/showcase/internal/projector"
	"github.com/hpungsan/showcase/internal/validate"
)

// Snapshot returns the projected gallery as last written. If the file is
// missing it is regenerated first.
func (s *Service) Snapshot() (*projector.Snapshot, error) {
	snap, err := projector.Load(s.projector.Path())
	if err == nil {
		return snap, nil
	}
	if !stderrors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("snapshot unreadable; rebuilding from record files", zap.Error(err))
	}

	sketches, folders, err := s.readAll()
	if err != nil {
		return nil, err
	}
	snap, err = s.projector.Build(sketches, folders)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return snap, nil
}

// RegenerateOutput is returned by Regenerate.
type RegenerateOutput struct {
	Path     string `json:"path"`
	Sketches int    `json:"sketches"`
	Folders  int    `json:"folders"`
}

// Regenerate rewrites the snapshot from the record files.
func (s *Service) Regenerate() (*RegenerateOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sketches, folders, err := s.readAll()
	if err != nil {
		return nil, err
	}
	if err := s.projector.Regenerate(sketches, folders); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &RegenerateOutput{
		Path:     s.projector.Path(),
		Sketches: len(sketches),
		Folders:  len(folders),
	}, nil
}

// HistoryOutput is returned by History.
type HistoryOutput struct {
	Entries []journal.Entry `json:"entries"`
	Limit   int             `json:"limit"`
}

// History returns recent mutations, newest first.
func (s *Service) History(ctx context.Context, limit int) (*HistoryOutput, error) {
	limit = journal.ClampLimit(limit)
	if s.history == nil {
		return &HistoryOutput{Entries: []journal.Entry{}, Limit: limit}, nil
	}
	entries, err := s.history.Recent(ctx, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &HistoryOutput{Entries: entries, Limit: limit}, nil
}

// Issue kinds reported by Check.
const (
	IssueDuplicateSlug   = "duplicate_slug"
	IssueEmptySlug       = "empty_slug"
	IssueUnknownWeek     = "unknown_week"
	IssueDefaultCount    = "default_count"
	IssueInvalidFolderID = "invalid_folder_id"
	IssueDuplicateFolder = "duplicate_folder"
)

// Issue is one invariant violation found in the record files.
type Issue struct {
	Kind    string `json:"kind"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

// CheckOutput is returned by Check.
type CheckOutput struct {
	OK       bool    `json:"ok"`
	Sketches int     `json:"sketches"`
	Folders  int     `json:"folders"`
	Issues   []Issue `json:"issues"`
}

// Check reports invariant violations in the record files. Files edited by
// hand, or bootstrapped from an old artifact, can hold states the API refuses.
func (s *Service) Check() (*CheckOutput, error) {
	sketches, folders, err := s.readAll()
	if err != nil {
		return nil, err
	}
	issues := append(checkFolders(folders), checkSketches(sketches, folders)...)
	if issues == nil {
		issues = []Issue{}
	}
	return &CheckOutput{
		OK:       len(issues) == 0,
		Sketches: len(sketches),
		Folders:  len(folders),
		Issues:   issues,
	}, nil
}

func checkFolders(folders []gallery.Folder) []Issue {
	var issues []Issue
	seen := make(map[string]bool, len(folders))
	defaults := 0
	for _, f := range folders {
		if !validate.FolderID(f.ID) {
			issues = append(issues, Issue{Kind: IssueInvalidFolderID, Key: f.ID, Message: fmt.Sprintf("folder id %q is not valid", f.ID)})
		}
		if seen[f.ID] {
			issues = append(issues, Issue{Kind: IssueDuplicateFolder, Key: f.ID, Message: fmt.Sprintf("folder id %q appears more than once", f.ID)})
		}
		seen[f.ID] = true
		if f.IsDefault {
			defaults++
		}
	}
	if len(folders) > 0 && defaults != 1 {
		issues = append(issues, Issue{Kind: IssueDefaultCount, Key: fmt.Sprint(defaults), Message: fmt.Sprintf("expected exactly one default folder, found %d", defaults)})
	}
	return issues
}

func checkSketches(sketches []gallery.Sketch, folders []gallery.Folder) []Issue {
	var issues []Issue
	counts := make(map[string]int, len(sketches))
	order := make([]string, 0, len(sketches))
	for _, sk := range sketches {
		id := sk.Identity().String()
		if id == "" {
			issues = append(issues, Issue{Kind: IssueEmptySlug, Key: sk.Title, Message: fmt.Sprintf("sketch %q by %q derives an empty slug", sk.Title, sk.Author)})
			continue
		}
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
		if gallery.FindFolder(folders, sk.Week) < 0 {
			issues = append(issues, Issue{Kind: IssueUnknownWeek, Key: id, Message: fmt.Sprintf("sketch %s references unknown week %q", id, sk.Week)})
		}
	}
	for _, id := range order {
		if counts[id] > 1 {
			issues = append(issues, Issue{Kind: IssueDuplicateSlug, Key: id, Message: fmt.Sprintf("%d sketches derive slug %s", counts[id], id)})
		}
	}
	return issues
}
