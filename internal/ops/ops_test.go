package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/showcase/internal/errors"
	"github.com/hpungsan/showcase/internal/gallery"
	"github.com/hpungsan/showcase/internal/journal"
	"github.com/hpungsan/showcase/internal/projector"
	"github.com/hpungsan/showcase/internal/slug"
	"github.com/hpungsan/showcase/internal/store"
)

func newTestService(t *testing.T, opts ...Option) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	proj := projector.New(filepath.Join(dir, projector.FileName))
	st := store.New(dir, proj, nil)
	return New(st, proj, opts...), dir
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func frogInput() SketchInput {
	return SketchInput{
		Author:      "Elif Erpulat",
		Title:       "Frog",
		Description: "A frog.",
		URL:         "https://editor.p5js.org/elif/sketches/abc123",
		Width:       400,
		Height:      400,
	}
}

func mustFolder(t *testing.T, svc *Service, id, name string) {
	t.Helper()
	_, err := svc.CreateFolder(context.Background(), FolderInput{ID: id, Name: name})
	require.NoError(t, err)
}

// memHistory is an in-memory History.
type memHistory struct {
	entries []journal.Entry
	ctxErrs []error
	err     error
}

func (m *memHistory) Record(ctx context.Context, action journal.Action, target, detail string) (journal.Entry, error) {
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	if m.err != nil {
		return journal.Entry{}, m.err
	}
	e := journal.Entry{Action: action, Target: target, Detail: detail}
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *memHistory) Recent(_ context.Context, limit int) ([]journal.Entry, error) {
	out := []journal.Entry{}
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func TestCreateSketch(t *testing.T) {
	svc, dir := newTestService(t)
	ctx := context.Background()
	mustFolder(t, svc, "week-1", "Week 1")

	view, err := svc.CreateSketch(ctx, frogInput())
	require.NoError(t, err)
	require.Equal(t, "frog-erpulat", view.Slug)
	require.Equal(t, "https://editor.p5js.org/elif/full/abc123", view.URL)
	require.Equal(t, "week-1", view.Week, "empty week falls back to the default folder")

	list, err := svc.ListSketches()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, *view, list[0])

	snap, err := projector.Load(filepath.Join(dir, projector.FileName))
	require.NoError(t, err)
	require.Len(t, snap.Weeks[0].Sketches, 1)
}

func TestCreateSketch_SanitizesAndTrims(t *testing.T) {
	svc, _ := newTestService(t)
	mustFolder(t, svc, "week-1", "Week 1")

	in := frogInput()
	in.Title = "  Frog<script>alert(1)</script>  "
	in.Description = "Hops.\x00"
	view, err := svc.CreateSketch(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "Frog", view.Title)
	require.Equal(t, "Hops.", view.Description)
}

func TestCreateSketch_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	mustFolder(t, svc, "week-1", "Week 1")

	tests := []struct {
		name  string
		edit  func(*SketchInput)
		field string
	}{
		{"zero width", func(in *SketchInput) { in.Width = 0 }, "width"},
		{"huge height", func(in *SketchInput) { in.Height = 10001 }, "height"},
		{"blank author", func(in *SketchInput) { in.Author = "   " }, "author"},
		{"script-only title", func(in *SketchInput) { in.Title = "<script>x</script>" }, "title"},
		{"long description", func(in *SketchInput) { in.Description = strings.Repeat("a", 501) }, "description"},
		{"bad url", func(in *SketchInput) { in.URL = "javascript:alert(1)" }, "url"},
		{"bad week", func(in *SketchInput) { in.Week = "Week 1" }, "week"},
		{"no slug characters", func(in *SketchInput) { in.Title = "!!!"; in.Author = "???" }, "title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := frogInput()
			tt.edit(&in)
			_, err := svc.CreateSketch(context.Background(), in)
			require.True(t, errors.Is(err, errors.ErrValidationFailed), "got %v", err)
			require.Equal(t, tt.field, errors.As(err).Details["field"])
		})
	}
}

func TestCreateSketch_DuplicateSlug(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustFolder(t, svc, "week-1", "Week 1")

	_, err := svc.CreateSketch(ctx, frogInput())
	require.NoError(t, err)

	dup := frogInput()
	dup.Author = "Deniz Erpulat"
	_, err = svc.CreateSketch(ctx, dup)
	require.True(t, errors.Is(err, errors.ErrSlugConflict), "got %v", err)

	list, err := svc.ListSketches()
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestCreateSketch_FolderMismatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateSketch(ctx, frogInput())
	require.True(t, errors.Is(err, errors.ErrFolderMismatch), "no folders at all")

	mustFolder(t, svc, "week-1", "Week 1")
	in := frogInput()
	in.Week = "week-9"
	_, err = svc.CreateSketch(ctx, in)
	require.True(t, errors.Is(err, errors.ErrFolderMismatch))
}

func TestUpdateSketch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustFolder(t, svc, "week-1", "Week 1")
	mustFolder(t, svc, "week-2", "Week 2")

	_, err := svc.CreateSketch(ctx, frogInput())
	require.NoError(t, err)

	view, err := svc.UpdateSketch(ctx, slug.Parse("FROG-ERPULAT"), SketchPatch{
		Title: strPtr("Toad"),
		Week:  strPtr("week-2"),
		URL:   strPtr("https://openprocessing.org/sketch/42"),
	})
	require.NoError(t, err)
	require.Equal(t, "toad-erpulat", view.Slug)
	require.Equal(t, "week-2", view.Week)
	require.Equal(t, "https://openprocessing.org/sketch/42/embed", view.URL)
	require.Equal(t, 400, view.Width)

	_, err = svc.GetSketch("frog-erpulat")
	require.True(t, errors.Is(err, errors.ErrNotFound), "old slug no longer resolves")

	got, err := svc.GetSketch("toad-erpulat")
	require.NoError(t, err)
	require.Equal(t, "A frog.", got.Description)
}

func TestUpdateSketch_SelfIsNotAConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustFolder(t, svc, "week-1", "Week 1")
	_, err := svc.CreateSketch(ctx, frogInput())
	require.NoError(t, err)

	view, err := svc.UpdateSketch(ctx, "frog-erpulat", SketchPatch{Width: intPtr(800)})
	require.NoError(t, err)
	require.Equal(t, 800, view.Width)
}

func TestUpdateSketch_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustFolder(t, svc, "week-1", "Week 1")
	_, err := svc.CreateSketch(ctx, frogInput())
	require.NoError(t, err)
	other := frogInput()
	other.Title = "Waves"
	_, err = svc.CreateSketch(ctx, other)
	require.NoError(t, err)

	_, err = svc.UpdateSketch(ctx, "missing-nobody", SketchPatch{Width: intPtr(10)})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = svc.UpdateSketch(ctx, "waves-erpulat", SketchPatch{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = svc.UpdateSketch(ctx, "waves-erpulat", SketchPatch{Title: strPtr("Frog")})
	require.True(t, errors.Is(err, errors.ErrSlugConflict))

	_, err = svc.UpdateSketch(ctx, "waves-erpulat", SketchPatch{Height: intPtr(0)})
	require.True(t, errors.Is(err, errors.ErrValidationFailed))

	_, err = svc.UpdateSketch(ctx, "waves-erpulat", SketchPatch{Week: strPtr("week-7")})
	require.True(t, errors.Is(err, errors.ErrFolderMismatch))
}

func TestDeleteSketch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustFolder(t, svc, "week-1", "Week 1")
	_, err := svc.CreateSketch(ctx, frogInput())
	require.NoError(t, err)

	out, err := svc.DeleteSketch(ctx, "frog-erpulat")
	require.NoError(t, err)
	require.True(t, out.OK)

	_, err = svc.DeleteSketch(ctx, "frog-erpulat")
	require.True(t, errors.Is(err, errors.ErrNotFound))

	list, err := svc.ListSketches()
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestSlugsStayUnique(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustFolder(t, svc, "week-1", "Week 1")

	titles := []string{"Frog", "Frog!", "frog", "Toad", "Çiçek", "Cicek"}
	for _, title := range titles {
		in := frogInput()
		in.Title = title
		_, _ = svc.CreateSketch(ctx, in)
	}
	_, _ = svc.UpdateSketch(ctx, "toad-erpulat", SketchPatch{Title: strPtr("FROG")})

	list, err := svc.ListSketches()
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, v := range list {
		require.False(t, seen[v.Slug], "duplicate slug %s", v.Slug)
		seen[v.Slug] = true
	}
	require.Len(t, list, 3)
}

func TestCreateFolder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateFolder(ctx, FolderInput{ID: "week-1", Name: " Week 1 "})
	require.NoError(t, err)
	require.True(t, first.IsDefault, "first folder becomes default")
	require.Equal(t, "Week 1", first.Name)

	second, err := svc.CreateFolder(ctx, FolderInput{ID: "week-2", Name: "Week 2"})
	require.NoError(t, err)
	require.False(t, second.IsDefault)

	_, err = svc.CreateFolder(ctx, FolderInput{ID: "week-3", Name: "Week 3", IsDefault: true})
	require.NoError(t, err)

	folders, err := svc.ListFolders()
	require.NoError(t, err)
	require.Equal(t, []gallery.Folder{
		{ID: "week-1", Name: "Week 1"},
		{ID: "week-2", Name: "Week 2"},
		{ID: "week-3", Name: "Week 3", IsDefault: true},
	}, folders)

	_, err = svc.CreateFolder(ctx, FolderInput{ID: "week-1", Name: "Again"})
	require.True(t, errors.Is(err, errors.ErrFolderExists))

	_, err = svc.CreateFolder(ctx, FolderInput{ID: "Week_4", Name: "Week 4"})
	require.True(t, errors.Is(err, errors.ErrValidationFailed))

	_, err = svc.CreateFolder(ctx, FolderInput{ID: "week-4", Name: ""})
	require.True(t, errors.Is(err, errors.ErrValidationFailed))
}

func TestUpdateFolder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustFolder(t, svc, "week-1", "Week 1")
	mustFolder(t, svc, "week-2", "Week 2")

	f, err := svc.UpdateFolder(ctx, "week-2", FolderPatch{Name: strPtr("Shapes"), IsDefault: boolPtr(true)})
	require.NoError(t, err)
	require.Equal(t, gallery.Folder{ID: "week-2", Name: "Shapes", IsDefault: true}, *f)

	folders, err := svc.ListFolders()
	require.NoError(t, err)
	require.False(t, folders[0].IsDefault)

	_, err = svc.UpdateFolder(ctx, "week-2", FolderPatch{IsDefault: boolPtr(false)})
	require.True(t, errors.Is(err, errors.ErrValidationFailed), "cannot demote the default")

	_, err = svc.UpdateFolder(ctx, "week-1", FolderPatch{IsDefault: boolPtr(false)})
	require.NoError(t, err, "clearing an already-clear flag is a no-op")

	_, err = svc.UpdateFolder(ctx, "week-2", FolderPatch{ID: strPtr("week-22")})
	require.True(t, errors.Is(err, errors.ErrValidationFailed))

	_, err = svc.UpdateFolder(ctx, "week-2", FolderPatch{ID: strPtr("week-2"), Name: strPtr("Week Two")})
	require.NoError(t, err)

	_, err = svc.UpdateFolder(ctx, "week-9", FolderPatch{Name: strPtr("x")})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = svc.UpdateFolder(ctx, "week-1", FolderPatch{Name: strPtr("bad\tname")})
	require.True(t, errors.Is(err, errors.ErrValidationFailed))
}

func TestDeleteFolder_InUse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustFolder(t, svc, "week-1", "Week 1")
	_, err := svc.CreateSketch(ctx, frogInput())
	require.NoError(t, err)

	_, err = svc.DeleteFolder(ctx, "week-1")
	require.True(t, errors.Is(err, errors.ErrFolderInUse))
	sErr := errors.As(err)
	require.Equal(t, 400, sErr.Status)
	require.Equal(t, 1, sErr.Details["sketchCount"])
}

func TestDeleteFolder_ReassignsDefault(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustFolder(t, svc, "week-1", "Week 1")
	mustFolder(t, svc, "week-2", "Week 2")
	mustFolder(t, svc, "week-3", "Week 3")

	out, err := svc.DeleteFolder(ctx, "week-1")
	require.NoError(t, err)
	require.True(t, out.OK)

	folders, err := svc.ListFolders()
	require.NoError(t, err)
	require.Len(t, folders, 2)
	defaults := 0
	for _, f := range folders {
		if f.IsDefault {
			defaults++
		}
	}
	require.Equal(t, 1, defaults)
	require.True(t, folders[0].IsDefault)
	require.Equal(t, "week-2", folders[0].ID)

	_, err = svc.DeleteFolder(ctx, "week-1")
	require.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = svc.DeleteFolder(ctx, "week-3")
	require.NoError(t, err)
	folders, err = svc.ListFolders()
	require.NoError(t, err)
	require.True(t, folders[0].IsDefault, "non-default delete leaves the default alone")
}

func TestHistoryAndHook(t *testing.T) {
	hist := &memHistory{}
	var seen []journal.Action
	svc, _ := newTestService(t, WithHistory(hist), WithMutationHook(func(_ context.Context, a journal.Action) {
		seen = append(seen, a)
	}))
	ctx := context.Background()

	mustFolder(t, svc, "week-1", "Week 1")
	_, err := svc.CreateSketch(ctx, frogInput())
	require.NoError(t, err)
	_, err = svc.UpdateSketch(ctx, "frog-erpulat", SketchPatch{Title: strPtr("Toad")})
	require.NoError(t, err)
	_, err = svc.DeleteSketch(ctx, "toad-erpulat")
	require.NoError(t, err)

	// Failed mutations are not journaled.
	_, err = svc.DeleteSketch(ctx, "toad-erpulat")
	require.Error(t, err)

	require.Equal(t, []journal.Action{journal.FolderCreated, journal.SketchCreated, journal.SketchUpdated, journal.SketchDeleted}, seen)

	out, err := svc.History(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, out.Limit)
	require.Len(t, out.Entries, 2)
	require.Equal(t, journal.SketchDeleted, out.Entries[0].Action)
	require.Equal(t, "frog-erpulat", out.Entries[1].Target)
	require.Equal(t, "toad-erpulat", out.Entries[1].Detail)
}

func TestHistory_FailureDoesNotFailMutation(t *testing.T) {
	hist := &memHistory{err: os.ErrPermission}
	svc, _ := newTestService(t, WithHistory(hist))
	mustFolder(t, svc, "week-1", "Week 1")
	_, err := svc.CreateSketch(context.Background(), frogInput())
	require.NoError(t, err)
}

func TestHistory_RecordedAfterCancel(t *testing.T) {
	hist := &memHistory{}
	svc, _ := newTestService(t, WithHistory(hist))
	mustFolder(t, svc, "week-1", "Week 1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.CreateSketch(ctx, frogInput())
	require.NoError(t, err)

	require.Len(t, hist.entries, 2)
	require.Equal(t, journal.SketchCreated, hist.entries[1].Action)
	for _, ctxErr := range hist.ctxErrs {
		require.NoError(t, ctxErr, "journal write must not see the caller's cancellation")
	}
}

func TestSnapshotFailureRollsBack(t *testing.T) {
	hist := &memHistory{}
	svc, dir := newTestService(t, WithHistory(hist))
	ctx := context.Background()
	mustFolder(t, svc, "week-1", "Week 1")

	snapPath := filepath.Join(dir, projector.FileName)
	require.NoError(t, os.Remove(snapPath))
	require.NoError(t, os.Mkdir(snapPath, 0o755))

	_, err := svc.CreateSketch(ctx, frogInput())
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrInternal), "got %v", err)

	list, err := svc.ListSketches()
	require.NoError(t, err)
	require.Empty(t, list, "failed write must not leave the sketch behind")
	require.Len(t, hist.entries, 1, "failed write is not journaled")

	_, err = svc.CreateFolder(ctx, FolderInput{ID: "week-2", Name: "Week 2"})
	require.Error(t, err)
	folders, err := svc.ListFolders()
	require.NoError(t, err)
	require.Len(t, folders, 1)

	// Once the snapshot path is writable again the same create succeeds
	// instead of reporting a conflict with the rolled-back record.
	require.NoError(t, os.Remove(snapPath))
	view, err := svc.CreateSketch(ctx, frogInput())
	require.NoError(t, err)
	require.Equal(t, "frog-erpulat", view.Slug)

	snap, err := projector.Load(snapPath)
	require.NoError(t, err)
	require.Len(t, snap.Sketches, 1)
}

func TestHistory_NoJournal(t *testing.T) {
	svc, _ := newTestService(t)
	out, err := svc.History(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, out.Entries)
	require.Equal(t, journal.DefaultLimit, out.Limit)
}

func TestSnapshotAndRegenerate(t *testing.T) {
	svc, dir := newTestService(t)
	ctx := context.Background()

	snap, err := svc.Snapshot()
	require.NoError(t, err, "missing snapshot is rebuilt in memory")
	require.Empty(t, snap.Sketches)

	mustFolder(t, svc, "week-1", "Week 1")
	_, err = svc.CreateSketch(ctx, frogInput())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, projector.FileName)))
	out, err := svc.Regenerate()
	require.NoError(t, err)
	require.Equal(t, 1, out.Sketches)
	require.Equal(t, 1, out.Folders)

	snap, err = svc.Snapshot()
	require.NoError(t, err)
	require.Equal(t, "week-1", snap.DefaultWeek)
	require.Equal(t, "frog-erpulat", snap.Sketches[0].Slug)
}

func TestCheck(t *testing.T) {
	svc, dir := newTestService(t)
	ctx := context.Background()
	mustFolder(t, svc, "week-1", "Week 1")
	_, err := svc.CreateSketch(ctx, frogInput())
	require.NoError(t, err)

	out, err := svc.Check()
	require.NoError(t, err)
	require.True(t, out.OK)
	require.Empty(t, out.Issues)

	// Hand-edited files can break every invariant the API enforces.
	sketches := `[
  {"author": "Elif Erpulat", "title": "Frog", "url": "https://x.org", "width": 1, "height": 1, "week": "week-1"},
  {"author": "Deniz Erpulat", "title": "Frog", "url": "https://x.org", "width": 1, "height": 1, "week": "week-9"}
]`
	folders := `[{"id": "week-1", "name": "Week 1", "isDefault": true}, {"id": "week-2", "name": "Week 2", "isDefault": true}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, store.SketchesFile), []byte(sketches), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, store.FoldersFile), []byte(folders), 0o644))

	out, err = svc.Check()
	require.NoError(t, err)
	require.False(t, out.OK)

	kinds := map[string]int{}
	for _, issue := range out.Issues {
		kinds[issue.Kind]++
	}
	require.Equal(t, map[string]int{
		IssueDefaultCount:  1,
		IssueUnknownWeek:   1,
		IssueDuplicateSlug: 1,
	}, kinds)
}
