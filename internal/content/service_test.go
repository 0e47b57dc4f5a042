package content

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/maruel/ksid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteleaf/noteleaf/internal/blob"
	"github.com/noteleaf/noteleaf/internal/models"
	"github.com/noteleaf/noteleaf/internal/storage/sqlite"
)

type testEnv struct {
	svc   *Service
	blobs *blob.MemStore
	owner ksid.ID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	blobs := blob.NewMemStore()
	svc := NewService(Options{
		Store:         store,
		Blobs:         blobs,
		Logger:        slog.New(slog.DiscardHandler),
		MaxUploadSize: 1 << 20,
		PresignTTL:    15 * time.Minute,
	})
	return &testEnv{svc: svc, blobs: blobs, owner: ksid.NewID()}
}

func (e *testEnv) mustCreate(t *testing.T, ctx context.Context, parentID ksid.ID, title string, p *models.Payload) *models.Node {
	t.Helper()
	n, err := e.svc.CreateNode(ctx, CreateNodeRequest{
		OwnerID:  e.owner,
		ParentID: parentID,
		Title:    title,
		Payload:  p,
	})
	require.NoError(t, err)
	return n
}

func notePayload(content string) *models.Payload {
	return &models.Payload{Kind: models.KindNote, Note: &models.NotePayload{Content: content}}
}

func TestCreateNodeFolder(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()

	n := e.mustCreate(t, ctx, 0, "Projects", nil)
	assert.Equal(t, models.KindFolder, n.Kind)
	assert.Equal(t, "projects", n.Slug)
	assert.Equal(t, 0, n.Position)
	assert.Empty(t, n.Path)

	child := e.mustCreate(t, ctx, n.ID, "Roadmap", notePayload("# 2027"))
	assert.Equal(t, n.ID, child.ParentID)
	assert.Equal(t, n.ID.String(), child.Path)
	assert.Equal(t, 0, child.Position)

	got, p, err := e.svc.GetNode(ctx, e.owner, child.ID)
	require.NoError(t, err)
	assert.Equal(t, "Roadmap", got.Title)
	require.NotNil(t, p.Note)
	assert.Equal(t, "# 2027", p.Note.Content)
}

func TestCreateNodeTitleValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()

	_, err := e.svc.CreateNode(ctx, CreateNodeRequest{OwnerID: e.owner, Title: "   "})
	requireAPIError(t, err, models.ErrorCodeValidationFailed)

	_, err = e.svc.CreateNode(ctx, CreateNodeRequest{
		OwnerID: e.owner,
		Title:   strings.Repeat("x", models.MaxTitleLength+1),
	})
	requireAPIError(t, err, models.ErrorCodeValidationFailed)

	// Exactly at the limit is fine.
	_, err = e.svc.CreateNode(ctx, CreateNodeRequest{
		OwnerID: e.owner,
		Title:   strings.Repeat("x", models.MaxTitleLength),
	})
	require.NoError(t, err)
}

func TestCreateNodeParentChecks(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()

	_, err := e.svc.CreateNode(ctx, CreateNodeRequest{
		OwnerID: e.owner, ParentID: ksid.NewID(), Title: "orphan",
	})
	requireAPIError(t, err, models.ErrorCodeNotFound)

	note := e.mustCreate(t, ctx, 0, "A note", notePayload("text"))
	_, err = e.svc.CreateNode(ctx, CreateNodeRequest{
		OwnerID: e.owner, ParentID: note.ID, Title: "child",
	})
	requireAPIError(t, err, models.ErrorCodeValidationFailed)

	// Another owner's folder is off limits.
	folder := e.mustCreate(t, ctx, 0, "Mine", nil)
	_, err = e.svc.CreateNode(ctx, CreateNodeRequest{
		OwnerID: ksid.NewID(), ParentID: folder.ID, Title: "intruder",
	})
	requireAPIError(t, err, models.ErrorCodeForbidden)
}

func TestCreateNodeSlugSuffixes(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()

	a := e.mustCreate(t, ctx, 0, "Meeting Notes", nil)
	b := e.mustCreate(t, ctx, 0, "Meeting Notes", nil)
	c := e.mustCreate(t, ctx, 0, "Meeting Notes", nil)
	assert.Equal(t, "meeting-notes", a.Slug)
	assert.Equal(t, "meeting-notes-2", b.Slug)
	assert.Equal(t, "meeting-notes-3", c.Slug)
}

func TestCreateNodeConcurrentSameTitle(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()

	// Racing identical titles makes several goroutines settle on the same
	// slug candidate. The losers hit the unique index at insert time and
	// retry with a randomized slug, so every create still succeeds.
	const workers = 8
	var wg sync.WaitGroup
	nodes := make([]*models.Node, workers)
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nodes[i], errs[i] = e.svc.CreateNode(ctx, CreateNodeRequest{
				OwnerID: e.owner, Title: "Quarterly Report",
			})
		}()
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for i := range workers {
		require.NoError(t, errs[i], "create %d", i)
		slug := nodes[i].Slug
		assert.True(t, strings.HasPrefix(slug, "quarterly-report"), "slug %q", slug)
		assert.False(t, seen[slug], "slug %q allocated twice", slug)
		seen[slug] = true
	}
}

func TestCreateNodePayloadVariants(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()

	// Two variants set at once is rejected.
	_, err := e.svc.CreateNode(ctx, CreateNodeRequest{
		OwnerID: e.owner,
		Title:   "broken",
		Payload: &models.Payload{
			Kind: models.KindNote,
			Note: &models.NotePayload{Content: "a"},
			Code: &models.CodePayload{Content: "b"},
		},
	})
	requireAPIError(t, err, models.ErrorCodeValidationFailed)

	// Kind mismatching the populated variant is rejected.
	_, err = e.svc.CreateNode(ctx, CreateNodeRequest{
		OwnerID: e.owner,
		Title:   "mismatch",
		Payload: &models.Payload{Kind: models.KindCode, Note: &models.NotePayload{Content: "a"}},
	})
	requireAPIError(t, err, models.ErrorCodeValidationFailed)

	// Doc-shaped kinds carry the Doc variant.
	n, err := e.svc.CreateNode(ctx, CreateNodeRequest{
		OwnerID: e.owner,
		Title:   "Q3 goals",
		Payload: &models.Payload{Kind: models.KindGoal, Doc: &models.DocPayload{Body: `{"target":1}`}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.KindGoal, n.Kind)

	_, p, err := e.svc.GetNode(ctx, e.owner, n.ID)
	require.NoError(t, err)
	require.NotNil(t, p.Doc)
	assert.Equal(t, `{"target":1}`, p.Doc.Body)
}

func TestRenameNode(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()

	n := e.mustCreate(t, ctx, 0, "Old Name", nil)
	renamed, err := e.svc.RenameNode(ctx, e.owner, n.ID, "New Name")
	require.NoError(t, err)
	assert.Equal(t, "New Name", renamed.Title)
	assert.Equal(t, "new-name", renamed.Slug)

	got, _, err := e.svc.GetNode(ctx, e.owner, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Title)

	_, err = e.svc.RenameNode(ctx, e.owner, ksid.NewID(), "Whatever")
	requireAPIError(t, err, models.ErrorCodeNotFound)
}

func TestDeleteNodeSubtree(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()

	root := e.mustCreate(t, ctx, 0, "root", nil)
	mid := e.mustCreate(t, ctx, root.ID, "mid", nil)
	leaf := e.mustCreate(t, ctx, mid.ID, "leaf", notePayload("x"))
	other := e.mustCreate(t, ctx, 0, "survivor", nil)

	require.NoError(t, e.svc.DeleteNode(ctx, e.owner, root.ID))

	for _, id := range []ksid.ID{root.ID, mid.ID, leaf.ID} {
		_, _, err := e.svc.GetNode(ctx, e.owner, id)
		requireAPIError(t, err, models.ErrorCodeNotFound)
	}
	got, _, err := e.svc.GetNode(ctx, e.owner, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "survivor", got.Title)
}

func TestListChildrenOwnership(t *testing.T) {
	e := newTestEnv(t)
	ctx := t.Context()

	folder := e.mustCreate(t, ctx, 0, "folder", nil)
	e.mustCreate(t, ctx, folder.ID, "b", nil)
	e.mustCreate(t, ctx, folder.ID, "a", nil)

	kids, err := e.svc.ListChildren(ctx, e.owner, folder.ID)
	require.NoError(t, err)
	require.Len(t, kids, 2)
	// Creation order wins over title: positions were appended.
	assert.Equal(t, "b", kids[0].Title)
	assert.Equal(t, "a", kids[1].Title)

	_, err = e.svc.ListChildren(ctx, ksid.NewID(), folder.ID)
	requireAPIError(t, err, models.ErrorCodeForbidden)
}

func requireAPIError(t *testing.T, err error, code models.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	apiErr, ok := err.(*models.APIError)
	require.True(t, ok, "expected *models.APIError, got %T: %v", err, err)
	assert.Equal(t, code, apiErr.Code())
}
