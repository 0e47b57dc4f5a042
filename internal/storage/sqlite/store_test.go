package sqlite

import (
	"testing"
	"time"

	"github.com/maruel/ksid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteleaf/noteleaf/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestNode(ownerID ksid.ID, title, slug string, parentID ksid.ID, position int) *models.Node {
	now := time.Now().UTC()
	return &models.Node{
		ID:       ksid.NewID(),
		OwnerID:  ownerID,
		Title:    title,
		Slug:     slug,
		ParentID: parentID,
		Position: position,
		Kind:     models.KindFolder,
		Created:  now,
		Modified: now,
	}
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, store.Path())
	require.NoError(t, store.Close())

	// Migrations must be idempotent: reopening the same directory works.
	store2, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store2.Close())
}

func TestCreateAndGetNode(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	owner := ksid.NewID()

	n := newTestNode(owner, "Notes", "notes", 0, 0)
	n.Kind = models.KindNote
	p := &models.Payload{
		Kind: models.KindNote,
		Note: &models.NotePayload{NodeID: n.ID, Content: "# Hello"},
	}
	require.NoError(t, store.CreateNodeWithPayload(ctx, n, p))

	got, err := store.GetNode(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, owner, got.OwnerID)
	assert.Equal(t, "Notes", got.Title)
	assert.Equal(t, models.KindNote, got.Kind)
	assert.True(t, got.ParentID.IsZero())

	gotP, err := store.GetPayload(ctx, got)
	require.NoError(t, err)
	require.NotNil(t, gotP.Note)
	assert.Equal(t, "# Hello", gotP.Note.Content)
}

func TestGetNodeNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetNode(t.Context(), ksid.NewID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSlugUniquePerOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	owner := ksid.NewID()

	a := newTestNode(owner, "A", "dup", 0, 0)
	require.NoError(t, store.CreateNodeWithPayload(ctx, a, nil))

	b := newTestNode(owner, "B", "dup", 0, 1)
	err := store.CreateNodeWithPayload(ctx, b, nil)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	// A different owner can reuse the slug.
	c := newTestNode(ksid.NewID(), "C", "dup", 0, 0)
	require.NoError(t, store.CreateNodeWithPayload(ctx, c, nil))
}

func TestListSiblingsOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	owner := ksid.NewID()

	// Same position for b and c: title breaks the tie byte-wise.
	a := newTestNode(owner, "alpha", "alpha", 0, 0)
	c := newTestNode(owner, "charlie", "charlie", 0, 1)
	b := newTestNode(owner, "bravo", "bravo", 0, 1)
	for _, n := range []*models.Node{a, c, b} {
		require.NoError(t, store.CreateNodeWithPayload(ctx, n, nil))
	}

	got, err := store.ListSiblings(ctx, owner, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "alpha", got[0].Title)
	assert.Equal(t, "bravo", got[1].Title)
	assert.Equal(t, "charlie", got[2].Title)
}

func TestApplyMoveRenumbersBothSets(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	owner := ksid.NewID()

	folder := newTestNode(owner, "Folder", "folder", 0, 0)
	require.NoError(t, store.CreateNodeWithPayload(ctx, folder, nil))
	a := newTestNode(owner, "a", "a", folder.ID, 0)
	b := newTestNode(owner, "b", "b", folder.ID, 1)
	require.NoError(t, store.CreateNodeWithPayload(ctx, a, nil))
	require.NoError(t, store.CreateNodeWithPayload(ctx, b, nil))

	// Move a to the root at the end: dest order becomes [folder, a].
	pos, err := store.ApplyMove(ctx, owner, a.ID, folder.ID, 0, 99)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	roots, err := store.ListSiblings(ctx, owner, 0)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, folder.ID, roots[0].ID)
	assert.Equal(t, a.ID, roots[1].ID)
	assert.Equal(t, 0, roots[0].Position)
	assert.Equal(t, 1, roots[1].Position)

	kids, err := store.ListSiblings(ctx, owner, folder.ID)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, b.ID, kids[0].ID)
	assert.Equal(t, 0, kids[0].Position)
}

func TestSoftDeleteNodes(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	owner := ksid.NewID()

	n := newTestNode(owner, "gone", "gone", 0, 0)
	require.NoError(t, store.CreateNodeWithPayload(ctx, n, nil))
	require.NoError(t, store.SoftDeleteNodes(ctx, []ksid.ID{n.ID}, time.Now().UTC()))

	_, err := store.GetNode(ctx, n.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The slug stays claimed after tombstoning.
	exists, err := store.SlugExists(ctx, owner, "gone")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFindReadyFileByChecksum(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	owner := ksid.NewID()
	now := time.Now().UTC()

	n := newTestNode(owner, "pic.png", "pic-png", 0, 0)
	n.Kind = models.KindFile
	f := &models.FilePayload{
		NodeID:     n.ID,
		FileName:   "pic.png",
		MimeType:   "image/png",
		Size:       42,
		Checksum:   "abc123",
		StorageKey: "uploads/x/y.png",
		Status:     models.UploadStatusReady,
		Created:    now,
		Modified:   now,
	}
	require.NoError(t, store.CreateNodeWithPayload(ctx, n, &models.Payload{Kind: models.KindFile, File: f}))

	got, err := store.FindReadyFileByChecksum(ctx, owner, "abc123", 42)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.NodeID)
	assert.Equal(t, "uploads/x/y.png", got.StorageKey)

	// Size must match too.
	_, err = store.FindReadyFileByChecksum(ctx, owner, "abc123", 43)
	assert.ErrorIs(t, err, ErrNotFound)

	// Other owners never match.
	_, err = store.FindReadyFileByChecksum(ctx, ksid.NewID(), "abc123", 42)
	assert.ErrorIs(t, err, ErrNotFound)

	// Uploading payloads never match.
	require.NoError(t, store.UpdateFileStatus(ctx, n.ID, models.UploadStatusUploading, ""))
	_, err = store.FindReadyFileByChecksum(ctx, owner, "abc123", 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateFileStatusAndMetadata(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	owner := ksid.NewID()
	now := time.Now().UTC()

	n := newTestNode(owner, "vid.mp4", "vid-mp4", 0, 0)
	n.Kind = models.KindFile
	f := &models.FilePayload{
		NodeID: n.ID, FileName: "vid.mp4", MimeType: "video/mp4", Size: 10,
		StorageKey: "k", Status: models.UploadStatusUploading, Created: now, Modified: now,
	}
	require.NoError(t, store.CreateNodeWithPayload(ctx, n, &models.Payload{Kind: models.KindFile, File: f}))

	require.NoError(t, store.UpdateFileStatus(ctx, n.ID, models.UploadStatusFailed, "timed out"))
	require.NoError(t, store.UpdateFileMetadata(ctx, n.ID, 640, 480, 12.5, "thumbs/k"))

	p, err := store.GetPayload(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusFailed, p.File.Status)
	assert.Equal(t, "timed out", p.File.ErrorMessage)
	assert.Equal(t, 640, p.File.Width)
	assert.Equal(t, 480, p.File.Height)
	assert.InDelta(t, 12.5, p.File.Duration, 0.001)
	assert.Equal(t, "thumbs/k", p.File.ThumbnailKey)

	assert.ErrorIs(t, store.UpdateFileStatus(ctx, ksid.NewID(), models.UploadStatusReady, ""), ErrNotFound)
}
