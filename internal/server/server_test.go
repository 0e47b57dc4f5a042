package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maruel/ksid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteleaf/noteleaf/internal/blob"
	"github.com/noteleaf/noteleaf/internal/content"
	"github.com/noteleaf/noteleaf/internal/server/dto"
	"github.com/noteleaf/noteleaf/internal/server/ratelimit"
	"github.com/noteleaf/noteleaf/internal/storage/sqlite"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type apiTest struct {
	ts    *httptest.Server
	owner ksid.ID
	token string
}

func newAPITest(t *testing.T, opts func(*Options)) *apiTest {
	t.Helper()
	store, err := sqlite.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.DiscardHandler)
	svc := content.NewService(content.Options{
		Store:         store,
		Blobs:         blob.NewMemStore(),
		Logger:        logger,
		MaxUploadSize: 1 << 20,
		PresignTTL:    15 * time.Minute,
	})

	serverOpts := Options{
		Service:      svc,
		JWTSecret:    testSecret,
		Logger:       logger,
		MaxBodyBytes: 2 << 20,
	}
	if opts != nil {
		opts(&serverOpts)
	}
	ts := httptest.NewServer(New(serverOpts).Router())
	t.Cleanup(ts.Close)

	owner := ksid.NewID()
	return &apiTest{ts: ts, owner: owner, token: signToken(t, owner)}
}

func signToken(t *testing.T, owner ksid.ID) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": owner.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

// do sends an authenticated JSON request and decodes the response body into
// out when the status matches.
func (a *apiTest) do(t *testing.T, method, path string, body, out any, wantStatus int) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.ts.URL+path, buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+a.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode, "body: %s", raw)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out))
	}
}

func TestHealthzUnauthenticated(t *testing.T) {
	a := newAPITest(t, nil)
	resp, err := http.Get(a.ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hr dto.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hr))
	assert.Equal(t, "ok", hr.Status)
}

func TestAuthRequired(t *testing.T) {
	a := newAPITest(t, nil)

	resp, err := http.Get(a.ts.URL + "/api/v1/nodes")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// A token signed with the wrong secret is rejected too.
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": a.owner.String()})
	bad, err := tok.SignedString([]byte("another-secret-another-secret-xx"))
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, a.ts.URL+"/api/v1/nodes", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+bad)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestNodeLifecycleOverHTTP(t *testing.T) {
	a := newAPITest(t, nil)

	var folder dto.NodeResponse
	a.do(t, http.MethodPost, "/api/v1/nodes",
		dto.CreateNodeRequest{Title: "Projects"}, &folder, http.StatusOK)
	require.NotNil(t, folder.Node)
	assert.Equal(t, "Projects", folder.Node.Title)
	assert.Equal(t, "projects", folder.Node.Slug)

	var child dto.NodeResponse
	a.do(t, http.MethodPost, "/api/v1/nodes",
		dto.CreateNodeRequest{Title: "Plan", ParentID: folder.Node.ID.String()},
		&child, http.StatusOK)
	assert.Equal(t, folder.Node.ID, child.Node.ParentID)

	var roots dto.NodeListResponse
	a.do(t, http.MethodGet, "/api/v1/nodes", nil, &roots, http.StatusOK)
	require.Len(t, roots.Nodes, 1)

	var children dto.NodeListResponse
	a.do(t, http.MethodGet, "/api/v1/nodes/"+folder.Node.ID.String()+"/children",
		nil, &children, http.StatusOK)
	require.Len(t, children.Nodes, 1)
	assert.Equal(t, child.Node.ID, children.Nodes[0].ID)

	var renamed dto.NodeResponse
	a.do(t, http.MethodPatch, "/api/v1/nodes/"+child.Node.ID.String(),
		dto.RenameNodeRequest{Title: "Roadmap"}, &renamed, http.StatusOK)
	assert.Equal(t, "Roadmap", renamed.Node.Title)

	var deleted dto.DeleteNodeResponse
	a.do(t, http.MethodDelete, "/api/v1/nodes/"+folder.Node.ID.String(),
		nil, &deleted, http.StatusOK)
	assert.True(t, deleted.Deleted)

	a.do(t, http.MethodGet, "/api/v1/nodes/"+folder.Node.ID.String(),
		nil, nil, http.StatusNotFound)
}

func TestMoveAndDuplicateOverHTTP(t *testing.T) {
	a := newAPITest(t, nil)

	var src, dst, note dto.NodeResponse
	a.do(t, http.MethodPost, "/api/v1/nodes", dto.CreateNodeRequest{Title: "Src"}, &src, http.StatusOK)
	a.do(t, http.MethodPost, "/api/v1/nodes", dto.CreateNodeRequest{Title: "Dst"}, &dst, http.StatusOK)
	a.do(t, http.MethodPost, "/api/v1/nodes",
		dto.CreateNodeRequest{Title: "Note", ParentID: src.Node.ID.String()},
		&note, http.StatusOK)

	var moved dto.NodeResponse
	a.do(t, http.MethodPost, "/api/v1/nodes/"+note.Node.ID.String()+"/move",
		dto.MoveNodeRequest{ParentID: dst.Node.ID.String(), Index: 0},
		&moved, http.StatusOK)
	assert.Equal(t, dst.Node.ID, moved.Node.ParentID)

	var dup dto.DuplicateNodesResponse
	a.do(t, http.MethodPost, "/api/v1/nodes/duplicate",
		dto.DuplicateNodesRequest{NodeIDs: []string{dst.Node.ID.String()}},
		&dup, http.StatusOK)
	require.Len(t, dup.Nodes, 1)
	assert.Equal(t, dst.Node.ID, dup.Nodes[0].OriginalID)
	assert.False(t, dup.Nodes[0].NewID.IsZero())
	assert.NotEqual(t, dst.Node.ID, dup.Nodes[0].NewID)
	assert.Equal(t, "Dst (Copy)", dup.Nodes[0].Title)
}

func TestUploadLifecycleOverHTTP(t *testing.T) {
	a := newAPITest(t, nil)

	var ticket dto.InitiateUploadResponse
	a.do(t, http.MethodPost, "/api/v1/uploads",
		dto.InitiateUploadRequest{FileName: "photo.jpg", MimeType: "image/jpeg", Size: 9},
		&ticket, http.StatusOK)
	assert.NotEmpty(t, ticket.UploadURL)
	assert.False(t, ticket.IsDuplicate)

	// The transfer never happens, so a success report settles as failed.
	var fin dto.FinalizeUploadResponse
	a.do(t, http.MethodPost, "/api/v1/uploads/"+ticket.NodeID.String()+"/finalize",
		dto.FinalizeUploadRequest{Success: true}, &fin, http.StatusOK)
	assert.Equal(t, "failed", string(fin.Status))

	var direct dto.NodeResponse
	a.do(t, http.MethodPost, "/api/v1/uploads/direct",
		dto.DirectUploadRequest{FileName: "notes.txt", MimeType: "text/plain", Data: []byte("hello")},
		&direct, http.StatusOK)
	assert.Equal(t, "notes.txt", direct.Node.Title)
}

func TestRequestValidationErrors(t *testing.T) {
	a := newAPITest(t, nil)

	// Missing title.
	a.do(t, http.MethodPost, "/api/v1/nodes", dto.CreateNodeRequest{}, nil, http.StatusBadRequest)

	// Unknown fields are rejected.
	req, err := http.NewRequest(http.MethodPost, a.ts.URL+"/api/v1/nodes",
		bytes.NewReader([]byte(`{"title":"x","bogus":true}`)))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+a.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Malformed node IDs.
	a.do(t, http.MethodGet, "/api/v1/nodes/not-an-id", nil, nil, http.StatusBadRequest)
}

func TestErrorBodyShape(t *testing.T) {
	a := newAPITest(t, nil)

	var errResp dto.ErrorResponse
	a.do(t, http.MethodGet, "/api/v1/nodes/"+ksid.NewID().String(), nil, &errResp, http.StatusNotFound)
	assert.Equal(t, "NOT_FOUND", string(errResp.Error.Code))
	assert.NotEmpty(t, errResp.Error.Message)
}

func TestOwnerIsolationOverHTTP(t *testing.T) {
	a := newAPITest(t, nil)

	var folder dto.NodeResponse
	a.do(t, http.MethodPost, "/api/v1/nodes", dto.CreateNodeRequest{Title: "Mine"}, &folder, http.StatusOK)

	// A different owner cannot see the node.
	other := *a
	other.token = signToken(t, ksid.NewID())
	other.do(t, http.MethodGet, "/api/v1/nodes/"+folder.Node.ID.String(), nil, nil, http.StatusForbidden)

	var roots dto.NodeListResponse
	other.do(t, http.MethodGet, "/api/v1/nodes", nil, &roots, http.StatusOK)
	assert.Empty(t, roots.Nodes)
}

func TestRateLimitHeaders(t *testing.T) {
	limiter := ratelimit.NewLimiter(1, 2)
	defer limiter.Close()
	a := newAPITest(t, func(o *Options) { o.Limiter = limiter })

	get := func() *http.Response {
		req, err := http.NewRequest(http.MethodGet, a.ts.URL+"/api/v1/nodes", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+a.token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := get()
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Limit"))

	// Burst exhausted after two requests.
	resp = get()
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	resp = get()
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}
