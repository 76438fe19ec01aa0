package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skilltreehq/mentor-platform/internal/graph"
	"github.com/skilltreehq/mentor-platform/pkg/logger"
)

func newTestPipeline(maxSize int64, folder string) *Pipeline {
	return NewPipeline(PipelineParams{
		MaxSizeBytes: maxSize,
		FolderName:   folder,
		Logger:       logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Output: io.Discard}),
	})
}

func newTestClient(t *testing.T, handler http.Handler) *graph.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return graph.NewClient("test-token", graph.WithBaseURL(srv.URL))
}

// driveHandler fakes the minimal drive surface the pipeline touches, with a
// folder that already exists.
func driveHandler(t *testing.T, onUpload func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		switch {
		case r.Method == http.MethodGet && p == "/me/drive/root:/Uploads":
			_ = json.NewEncoder(w).Encode(graph.DriveItem{ID: "folder-1", Name: "Uploads", Folder: &graph.FolderFacet{}})
		case r.Method == http.MethodPut && strings.HasSuffix(p, ":/content"):
			onUpload(w, r)
		default:
			t.Errorf("unexpected request %s %s", r.Method, p)
			w.WriteHeader(http.StatusTeapot)
		}
	}
}

func TestDeliverRejectsOversizeBeforeAnyRequest(t *testing.T) {
	var requests atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	pipeline := newTestPipeline(1024, "Uploads")

	_, err := pipeline.Deliver(context.Background(), client, UploadRequest{
		FileName: "big.bin",
		Size:     2048,
		Content:  bytes.NewReader(make([]byte, 2048)),
	})
	require.ErrorIs(t, err, ErrFileTooLarge)
	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, StageValidate, uploadErr.Stage)
	assert.Equal(t, CodeFileTooLarge, uploadErr.Code)
	assert.Zero(t, requests.Load())
}

func TestDeliverSimpleAtThreshold(t *testing.T) {
	var uploadedPath string
	client := newTestClient(t, driveHandler(t, func(w http.ResponseWriter, r *http.Request) {
		uploadedPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(graph.DriveItem{ID: "item-1", Name: "stored.bin", Size: int64(len(body)), WebURL: "https://drive.example/item-1"})
	}))
	pipeline := newTestPipeline(20<<20, "Uploads")

	payload := make([]byte, simpleUploadLimit)
	file, err := pipeline.Deliver(context.Background(), client, UploadRequest{
		FileName: "notes.bin",
		Size:     int64(len(payload)),
		Content:  bytes.NewReader(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, "item-1", file.ItemID)
	assert.Contains(t, uploadedPath, "/me/drive/root:/Uploads/")
	assert.Contains(t, uploadedPath, "_notes.bin:/content")
}

func TestDeliverChunkedAboveThreshold(t *testing.T) {
	var srv *httptest.Server
	var chunkRanges []string
	size := int64(simpleUploadLimit + 1)

	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		switch {
		case r.Method == http.MethodGet && p == "/me/drive/root:/Uploads":
			_ = json.NewEncoder(w).Encode(graph.DriveItem{ID: "folder-1", Name: "Uploads", Folder: &graph.FolderFacet{}})
		case r.Method == http.MethodPost && strings.HasSuffix(p, ":/createUploadSession"):
			_ = json.NewEncoder(w).Encode(graph.UploadSession{UploadURL: srv.URL + "/upload/session-1"})
		case r.Method == http.MethodPut && p == "/upload/session-1":
			chunkRanges = append(chunkRanges, r.Header.Get("Content-Range"))
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(graph.DriveItem{ID: "item-2", Name: "stored.bin", Size: size})
		default:
			t.Errorf("unexpected request %s %s", r.Method, p)
		}
	}))
	t.Cleanup(srv.Close)

	client := graph.NewClient("test-token", graph.WithBaseURL(srv.URL))
	pipeline := newTestPipeline(20<<20, "Uploads")

	file, err := pipeline.Deliver(context.Background(), client, UploadRequest{
		FileName: "big.bin",
		Size:     size,
		Content:  bytes.NewReader(make([]byte, size)),
	})
	require.NoError(t, err)
	assert.Equal(t, "item-2", file.ItemID)
	require.Len(t, chunkRanges, 1, "payload fits one chunk")
	assert.Equal(t, "bytes 0-4194304/4194305", chunkRanges[0])
}

func TestDeliverRetriesNameCollisionOnce(t *testing.T) {
	var names []string
	client := newTestClient(t, driveHandler(t, func(w http.ResponseWriter, r *http.Request) {
		names = append(names, r.URL.Path)
		if len(names) == 1 {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": "nameAlreadyExists", "message": "exists"},
			})
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(graph.DriveItem{ID: "item-3", Name: "stored.txt"})
	}))
	pipeline := newTestPipeline(20<<20, "Uploads")

	file, err := pipeline.Deliver(context.Background(), client, UploadRequest{
		FileName: "notes.txt",
		Size:     5,
		Content:  strings.NewReader("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "item-3", file.ItemID)
	require.Len(t, names, 2)
	assert.NotEqual(t, names[0], names[1])
}

func TestDeliverFallsBackToRootWhenFolderUnavailable(t *testing.T) {
	var uploadedPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		switch {
		case r.Method == http.MethodGet && p == "/me/drive/root:/Uploads":
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": "itemNotFound", "message": "missing"}})
		case r.Method == http.MethodGet && p == "/me/drive/root/children":
			_ = json.NewEncoder(w).Encode(map[string]any{"value": []graph.DriveItem{}})
		case r.Method == http.MethodPost && p == "/me/drive/root/children":
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": "accessDenied", "message": "no"}})
		case r.Method == http.MethodPut && strings.HasSuffix(p, ":/content"):
			uploadedPath = p
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(graph.DriveItem{ID: "item-4", Name: "stored.txt"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, p)
		}
	}))
	pipeline := newTestPipeline(20<<20, "Uploads")

	file, err := pipeline.Deliver(context.Background(), client, UploadRequest{
		FileName: "notes.txt",
		Size:     5,
		Content:  strings.NewReader("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "item-4", file.ItemID)
	assert.NotContains(t, uploadedPath, "Uploads")
}

func TestDeliverChunkedStopsOnCancellation(t *testing.T) {
	var srv *httptest.Server
	var chunkPuts atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())

	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		switch {
		case r.Method == http.MethodGet && p == "/me/drive/root:/Uploads":
			_ = json.NewEncoder(w).Encode(graph.DriveItem{ID: "folder-1", Name: "Uploads", Folder: &graph.FolderFacet{}})
		case r.Method == http.MethodPost && strings.HasSuffix(p, ":/createUploadSession"):
			cancel()
			_ = json.NewEncoder(w).Encode(graph.UploadSession{UploadURL: srv.URL + "/upload/session-1"})
		case r.Method == http.MethodPut && p == "/upload/session-1":
			chunkPuts.Add(1)
			w.WriteHeader(http.StatusAccepted)
		default:
			t.Errorf("unexpected request %s %s", r.Method, p)
		}
	}))
	t.Cleanup(srv.Close)

	client := graph.NewClient("test-token", graph.WithBaseURL(srv.URL))
	pipeline := newTestPipeline(20<<20, "Uploads")

	size := int64(simpleUploadLimit + 1)
	_, err := pipeline.Deliver(ctx, client, UploadRequest{
		FileName: "big.bin",
		Size:     size,
		Content:  bytes.NewReader(make([]byte, size)),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, chunkPuts.Load(), "no byte range is sent after cancellation")
}

func TestResolveShareableLinkFallsThroughTiers(t *testing.T) {
	var scopes []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		scopes = append(scopes, body["scope"])
		if body["scope"] != graph.LinkScopeOrganization {
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": "accessDenied", "message": "policy"}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"link": map[string]string{"webUrl": "https://share.example/org"}})
	}))
	pipeline := newTestPipeline(20<<20, "Uploads")

	link := pipeline.ResolveShareableLink(context.Background(), client, &UploadedFile{
		ItemID: "item-1", Name: "notes.txt", WebURL: "https://drive.example/item-1",
	})
	assert.Equal(t, "https://share.example/org", link.URL)
	assert.Equal(t, TierOrganization, link.Tier)
	assert.Equal(t, []string{
		graph.LinkScopeExistingAccess,
		graph.LinkScopeAnonymous,
		graph.LinkScopeOrganization,
	}, scopes)
}

func TestResolveShareableLinkUsesWebURLFloor(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": "accessDenied", "message": "policy"}})
	}))
	pipeline := newTestPipeline(20<<20, "Uploads")

	link := pipeline.ResolveShareableLink(context.Background(), client, &UploadedFile{
		ItemID: "item-1", Name: "notes.txt", WebURL: "https://drive.example/item-1",
	})
	assert.Equal(t, "https://drive.example/item-1", link.URL)
	assert.Equal(t, TierWebURL, link.Tier)
}
