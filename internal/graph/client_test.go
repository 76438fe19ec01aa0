package graph

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-token", WithBaseURL(srv.URL))
}

func TestGetItemByPath(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/me/drive/root:/Uploads/report%20final.pdf", r.URL.EscapedPath())
		_ = json.NewEncoder(w).Encode(DriveItem{ID: "item-1", Name: "report final.pdf", Size: 42})
	})

	item, err := client.GetItemByPath(context.Background(), "Uploads/report final.pdf")
	require.NoError(t, err)
	assert.Equal(t, "item-1", item.ID)
	assert.False(t, item.IsFolder())
}

func TestListRootChildrenFollowsPagination(t *testing.T) {
	var srv *httptest.Server
	calls := 0
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"value":           []DriveItem{{ID: "a", Name: "first", Folder: &FolderFacet{}}},
				"@odata.nextLink": srv.URL + "/me/drive/root/children?page=2",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value": []DriveItem{{ID: "b", Name: "second"}},
		})
	}))
	t.Cleanup(srv.Close)

	client := NewClient("test-token", WithBaseURL(srv.URL))
	items, err := client.ListRootChildren(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, calls)
	assert.True(t, items[0].IsFolder())
	assert.Equal(t, "second", items[1].Name)
}

func TestCreateRootFolderUsesRenameConflictBehavior(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "rename", body["@microsoft.graph.conflictBehavior"])
		assert.Equal(t, "Uploads", body["name"])
		_ = json.NewEncoder(w).Encode(DriveItem{ID: "folder-1", Name: "Uploads", Folder: &FolderFacet{}})
	})

	item, err := client.CreateRootFolder(context.Background(), "Uploads")
	require.NoError(t, err)
	assert.Equal(t, "folder-1", item.ID)
}

func TestUploadSmall(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/me/drive/root:/Uploads/notes.txt:/content", r.URL.EscapedPath())
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		payload, _ := io.ReadAll(r.Body)
		assert.Equal(t, "hello", string(payload))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(DriveItem{ID: "item-2", Name: "notes.txt", Size: 5})
	})

	item, err := client.UploadSmall(context.Background(), "Uploads", "notes.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "item-2", item.ID)
}

func TestChunkedUpload(t *testing.T) {
	var srv *httptest.Server
	var ranges []string
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, ":/createUploadSession"):
			_ = json.NewEncoder(w).Encode(UploadSession{UploadURL: srv.URL + "/upload/session-1"})
		case r.URL.Path == "/upload/session-1":
			ranges = append(ranges, r.Header.Get("Content-Range"))
			if strings.HasPrefix(r.Header.Get("Content-Range"), "bytes 0-") {
				w.WriteHeader(http.StatusAccepted)
				return
			}
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(DriveItem{ID: "item-3", Name: "big.bin", Size: 8})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient("test-token", WithBaseURL(srv.URL))
	ctx := context.Background()

	session, err := client.CreateUploadSession(ctx, "Uploads", "big.bin")
	require.NoError(t, err)

	first, err := client.UploadChunk(ctx, session.UploadURL, []byte("aaaa"), 0, 8)
	require.NoError(t, err)
	assert.False(t, first.Completed)

	last, err := client.UploadChunk(ctx, session.UploadURL, []byte("bbbb"), 4, 8)
	require.NoError(t, err)
	require.True(t, last.Completed)
	assert.Equal(t, "item-3", last.Item.ID)

	assert.Equal(t, []string{"bytes 0-3/8", "bytes 4-7/8"}, ranges)
}

func TestCreateUploadSessionRequiresUploadURL(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(UploadSession{})
	})

	_, err := client.CreateUploadSession(context.Background(), "Uploads", "big.bin")
	require.Error(t, err)
}

func TestCreateShareLink(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/drive/items/item-1/createLink", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "view", body["type"])
		assert.Equal(t, LinkScopeExistingAccess, body["scope"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"link": map[string]any{"webUrl": "https://share.example/abc"},
		})
	})

	link, err := client.CreateShareLink(context.Background(), "item-1", LinkScopeExistingAccess)
	require.NoError(t, err)
	assert.Equal(t, "https://share.example/abc", link)
}

func TestGetThumbnailURLEmptySet(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"value": []any{}})
	})

	url, err := client.GetThumbnailURL(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestSendChatMessage(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chats/chat-9/messages", r.URL.Path)
		var msg ChatMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, "html", msg.Body.ContentType)
		require.Len(t, msg.Attachments, 1)
		assert.Contains(t, msg.Body.Content, msg.Attachments[0].ID)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "msg-1"})
	})

	id, err := client.SendChatMessage(context.Background(), "chat-9", ChatMessage{
		Body: ItemBody{ContentType: "html", Content: `hi <attachment id="att-1"></attachment>`},
		Attachments: []ChatAttachment{{
			ID:          "att-1",
			ContentType: "reference",
			ContentURL:  "https://share.example/abc",
			Name:        "notes.txt",
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
		check  func(error) bool
	}{
		{"not found", http.StatusNotFound, "itemNotFound", IsNotFound},
		{"name conflict", http.StatusConflict, "nameAlreadyExists", IsNameConflict},
		{"quota", http.StatusInsufficientStorage, "quotaLimitReached", IsQuotaExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{"code": tt.code, "message": "nope"},
				})
			})

			_, err := client.GetItemByPath(context.Background(), "missing.txt")
			require.Error(t, err)
			assert.True(t, tt.check(err))
			assert.Contains(t, err.Error(), tt.code)
		})
	}
}

func TestAPIErrorNonJSONBody(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	})

	_, err := client.GetRootItem(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
}
