package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// itemContentPath builds the path-addressed content endpoint for a file name
// inside folderPath ("" means the drive root).
func itemContentPath(folderPath, name string) string {
	if folderPath == "" {
		return "/me/drive/root:/" + escapePath(name)
	}
	return "/me/drive/root:/" + escapePath(folderPath) + "/" + escapePath(name)
}

// UploadSmall uploads content in a single PUT. Suitable only for files at or
// below the platform's single-request limit; larger files must use an upload
// session.
func (c *Client) UploadSmall(ctx context.Context, folderPath, name string, content io.Reader) (*DriveItem, error) {
	var item DriveItem
	err := c.do(ctx, http.MethodPut, itemContentPath(folderPath, name)+":/content", content, "application/octet-stream", &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateUploadSession opens a chunked upload session for the given name with
// conflict behavior "rename".
func (c *Client) CreateUploadSession(ctx context.Context, folderPath, name string) (*UploadSession, error) {
	body := map[string]any{
		"item": map[string]any{
			"@microsoft.graph.conflictBehavior": "rename",
			"name":                              name,
		},
	}
	var session UploadSession
	err := c.doJSON(ctx, http.MethodPost, itemContentPath(folderPath, name)+":/createUploadSession", body, &session)
	if err != nil {
		return nil, err
	}
	if session.UploadURL == "" {
		return nil, fmt.Errorf("upload session created without an upload URL")
	}
	return &session, nil
}

// UploadChunk PUTs one byte range to an upload session. The service answers
// 202 while more ranges are expected and 200/201 with the finalized item on
// the last chunk.
func (c *Client) UploadChunk(ctx context.Context, uploadURL string, chunk []byte, offset, totalSize int64) (*ChunkResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(chunk))
	if err != nil {
		return nil, fmt.Errorf("build chunk request: %w", err)
	}
	end := offset + int64(len(chunk)) - 1
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, end, totalSize))
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload chunk at offset %d: %w", offset, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		return &ChunkResult{Completed: false}, nil
	case http.StatusOK, http.StatusCreated:
		var item DriveItem
		if err := decodeBody(resp.Body, &item); err != nil {
			return nil, fmt.Errorf("decode finalized item: %w", err)
		}
		return &ChunkResult{Completed: true, Item: &item}, nil
	default:
		return nil, parseAPIError(resp)
	}
}

func decodeBody(r io.Reader, out any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
