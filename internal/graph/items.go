package graph

import (
	"context"
	"net/http"
)

// GetRootItem returns the drive root folder.
func (c *Client) GetRootItem(ctx context.Context) (*DriveItem, error) {
	var item DriveItem
	if err := c.do(ctx, http.MethodGet, "/me/drive/root", nil, "", &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItemByPath resolves a drive item by its path relative to the root.
func (c *Client) GetItemByPath(ctx context.Context, path string) (*DriveItem, error) {
	var item DriveItem
	if err := c.do(ctx, http.MethodGet, "/me/drive/root:/"+escapePath(path), nil, "", &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListRootChildren lists the drive root's children, following pagination.
func (c *Client) ListRootChildren(ctx context.Context) ([]DriveItem, error) {
	var items []DriveItem
	next := "/me/drive/root/children"
	for next != "" {
		var page struct {
			Value    []DriveItem `json:"value"`
			NextLink string      `json:"@odata.nextLink"`
		}
		if err := c.do(ctx, http.MethodGet, next, nil, "", &page); err != nil {
			return nil, err
		}
		items = append(items, page.Value...)
		next = page.NextLink
	}
	return items, nil
}

// CreateRootFolder creates a folder under the drive root. Conflict behavior
// is "rename": an existing folder with the same name is never overwritten.
func (c *Client) CreateRootFolder(ctx context.Context, name string) (*DriveItem, error) {
	body := map[string]any{
		"name":                              name,
		"folder":                            map[string]any{},
		"@microsoft.graph.conflictBehavior": "rename",
	}
	var item DriveItem
	if err := c.doJSON(ctx, http.MethodPost, "/me/drive/root/children", body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
