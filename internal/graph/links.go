package graph

import (
	"context"
	"net/http"
)

// Sharing link scopes accepted by CreateShareLink.
const (
	LinkScopeExistingAccess = "existingAccess"
	LinkScopeAnonymous      = "anonymous"
	LinkScopeOrganization   = "organization"
)

// CreateShareLink asks the platform for a view link with the given scope.
// Tenant policy may forbid a scope; that surfaces as an APIError the caller
// is expected to absorb.
func (c *Client) CreateShareLink(ctx context.Context, itemID, scope string) (string, error) {
	body := map[string]any{
		"type":  "view",
		"scope": scope,
	}
	var out struct {
		Link struct {
			WebURL string `json:"webUrl"`
		} `json:"link"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/me/drive/items/"+itemID+"/createLink", body, &out)
	if err != nil {
		return "", err
	}
	return out.Link.WebURL, nil
}

// GetThumbnailURL returns a medium thumbnail URL for the item, or "" when the
// platform has none.
func (c *Client) GetThumbnailURL(ctx context.Context, itemID string) (string, error) {
	var out struct {
		Value []struct {
			Medium struct {
				URL string `json:"url"`
			} `json:"medium"`
		} `json:"value"`
	}
	err := c.do(ctx, http.MethodGet, "/me/drive/items/"+itemID+"/thumbnails", nil, "", &out)
	if err != nil {
		return "", err
	}
	if len(out.Value) == 0 {
		return "", nil
	}
	return out.Value[0].Medium.URL, nil
}
