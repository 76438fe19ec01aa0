package graph

import (
	"errors"
	"fmt"
)

// FolderFacet marks a drive item as a folder.
type FolderFacet struct {
	ChildCount int `json:"childCount"`
}

// ItemReference locates an item's parent drive and folder.
type ItemReference struct {
	DriveID string `json:"driveId"`
	ID      string `json:"id"`
	Path    string `json:"path"`
}

// DriveItem is a file or folder on the remote drive.
type DriveItem struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Size            int64          `json:"size"`
	WebURL          string         `json:"webUrl"`
	Folder          *FolderFacet   `json:"folder,omitempty"`
	ParentReference *ItemReference `json:"parentReference,omitempty"`
}

// IsFolder reports whether the item carries the folder facet.
func (d *DriveItem) IsFolder() bool {
	return d != nil && d.Folder != nil
}

// UploadSession is the server-side staging area for a chunked upload.
type UploadSession struct {
	UploadURL          string   `json:"uploadUrl"`
	ExpirationDateTime string   `json:"expirationDateTime"`
	NextExpectedRanges []string `json:"nextExpectedRanges"`
}

// ChunkResult is the outcome of one chunk PUT. Completed is true only when
// the service finalized the item and returned it.
type ChunkResult struct {
	Completed bool
	Item      *DriveItem
}

// ItemBody is a chat message body.
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// ChatAttachment is the platform-native attachment descriptor embedded in an
// outgoing chat message.
type ChatAttachment struct {
	ID           string `json:"id"`
	ContentType  string `json:"contentType"`
	ContentURL   string `json:"contentUrl"`
	Name         string `json:"name"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// ChatMessage is an outgoing chat message with optional attachments.
type ChatMessage struct {
	Body        ItemBody         `json:"body"`
	Attachments []ChatAttachment `json:"attachments,omitempty"`
}

// APIError is a non-2xx response from the remote API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph api error: status %d, code %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph api error: status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an item-not-found API error.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 404 || apiErr.Code == "itemNotFound"
}

// IsNameConflict reports whether err is a name-collision API error. This is
// the one error class where retrying with a different name is known to help.
func IsNameConflict(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 409 || apiErr.Code == "nameAlreadyExists"
}

// IsQuotaExceeded reports whether err is a storage-quota API error.
func IsQuotaExceeded(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 507 || apiErr.Code == "quotaLimitReached"
}
