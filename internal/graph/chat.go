package graph

import (
	"context"
	"net/http"
)

// SendChatMessage posts a message into a chat and returns the new message id.
func (c *Client) SendChatMessage(ctx context.Context, chatID string, msg ChatMessage) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/chats/"+chatID+"/messages", msg, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}
