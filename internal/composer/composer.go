// Package composer builds and sends the chat messages that notify a mentor
// about delivered files. Attachments are referenced platform-natively so the
// chat client renders a file card instead of a bare URL.
package composer

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/skilltreehq/mentor-platform/internal/delivery"
	"github.com/skilltreehq/mentor-platform/internal/graph"
	"github.com/skilltreehq/mentor-platform/pkg/logger"
	"github.com/skilltreehq/mentor-platform/pkg/metrics"
)

// attachmentPlaceholder keeps the message body non-empty when there is no
// text, which the chat API requires. A zero-width space renders as nothing.
const attachmentPlaceholder = "\u200b"

const attachmentContentType = "reference"

// Message send outcomes, used as metric labels.
const (
	sendOK     = "ok"
	sendFailed = "failed"
)

// Attachment pairs a delivered file with its resolved link.
type Attachment struct {
	File         *delivery.UploadedFile
	Link         delivery.ShareableLink
	ThumbnailURL string
}

// SendResult reports a delivered chat message.
type SendResult struct {
	MessageID string
}

// Composer builds and posts file-notification messages.
type Composer struct {
	metrics *metrics.Metrics
	log     logger.Logger
}

// NewComposer builds a Composer.
func NewComposer(m *metrics.Metrics, l logger.Logger) *Composer {
	return &Composer{metrics: m, log: l}
}

// AttachmentFor builds an attachment descriptor for a delivered file. The
// thumbnail lookup is best effort; its failure never blocks the message.
func (c *Composer) AttachmentFor(ctx context.Context, client *graph.Client, file *delivery.UploadedFile, link delivery.ShareableLink) Attachment {
	att := Attachment{File: file, Link: link}

	thumb, err := client.GetThumbnailURL(ctx, file.ItemID)
	if err != nil {
		c.log.Debug("thumbnail lookup failed",
			logger.FileNameField(file.Name), logger.ErrorField(err))
		return att
	}
	att.ThumbnailURL = thumb
	return att
}

// Compose builds the outgoing chat message. Each attachment is referenced in
// the body by an attachment tag keyed on its drive item id; with no text and
// at least one attachment the body carries an invisible placeholder.
func (c *Composer) Compose(text string, attachments []Attachment) graph.ChatMessage {
	var body strings.Builder
	if text != "" {
		body.WriteString(html.EscapeString(text))
	} else if len(attachments) > 0 {
		body.WriteString(attachmentPlaceholder)
	}

	msg := graph.ChatMessage{
		Body: graph.ItemBody{ContentType: "html"},
	}
	for _, att := range attachments {
		body.WriteString(fmt.Sprintf(`<attachment id="%s"></attachment>`, att.File.ItemID))
		msg.Attachments = append(msg.Attachments, graph.ChatAttachment{
			ID:           att.File.ItemID,
			ContentType:  attachmentContentType,
			ContentURL:   att.Link.URL,
			Name:         att.File.Name,
			ThumbnailURL: att.ThumbnailURL,
		})
	}
	msg.Body.Content = body.String()
	return msg
}

// Send posts the message into the chat and returns the new message id.
func (c *Composer) Send(ctx context.Context, client *graph.Client, chatID string, msg graph.ChatMessage) (*SendResult, error) {
	id, err := client.SendChatMessage(ctx, chatID, msg)
	if err != nil {
		c.metrics.RecordMessageSent(sendFailed)
		return nil, fmt.Errorf("send chat message: %w", err)
	}
	c.metrics.RecordMessageSent(sendOK)
	c.log.Info("chat message sent",
		logger.StringField("chat_id", chatID),
		logger.IntField("attachments", len(msg.Attachments)))
	return &SendResult{MessageID: id}, nil
}
