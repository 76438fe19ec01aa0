// Package delivery uploads mentee files into a mentor's drive and resolves a
// shareable link for each uploaded item. It owns upload strategy selection,
// name hygiene and the sharing-tier fallback ladder.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/skilltreehq/mentor-platform/internal/graph"
	"github.com/skilltreehq/mentor-platform/pkg/logger"
	"github.com/skilltreehq/mentor-platform/pkg/metrics"
)

const (
	// simpleUploadLimit is the largest payload the single-PUT endpoint
	// accepts. Anything larger goes through an upload session.
	simpleUploadLimit = 4 << 20

	// chunkSize is the byte range sent per upload-session PUT. It is a
	// multiple of the 320 KiB granularity the service requires.
	chunkSize = 5 << 20
)

// Upload strategies, used as metric labels.
const (
	strategySimple  = "simple"
	strategyChunked = "chunked"
)

// UploadRequest describes one file to deliver. Size must be the exact number
// of bytes Content will yield.
type UploadRequest struct {
	FileName string
	Size     int64
	Content  io.Reader
}

// UploadedFile is the drive item a delivery produced.
type UploadedFile struct {
	ItemID string
	Name   string
	WebURL string
	Size   int64
}

// Pipeline delivers files into a drive folder.
type Pipeline struct {
	maxSize    int64
	folderName string
	metrics    *metrics.Metrics
	log        logger.Logger
}

// PipelineParams configures a Pipeline.
type PipelineParams struct {
	MaxSizeBytes int64
	FolderName   string
	Metrics      *metrics.Metrics
	Logger       logger.Logger
}

// NewPipeline builds a delivery pipeline.
func NewPipeline(p PipelineParams) *Pipeline {
	return &Pipeline{
		maxSize:    p.MaxSizeBytes,
		folderName: p.FolderName,
		metrics:    p.Metrics,
		log:        p.Logger,
	}
}

// Deliver uploads one file through the given client and returns the created
// drive item. The size limit is enforced before any network traffic.
func (p *Pipeline) Deliver(ctx context.Context, client *graph.Client, req UploadRequest) (*UploadedFile, error) {
	if req.Size <= 0 {
		return nil, stageErr(StageValidate, CodeInvalidSize, fmt.Errorf("invalid file size %d", req.Size))
	}
	if req.Size > p.maxSize {
		return nil, stageErr(StageValidate, CodeFileTooLarge, fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, req.Size, p.maxSize))
	}

	name := UniqueName(SanitizeFileName(req.FileName))
	folderPath := p.ensureFolder(ctx, client)

	start := time.Now()
	var item *graph.DriveItem
	var err error
	strategy := strategySimple
	if req.Size > simpleUploadLimit {
		strategy = strategyChunked
		item, err = p.uploadChunked(ctx, client, folderPath, name, req)
	} else {
		item, err = p.uploadSimple(ctx, client, folderPath, name, req)
	}
	if err != nil {
		p.metrics.RecordUpload(strategy, metrics.UploadFailed, time.Since(start))
		return nil, stageErr(StageUpload, uploadCode(err), err)
	}
	p.metrics.RecordUpload(strategy, metrics.UploadOK, time.Since(start))

	p.log.Info("file delivered",
		logger.FileNameField(item.Name),
		logger.StringField("strategy", strategy),
		logger.Int64Field("size_bytes", req.Size))

	return &UploadedFile{
		ItemID: item.ID,
		Name:   item.Name,
		WebURL: item.WebURL,
		Size:   req.Size,
	}, nil
}

// ensureFolder makes sure the configured upload folder exists and returns
// its path. Every failure degrades to the next cheaper option and finally to
// the drive root; folder trouble alone never fails a delivery.
func (p *Pipeline) ensureFolder(ctx context.Context, client *graph.Client) string {
	if p.folderName == "" {
		return ""
	}

	item, err := client.GetItemByPath(ctx, p.folderName)
	if err == nil && item.IsFolder() {
		return p.folderName
	}
	if err != nil && !graph.IsNotFound(err) {
		p.log.Warn("upload folder lookup failed",
			logger.StageField(StageEnsureFolder), logger.ErrorField(err))
	}

	// The path lookup can miss on some drives where a listing still finds
	// the folder.
	if children, err := client.ListRootChildren(ctx); err == nil {
		for i := range children {
			if children[i].Name == p.folderName && children[i].IsFolder() {
				return p.folderName
			}
		}
	}

	created, err := client.CreateRootFolder(ctx, p.folderName)
	if err == nil {
		// Conflict behavior "rename" may have produced a different name.
		return created.Name
	}
	p.log.Warn("upload folder creation failed, using drive root",
		logger.StageField(StageEnsureFolder), logger.ErrorField(err))
	return ""
}

// uploadSimple PUTs the whole payload at once. A name collision is retried
// exactly once with a regenerated name; the payload is buffered so the retry
// can replay it.
func (p *Pipeline) uploadSimple(ctx context.Context, client *graph.Client, folderPath, name string, req UploadRequest) (*graph.DriveItem, error) {
	payload, err := io.ReadAll(io.LimitReader(req.Content, req.Size))
	if err != nil {
		return nil, fmt.Errorf("read upload content: %w", err)
	}
	if int64(len(payload)) != req.Size {
		return nil, fmt.Errorf("upload content is %d bytes, declared %d", len(payload), req.Size)
	}

	item, err := client.UploadSmall(ctx, folderPath, name, bytes.NewReader(payload))
	if err == nil {
		return item, nil
	}
	if !graph.IsNameConflict(err) {
		return nil, err
	}

	retryName := UniqueName(SanitizeFileName(req.FileName))
	p.log.Warn("name collision on upload, retrying once",
		logger.FileNameField(name), logger.StringField("retry_name", retryName))
	return client.UploadSmall(ctx, folderPath, retryName, bytes.NewReader(payload))
}

// uploadChunked streams the payload through an upload session. Chunks are
// not retried; a failed range fails the delivery and the client starts over.
func (p *Pipeline) uploadChunked(ctx context.Context, client *graph.Client, folderPath, name string, req UploadRequest) (*graph.DriveItem, error) {
	session, err := client.CreateUploadSession(ctx, folderPath, name)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, chunkSize)
	var offset int64
	for offset < req.Size {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("upload canceled at offset %d: %w", offset, err)
		}

		n := chunkSize
		if remaining := req.Size - offset; remaining < int64(n) {
			n = int(remaining)
		}
		if _, err := io.ReadFull(req.Content, buf[:n]); err != nil {
			return nil, fmt.Errorf("read chunk at offset %d: %w", offset, err)
		}

		result, err := client.UploadChunk(ctx, session.UploadURL, buf[:n], offset, req.Size)
		if err != nil {
			return nil, err
		}
		offset += int64(n)

		if result.Completed {
			if offset != req.Size {
				return nil, fmt.Errorf("upload finalized early at offset %d of %d", offset, req.Size)
			}
			if result.Item == nil || result.Item.ID == "" {
				return nil, fmt.Errorf("upload finalized without an item id")
			}
			return result.Item, nil
		}
	}
	return nil, fmt.Errorf("upload session consumed all %d bytes without finalizing", req.Size)
}
