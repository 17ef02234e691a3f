// Package notification delivers ingestion outcomes to an external webhook.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"jan-server/services/media-ingest/internal/domain/media"
)

const (
	EventIngested     = "media.ingested"
	EventIngestFailed = "media.ingest_failed"
)

// Event is the webhook body.
type Event struct {
	Event          string    `json:"event"`
	OccurredAt     time.Time `json:"occurred_at"`
	AssetID        string    `json:"asset_id,omitempty"`
	LogicalAssetID string    `json:"logical_asset_id,omitempty"`
	UploadID       string    `json:"upload_id,omitempty"`
	OwnerID        string    `json:"owner_id"`
	Title          string    `json:"title,omitempty"`
	ThumbnailURL   string    `json:"thumbnail_url,omitempty"`
	Reason         string    `json:"reason,omitempty"`
}

// WebhookSink posts one JSON event per outcome. Retries on 5xx and transport errors.
type WebhookSink struct {
	url        string
	httpClient *resty.Client
	now        func() time.Time
}

var _ media.NotificationSink = (*WebhookSink)(nil)

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	client := resty.New().
		SetHeader("User-Agent", "Jan-Media-Ingest/1.0").
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= 500
		})
	return &WebhookSink{url: url, httpClient: client, now: time.Now}
}

func (s *WebhookSink) NotifyIngested(ctx context.Context, asset *media.MediaAsset) error {
	return s.post(ctx, Event{
		Event:          EventIngested,
		OccurredAt:     s.now().UTC(),
		AssetID:        asset.ID,
		LogicalAssetID: asset.LogicalAssetID,
		UploadID:       asset.UploadID,
		OwnerID:        asset.OwnerID,
		Title:          asset.Title,
		ThumbnailURL:   asset.Renditions.URL(media.SizeThumbnail, media.FormatPrimary),
	})
}

func (s *WebhookSink) NotifyIngestFailed(ctx context.Context, failure media.IngestFailure) error {
	return s.post(ctx, Event{
		Event:          EventIngestFailed,
		OccurredAt:     s.now().UTC(),
		LogicalAssetID: failure.LogicalAssetID,
		UploadID:       failure.UploadID,
		OwnerID:        failure.OwnerID,
		Title:          failure.Title,
		Reason:         failure.Reason,
	})
}

func (s *WebhookSink) post(ctx context.Context, event Event) error {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(event).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("post %s webhook: %w", event.Event, err)
	}
	if resp.IsError() {
		return fmt.Errorf("post %s webhook: status %d", event.Event, resp.StatusCode())
	}
	return nil
}
