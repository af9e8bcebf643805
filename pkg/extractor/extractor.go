package extractor

import (
	"context"

	"tokfetch/pkg/models"
)

// FormatPolicy tells the engine which stream variant to fetch and how.
type FormatPolicy struct {
	// Watermark prefers the platform-overlay variant when both exist.
	// Either preference falls back to whichever variant is available.
	Watermark bool
	// ContentKind narrows format selection when the caller already knows
	// what the post is. KindUnknown selects the default chain.
	ContentKind models.ContentKind
	// SkipDownload resolves metadata and formats without fetching media.
	SkipDownload bool
	// OutputTemplate is the destination template for downloads, with the
	// engine's %(ext)s placeholder.
	OutputTemplate string
	// ThrottleRate caps transfer speed in bytes/second. Zero means no cap.
	ThrottleRate int64
	// Headers is the outbound header set for this attempt.
	Headers map[string]string
}

// Extractor is the narrow boundary to the external extraction engine.
// Implementations classify failures via pkg/errors so the scheduler can
// tell retryable trouble from terminal errors.
type Extractor interface {
	// Resolve turns one post URL into streams, metadata and, unless
	// SkipDownload is set, a downloaded file.
	Resolve(ctx context.Context, url string, policy FormatPolicy) (*models.ExtractionResult, error)

	// ListProfile enumerates a creator's posts, newest first, as work
	// items with sequence indices in listing order. maxItems caps the
	// listing; 0 means all.
	ListProfile(ctx context.Context, username string, maxItems int) ([]models.WorkItem, error)

	// FetchImage downloads a carousel image directly over HTTP, since the
	// engine exposes no stream for image posts.
	FetchImage(ctx context.Context, url, dest string, headers map[string]string) error
}
