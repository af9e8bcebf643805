package models

// Origin identifies where a work item came from.
type Origin string

const (
	// OriginBatchLink marks items read from a links file.
	OriginBatchLink Origin = "batch_link"
	// OriginProfilePost marks items produced by a profile listing.
	OriginProfilePost Origin = "profile_post"
)

// WorkItem is one unit of download work. Items are created when input is
// parsed or listed, consumed exactly once by the scheduler, and discarded
// after their outcome is recorded.
type WorkItem struct {
	// SourceRef is the post URL or platform post ID as given by the input.
	SourceRef string
	// Origin records which mode produced the item.
	Origin Origin
	// SequenceIndex is the ordinal position within the batch or profile
	// listing, assigned at enqueue time and never changed.
	SequenceIndex int
	// OwnerUsername drives the output directory. Empty for batch items
	// until derived from the URL during processing.
	OwnerUsername string
	// PostID is the platform post identifier, when known up front.
	PostID string
	// Title is the post title from a profile listing, when known.
	Title string
}

// ContentKind describes what kind of media a resolved post carries.
type ContentKind string

const (
	KindVideo         ContentKind = "video"
	KindAudioOnly     ContentKind = "audio_only"
	KindImageCarousel ContentKind = "images"
	KindUnknown       ContentKind = "unknown"
)

// StreamDescriptor is one downloadable format option for a post.
type StreamDescriptor struct {
	FormatID    string `json:"format_id"`
	Ext         string `json:"ext"`
	HasVideo    bool   `json:"has_video"`
	HasAudio    bool   `json:"has_audio"`
	Watermarked bool   `json:"watermarked"`
	// Quality is a free-form hint such as "720p" or "audio only".
	Quality string `json:"quality,omitempty"`
}

// Thumbnail is a preview image reference. The first entry of a carousel
// post's thumbnail list is the highest-quality frame.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// PostMetadata holds the descriptive fields captured for one post.
type PostMetadata struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Duration     float64     `json:"duration,omitempty"`
	ViewCount    int64       `json:"view_count,omitempty"`
	LikeCount    int64       `json:"like_count,omitempty"`
	CommentCount int64       `json:"comment_count,omitempty"`
	ShareCount   int64       `json:"share_count,omitempty"`
	Timestamp    int64       `json:"timestamp,omitempty"`
	UploadDate   string      `json:"upload_date,omitempty"`
	Uploader     string      `json:"uploader,omitempty"`
	UploaderID   string      `json:"uploader_id,omitempty"`
	WebpageURL   string      `json:"webpage_url,omitempty"`
	PostType     string      `json:"post_type"`
	Thumbnails   []Thumbnail `json:"thumbnails,omitempty"`
}

// ExtractionResult is the outcome of resolving one work item through the
// extraction engine. It is owned exclusively by the task handling that
// item and is never shared across workers.
type ExtractionResult struct {
	PostID      string
	ContentKind ContentKind
	Streams     []StreamDescriptor
	Thumbnails  []Thumbnail
	Metadata    *PostMetadata
	// FilePath is where the engine wrote the media, set only when the
	// resolve actually downloaded (FormatPolicy.SkipDownload false).
	FilePath string
}

// HasWatermarkedStream reports whether any format carries the platform
// overlay.
func (r *ExtractionResult) HasWatermarkedStream() bool {
	for _, s := range r.Streams {
		if s.Watermarked {
			return true
		}
	}
	return false
}
