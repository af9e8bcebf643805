package classifier

import (
	"fmt"

	"tokfetch/pkg/models"
)

// Filter is the user-selected content-type filter.
type Filter string

const (
	FilterAll          Filter = "all"
	FilterVideoOnly    Filter = "video-only"
	FilterAudioOnly    Filter = "audio-only"
	FilterImagesOnly   Filter = "images-only"
	FilterMetadataOnly Filter = "metadata-only"
)

// Bucket is an output category an item is routed to.
type Bucket string

const (
	BucketVideo    Bucket = "video"
	BucketAudio    Bucket = "audio"
	BucketImage    Bucket = "image"
	BucketMetadata Bucket = "metadata"
)

// Dir returns the profile-mode subdirectory for a media bucket.
func (b Bucket) Dir() string {
	switch b {
	case BucketVideo:
		return "videos"
	case BucketAudio:
		return "audio"
	case BucketImage:
		return "images"
	default:
		return "metadata"
	}
}

// ParseFilter validates a content-type flag value.
func ParseFilter(s string) (Filter, error) {
	switch Filter(s) {
	case FilterAll, FilterVideoOnly, FilterAudioOnly, FilterImagesOnly, FilterMetadataOnly:
		return Filter(s), nil
	default:
		return "", fmt.Errorf("unknown content type %q", s)
	}
}

// DetectKind decides what a resolved post is from its available formats.
// Carousel posts expose only an audio track plus thumbnails, so audio
// without video is an image carousel whenever thumbnails exist.
func DetectKind(streams []models.StreamDescriptor, thumbnails int) models.ContentKind {
	if len(streams) == 0 {
		return models.KindUnknown
	}

	var hasVideo, hasAudio bool
	for _, s := range streams {
		if s.HasVideo {
			hasVideo = true
		}
		if s.HasAudio {
			hasAudio = true
		}
	}

	switch {
	case hasVideo:
		return models.KindVideo
	case hasAudio && thumbnails > 0:
		return models.KindImageCarousel
	case hasAudio:
		return models.KindAudioOnly
	default:
		return models.KindUnknown
	}
}

// Classify maps a content kind through the filter to the set of output
// buckets. An empty result means the item is skipped, never failed, and no
// media bytes are fetched for it.
func Classify(kind models.ContentKind, filter Filter) []Bucket {
	if filter == FilterMetadataOnly {
		switch kind {
		case models.KindVideo, models.KindAudioOnly, models.KindImageCarousel:
			return []Bucket{BucketMetadata}
		default:
			return nil
		}
	}

	var media Bucket
	switch kind {
	case models.KindVideo:
		media = BucketVideo
	case models.KindAudioOnly:
		media = BucketAudio
	case models.KindImageCarousel:
		media = BucketImage
	default:
		return nil
	}

	switch filter {
	case FilterAll:
		return []Bucket{media, BucketMetadata}
	case FilterVideoOnly:
		if media == BucketVideo {
			return []Bucket{media}
		}
	case FilterAudioOnly:
		if media == BucketAudio {
			return []Bucket{media}
		}
	case FilterImagesOnly:
		if media == BucketImage {
			return []Bucket{media}
		}
	}
	return nil
}
