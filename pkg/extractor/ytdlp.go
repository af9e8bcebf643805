package extractor

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tokfetch/pkg/classifier"
	errs "tokfetch/pkg/errors"
	"tokfetch/pkg/logger"
	"tokfetch/pkg/models"
)

const (
	// formatWatermarked is the platform's pre-muxed variant with the
	// overlay burned in. The plain "best" fallback covers posts that only
	// expose clean formats.
	formatWatermarked = "download/best"
	// formatClean prefers separate clean streams muxed into mp4.
	formatClean = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	// formatAudio is used when only the soundtrack is wanted.
	formatAudio = "bestaudio/best"
)

// YtDlp runs the yt-dlp binary as a subprocess and maps its JSON output and
// exit behavior onto the Extractor contract.
type YtDlp struct {
	binary  string
	timeout time.Duration
	client  *http.Client
	log     logger.Logger
}

// YtDlpOption configures the adapter.
type YtDlpOption func(*YtDlp)

// WithBinary overrides the yt-dlp executable path.
func WithBinary(path string) YtDlpOption {
	return func(y *YtDlp) { y.binary = path }
}

// WithTimeout bounds each subprocess invocation.
func WithTimeout(d time.Duration) YtDlpOption {
	return func(y *YtDlp) { y.timeout = d }
}

// WithHTTPClient overrides the client used for direct image fetches.
func WithHTTPClient(c *http.Client) YtDlpOption {
	return func(y *YtDlp) { y.client = c }
}

// NewYtDlp creates the subprocess adapter. The platform's image CDN serves
// certificates that fail strict verification, so the direct-fetch client
// skips it the same way the engine itself does.
func NewYtDlp(log logger.Logger, opts ...YtDlpOption) *YtDlp {
	y := &YtDlp{
		binary:  "yt-dlp",
		timeout: 10 * time.Minute,
		log:     log,
		client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// ytdlpFormat mirrors one entry of the engine's formats array.
type ytdlpFormat struct {
	FormatID   string `json:"format_id"`
	Ext        string `json:"ext"`
	VCodec     string `json:"vcodec"`
	ACodec     string `json:"acodec"`
	FormatNote string `json:"format_note"`
	Height     int    `json:"height"`
}

type ytdlpThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ytdlpInfo mirrors the subset of the engine's info JSON the downloader
// reads. The same shape covers single posts and flat playlist entries.
type ytdlpInfo struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Duration     float64          `json:"duration"`
	ViewCount    int64            `json:"view_count"`
	LikeCount    int64            `json:"like_count"`
	CommentCount int64            `json:"comment_count"`
	RepostCount  int64            `json:"repost_count"`
	Timestamp    int64            `json:"timestamp"`
	UploadDate   string           `json:"upload_date"`
	Uploader     string           `json:"uploader"`
	UploaderID   string           `json:"uploader_id"`
	WebpageURL   string           `json:"webpage_url"`
	URL          string           `json:"url"`
	Formats      []ytdlpFormat    `json:"formats"`
	Thumbnails   []ytdlpThumbnail `json:"thumbnails"`
	Entries      []ytdlpInfo      `json:"entries"`
}

// Resolve extracts one post. With SkipDownload it runs a metadata-only pass
// (-J); otherwise it downloads with the selected format chain and reports
// the final file path.
func (y *YtDlp) Resolve(ctx context.Context, url string, policy FormatPolicy) (*models.ExtractionResult, error) {
	if policy.SkipDownload {
		return y.probe(ctx, url, policy)
	}
	return y.download(ctx, url, policy)
}

func (y *YtDlp) probe(ctx context.Context, url string, policy FormatPolicy) (*models.ExtractionResult, error) {
	args := []string{"-J", "--no-warnings"}
	args = appendHeaderArgs(args, policy.Headers)
	args = append(args, url)

	stdout, err := y.run(ctx, url, args)
	if err != nil {
		return nil, err
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, errs.Wrap(errs.KindMalformed, url, fmt.Errorf("bad extractor output: %w", err))
	}
	return resultFromInfo(&info), nil
}

func (y *YtDlp) download(ctx context.Context, url string, policy FormatPolicy) (*models.ExtractionResult, error) {
	args := []string{
		"--no-warnings",
		"--no-progress",
		"-f", formatFor(policy),
		"-o", policy.OutputTemplate,
		"--print", "after_move:filepath",
		"--no-simulate",
	}
	if policy.ThrottleRate > 0 {
		args = append(args, "--limit-rate", strconv.FormatInt(policy.ThrottleRate, 10))
	}
	args = appendHeaderArgs(args, policy.Headers)
	args = append(args, url)

	stdout, err := y.run(ctx, url, args)
	if err != nil {
		return nil, err
	}

	path := strings.TrimSpace(string(stdout))
	if idx := strings.LastIndexByte(path, '\n'); idx >= 0 {
		path = strings.TrimSpace(path[idx+1:])
	}
	if path == "" {
		return nil, errs.New(errs.KindUnknown, "engine reported no output file for "+url)
	}
	return &models.ExtractionResult{FilePath: path}, nil
}

// ListProfile enumerates a creator's posts with a flat playlist pass. The
// platform lists newest first; sequence indices follow that order.
func (y *YtDlp) ListProfile(ctx context.Context, username string, maxItems int) ([]models.WorkItem, error) {
	profileURL := fmt.Sprintf("https://www.tiktok.com/@%s", username)

	args := []string{"-J", "--flat-playlist", "--no-warnings"}
	if maxItems > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(maxItems))
	}
	args = append(args, profileURL)

	stdout, err := y.run(ctx, profileURL, args)
	if err != nil {
		return nil, err
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, errs.Wrap(errs.KindMalformed, profileURL, fmt.Errorf("bad listing output: %w", err))
	}

	items := make([]models.WorkItem, 0, len(info.Entries))
	for i, entry := range info.Entries {
		ref := entry.URL
		if ref == "" {
			ref = entry.WebpageURL
		}
		if ref == "" && entry.ID != "" {
			ref = fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", username, entry.ID)
		}
		if ref == "" {
			continue
		}
		items = append(items, models.WorkItem{
			SourceRef:     ref,
			Origin:        models.OriginProfilePost,
			SequenceIndex: i + 1,
			OwnerUsername: username,
			PostID:        entry.ID,
			Title:         entry.Title,
		})
	}
	return items, nil
}

// FetchImage downloads a carousel frame directly. The destination is written
// to a temp file and renamed so a killed run never leaves a truncated image
// behind.
func (y *YtDlp) FetchImage(ctx context.Context, url, dest string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.Wrap(errs.KindMalformed, url, err)
	}
	for k, v := range headers {
		// Leave content negotiation to the transport: setting
		// Accept-Encoding by hand disables its transparent gzip handling
		// and the compressed body would land in the image file verbatim.
		if strings.EqualFold(k, "Accept-Encoding") {
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		kind := errs.KindForStatusCode(resp.StatusCode)
		return errs.Wrap(kind, url, fmt.Errorf("image fetch returned %s", resp.Status))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errs.Wrap(errs.KindUnknown, url, err)
	}

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errs.Wrap(errs.KindUnknown, url, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return errs.Wrap(errs.KindNetwork, url, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.KindUnknown, url, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.KindUnknown, url, err)
	}
	return nil
}

func (y *YtDlp) run(ctx context.Context, ref string, args []string) ([]byte, error) {
	runCtx := ctx
	if y.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, y.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, y.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	y.log.DebugWithFields("running extractor", map[string]interface{}{
		"ref":  ref,
		"args": strings.Join(args, " "),
	})

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, errs.Wrap(errs.KindNetwork, ref, fmt.Errorf("extraction timed out after %s", y.timeout))
		}
		return nil, classifyRunError(ref, stderr.String(), err)
	}
	return stdout.Bytes(), nil
}

// classifyRunError maps the engine's stderr chatter onto the error taxonomy.
// The engine exits 1 for everything, so the text is the only signal.
func classifyRunError(ref, stderr string, err error) error {
	lower := strings.ToLower(stderr)
	wrapped := err
	if msg := lastStderrLine(stderr); msg != "" {
		wrapped = fmt.Errorf("%s: %w", msg, err)
	}

	switch {
	case strings.Contains(lower, "http error 429"),
		strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "too many requests"):
		return errs.Wrap(errs.KindRateLimit, ref, wrapped)
	case strings.Contains(lower, "http error 404"),
		strings.Contains(lower, "not found"),
		strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "no longer available"):
		return errs.Wrap(errs.KindNotFound, ref, wrapped)
	case strings.Contains(lower, "http error 403"),
		strings.Contains(lower, "forbidden"),
		strings.Contains(lower, "login required"),
		strings.Contains(lower, "private"):
		return errs.Wrap(errs.KindForbidden, ref, wrapped)
	case strings.Contains(lower, "unsupported url"),
		strings.Contains(lower, "is not a valid url"):
		return errs.Wrap(errs.KindMalformed, ref, wrapped)
	case strings.Contains(lower, "http error 5"),
		strings.Contains(lower, "internal server error"):
		return errs.Wrap(errs.KindServer, ref, wrapped)
	case strings.Contains(lower, "timed out"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "connection"),
		strings.Contains(lower, "network"),
		strings.Contains(lower, "unable to download"):
		return errs.Wrap(errs.KindNetwork, ref, wrapped)
	default:
		return errs.Wrap(errs.KindUnknown, ref, wrapped)
	}
}

func lastStderrLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// formatFor picks the engine format chain for a policy.
func formatFor(policy FormatPolicy) string {
	if policy.ContentKind == models.KindAudioOnly {
		return formatAudio
	}
	if policy.Watermark {
		return formatWatermarked
	}
	return formatClean
}

func appendHeaderArgs(args []string, headers map[string]string) []string {
	if ua, ok := headers["User-Agent"]; ok {
		args = append(args, "--user-agent", ua)
	}
	for k, v := range headers {
		if k == "User-Agent" {
			continue
		}
		args = append(args, "--add-header", k+":"+v)
	}
	return args
}

// resultFromInfo maps the engine's info JSON onto the download model. The
// platform marks the overlay variant with a "download" format id or a
// watermarked format note.
func resultFromInfo(info *ytdlpInfo) *models.ExtractionResult {
	streams := make([]models.StreamDescriptor, 0, len(info.Formats))
	for _, f := range info.Formats {
		hasVideo := f.VCodec != "" && f.VCodec != "none"
		hasAudio := f.ACodec != "" && f.ACodec != "none"
		quality := f.FormatNote
		if quality == "" && f.Height > 0 {
			quality = fmt.Sprintf("%dp", f.Height)
		}
		streams = append(streams, models.StreamDescriptor{
			FormatID:    f.FormatID,
			Ext:         f.Ext,
			HasVideo:    hasVideo,
			HasAudio:    hasAudio,
			Watermarked: isWatermarked(f),
			Quality:     quality,
		})
	}

	thumbs := make([]models.Thumbnail, 0, len(info.Thumbnails))
	for _, t := range info.Thumbnails {
		thumbs = append(thumbs, models.Thumbnail{URL: t.URL, Width: t.Width, Height: t.Height})
	}

	kind := classifier.DetectKind(streams, len(thumbs))

	md := &models.PostMetadata{
		ID:           info.ID,
		Title:        info.Title,
		Description:  info.Description,
		Duration:     info.Duration,
		ViewCount:    info.ViewCount,
		LikeCount:    info.LikeCount,
		CommentCount: info.CommentCount,
		ShareCount:   info.RepostCount,
		Timestamp:    info.Timestamp,
		UploadDate:   info.UploadDate,
		Uploader:     info.Uploader,
		UploaderID:   info.UploaderID,
		WebpageURL:   info.WebpageURL,
		PostType:     string(kind),
		Thumbnails:   thumbs,
	}

	return &models.ExtractionResult{
		PostID:      info.ID,
		ContentKind: kind,
		Streams:     streams,
		Thumbnails:  thumbs,
		Metadata:    md,
	}
}

func isWatermarked(f ytdlpFormat) bool {
	return strings.Contains(f.FormatID, "download") ||
		strings.Contains(strings.ToLower(f.FormatNote), "watermark")
}
