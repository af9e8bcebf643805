package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"tokfetch/pkg/archive"
	"tokfetch/pkg/classifier"
	"tokfetch/pkg/config"
	errs "tokfetch/pkg/errors"
	"tokfetch/pkg/extractor"
	"tokfetch/pkg/identity"
	"tokfetch/pkg/input"
	"tokfetch/pkg/logger"
	"tokfetch/pkg/metadata"
	"tokfetch/pkg/models"
	"tokfetch/pkg/output"
	"tokfetch/pkg/ratelimit"
	"tokfetch/pkg/retry"
)

// archiveFileName sits at the output root and is shared by both modes, so a
// post downloaded in a batch is not fetched again from its profile.
const archiveFileName = "archive.txt"

type status int

const (
	statusDownloaded status = iota
	statusSkipped
	statusFailed
	// statusCancelled marks items abandoned after the run stopped; they are
	// never counted.
	statusCancelled
)

type taskOutcome struct {
	item   models.WorkItem
	status status
	reason string
	err    error
}

// Scheduler owns one run: it turns the configured input into work items,
// dispatches them, and accounts for every outcome. Batch mode fans items out
// to a bounded worker pool; profile mode walks the listing sequentially.
type Scheduler struct {
	cfg       *config.Config
	extractor extractor.Extractor
	store     archive.Store
	organizer *output.Organizer
	pacer     ratelimit.Pacer
	rotator   *identity.Rotator
	metadata  *metadata.Writer
	errlog    *ErrorLog
	filter    classifier.Filter
	backoff   retry.BackoffStrategy
	log       logger.Logger

	mu        sync.Mutex
	successes int
	cancelRun context.CancelFunc
}

// New wires a scheduler from validated configuration. It opens the archive
// and error log up front so a run never discovers mid-flight that it cannot
// record outcomes.
func New(cfg *config.Config, ext extractor.Extractor, log logger.Logger) (*Scheduler, error) {
	filter, err := classifier.ParseFilter(cfg.ContentType)
	if err != nil {
		return nil, err
	}

	organizer, err := output.NewOrganizer(cfg.Output.BaseDirectory)
	if err != nil {
		return nil, err
	}

	store := archive.Disabled()
	if !cfg.Download.DisableArchive {
		fs, err := archive.Open(filepath.Join(organizer.Root(), archiveFileName))
		if err != nil {
			return nil, err
		}
		store = fs
	}

	throttle, err := ratelimit.ParseRate(cfg.RateLimit.ThrottleRate)
	if err != nil {
		store.Close()
		return nil, err
	}

	opts := []ratelimit.Option{ratelimit.WithThrottleRate(throttle)}
	if cfg.RateLimit.Disabled {
		opts = append(opts, ratelimit.Disabled())
	} else if cfg.RateLimit.MinDelay > 0 && cfg.RateLimit.MaxDelay > 0 {
		opts = append(opts, ratelimit.WithRange(cfg.RateLimit.MinDelay, cfg.RateLimit.MaxDelay))
	}

	errlog, err := OpenErrorLog(cfg.Output.ErrorLog)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Scheduler{
		cfg:       cfg,
		extractor: ext,
		store:     store,
		organizer: organizer,
		pacer:     ratelimit.NewDelayPacer(cfg.RateLimit.Delay, opts...),
		rotator:   identity.NewRotator(),
		metadata:  metadata.NewWriter(organizer.Root()),
		errlog:    errlog,
		filter:    filter,
		backoff:   retry.DefaultExponentialBackoff(),
		log:       log.WithField("run_id", errlog.RunID()),
	}, nil
}

// RunID identifies this run in the error log.
func (s *Scheduler) RunID() string {
	return s.errlog.RunID()
}

// Run executes the configured mode to completion and returns the final
// accounting. Collected metadata is flushed even when the run is cut short.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancelRun = cancel
	s.mu.Unlock()

	defer s.errlog.Close()
	defer s.store.Close()

	t := &tally{}
	var runErr error
	switch s.cfg.Mode {
	case config.ModeBatch:
		runErr = s.runBatch(runCtx, t)
	case config.ModeProfile:
		runErr = s.runProfile(runCtx, t)
	default:
		runErr = fmt.Errorf("unknown mode %q", s.cfg.Mode)
	}

	if err := s.metadata.Flush(); err != nil {
		s.log.WithError(err).Error("failed to write metadata documents")
		if runErr == nil {
			runErr = err
		}
	}

	summary := t.snapshot()
	s.log.InfoWithFields("run finished", map[string]interface{}{
		"downloaded": summary.Downloaded,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
	})
	return summary, runErr
}

func (s *Scheduler) runBatch(ctx context.Context, t *tally) error {
	items, err := input.ReadLinksFile(s.cfg.LinksFile)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		s.log.Warn("links file contains no usable URLs")
		return nil
	}

	workers := s.cfg.Download.Workers
	if workers > len(items) {
		workers = len(items)
	}
	s.log.InfoWithFields("starting batch run", map[string]interface{}{
		"items":   len(items),
		"workers": workers,
	})

	jobs := make(chan models.WorkItem)
	results := make(chan taskOutcome, len(items))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				results <- s.process(ctx, item)
			}
		}()
	}

	for _, item := range items {
		jobs <- item
	}
	close(jobs)
	wg.Wait()
	close(results)

	for out := range results {
		t.record(out)
	}
	return nil
}

func (s *Scheduler) runProfile(ctx context.Context, t *tally) error {
	username, err := input.SanitizeUsername(s.cfg.ProfileUser)
	if err != nil {
		return err
	}

	items, err := retry.DoWithResult(func() ([]models.WorkItem, error) {
		return s.extractor.ListProfile(ctx, username, 0)
	}, s.retryConfig(ctx))
	if err != nil {
		return fmt.Errorf("failed to list profile @%s: %w", username, err)
	}
	if len(items) == 0 {
		s.log.WarnWithFields("profile has no posts", map[string]interface{}{"username": username})
		return nil
	}

	s.log.InfoWithFields("starting profile run", map[string]interface{}{
		"username": username,
		"posts":    len(items),
	})

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		t.record(s.process(ctx, item))
	}
	return nil
}

// process runs one work item end to end: derive identity, consult the
// archive, pace, probe, classify, then fetch whatever the filter selected.
func (s *Scheduler) process(ctx context.Context, item models.WorkItem) taskOutcome {
	if ctx.Err() != nil {
		return taskOutcome{item: item, status: statusCancelled}
	}

	username, postID := item.OwnerUsername, item.PostID
	if username == "" || postID == "" {
		var err error
		username, postID, err = input.DeriveItem(item.SourceRef)
		if err != nil {
			return s.fail(ctx, item, err)
		}
	}
	itemLog := s.log.WithFields(map[string]interface{}{
		"post_id":  postID,
		"username": username,
	})

	if s.store.Contains(postID) {
		return s.skip(itemLog, item, "already in archive")
	}
	if s.cfg.Download.SkipExisting {
		if path, ok := s.existingFile(username, postID, item.Origin); ok {
			return s.skip(itemLog, item, "file already exists: "+path)
		}
	}

	if delay := s.pacer.NextDelay(); delay > 0 {
		itemLog.DebugWithFields("pacing before download", map[string]interface{}{
			"delay_ms": delay.Milliseconds(),
		})
		if err := retry.Wait(ctx, delay); err != nil {
			return taskOutcome{item: item, status: statusCancelled}
		}
	}

	// Metadata-only probe first: filtered items must cost a listing call,
	// never media bytes.
	res, err := retry.DoWithResult(func() (*models.ExtractionResult, error) {
		return s.extractor.Resolve(ctx, item.SourceRef, extractor.FormatPolicy{
			SkipDownload: true,
			Headers:      s.rotator.Headers(),
		})
	}, s.retryConfig(ctx))
	if err != nil {
		return s.fail(ctx, item, err)
	}
	// The engine's id is the one recorded on success, so when it differs
	// from the URL-derived id the archive must be consulted again or a
	// re-run would never match the recorded entry.
	if res.PostID != "" && res.PostID != postID {
		postID = res.PostID
		if s.store.Contains(postID) {
			return s.skip(itemLog, item, "already in archive")
		}
	}

	buckets := classifier.Classify(res.ContentKind, s.filter)
	if len(buckets) == 0 {
		return s.skip(itemLog, item, fmt.Sprintf("content kind %q filtered by %q", res.ContentKind, s.filter))
	}

	wantMetadata := s.cfg.Download.SaveMetadata
	for _, bucket := range buckets {
		var err error
		switch bucket {
		case classifier.BucketMetadata:
			wantMetadata = true
		case classifier.BucketImage:
			err = s.downloadImage(ctx, item, username, postID, res)
		default:
			err = s.downloadMedia(ctx, item, username, postID, bucket, res)
		}
		if err != nil {
			return s.fail(ctx, item, err)
		}
	}
	if wantMetadata {
		s.metadata.Append(username, res.Metadata)
	}

	if err := s.store.Add(postID); err != nil {
		itemLog.WithError(err).Warn("failed to record archive entry")
	}
	itemLog.InfoWithFields("download complete", map[string]interface{}{
		"kind": string(res.ContentKind),
	})
	s.noteSuccess()
	return taskOutcome{item: item, status: statusDownloaded}
}

func (s *Scheduler) downloadMedia(ctx context.Context, item models.WorkItem, username, postID string, bucket classifier.Bucket, res *models.ExtractionResult) error {
	var (
		tmpl string
		err  error
	)
	if item.Origin == models.OriginProfilePost {
		tmpl, err = s.organizer.ProfileTemplate(username, bucket, item.SequenceIndex, itemTitle(item, res), postID)
	} else {
		tmpl, err = s.organizer.BatchTemplate(username, postID)
	}
	if err != nil {
		return err
	}

	watermark := s.cfg.Watermark
	if watermark && !res.HasWatermarkedStream() {
		s.log.WithField("post_id", postID).Warn("no watermarked format available, using clean formats")
		watermark = false
	}

	kind := res.ContentKind
	if bucket == classifier.BucketAudio {
		kind = models.KindAudioOnly
	}

	out, err := retry.DoWithResult(func() (*models.ExtractionResult, error) {
		return s.extractor.Resolve(ctx, item.SourceRef, extractor.FormatPolicy{
			Watermark:      watermark,
			ContentKind:    kind,
			OutputTemplate: tmpl,
			ThrottleRate:   s.pacer.ThrottleRate(),
			Headers:        s.rotator.Headers(),
		})
	}, s.retryConfig(ctx))
	if err != nil {
		return err
	}

	s.log.DebugWithFields("media written", map[string]interface{}{
		"post_id": postID,
		"path":    out.FilePath,
	})
	return nil
}

// downloadImage fetches a carousel's cover frame directly, since the engine
// only exposes the soundtrack for image posts.
func (s *Scheduler) downloadImage(ctx context.Context, item models.WorkItem, username, postID string, res *models.ExtractionResult) error {
	if len(res.Thumbnails) == 0 {
		return errs.New(errs.KindUnknown, "carousel post exposes no thumbnails")
	}

	origin := output.ImageOriginBatch
	if item.Origin == models.OriginProfilePost {
		origin = output.ImageOriginProfile
	}
	dest, err := s.organizer.ImagePath(username, origin, item.SequenceIndex, itemTitle(item, res), postID)
	if err != nil {
		return err
	}

	return retry.Do(func() error {
		return s.extractor.FetchImage(ctx, res.Thumbnails[0].URL, dest, s.rotator.Headers())
	}, s.retryConfig(ctx))
}

// existingFile probes the on-disk layout for a file already carrying this
// post id. Profile listings may route to any media bucket, so all three are
// checked.
func (s *Scheduler) existingFile(username, postID string, origin models.Origin) (string, bool) {
	if origin == models.OriginBatchLink {
		return s.organizer.ExistingFile(username, postID)
	}
	for _, bucket := range []classifier.Bucket{classifier.BucketVideo, classifier.BucketAudio, classifier.BucketImage} {
		if path, ok := s.organizer.ExistingInBucket(username, bucket, postID); ok {
			return path, true
		}
	}
	return "", false
}

// noteSuccess counts a completed download toward the cap. Skips and
// failures never consume the budget; once the cap is hit the run context is
// cancelled and in-flight workers wind down.
func (s *Scheduler) noteSuccess() {
	if s.cfg.Download.MaxDownloads <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.successes++
	if s.successes >= s.cfg.Download.MaxDownloads && s.cancelRun != nil {
		s.log.InfoWithFields("download cap reached, stopping", map[string]interface{}{
			"max_downloads": s.cfg.Download.MaxDownloads,
		})
		s.cancelRun()
		s.cancelRun = nil
	}
}

func (s *Scheduler) skip(l logger.Logger, item models.WorkItem, reason string) taskOutcome {
	l.InfoWithFields("skipping item", map[string]interface{}{"reason": reason})
	return taskOutcome{item: item, status: statusSkipped, reason: reason}
}

func (s *Scheduler) fail(ctx context.Context, item models.WorkItem, err error) taskOutcome {
	// A failure caused by the run winding down is abandonment, not an error
	// against the item.
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return taskOutcome{item: item, status: statusCancelled}
	}

	s.errlog.Record(item.SourceRef, err)
	s.log.ErrorWithFields("item failed", map[string]interface{}{
		"ref":   item.SourceRef,
		"kind":  string(errs.KindOf(err)),
		"error": err.Error(),
	})
	return taskOutcome{item: item, status: statusFailed, err: err}
}

func (s *Scheduler) retryConfig(ctx context.Context) *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = s.cfg.Download.MaxAttempts
	cfg.Backoff = s.backoff
	cfg.Context = ctx
	cfg.Logger = s.log
	return cfg
}

func itemTitle(item models.WorkItem, res *models.ExtractionResult) string {
	if item.Title != "" {
		return item.Title
	}
	if res.Metadata != nil {
		return res.Metadata.Title
	}
	return ""
}
