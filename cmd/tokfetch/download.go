package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tokfetch/internal/scheduler"
	"tokfetch/pkg/config"
	"tokfetch/pkg/extractor"
	"tokfetch/pkg/logger"
	"tokfetch/pkg/ui"
)

const defaultLinksFile = "links.txt"

var (
	// Download command flags
	workers      int
	outputDir    string
	contentType  string
	watermark    bool
	noWatermark  bool
	maxDownloads int
	noArchive    bool
	skipExisting bool
	saveMetadata bool
	delay        time.Duration
	minDelay     time.Duration
	maxDelay     time.Duration
	throttleRate string
	noRateLimit  bool
	ytdlpPath    string
)

// linksCmd downloads every post URL listed in a file.
var linksCmd = &cobra.Command{
	Use:   "links [file]",
	Short: "Download every post URL in a links file",
	Long: `Download every TikTok post URL listed in a file, one URL per line.

Blank lines and lines that are not URLs are ignored, so files produced by
browser harvesting scripts work as-is. Downloads are dispatched to a worker
pool; completed posts are recorded in the archive and skipped on later runs.`,
	Example: `  # Download everything in links.txt (the default file)
  tokfetch links

  # Download a specific file with four workers
  tokfetch links liked.txt --workers 4

  # Only image carousels, keeping post metadata
  tokfetch links --content-type images-only --save-metadata`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := defaultLinksFile
		if len(args) == 1 {
			file = args[0]
		}
		flags := downloadFlags(cmd)
		flags["links"] = file
		runDownload(flags)
		return nil
	},
}

// profileCmd downloads a creator's posts sequentially.
var profileCmd = &cobra.Command{
	Use:   "profile <username>",
	Short: "Download a creator's posts, newest first",
	Long: `List a creator's profile and download its posts one at a time, newest
first. Files are numbered by listing position and sorted into per-type
subdirectories (videos/, audio/, images/).`,
	Example: `  # Download all of a creator's videos
  tokfetch profile charlidamelio

  # First 50 posts, watermarked variants
  tokfetch profile @charlidamelio --max-downloads 50 --watermark

  # Everything the profile has, with metadata
  tokfetch profile charlidamelio --content-type all --save-metadata`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := downloadFlags(cmd)
		flags["profile"] = args[0]
		runDownload(flags)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(linksCmd)
	rootCmd.AddCommand(profileCmd)

	linksCmd.Flags().IntVarP(&workers, "workers", "w", 2, "number of concurrent download workers")
	profileCmd.Flags().IntVar(&maxDownloads, "max-downloads", 0, "stop after this many successful downloads (0 = no cap)")

	for _, cmd := range []*cobra.Command{linksCmd, profileCmd} {
		cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "output directory (default: downloads)")
		cmd.Flags().StringVar(&contentType, "content-type", "", "content filter: all, video-only, audio-only, images-only, metadata-only")
		cmd.Flags().BoolVar(&watermark, "watermark", false, "prefer the watermarked variant when available")
		cmd.Flags().BoolVar(&noWatermark, "no-watermark", false, "prefer clean formats, overriding a config-file watermark setting")
		cmd.Flags().BoolVar(&noArchive, "no-archive", false, "do not consult or record the download archive")
		cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "skip posts whose files already exist on disk")
		cmd.Flags().BoolVar(&saveMetadata, "save-metadata", false, "write a per-profile metadata JSON document")
		cmd.Flags().DurationVar(&delay, "delay", 0, "base inter-download delay, jittered ±50% (default 2s)")
		cmd.Flags().DurationVar(&minDelay, "min-delay", 0, "lower bound of an explicit delay range")
		cmd.Flags().DurationVar(&maxDelay, "max-delay", 0, "upper bound of an explicit delay range")
		cmd.Flags().StringVar(&throttleRate, "throttle-rate", "", "transfer speed cap, e.g. 500K or 1M")
		cmd.Flags().BoolVar(&noRateLimit, "no-rate-limit", false, "disable all pacing (not recommended)")
		cmd.Flags().StringVar(&ytdlpPath, "ytdlp", "", "path to the yt-dlp binary")
	}
}

// downloadFlags collects only the flags the user actually set, so config
// file and environment values survive for the rest.
func downloadFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := func(name string, value interface{}) {
		if cmd.Flags().Changed(name) {
			flags[name] = value
		}
	}

	set("workers", workers)
	set("output-dir", outputDir)
	set("content-type", contentType)
	set("watermark", watermark)
	if cmd.Flags().Changed("no-watermark") && noWatermark {
		flags["watermark"] = false
	}
	set("max-downloads", maxDownloads)
	set("no-archive", noArchive)
	set("skip-existing", skipExisting)
	set("save-metadata", saveMetadata)
	set("delay", delay)
	set("min-delay", minDelay)
	set("max-delay", maxDelay)
	set("throttle-rate", throttleRate)
	set("no-rate-limit", noRateLimit)

	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

func runDownload(flags map[string]interface{}) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logging", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("tokfetch starting")

	if cfg.Download.Workers > 5 {
		ui.PrintWarningBanner(
			fmt.Sprintf("Running %d concurrent workers", cfg.Download.Workers),
			"High concurrency gets IPs rate limited or blocked quickly.",
			"Consider staying at 5 or below.",
		)
	}
	if cfg.RateLimit.Disabled {
		ui.PrintWarningBanner(
			"Rate limiting is DISABLED",
			"Hammering the platform at full speed will likely get",
			"this IP blocked. Use --delay instead if 2s is too slow.",
		)
	}

	switch cfg.Mode {
	case config.ModeBatch:
		ui.PrintInfo("Links file", cfg.LinksFile)
	case config.ModeProfile:
		ui.PrintInfo("Target profile", cfg.ProfileUser)
	}
	ui.PrintInfo("Output directory", cfg.Output.BaseDirectory)

	extOpts := []extractor.YtDlpOption{extractor.WithTimeout(cfg.Download.ExtractorTimeout)}
	if ytdlpPath != "" {
		extOpts = append(extOpts, extractor.WithBinary(ytdlpPath))
	}
	ext := extractor.NewYtDlp(log, extOpts...)

	sched, err := scheduler.New(cfg, ext, log)
	if err != nil {
		ui.PrintError("Failed to initialize downloader", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	summary, err := sched.Run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		log.WithError(err).Error("run aborted")
		ui.PrintError("RUN ABORTED", err.Error())
		ui.PrintSummary(summary.Downloaded, summary.Skipped, summary.Failed, elapsed)
		os.Exit(1)
	}

	ui.PrintSummary(summary.Downloaded, summary.Skipped, summary.Failed, elapsed)
	if summary.Failed > 0 {
		ui.PrintWarning("Some items failed; details in " + cfg.Output.ErrorLog)
	}
	if ctx.Err() != nil {
		ui.PrintWarning("Run interrupted before all items were processed")
		return
	}
	ui.PrintSuccess("Run complete")
}
