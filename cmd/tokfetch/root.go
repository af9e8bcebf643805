package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"tokfetch/pkg/ui"
)

var (
	// Version information, overridden at build time.
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tokfetch",
	Short: "A batch TikTok media downloader built on yt-dlp",
	Long: `tokfetch downloads TikTok posts in bulk, either from a file of post URLs
or by walking a creator's profile.

Features:
  - Concurrent batch downloads with a bounded worker pool
  - Sequential profile downloads with per-post numbering
  - Content filtering: videos, audio, image carousels or metadata only
  - Watermarked or clean format selection
  - Download archive so completed posts are never fetched twice
  - Randomized inter-download delays and rotating browser identities
  - Automatic retry with exponential backoff`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColorEnabled(false)
		}
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .tokfetch.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors and the summary")

	rootCmd.SetVersionTemplate(`tokfetch {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
