package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var (
	mu           sync.Mutex
	quietMode    bool
	colorEnabled = term.IsTerminal(int(os.Stdout.Fd()))
)

// SetQuietMode suppresses everything except errors and the final summary.
func SetQuietMode(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	quietMode = enabled
}

// SetColorEnabled overrides TTY detection, for --no-color and piped output.
func SetColorEnabled(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	colorEnabled = enabled
}

func isQuiet() bool {
	mu.Lock()
	defer mu.Unlock()
	return quietMode
}

// Color functions for terminal output.
var (
	Cyan   = colorize("\033[36m%s\033[0m")
	Yellow = colorize("\033[33m%s\033[0m")
	Red    = colorize("\033[31m%s\033[0m")
	Green  = colorize("\033[32m%s\033[0m")
	Dim    = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		mu.Lock()
		on := colorEnabled
		mu.Unlock()
		if !on {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintError prints an error message in red. Errors are never silenced.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(os.Stderr, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(os.Stderr, Red(msg))
	}
}

// PrintSuccess prints a success message in green.
func PrintSuccess(msg string) {
	if isQuiet() {
		return
	}
	fmt.Println(Green(msg))
}

// PrintInfo prints a labeled value in cyan.
func PrintInfo(label string, value string) {
	if isQuiet() {
		return
	}
	fmt.Printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow.
func PrintWarning(msg string) {
	if isQuiet() {
		return
	}
	fmt.Println(Yellow(msg))
}

// PrintWarningBanner prints a bordered warning block. Used for settings that
// raise the odds of the platform blocking the client, so it stays visible
// even in quiet mode.
func PrintWarningBanner(lines ...string) {
	width := 0
	for _, line := range lines {
		if len(line) > width {
			width = len(line)
		}
	}

	border := "!" + strings.Repeat("!", width+4) + "!"
	fmt.Println(Yellow(border))
	for _, line := range lines {
		fmt.Println(Yellow(fmt.Sprintf("!  %-*s  !", width, line)))
	}
	fmt.Println(Yellow(border))
}

// PrintSummary prints the final run accounting.
func PrintSummary(downloaded, skipped, failed int, elapsed time.Duration) {
	rule := strings.Repeat("─", 34)
	fmt.Println(Dim(rule))
	fmt.Printf("  %s : %d\n", Green("Downloaded"), downloaded)
	fmt.Printf("  %s    : %d\n", Cyan("Skipped"), skipped)
	if failed > 0 {
		fmt.Printf("  %s     : %d\n", Red("Failed"), failed)
	} else {
		fmt.Printf("  %s     : %d\n", Dim("Failed"), failed)
	}
	fmt.Printf("  %s    : %s\n", Dim("Elapsed"), elapsed.Round(time.Second))
	fmt.Println(Dim(rule))
}
