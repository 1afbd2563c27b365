package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/claude/repcoach/internal/profile"
	"github.com/claude/repcoach/internal/replay"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "RepCoach server URL (e.g. https://repcoach.tail1234.ts.net)")
	apiKey := flag.String("api-key", "", "API key for the import endpoint (or REPCOACH_AUTH_API_KEY)")
	recordingsPath := flag.String("path", "", "directory containing .jsonl landmark recordings")
	profilesPath := flag.String("profiles", "", "optional YAML profile override file")
	dryRun := flag.Bool("dry-run", false, "evaluate recordings but don't send to server")
	visibility := flag.Float64("visibility", 0, "visibility gate threshold (0 = default)")
	cooldown := flag.Duration("cooldown", 0, "feedback cooldown per message code (0 = default)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("repcoach-replay", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *recordingsPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: repcoach-replay -server <URL> -api-key <key> -path <recordings dir> [-dry-run]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *serverURL == "" && !*dryRun {
		fmt.Fprintf(os.Stderr, "Error: -server is required (or use -dry-run)\n")
		os.Exit(1)
	}
	if *apiKey == "" {
		*apiKey = os.Getenv("REPCOACH_AUTH_API_KEY")
	}
	if *apiKey == "" && !*dryRun {
		fmt.Fprintf(os.Stderr, "Error: -api-key is required (or use -dry-run)\n")
		os.Exit(1)
	}

	*serverURL = strings.TrimRight(*serverURL, "/")

	info, err := os.Stat(*recordingsPath)
	if err != nil || !info.IsDir() {
		log.Error("recordings directory not found", "path", *recordingsPath)
		os.Exit(1)
	}

	registry, err := profile.NewRegistry()
	if err != nil {
		log.Error("failed to load exercise profiles", "error", err)
		os.Exit(1)
	}
	if *profilesPath != "" {
		if err := registry.ApplyOverrides(*profilesPath); err != nil {
			log.Error("failed to apply profile overrides", "error", err)
			os.Exit(1)
		}
	}

	// Open state database
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Error("failed to get home directory", "error", err)
		os.Exit(1)
	}
	stateDir := filepath.Join(homeDir, ".repcoach-replay")

	state, err := replay.OpenStateDB(stateDir)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	if *dryRun {
		log.Info("DRY RUN mode, recordings will be evaluated but not sent")
	}

	runner := replay.NewRunner(
		replay.NewClient(*serverURL, *apiKey),
		state, registry, *recordingsPath, *dryRun,
		replay.Options{VisibilityThreshold: *visibility, FeedbackCooldown: *cooldown},
		log,
	)
	stats, err := runner.Run()
	if err != nil {
		log.Error("replay failed", "error", err)
		printStats(stats)
		os.Exit(1)
	}

	printStats(stats)
	log.Info("replay complete")
}

func printStats(stats *replay.Stats) {
	fmt.Println()
	fmt.Println("=== Replay Summary ===")
	fmt.Printf("  Files total:      %d\n", stats.FilesTotal)
	fmt.Printf("  Files replayed:   %d\n", stats.FilesReplayed)
	fmt.Printf("  Files skipped:    %d (already replayed)\n", stats.FilesSkipped)
	fmt.Printf("  Files errored:    %d\n", stats.FilesErrored)
	fmt.Println()
	fmt.Printf("  Frames read:      %d\n", stats.FramesRead)
	fmt.Printf("  Reps evaluated:   %d\n", stats.RepsEvaluated)
	fmt.Println()
}
