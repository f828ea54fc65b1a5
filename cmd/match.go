package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/imaging"
	"github.com/kozaktomas/face-finder/internal/matcher"
	"github.com/kozaktomas/face-finder/internal/results"
)

var matchCmd = &cobra.Command{
	Use:   "match <reference-image> <folder>",
	Short: "Find photos containing the reference face",
	Long: `Match every image in a folder against a face from the reference image.
The reference image must contain at least one detectable face; pick one
with --face-index when it contains several. Results are written to the
output directory as a CSV file.`,
	Args: cobra.ExactArgs(2),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Int("face-index", 0, "Index of the face to use from the reference image")
	matchCmd.Flags().Float64("threshold", 0, "Similarity threshold override")
	matchCmd.Flags().Int("workers", 0, "Worker pool size override")
	matchCmd.Flags().Bool("json", false, "Output results as JSON instead of a summary")
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	referencePath, folder := args[0], args[1]

	if cfg.Embedding.URL == "" {
		return errors.New("EMBEDDING_URL environment variable is required")
	}

	if info, err := os.Stat(folder); err != nil || !info.IsDir() {
		return fmt.Errorf("folder not found: %s", folder)
	}

	faceIndex := mustGetInt(cmd, "face-index")
	asJSON := mustGetBool(cmd, "json")

	workers := cfg.Match.Workers
	if n := mustGetInt(cmd, "workers"); n > 0 {
		workers = n
	}

	opts := []matcher.Option{matcher.WithWorkers(workers)}
	if t := mustGetFloat64(cmd, "threshold"); t > 0 {
		opts = append(opts, matcher.WithThreshold(t))
	}
	m := matcher.New(newDetector(cfg), opts...)

	ctx := cmd.Context()
	reference, err := m.SelectReference(ctx, referencePath, faceIndex)
	if err != nil {
		var idxErr *matcher.InvalidIndexError
		if errors.As(err, &idxErr) {
			return fmt.Errorf("reference image: %w", idxErr)
		}
		return fmt.Errorf("selecting reference face from %s: %w", referencePath, err)
	}

	paths := imaging.ScanFolder(folder)
	if len(paths) == 0 {
		return fmt.Errorf("no images found in %s", folder)
	}

	var bar *progressbar.ProgressBar
	if !asJSON {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription("Matching faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	set, err := m.Run(ctx, paths, reference, nil, func(p matcher.Progress) {
		if bar != nil {
			bar.Add(1)
		}
	})
	if err != nil {
		return fmt.Errorf("match run: %w", err)
	}
	if bar != nil {
		fmt.Println()
	}

	store, err := results.NewStore(cfg.Storage.OutputDir)
	if err != nil {
		return fmt.Errorf("initializing results store: %w", err)
	}
	if err := store.Save(set); err != nil {
		return fmt.Errorf("saving results: %w", err)
	}

	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"matched": set.Matched(),
			"total":   len(set),
			"records": set,
		})
	}

	fmt.Printf("\nMatched %d of %d images (threshold %.2f)\n", set.Matched(), len(set), m.Threshold())
	for _, rec := range set {
		if rec.IsMatch {
			fmt.Printf("  %s (similarity %.3f, %d faces)\n", rec.ImagePath, rec.MaxSimilarity, rec.FaceCount)
		}
	}
	fmt.Printf("\nResults written to %s\n", store.Path())
	return nil
}
