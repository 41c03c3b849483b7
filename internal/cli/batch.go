package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/avillena/merforge/internal/pipeline"
	"github.com/avillena/merforge/internal/worker"
	"github.com/spf13/cobra"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <dir|file>",
	Short: "Generate models for multiple context packs in parallel",
	Long: `Batch runs the full pipeline over many context packs concurrently:
- Given a directory, process every *.json context pack in it
- Given a file, read context pack paths from it (one per line)
- Process packs in parallel with a configurable worker count
- Write one model and one decision report per pack

Example:
  merforge batch ./packs
  merforge batch packs.txt --concurrency 4 --output-dir ./models
  merforge batch ./packs --provider ollama --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent pack runs")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./merforge-models", "output directory for models")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable pass-response caching")
	batchCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "directory for the persistent response cache")
	batchCmd.Flags().StringVar(&synonymFile, "synonyms", "", "YAML synonym table merged over the built-ins")

	// LLM flags
	batchCmd.Flags().StringVar(&llmProvider, "provider", "openai", "LLM provider (openai, anthropic, ollama)")
	batchCmd.Flags().StringVar(&llmModel, "model", "", "LLM model name (empty = provider default)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	// All packs share one normalizer: the built-ins plus any user synonym
	// table. Per-pack glossaries need a single-pack generate run.
	norm, err := newNormalizer(cfg, nil)
	if err != nil {
		return err
	}

	runner, err := pipeline.NewRunner(cfg)
	if err != nil {
		return fmt.Errorf("configure provider: %w", err)
	}
	p := pipeline.New(cfg, norm, runner)

	paths, err := collectPackPaths(file)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Reading context packs from %s\n", file)
	processor := worker.NewBatchProcessor(p, concurrency)
	results := processor.ProcessPacks(ctx, paths)
	fmt.Fprintf(os.Stderr, "Processing %d packs with %d workers\n\n", len(results), concurrency)

	renderer := pipeline.NewRenderer()
	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", result.Path, result.Error)
			if result.Result == nil {
				continue
			}
		}

		slug := packSlug(result.Path)
		modelPath := filepath.Join(outputDir, slug+".mer.json")
		diagPath := filepath.Join(outputDir, slug+".diagnostics.json")

		if result.Result.Model != nil {
			result.Result.Model.Meta.GeneratedAt = time.Now().UTC()
			if err := renderer.RenderModel(result.Result.Model, modelPath); err != nil {
				fmt.Fprintf(os.Stderr, "FAIL %s: write model: %v\n", result.Path, err)
				continue
			}
		}
		if cfg.Output.Diagnostics {
			if err := renderer.RenderDiagnostics(result.Result.Diagnostics, diagPath); err != nil {
				fmt.Fprintf(os.Stderr, "FAIL %s: write diagnostics: %v\n", result.Path, err)
				continue
			}
		}

		if result.Error == nil {
			successCount++
			fmt.Fprintf(os.Stderr, "OK   %s: %d entities, %d relationships\n",
				result.Path, len(result.Result.Model.Entities), len(result.Result.Model.Relationships))
		}
	}

	fmt.Fprintf(os.Stderr, "\nBatch complete: %d ok, %d failed, output in %s\n",
		successCount, failureCount, outputDir)
	if failureCount > 0 {
		return fmt.Errorf("%d of %d packs failed", failureCount, len(results))
	}
	return nil
}

// collectPackPaths resolves the batch argument into context pack paths:
// a directory yields its *.json files, anything else is read as a path list
func collectPackPaths(arg string) ([]string, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", arg, err)
	}
	if !info.IsDir() {
		paths, err := worker.ReadPathsFromFile(arg)
		if err != nil {
			return nil, fmt.Errorf("read pack list: %w", err)
		}
		return paths, nil
	}
	paths, err := filepath.Glob(filepath.Join(arg, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", arg, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no *.json context packs in %s", arg)
	}
	sort.Strings(paths)
	return paths, nil
}

// packSlug derives an output file stem from a context pack path
func packSlug(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, base)
	if len(base) > 100 {
		base = base[:100]
	}
	return base
}
