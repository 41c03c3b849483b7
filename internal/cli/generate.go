package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/avillena/merforge/internal/extract"
	"github.com/avillena/merforge/internal/model"
	"github.com/avillena/merforge/internal/normalize"
	"github.com/avillena/merforge/internal/pipeline"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	outModel       string
	outDiagnostics string
	genTimeout     time.Duration
	noCache        bool
	cacheDir       string
	llmProvider    string
	llmModel       string
	synonymFile    string
	passWorkers    int
	entityBatch    int
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate <context-pack.json>",
	Short: "Run the inference passes over a context pack and merge the results",
	Long: `Generate runs the full pipeline over a curated context pack:
- Propose candidate entities from screens and components
- Propose attributes per entity, fanned out across workers
- Propose relationships over the partial model
- Merge all proposals into one canonical model
- Validate and write the model plus a decision report

Example:
  merforge generate context-pack.json
  merforge generate context-pack.json --provider openai --model gpt-4o-mini
  merforge generate context-pack.json --json mer.json --diagnostics decisions.json`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	// Output flags
	generateCmd.Flags().StringVar(&outModel, "json", "mer.json", "output model JSON path")
	generateCmd.Flags().StringVar(&outDiagnostics, "diagnostics", "diagnostics.json", "output decision report path (empty to skip)")

	// Run flags
	generateCmd.Flags().DurationVar(&genTimeout, "timeout", 5*time.Minute, "overall run timeout")
	generateCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable pass-response caching")
	generateCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "directory for the persistent response cache")
	generateCmd.Flags().StringVar(&synonymFile, "synonyms", "", "YAML synonym table merged over the built-ins")
	generateCmd.Flags().IntVar(&passWorkers, "workers", 0, "concurrent attribute-pass calls (0 = default)")
	generateCmd.Flags().IntVar(&entityBatch, "batch-size", 0, "entities per attribute-pass call (0 = default)")

	// LLM flags
	generateCmd.Flags().StringVar(&llmProvider, "provider", "openai", "LLM provider (openai, anthropic, ollama)")
	generateCmd.Flags().StringVar(&llmModel, "model", "", "LLM model name (empty = provider default)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	packPath := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), genTimeout)
	defer cancel()

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	pack, err := extract.LoadContextPack(packPath)
	if err != nil {
		return fmt.Errorf("load context pack: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Context pack: %s (%d screens, %d components)\n",
			packPath, len(pack.Screens), pack.Components())
		fmt.Fprintf(os.Stderr, "Provider: %s\n", cfg.LLM.Provider)
		fmt.Fprintln(os.Stderr)
	}

	norm, err := newNormalizer(cfg, pack)
	if err != nil {
		return err
	}

	runner, err := pipeline.NewRunner(cfg)
	if err != nil {
		return fmt.Errorf("configure provider: %w", err)
	}

	p := pipeline.New(cfg, norm, runner)
	result, err := p.Generate(ctx, pack)
	if renderErr := renderResult(cfg, result); renderErr != nil && err == nil {
		err = renderErr
	}
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	return nil
}

// buildConfig assembles the run configuration in hierarchy order: defaults,
// then the config file and MERFORGE_* environment, then flags. Provider
// credentials come from the environment only.
func buildConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := applyFileConfig(cfg); err != nil {
		return nil, err
	}

	if verbose {
		cfg.Output.Verbose = true
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if cacheDir != "" {
		cfg.Cache.Dir = cacheDir
	}
	if synonymFile != "" {
		cfg.Normalize.SynonymFile = synonymFile
	}
	if passWorkers > 0 {
		cfg.Concurrency.PassWorkers = passWorkers
	}
	if entityBatch > 0 {
		cfg.Concurrency.EntityBatch = entityBatch
	}

	// The provider flag has a non-empty default, so it only outranks the
	// config file when set explicitly
	if cmd.Flags().Changed("provider") || cfg.LLM.Provider == "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}

	switch cfg.LLM.Provider {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
	return cfg, nil
}

// applyFileConfig overlays the values viper read from the config file and
// the MERFORGE_* environment onto the defaults. Only keys present in viper
// are applied. API keys are never taken from the file.
func applyFileConfig(cfg *model.Config) error {
	err := viper.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		return fmt.Errorf("apply config file: %w", err)
	}
	cfg.LLM.APIKey = ""
	return nil
}

// newNormalizer builds identity resolution from the built-in synonym table,
// an optional user table, and the pack's glossary (highest priority last)
func newNormalizer(cfg *model.Config, pack *extract.ContextPack) (*normalize.Normalizer, error) {
	var table normalize.Table
	if cfg.Normalize.SynonymFile != "" {
		loaded, err := normalize.Load(cfg.Normalize.SynonymFile)
		if err != nil {
			return nil, fmt.Errorf("load synonym table: %w", err)
		}
		table = loaded
	}
	if pack != nil {
		glossary := pack.SynonymTable()
		table.Entities = append(table.Entities, glossary.Entities...)
		table.Attributes = append(table.Attributes, glossary.Attributes...)
	}
	return normalize.New(table), nil
}

// renderResult writes the model, the decision report and a stdout summary.
// The model and report are written even for a rejected run.
func renderResult(cfg *model.Config, result *pipeline.Result) error {
	if result == nil {
		return nil
	}
	renderer := pipeline.NewRenderer()
	if result.Model != nil {
		result.Model.Meta.GeneratedAt = time.Now().UTC()
		if err := renderer.RenderModel(result.Model, outModel); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "Wrote model: %s\n", outModel)
		}
	}
	if cfg.Output.Diagnostics && outDiagnostics != "" {
		if err := renderer.RenderDiagnostics(result.Diagnostics, outDiagnostics); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "Wrote diagnostics: %s\n", outDiagnostics)
		}
	}
	renderer.RenderSummary(result)
	return nil
}
