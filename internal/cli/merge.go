package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/avillena/merforge/internal/extract"
	"github.com/avillena/merforge/internal/merge"
	"github.com/avillena/merforge/internal/model"
	"github.com/avillena/merforge/internal/pipeline"
	"github.com/spf13/cobra"
)

var mergePackPath string

// mergeCmd represents the merge command
var mergeCmd = &cobra.Command{
	Use:   "merge <pass.json>...",
	Short: "Merge captured pass results offline, without a provider",
	Long: `Merge runs the merge engine over previously captured pass results.
Files are taken in pass order: the first file is the entities pass, later
files carry more context and weigh more during confidence aggregation.

No provider is contacted. The same inputs always produce the same model.

Example:
  merforge merge pass-entities.json pass-attributes.json pass-relationships.json
  merforge merge passes/*.json --pack context-pack.json --json mer.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringVar(&outModel, "json", "mer.json", "output model JSON path")
	mergeCmd.Flags().StringVar(&outDiagnostics, "diagnostics", "diagnostics.json", "output decision report path (empty to skip)")
	mergeCmd.Flags().StringVar(&mergePackPath, "pack", "", "context pack supplying glossary, rules and enums")
	mergeCmd.Flags().StringVar(&synonymFile, "synonyms", "", "YAML synonym table merged over the built-ins")
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfg := model.DefaultConfig()
	if err := applyFileConfig(cfg); err != nil {
		return err
	}
	if verbose {
		cfg.Output.Verbose = true
	}
	if synonymFile != "" {
		cfg.Normalize.SynonymFile = synonymFile
	}

	var pack *extract.ContextPack
	if mergePackPath != "" {
		loaded, err := extract.LoadContextPack(mergePackPath)
		if err != nil {
			return fmt.Errorf("load context pack: %w", err)
		}
		pack = loaded
	}

	input := pipeline.MergeInput{}
	for i, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read pass file: %w", err)
		}
		id := filepath.Base(path)
		passResult, rejects, err := extract.DecodePassResult(data, i, id)
		if err != nil {
			return fmt.Errorf("decode %s: %w", id, err)
		}
		input.Passes = append(input.Passes, passResult)
		input.Malformed = append(input.Malformed, rejects...)
		if verbose {
			fmt.Fprintf(os.Stderr, "Pass %d (%s): %d entities, %d relationships, %d rejected\n",
				i, id, len(passResult.Entities), len(passResult.Relationships), len(rejects))
		}
	}

	norm, err := newNormalizer(cfg, pack)
	if err != nil {
		return err
	}
	if pack != nil {
		for _, r := range pack.CardinalityRules() {
			input.Rules = append(input.Rules, merge.CardinalityRule{
				From: r.From, To: r.To, Type: model.Cardinality(r.Type), Sources: r.Sources,
			})
		}
		input.Enums = pack.Enums()
	}

	p := pipeline.New(cfg, norm, nil)
	result, err := p.Merge(input)
	if renderErr := renderResult(cfg, result); renderErr != nil && err == nil {
		err = renderErr
	}
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	return nil
}
