package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/avillena/merforge/internal/model"
	"github.com/avillena/merforge/internal/project"
	"github.com/spf13/cobra"
)

var outSchema string

// projectCmd represents the project command
var projectCmd = &cobra.Command{
	Use:   "project <mer.json>",
	Short: "Project an accepted model into a Prisma schema",
	Long: `Project converts a merged model into a downstream schema artifact.
Currently only the Prisma target is supported.

Example:
  merforge project mer.json
  merforge project mer.json --out schema.prisma`,
	Args: cobra.ExactArgs(1),
	RunE: runProject,
}

func init() {
	rootCmd.AddCommand(projectCmd)

	projectCmd.Flags().StringVar(&outSchema, "out", "schema.prisma", "output schema path (- for stdout)")
}

func runProject(cmd *cobra.Command, args []string) error {
	m, err := loadModel(args[0])
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := project.NewPrismaFormatter(&buf).Format(m); err != nil {
		return fmt.Errorf("project schema: %w", err)
	}

	if outSchema == "-" {
		_, err = os.Stdout.Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(outSchema, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Wrote schema: %s\n", outSchema)
	}
	return nil
}

// loadModel reads a merged model from disk
func loadModel(path string) (*model.MER, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m model.MER
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return &m, nil
}
