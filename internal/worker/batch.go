package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/avillena/merforge/internal/extract"
	"github.com/avillena/merforge/internal/pipeline"
)

// Generator defines the interface for generating a model from a context pack
type Generator interface {
	Generate(ctx context.Context, pack *extract.ContextPack) (*pipeline.Result, error)
}

// GenerateJob represents a single context pack generation job
type GenerateJob struct {
	Path      string
	Generator Generator
}

// Execute loads the context pack and runs the full pipeline over it
func (j *GenerateJob) Execute(ctx context.Context) Result {
	pack, err := extract.LoadContextPack(j.Path)
	if err != nil {
		return &GenerateResult{Path: j.Path, Error: fmt.Errorf("load context pack: %w", err)}
	}
	result, err := j.Generator.Generate(ctx, pack)
	return &GenerateResult{
		Path:   j.Path,
		Result: result,
		Error:  err,
	}
}

// GenerateResult represents the result of a generation job
type GenerateResult struct {
	Path   string
	Result *pipeline.Result
	Error  error
}

// GetError returns the error from the generation result
func (r *GenerateResult) GetError() error {
	return r.Error
}

// BatchProcessor runs the pipeline over multiple context packs concurrently
type BatchProcessor struct {
	generator   Generator
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(generator Generator, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		generator:   generator,
		concurrency: concurrency,
	}
}

// ProcessPacks processes multiple context packs concurrently
func (b *BatchProcessor) ProcessPacks(ctx context.Context, paths []string) []*GenerateResult {
	if len(paths) == 0 {
		return []*GenerateResult{}
	}

	pool := NewPool(b.concurrency)
	pool.Start()

	for _, path := range paths {
		pool.Submit(&GenerateJob{
			Path:      path,
			Generator: b.generator,
		})
	}

	results := pool.Wait()

	generateResults := make([]*GenerateResult, len(results))
	for i, result := range results {
		generateResults[i] = result.(*GenerateResult)
	}
	return generateResults
}

// ReadPathsFromFile reads context pack paths from a file (one per line,
// blank lines and # comments skipped, duplicates dropped)
func ReadPathsFromFile(listPath string) ([]string, error) {
	file, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no context pack paths found in %s", listPath)
	}
	return paths, nil
}
