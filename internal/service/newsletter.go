// Package service exposes newsletter processing to the CLI: single files
// and concurrent batch runs over directories.
package service

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/raphaelgruber/arrgh-go/internal/models"
	"github.com/raphaelgruber/arrgh-go/internal/parser"
	"github.com/raphaelgruber/arrgh-go/internal/pipeline"
)

// newsletterExtensions are the file types accepted as newsletters.
var newsletterExtensions = map[string]bool{
	".md":   true,
	".txt":  true,
	".html": true,
	".eml":  true,
}

// NewsletterService runs newsletters through the pipeline.
type NewsletterService struct {
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

func NewNewsletterService(p *pipeline.Pipeline, logger *slog.Logger) *NewsletterService {
	return &NewsletterService{pipeline: p, logger: logger}
}

// ProcessFile parses a single newsletter file and runs it through the
// pipeline.
func (s *NewsletterService) ProcessFile(ctx context.Context, path string) (*models.RunResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	parsed, err := parser.ParseNewsletter(path, content)
	if err != nil {
		return nil, fmt.Errorf("parse newsletter: %w", err)
	}

	return s.pipeline.ProcessNewsletter(ctx, parsed.Newsletter, parsed.Body)
}

// BatchOptions configures directory processing.
type BatchOptions struct {
	// Recursive processes subdirectories.
	Recursive bool
	// Concurrency sets the number of parallel workers (default NumCPU/2).
	Concurrency int
}

// BatchResult summarizes a directory run.
type BatchResult struct {
	Processed int
	Succeeded int
	Partial   int
	Failed    int
	Results   []*models.RunResult
	Errors    []string
}

// ProcessDirectory runs every newsletter file under dir through the
// pipeline on a worker pool. Per-file failures are collected, never fatal
// for the batch.
func (s *NewsletterService) ProcessDirectory(ctx context.Context, dir string, opts BatchOptions) (*BatchResult, error) {
	files, err := collectFiles(dir, opts.Recursive)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	if len(files) == 0 {
		return result, nil
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = runtime.NumCPU() / 2
		if concurrency < 1 {
			concurrency = 1
		}
	}

	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, path := range files {
		path := path
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			runResult, err := s.ProcessFile(ctx, path)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", path, err))
				return
			}
			result.Results = append(result.Results, runResult)
			switch runResult.Status {
			case models.StatusSuccess:
				result.Succeeded++
			case models.StatusPartial:
				result.Partial++
			default:
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: run failed", path))
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			result.Errors = append(result.Errors, fmt.Sprintf("%s: submit: %s", path, submitErr))
			mu.Unlock()
		}
	}

	wg.Wait()

	s.logger.Info("batch finished",
		slog.String("dir", dir),
		slog.Int("processed", result.Processed),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("partial", result.Partial),
		slog.Int("failed", result.Failed))

	return result, nil
}

// collectFiles lists newsletter files under dir in a stable order.
func collectFiles(dir string, recursive bool) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if newsletterExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	sort.Strings(files)
	return files, nil
}
