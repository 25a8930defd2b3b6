package lens

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/PatchLens/cs-entry-lens/internal/logging"
)

// ProcessProject instruments every source file of the configured project into the generated
// directory. Files that fail to parse are recorded in the report and skipped, any other error
// aborts the run. Dry runs write unified diffs to diffOut instead of output files.
func ProcessProject(ctx context.Context, cfg *Config, diffOut io.Writer) (*RunReport, error) {
	if !cfg.prepared {
		if err := cfg.Prepare(); err != nil {
			return nil, err
		}
	}
	logger := logging.FromContext(ctx)
	startTime := time.Now()

	opts, err := cfg.RewriteOptions()
	if err != nil {
		return nil, err
	}
	rewriter, err := NewRewriter(opts)
	if err != nil {
		return nil, err
	}

	store, err := openCacheStorage(cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close cache", logging.FieldError, err)
		}
	}()
	cache, err := NewRewriteCache(NamespacedStorage(store, Version), max(cfg.CacheMB/4, 1))
	if err != nil {
		return nil, err
	}
	defer cache.Close()
	logger.Debug("Opened rewrite cache", logging.FieldCacheDir, cfg.CacheDir, logging.FieldVersion, Version)
	if cfg.ClearCache && !cfg.DryRun {
		if err := cache.Clear(); err != nil {
			return nil, err
		}
		logger.Info("Cleared rewrite cache", logging.FieldCacheDir, cfg.CacheDir)
	}

	sources, err := findSources(ctx, cfg.AbsProjDir, cfg.AbsGeneratedDir, cfg.Extensions, cfg.ExcludeDirs)
	if err != nil {
		return nil, err
	}
	logger.Info("Discovered sources",
		logging.FieldProject, cfg.AbsProjDir, logging.FieldFilesDiscovered, len(sources),
		logging.FieldDryRun, cfg.DryRun, logging.FieldJobs, cfg.Jobs)

	if diffOut == nil {
		diffOut = io.Discard
	}
	p := &projectProcessor{
		cfg:      cfg,
		rewriter: rewriter,
		cache:    cache,
		logger:   logger,
		diffOut:  newLockedWriter(diffOut),
	}
	results := make([]FileResult, len(sources))
	eg, egCtx := ErrGroupLimit(ctx, cfg.Jobs)
	for i, rel := range sources {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			result, err := p.processFile(rel)
			if err != nil {
				return fmt.Errorf("process %s: %w", rel, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &RunReport{
		GeneratedAt:  startTime.UTC(),
		Version:      Version,
		Project:      cfg.AbsProjDir,
		GeneratedDir: cfg.GeneratedDir,
		DryRun:       cfg.DryRun,
		Files:        results,
	}
	for _, r := range results {
		report.Totals.Add(r.Stats)
	}
	if cfg.Prune && !cfg.DryRun {
		if report.Pruned, err = pruneOrphans(ctx, cfg.AbsProjDir, cfg.AbsGeneratedDir, cfg.Extensions); err != nil {
			return nil, fmt.Errorf("prune generated files: %w", err)
		}
		// orphaned outputs share their relative path with the cache key of the deleted source
		for _, rel := range report.Pruned {
			if err := cache.Delete(rel); err != nil {
				return nil, err
			}
		}
	}
	report.RunDuration = time.Since(startTime).Milliseconds()

	counts := report.StatusCounts()
	logger.Info("Instrumentation complete",
		logging.FieldFilesRewritten, counts[FileRewritten],
		logging.FieldFilesCached, counts[FileCached],
		logging.FieldFilesFresh, counts[FileFresh],
		logging.FieldFilesFailed, counts[FileFailed],
		logging.FieldFilesPruned, len(report.Pruned),
		logging.FieldMethods, report.Totals.Methods,
		logging.FieldDuration, time.Since(startTime).Round(time.Millisecond))
	return report, nil
}

func openCacheStorage(cfg *Config) (Storage, error) {
	if cfg.CacheDir == "" || cfg.DryRun {
		return NewMemStorage(), nil
	}
	return NewBadgerStorage(cfg.CacheDir, cfg.CacheMB)
}

type projectProcessor struct {
	cfg      *Config
	rewriter *Rewriter
	cache    *RewriteCache
	logger   *log.Logger
	diffOut  *lockedWriter
}

func (p *projectProcessor) processFile(rel string) (FileResult, error) {
	startTime := time.Now()
	srcPath := filepath.Join(p.cfg.AbsProjDir, rel)
	outPath := filepath.Join(p.cfg.AbsGeneratedDir, rel)
	result := FileResult{
		Path:   rel,
		Output: filepath.Join(p.cfg.GeneratedDir, rel),
	}
	finish := func(status FileStatus) (FileResult, error) {
		result.Status = status
		result.DurationUs = time.Since(startTime).Microseconds()
		p.logger.Debug("Processed source", logging.FieldPath, rel, logging.FieldStatus, status,
			logging.FieldMethods, result.Stats.Methods)
		return result, nil
	}

	// directives refer to the original relative to the generated file
	directivePath, err := filepath.Rel(filepath.Dir(outPath), srcPath)
	if err != nil {
		return result, err
	}
	content, err := os.ReadFile(srcPath)
	if err != nil {
		return result, err
	}
	marker := FreshnessMarker(Version, content, p.rewriter.Fingerprint()+"\x00"+directivePath)

	var output string
	var hit bool
	if !p.cfg.Force {
		existingMarker, err := readFirstLine(outPath)
		if err != nil {
			return result, err
		}
		switch CompareMarker(existingMarker, marker) {
		case MarkerFresh:
			return finish(FileFresh)
		case MarkerNewer:
			p.logger.Warn("Output was written by a newer version, skipping", logging.FieldPath, rel)
			return finish(FileNewer)
		}

		if output, result.Stats, hit, err = p.cache.Get(rel, marker); err != nil {
			return result, err
		}
	}

	status := FileCached
	if !hit {
		status = FileRewritten
		if output, result.Stats, err = p.rewriter.RewriteWithStats(string(content), directivePath, marker); err != nil {
			if IsSkippableRewriteError(err) {
				p.logger.Warn("Skipping source", logging.FieldPath, rel, logging.FieldError, err)
				result.Error = err.Error()
				return finish(FileFailed)
			}
			return result, err
		} else if err = p.cache.Put(rel, marker, output, result.Stats); err != nil {
			return result, err
		}
	}

	if p.cfg.DryRun {
		err = p.writeDiff(result.Output, outPath, output)
	} else {
		err = writeFileAtomic(outPath, []byte(output))
	}
	if err != nil {
		return result, err
	}
	return finish(status)
}

func (p *projectProcessor) writeDiff(name, outPath, output string) error {
	existing, err := os.ReadFile(outPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	name = filepath.ToSlash(name)
	diff, err := UnifiedDiff("a/"+name, "b/"+name, string(existing), output)
	if err != nil {
		return fmt.Errorf("diff %s: %w", name, err)
	} else if diff == "" {
		return nil
	}

	added, removed := DiffLineCounts(string(existing), output)
	p.logger.Debug("Would update output", logging.FieldOutput, name, "added", added, "removed", removed)
	_, err = p.diffOut.WriteString(diff)
	return err
}
