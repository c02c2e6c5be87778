// # internal/app/watch.go
package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"pyrite/internal/shared/util"
	"pyrite/internal/syntax"
	"pyrite/internal/watcher"
)

// Watch re-checks on file changes until the context is cancelled.
// Changed modules and everything importing them are invalidated in the
// cache, so the following run re-analyzes exactly the affected slice of
// the graph.
func (c *Checker) Watch(ctx context.Context) error {
	limiter := util.NewLimiter(c.cfg.Watch.RechecksPerSecond, 1)
	recheck := make(chan []string, 8)

	w, err := watcher.NewWatcher(c.cfg.Watch.Debounce, c.cfg.Exclude.Dirs, c.cfg.Exclude.Files, func(paths []string) {
		select {
		case recheck <- paths:
		default:
			slog.Warn("recheck backlog full, dropping batch", "files", len(paths))
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Watch(c.cfg.SourcePaths); err != nil {
		return err
	}
	slog.Info("watching for changes", "paths", c.cfg.SourcePaths)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case paths := <-recheck:
			if err := limiter.Wait(ctx, 1); err != nil {
				return err
			}
			c.invalidate(paths)
			res, err := c.Run(ctx)
			if err != nil {
				slog.Error("recheck failed", "error", err)
				continue
			}
			c.Report(res)
		}
	}
}

// invalidate maps changed files onto modules and drops them plus their
// transitive importers from the cache.
func (c *Checker) invalidate(paths []string) {
	affected := make(map[string]bool)
	for _, path := range paths {
		name := c.moduleNameFor(path)
		if name == "" {
			continue
		}
		for _, m := range c.graph.InvalidateTransitive(name) {
			affected[m] = true
		}
		affected[name] = true
	}
	if len(affected) == 0 || c.store == nil {
		return
	}

	names := make([]string, 0, len(affected))
	for n := range affected {
		names = append(names, n)
	}
	sort.Strings(names)
	slog.Debug("invalidating modules", "modules", names)
	if err := c.store.Invalidate(names); err != nil {
		slog.Warn("cache invalidation failed", "error", err)
	}
}

func (c *Checker) moduleNameFor(path string) string {
	for _, root := range c.cfg.SourcePaths {
		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return syntax.ModuleNameFromPath(root, path)
	}
	return ""
}
