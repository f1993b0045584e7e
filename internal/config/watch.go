package config

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path and calls onChange with the reloaded Config after each
// write. It runs until ctx is cancelled.
//
// A reload that fails to parse or validate is logged and skipped; the caller
// keeps its previous Config. Each accepted reload is logged with the services
// it added, removed or re-pointed relative to the last accepted one.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	// The file may already be invalid at start; the first good reload then
	// reports every service as added.
	prev, _ := Load(path)

	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Create covers editors that save by rename.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload rejected", "path", path, "err", err)
				continue
			}

			if d := diffServices(prev, cfg); d.Empty() {
				slog.Info("config: reloaded", "path", path,
					"services", len(cfg.Services), "poll_interval", cfg.Dashboard.PollInterval)
			} else {
				slog.Info("config: reloaded with service changes", "path", path,
					"added", d.Added, "removed", d.Removed, "changed", d.Changed,
					"poll_interval", cfg.Dashboard.PollInterval)
			}
			prev = cfg
			onChange(cfg)

			// An atomic save replaces the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// ServiceDiff lists service keys by how they differ between two configs.
type ServiceDiff struct {
	Added   []string
	Removed []string
	// Changed holds keys whose resolved base URL, health path, auth mode or
	// TLS setting differ.
	Changed []string
}

// Empty reports whether the two configs carry the same service set.
func (d ServiceDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// diffServices compares the service sets of prev and next. A nil prev counts
// as an empty set. Keys in each list are sorted.
func diffServices(prev, next *Config) ServiceDiff {
	before := make(map[string]Service)
	if prev != nil {
		for _, s := range prev.Services {
			before[s.Key] = s
		}
	}

	var d ServiceDiff
	seen := make(map[string]bool, len(next.Services))
	for _, s := range next.Services {
		seen[s.Key] = true
		old, ok := before[s.Key]
		switch {
		case !ok:
			d.Added = append(d.Added, s.Key)
		case old.EffectiveBaseURL() != s.EffectiveBaseURL() || old.HealthPath != s.HealthPath ||
			old.Auth.Mode != s.Auth.Mode || old.TLS != s.TLS:
			d.Changed = append(d.Changed, s.Key)
		}
	}
	for k := range before {
		if !seen[k] {
			d.Removed = append(d.Removed, k)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	return d
}
