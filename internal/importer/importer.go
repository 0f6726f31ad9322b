// Package importer converts object manifests exported by other authoring
// tools into level files, giving every object a unique identifier the same
// way the editor's spawn does.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/scenesync/internal/naming"
	"github.com/cory-johannsen/scenesync/internal/scene"
)

// Summary reports the outcome of importing one manifest.
type Summary struct {
	// Level is the manifest's level.
	Level string
	// Path is the level file written.
	Path string
	// Imported counts the manifest's objects.
	Imported int
	// Renamed counts imported objects whose identifier differs from the
	// name requested for them.
	Renamed int
	// Total counts the objects in the written level, including ones that
	// were already in the file.
	Total int
}

// Importer orchestrates manifest import from a Source to an output directory.
type Importer struct {
	source      Source
	policy      naming.Policy
	rules       []scene.Rule
	maxAttempts int
	logger      *zap.Logger
}

// New constructs an Importer backed by source. Identifiers are derived under
// policy and checked against rules.
//
// Precondition: source and logger must be non-nil; policy must be valid.
// Postcondition: returns a non-nil Importer.
func New(source Source, policy naming.Policy, logger *zap.Logger, rules ...scene.Rule) *Importer {
	if source == nil {
		panic("importer.New: source must not be nil")
	}
	if logger == nil {
		panic("importer.New: logger must not be nil")
	}
	return &Importer{
		source:      source,
		policy:      policy,
		rules:       rules,
		maxAttempts: naming.DefaultMaxAttempts,
		logger:      logger,
	}
}

// Run loads manifests from sourcePath and writes one level YAML per manifest
// to outputDir as <level>.yaml. A level file already in outputDir is loaded
// first so imported objects never collide with objects it holds; manifests
// naming the same level are merged in load order.
//
// Precondition: sourcePath must satisfy the source's layout requirements;
// outputDir must exist or be creatable.
// Postcondition: one Summary per manifest in load order, or an error. Level
// files written before the error stay on disk.
func (imp *Importer) Run(ctx context.Context, sourcePath, outputDir string) ([]Summary, error) {
	overall := time.Now()

	manifests, err := imp.source.Load(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("loading source: %w", err)
	}
	imp.logger.Info("manifests loaded", zap.Int("count", len(manifests)), zap.Duration("elapsed", time.Since(overall)))

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", outputDir, err)
	}

	summaries := make([]Summary, 0, len(manifests))
	for _, m := range manifests {
		sum, err := imp.Import(ctx, m, outputDir)
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, sum)
	}

	imp.logger.Info("import complete", zap.Duration("elapsed", time.Since(overall)))
	return summaries, nil
}

// Import merges one manifest into outputDir/<level>.yaml.
//
// Precondition: m must be valid; outputDir must exist.
// Postcondition: the level file holds the previous objects plus every
// manifest object under a unique identifier with a synced label.
func (imp *Importer) Import(ctx context.Context, m *Manifest, outputDir string) (Summary, error) {
	start := time.Now()
	level := naming.Scope(m.Level)
	outPath := filepath.Join(outputDir, m.Level+".yaml")

	mgr := scene.NewManager(scene.WithRules(imp.rules...))
	if err := imp.loadExisting(ctx, mgr, outPath, m.Level); err != nil {
		return Summary{}, err
	}
	sync := naming.NewSynchronizer(imp.policy, mgr,
		naming.WithLogger(imp.logger),
		naming.WithMaxAttempts(imp.maxAttempts),
	)

	sum := Summary{Level: m.Level, Path: outPath}
	for _, o := range m.Objects {
		requested := RequestedName(o)
		obj, err := scene.Spawn(ctx, mgr, sync, scene.ObjectSpec{
			Level:     level,
			AssetPath: o.Asset,
			Transform: o.Transform,
		}, requested, imp.maxAttempts)
		if err != nil {
			return Summary{}, fmt.Errorf("level %q: importing %q: %w", m.Level, requested, err)
		}
		sum.Imported++
		if obj.ID().String() != requested {
			sum.Renamed++
			imp.logger.Debug("imported object renamed",
				zap.String("level", m.Level),
				zap.String("requested", requested),
				zap.String("id", obj.ID().String()),
			)
		}
	}

	snap := mgr.Snapshot(level)
	// The written file must load back.
	if err := snap.Validate(); err != nil {
		return Summary{}, fmt.Errorf("level %q failed validation: %w", m.Level, err)
	}
	if err := scene.WriteLevelFile(outPath, snap); err != nil {
		return Summary{}, err
	}
	sum.Total = mgr.Count()

	imp.logger.Info("level written",
		zap.String("path", outPath),
		zap.Int("imported", sum.Imported),
		zap.Int("renamed", sum.Renamed),
		zap.Int("total", sum.Total),
		zap.Duration("elapsed", time.Since(start)),
	)
	return sum, nil
}

func (imp *Importer) loadExisting(ctx context.Context, mgr *scene.Manager, path, level string) error {
	existing, err := scene.LoadLevelFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.Name != level {
		return fmt.Errorf("%s holds level %q, not %q", path, existing.Name, level)
	}
	if _, err := mgr.Populate(ctx, existing); err != nil {
		return err
	}
	return nil
}
