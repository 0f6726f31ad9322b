// Package main provides the import-scene tool, which converts object
// manifests exported by other authoring tools into level files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cory-johannsen/scenesync/internal/config"
	"github.com/cory-johannsen/scenesync/internal/importer"
	"github.com/cory-johannsen/scenesync/internal/naming"
	"github.com/cory-johannsen/scenesync/internal/observability"
	"github.com/cory-johannsen/scenesync/internal/scene"
	"github.com/cory-johannsen/scenesync/internal/scripting"
)

func main() {
	sourcePath := flag.String("source", "", "manifest file or directory of manifests")
	outputDir := flag.String("output", "", "path to output level directory")
	configPath := flag.String("config", "", "optional configuration file for naming policy and rules")
	verbose := flag.Bool("v", false, "log every renamed object")
	flag.Parse()

	if *sourcePath == "" || *outputDir == "" {
		fmt.Fprintln(os.Stderr, "usage: import-scene -source <file|dir> -output <dir> [-config <file>] [-v]")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg.Logging.Format = "console"
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	rules := []scene.Rule{scene.ReservedPrefixes(cfg.Naming.ReservedPrefixes)}
	if cfg.Scripting.RulesDir != "" {
		scripts := scripting.NewManager(naming.NewSanitizer(cfg.Naming.Policy()), cfg.Scripting.InstructionLimit, logger)
		defer scripts.Close()
		if err := scripts.LoadDir(cfg.Scripting.RulesDir); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		rules = append(rules, scripting.NewNameRules(scripts))
	}

	start := time.Now()
	imp := importer.New(importer.NewYAMLSource(), cfg.Naming.Policy(), logger, rules...)
	sums, err := imp.Run(context.Background(), *sourcePath, *outputDir)
	for _, s := range sums {
		fmt.Printf("wrote   %s  (%d imported, %d renamed, %d total)\n", s.Path, s.Imported, s.Renamed, s.Total)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("import complete in %s\n", time.Since(start).Round(time.Millisecond))
}

// loadConfig reads path, or returns the defaults when path is empty.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.LoadFromViper(config.Defaults())
	}
	return config.Load(path)
}
