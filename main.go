package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/shopware/php-callcheck/internal/analysis"
	"github.com/shopware/php-callcheck/internal/analyzer"
	"github.com/shopware/php-callcheck/internal/config"
	"github.com/shopware/php-callcheck/internal/indexer"
	"github.com/shopware/php-callcheck/internal/php"
	"github.com/shopware/php-callcheck/internal/report"
)

type options struct {
	configPath string
	format     string
	snippets   bool
	watch      bool
	reindex    bool
}

func main() {
	log.SetFlags(0)

	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to the configuration file (default <project>/"+config.FileName+")")
	flag.StringVar(&opts.format, "format", "text", "report format: text or json")
	flag.BoolVar(&opts.snippets, "snippets", false, "include the source text of every issue")
	flag.BoolVar(&opts.watch, "watch", false, "keep running and re-analyze the project when files change")
	flag.BoolVar(&opts.reindex, "reindex", false, "drop the class cache and index the whole project again")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [project root]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	projectRoot := flag.Arg(0)
	if projectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("Failed to get working directory: %v", err)
		}
		projectRoot = wd
	}

	errorCount, err := run(projectRoot, opts, os.Stdout)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if errorCount > 0 {
		os.Exit(1)
	}
}

// run indexes and analyzes the project and writes the report. It returns the number of
// error level issues.
func run(projectRoot string, opts options, out io.Writer) (int, error) {
	projectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve project root: %w", err)
	}

	if opts.format != "text" && opts.format != "json" {
		return 0, fmt.Errorf("unknown format %q", opts.format)
	}

	configPath := opts.configPath
	if configPath == "" {
		configPath = filepath.Join(projectRoot, config.FileName)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return 0, err
	}
	cfg.Root = projectRoot

	cacheDir, err := cacheFolder(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to get cache folder: %w", err)
	}
	if cleared, err := indexer.CheckAndMigrateCache(cacheDir); err != nil {
		return 0, err
	} else if cleared {
		log.Printf("Index format changed, rebuilding the cache in %s", cacheDir)
	}

	index, err := php.NewPHPIndex(cacheDir)
	if err != nil {
		return 0, err
	}

	scanner, err := indexer.NewFileScanner(projectRoot, cacheDir, cfg)
	if err != nil {
		_ = index.Close()
		return 0, err
	}
	scanner.AddIndexer(index)
	defer func() {
		if err := scanner.Close(); err != nil {
			log.Printf("Error closing index: %v", err)
		}
	}()

	if opts.reindex {
		if err := scanner.ClearHashes(); err != nil {
			return 0, fmt.Errorf("failed to clear the index: %w", err)
		}
	} else if err := index.Load(); err != nil {
		return 0, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := scanner.IndexAll(ctx); err != nil {
		return 0, err
	}

	hooks, err := analysis.NewHookRegistry().Hooks(cfg.AfterMethodChecks)
	if err != nil {
		return 0, fmt.Errorf("after_method_checks: %w", err)
	}

	a, err := analyzer.New(index, cfg, analysis.NewCollector(cfg), hooks)
	if err != nil {
		return 0, err
	}
	defer a.Close()

	analyzeAll := func() error {
		files, err := scanner.ProjectFiles()
		if err != nil {
			return err
		}
		analyzed := 0
		for _, file := range files {
			if !cfg.IsInProjectDirs(file) {
				continue
			}
			if err := a.AnalyzeFile(file); err != nil {
				log.Printf("Error analyzing %s: %v", file, err)
				continue
			}
			analyzed++
		}
		log.Printf("Analyzed %d files", analyzed)
		return writeReport(report.New(report.Options{Snippets: opts.snippets}), a, opts.format, out)
	}

	if err := analyzeAll(); err != nil {
		return 0, err
	}

	if !opts.watch {
		return a.Collector().ErrorCount(), nil
	}

	// a changed class can move issues into any file, so every change re-analyzes the project
	scanner.SetOnUpdate(func(changed []string) {
		for _, file := range changed {
			if _, err := os.Stat(file); err != nil {
				a.Collector().Forget(file)
				a.Edits().Forget(file)
			}
		}
		log.Printf("%d files changed, analyzing again", len(changed))
		if err := analyzeAll(); err != nil {
			log.Printf("Error analyzing project: %v", err)
		}
	})
	if err := scanner.StartWatcher(); err != nil {
		return 0, err
	}

	log.Printf("Watching %s for changes", projectRoot)
	<-ctx.Done()

	return a.Collector().ErrorCount(), nil
}

func writeReport(rep *report.Report, a *analyzer.Analyzer, format string, out io.Writer) error {
	issues := a.Collector().Issues()

	if format == "json" {
		doc, err := rep.JSON(issues, a.Edits())
		if err != nil {
			return err
		}
		_, err = out.Write(doc)
		return err
	}

	if err := rep.Text(out, issues, a.Edits()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%d errors, %d issues\n", a.Collector().ErrorCount(), len(issues))
	return err
}
