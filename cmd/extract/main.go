package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/dampfi-automation/internal/config"
	"github.com/maltedev/dampfi-automation/internal/scraper"
	"github.com/maltedev/dampfi-automation/internal/validate"
	"github.com/maltedev/dampfi-automation/pkg/logger"
)

func main() {
	var (
		url       = flag.String("url", "", "dampfi.ch product URL to extract")
		selectors = flag.String("selectors", "", "Selectors YAML file (overrides SELECTORS_FILE)")
		dump      = flag.String("dump-rules", "", "Write the effective rules to this file and exit")
	)
	flag.Parse()

	if *selectors != "" {
		os.Setenv("SELECTORS_FILE", *selectors)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *dump != "" {
		rules := &config.Rules{Extraction: cfg.Site.Extraction, Checkout: cfg.Site.Checkout}
		if err := rules.Save(*dump); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	if *url == "" {
		flag.Usage()
		os.Exit(2)
	}

	target, err := validate.New(cfg.SiteHost(), cfg.Checkout.MaxUserID).ProductURL(*url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v: %s\n", err, *url)
		os.Exit(2)
	}

	// Logs go to stderr so stdout carries only the snapshot.
	log := logger.NewWithWriter(os.Stderr, cfg.LogLevel(), cfg.Logging.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	snapshot, err := scraper.NewExtractor(cfg.Library(), cfg.ScraperOptions(), log).Extract(ctx, target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "extraction failed: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode snapshot: %v\n", err)
		os.Exit(1)
	}
}
