package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joelkehle/leadscout/internal/cache"
	"github.com/joelkehle/leadscout/internal/leadintel"
	"github.com/joelkehle/leadscout/internal/store"
)

func main() {
	address := flag.String("address", "", "property address to analyze (required)")
	city := flag.String("city", "", "city override")
	state := flag.String("state", "", "state override")
	zip := flag.String("zip", "", "ZIP code override")
	skipCache := flag.Bool("skip-cache", false, "force a fresh analysis")
	format := flag.String("format", "markdown", "output format: markdown or json")
	dbPath := flag.String("db", "", "path to SQLite database file (optional)")
	grounded := flag.Bool("grounded", false, "request per-claim source attribution")
	flag.Parse()

	if *address == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	searcher, err := leadintel.NewSearcherFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	caller, err := leadintel.NewCallerFromEnv(ctx)
	if err != nil {
		log.Fatal(err)
	}
	analyzer := leadintel.NewPropertyAnalyzer(caller, *grounded)
	pipeline := leadintel.NewPipeline(searcher, analyzer, cache.New[*leadintel.AnalysisResult](cache.Config{}))

	var db *store.Store
	if *dbPath != "" {
		db, err = store.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open store (%s): %v", *dbPath, err)
		}
		defer db.Close()
	}

	res, err := pipeline.Analyze(ctx, *address, leadintel.Options{
		City:      *city,
		State:     *state,
		ZipCode:   *zip,
		SkipCache: *skipCache,
	})
	if err != nil {
		if db != nil {
			if rerr := db.RecordFailure(*address, leadintel.KindFromError(err), err.Error()); rerr != nil {
				log.Printf("failed to record failure: %v", rerr)
			}
		}
		log.Fatalf("analysis failed (%s): %v", leadintel.KindFromError(err), err)
	}

	if db != nil {
		if err := db.SaveAnalysis(res); err != nil {
			log.Printf("failed to save analysis: %v", err)
		}
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatal(err)
		}
	default:
		fmt.Print(leadintel.BuildReport(res))
		fmt.Println("Cache hit: " + strconv.FormatBool(res.ServedFromCache))
	}
}
