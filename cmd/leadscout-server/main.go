package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joelkehle/leadscout/internal/cache"
	"github.com/joelkehle/leadscout/internal/httpapi"
	"github.com/joelkehle/leadscout/internal/leadintel"
	"github.com/joelkehle/leadscout/internal/store"
)

func main() {
	dbFlag := flag.String("db", "", "path to SQLite database file (overrides DB_PATH env var)")
	cacheTTL := flag.Duration("cache-ttl", 60*time.Minute, "result cache TTL")
	cacheMax := flag.Int("cache-max", 1000, "result cache entry cap")
	grounded := flag.Bool("grounded", false, "request per-claim source attribution")
	flag.Parse()

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	searcher, err := leadintel.NewSearcherFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	caller, err := leadintel.NewCallerFromEnv(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	// The cache and pipeline are process-lifetime singletons, wired once here.
	resultCache := cache.New[*leadintel.AnalysisResult](cache.Config{
		DefaultTTL: *cacheTTL,
		MaxEntries: *cacheMax,
	})
	analyzer := leadintel.NewPropertyAnalyzer(caller, *grounded)
	pipeline := leadintel.NewPipeline(searcher, analyzer, resultCache)

	dbPath := *dbFlag
	if dbPath == "" {
		dbPath = os.Getenv("DB_PATH")
	}
	var db *store.Store
	if dbPath != "" {
		db, err = store.Open(dbPath)
		if err != nil {
			log.Fatalf("failed to open store (%s): %v", dbPath, err)
		}
		defer db.Close()
		log.Printf("using sqlite store at %s", dbPath)
	}

	var rs httpapi.ResultStore
	if db != nil {
		rs = db
	}
	h := httpapi.NewServer(pipeline, rs)
	log.Printf("leadscout-server listening on %s", addr)
	if err := http.ListenAndServe(addr, h); err != nil {
		log.Fatal(err)
	}
}
