package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joelkehle/leadscout/internal/leadintel"
	"github.com/joelkehle/leadscout/internal/pdfreport"
	"github.com/joelkehle/leadscout/internal/store"
)

func main() {
	in := flag.String("in", "", "path to a saved analysis envelope (JSON)")
	dbPath := flag.String("db", "", "path to SQLite database file")
	id := flag.String("id", "", "analysis id to load from the database")
	out := flag.String("out", "report.pdf", "output PDF path")
	flag.Parse()

	var res *leadintel.AnalysisResult
	var err error
	switch {
	case *in != "":
		blob, rerr := os.ReadFile(*in)
		if rerr != nil {
			log.Fatal(rerr)
		}
		res, err = leadintel.DecodeResult(blob)
	case *dbPath != "" && *id != "":
		db, oerr := store.Open(*dbPath)
		if oerr != nil {
			log.Fatal(oerr)
		}
		defer db.Close()
		res, err = db.GetAnalysis(*id)
	default:
		log.Fatal("either --in or both --db and --id are required")
	}
	if err != nil {
		log.Fatal(err)
	}

	renderer := pdfreport.NewRenderer()
	pdf, err := renderer.Render(context.Background(), res)
	if err != nil {
		log.Fatalf("render pdf: %v", err)
	}
	if err := os.WriteFile(*out, pdf, 0o644); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s (%d bytes)", *out, len(pdf))
}
