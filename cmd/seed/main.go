// Command seed loads a facility description (lot, zones, slots, pricing
// rules) from a JSON file into the configured database.
//
//	go run ./cmd/seed -file facility.json
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"sort"

	"github.com/joho/godotenv"

	"github.com/iliyamo/smart-parking/internal/config"
	"github.com/iliyamo/smart-parking/internal/database"
	"github.com/iliyamo/smart-parking/internal/seed"
)

func main() {
	file := flag.String("file", "facility.json", "facility description (JSON)")
	flag.Parse()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	defer f.Close()
	facility, err := seed.Decode(f)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	_ = godotenv.Load()
	cfg := config.LoadDB()
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	res, err := seed.Apply(ctx, db, facility)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	log.Printf("lot %s %q: %d zones, %d slots, %d pricing rules", res.Lot.ID, res.Lot.Name, len(res.Zones), len(res.Slots), len(res.Rules))
	labels := make([]string, 0, len(res.Slots))
	for label := range res.Slots {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		log.Printf("  slot %-8s %s", label, res.Slots[label].ID)
	}
}
