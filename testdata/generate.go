package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/vegasq/datamart/internal/fixture"
)

func main() {
	dir := flag.String("dir", "data", "output directory")
	rows := flag.Int("rows", 5000, "number of sales to generate")
	flag.Parse()

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		log.Fatal(err)
	}

	rng := rand.New(rand.NewPCG(1, 2))
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	sales := make([]fixture.Sale, *rows)
	for i := range sales {
		at := start.Add(time.Duration(rng.IntN(366*24*60)) * time.Minute)
		qty := int64(rng.IntN(10))
		sales[i] = fixture.Sale{
			KeyDate:     at.Format("01/02/2006 03:04 PM"),
			KeyStore:    fmt.Sprintf("S%02d", rng.IntN(12)+1),
			KeyEmployee: fmt.Sprintf("E%03d", rng.IntN(60)+1),
			KeyProduct:  fmt.Sprintf("P%03d", rng.IntN(200)+1),
			Qty:         qty,
			Amount:      float64(qty) * float64(rng.IntN(5000)+99) / 100,
		}
	}

	path, err := fixture.Write(*dir, "sales.parquet", sales)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Generated %s with %d sales", path, len(sales))
}
