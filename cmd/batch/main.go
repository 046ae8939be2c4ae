// batch runs the matching pipeline for a set of invoices without starting
// the HTTP server.
//
// Usage: go run ./cmd/batch -invoice 42
//        go run ./cmd/batch -file invoices.txt
package main

import (
	"context"
	"log"
	"os"

	"ap-reconciler/internal/adapters/cli"
	"ap-reconciler/internal/ai"
	"ap-reconciler/internal/app"
	"ap-reconciler/internal/core"
	"ap-reconciler/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	vendors := core.NewVendorService(pool)
	invoices := core.NewInvoiceService(pool)
	orders := core.NewPurchaseOrderService(pool)
	pairs := core.NewPairService(pool)
	queue := core.NewReviewQueueService(pool)

	var rationale core.RationaleGenerator
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		rationale = ai.NewAgent(apiKey)
	}

	matching := core.NewMatchingService(pool, invoices, orders, pairs, queue, rationale)
	svc := app.NewAppService(vendors, invoices, orders, matching, pairs, queue)

	runner := cli.NewRunner(svc)
	if err := runner.Run(ctx, os.Args[1:]); err != nil {
		log.Fatalf("batch: %v", err)
	}
}
