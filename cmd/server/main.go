package main

import (
	"context"
	"log"
	"net/http"
	"os"

	webAdapter "ap-reconciler/internal/adapters/web"
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
	} else {
		log.Println("Warning: OPENAI_API_KEY is not set, using fallback rationales")
	}

	matching := core.NewMatchingService(pool, invoices, orders, pairs, queue, rationale)
	svc := app.NewAppService(vendors, invoices, orders, matching, pairs, queue)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins)

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
