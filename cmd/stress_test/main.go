package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/adapter/notify"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const (
	productID     = "stress-test-item"
	initialStock  = 20
	totalRequests = 50
	queueSize     = 100
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	// Reset the product and give every buyer a one-item cart
	err = mysqlAdapter.UpsertProduct(ctx, domain.Product{
		ID:        productID,
		Name:      "stress test item",
		UnitPrice: decimal.RequireFromString("9.99"),
		Inventory: domain.Inventory{Available: initialStock},
	})
	if err != nil {
		log.Fatalf("failed to set stock: %v", err)
	}

	logger := zap.NewNop()
	dispatcher := service.NewNotificationDispatcher(notify.NewLogNotifier(logger, ""), logger, queueSize)
	dispatcher.Start(2)
	defer dispatcher.Close()

	carts := service.NewCartService(mysqlAdapter, logger)
	checkout := service.NewCheckoutService(mysqlAdapter, redisAdapter, dispatcher, logger, service.CheckoutConfig{
		MaxAttempts: cfg.Checkout.MaxAttempts,
	})

	run := uuid.NewString()[:8]
	cartIDs := make([]string, totalRequests)
	for i := 0; i < totalRequests; i++ {
		customerID := fmt.Sprintf("stress-%s-%d", run, i)
		if err := mysqlAdapter.UpsertCustomer(ctx, domain.Customer{ID: customerID, Email: customerID + "@mail.com"}); err != nil {
			log.Fatalf("failed to seed customer: %v", err)
		}
		if err := mysqlAdapter.UpsertAddress(ctx, domain.Address{ID: customerID, CustomerID: customerID}); err != nil {
			log.Fatalf("failed to seed address: %v", err)
		}
		cart, err := carts.CreateCart(ctx, customerID)
		if err != nil {
			log.Fatalf("failed to create cart: %v", err)
		}
		_, err = carts.AddItem(ctx, service.AddItemInput{
			CartID: cart.ID, CustomerID: customerID, ProductID: productID, Quantity: 1,
		})
		if err != nil {
			log.Fatalf("failed to fill cart: %v", err)
		}
		cartIDs[i] = cart.ID
	}

	// Counters
	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var errorCount atomic.Int32

	// Spawn concurrent checkouts
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			customerID := fmt.Sprintf("stress-%s-%d", run, i)
			_, err := checkout.CreateOrder(ctx, service.CreateOrderInput{
				CartID:         cartIDs[i],
				CustomerID:     customerID,
				AddressID:      customerID,
				IdempotencyKey: uuid.NewString(),
			})

			var stockErr *domain.InsufficientStockError
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.As(err, &stockErr):
				soldOutCount.Add(1)
			default:
				errorCount.Add(1)
				fmt.Fprintf(os.Stderr, "checkout %d: %v\n", i, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	soldOut := soldOutCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold out:         %d\n", soldOut)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == int32(initialStock) && soldOut == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d checkouts succeeded, %d sold out\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d sold out, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, soldOut)
	}

	// Verify final stock in MySQL
	tx, err := mysqlAdapter.Begin(ctx)
	if err != nil {
		log.Fatalf("failed to begin tx: %v", err)
	}
	defer tx.Rollback()

	product, err := tx.GetProduct(ctx, productID)
	if err != nil {
		log.Fatalf("failed to read stock: %v", err)
	}
	fmt.Printf("Final MySQL Stock: %d (sold %d)\n", product.Inventory.Available, product.Inventory.Sold)

	if product.Inventory.Available == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", product.Inventory.Available)
	}
}
