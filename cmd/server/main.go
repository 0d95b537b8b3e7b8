package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/notify"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/platform/logger"
	"github.com/rl1809/storefront/internal/platform/observability"
	"github.com/rl1809/storefront/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTel.Endpoint, cfg.OTel.ServiceName)
	if err != nil {
		lg.Fatal("failed to set up tracing", zap.Error(err))
	}

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		lg.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		lg.Fatal("failed to ping mysql", zap.Error(err))
	}
	if err := storage.Migrate(db); err != nil {
		lg.Fatal("failed to migrate mysql", zap.Error(err))
	}
	lg.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		PoolSize: cfg.Redis.PoolSize,
	})
	redisAdapter := storage.NewRedisAdapter(rdb)
	if err := redisAdapter.Ping(ctx); err != nil {
		lg.Fatal("failed to connect redis", zap.Error(err))
	}
	lg.Info("connected to redis")

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if cfg.Fixtures {
		if err := loadFixtures(ctx, mysqlAdapter); err != nil {
			lg.Fatal("failed to load fixtures", zap.Error(err))
		}
		lg.Info("demo fixtures loaded")
	}

	// Notifications
	var notifier port.Notifier
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Notification.Sender)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
		lg.Info("publishing confirmations to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	} else {
		notifier = notify.NewLogNotifier(lg, cfg.Notification.Sender)
	}

	dispatcher := service.NewNotificationDispatcher(notifier, lg, cfg.Notification.QueueSize)
	dispatcher.Start(cfg.Notification.Workers)

	// Initialize services
	cartService := service.NewCartService(mysqlAdapter, lg)
	checkoutService := service.NewCheckoutService(mysqlAdapter, redisAdapter, dispatcher, lg, service.CheckoutConfig{
		PaymentWindow: cfg.Checkout.PaymentWindow,
		MaxAttempts:   cfg.Checkout.MaxAttempts,
	})
	orderService := service.NewOrderService(mysqlAdapter, lg)

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	httpHandler := handler.NewHTTPHandler(cartService, checkoutService, orderService, lg)
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpHandler.Engine(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := handler.NewGRPCServer(lg)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		lg.Fatal("failed to listen", zap.String("addr", cfg.GRPC.Addr), zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down...")

		// Fail health checks first so traffic drains away.
		grpcServer.SetServing(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		lg.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		lg.Info("gRPC server stopped")
		return err
	})

	if err := g.Wait(); err != nil {
		lg.Error("server exited with error", zap.Error(err))
	}

	// Drain pending confirmations
	dispatcher.Close()
	lg.Info("notification workers stopped")

	// Close connections
	rdb.Close()
	db.Close()
	if err := shutdownTracing(context.Background()); err != nil {
		lg.Warn("tracing shutdown", zap.Error(err))
	}
	lg.Info("connections closed")
}
