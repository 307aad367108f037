package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"

	"github.com/rl1809/checkout/internal/adapter/handler"
	"github.com/rl1809/checkout/internal/adapter/payment"
	"github.com/rl1809/checkout/internal/adapter/storage"
	"github.com/rl1809/checkout/internal/config"
	"github.com/rl1809/checkout/internal/core/service"
	"github.com/rl1809/checkout/internal/port"
)

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	logger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()

	if err != nil {
		logger.Error("server exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

// run serves HTTP and gRPC until ctx is cancelled, then shuts both down.
// Stores opened here are closed before it returns.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, cache, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s stores: %w", cfg.StoreDriver, err)
	}
	defer closeStores()

	provider, err := payment.NewPayPalProvider(cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.PayPalMode)
	if err != nil {
		return fmt.Errorf("create payment provider: %w", err)
	}

	orderService := service.NewOrderService(db, cache, provider, service.Options{
		FrontendURL:    cfg.FrontendURL,
		PayeeEmail:     cfg.MerchantEmail,
		CaptureLockTTL: cfg.CaptureLockTTL,
	}, logger.With(zap.String("component", "OrderService")))

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterOrderServiceServer(grpcServer,
		handler.NewGRPCHandler(orderService, logger.With(zap.String("component", "OrderGRPCHandler"))))

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(orderService, logger.With(zap.String("component", "OrderHTTPHandler")))
	httpServer := &http.Server{
		Handler:      httpHandler.Routes(cfg.RequestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		grpcLis.Close()
		return fmt.Errorf("listen http %s: %w", cfg.HTTPAddr, err)
	}

	serveErr := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", zap.String("address", grpcLis.Addr().String()))
		if err := grpcServer.Serve(grpcLis); err != nil {
			serveErr <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		logger.Info("HTTP server listening", zap.String("address", httpLis.Addr().String()))
		if err := httpServer.Serve(httpLis); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Graceful shutdown
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case runErr = <-serveErr:
		logger.Error("server failed, shutting down", zap.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	return runErr
}

// openStores connects the document store selected by cfg.StoreDriver and
// the capture lock. The memory driver serves both from one process-local
// adapter.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (port.DatabaseRepository, port.CacheRepository, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		mem := storage.NewMemoryAdapter()
		logger.Warn("using in-memory store; data is lost on restart")
		return mem, mem, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("address", cfg.RedisAddr))
	cache := storage.NewRedisAdapter(rdb)

	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			rdb.Close()
			return nil, nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			client.Disconnect(ctx)
			rdb.Close()
			return nil, nil, nil, fmt.Errorf("ping mongo: %w", err)
		}
		logger.Info("connected to mongo", zap.String("database", cfg.MongoDatabase))

		adapter := storage.NewMongoAdapter(client, cfg.MongoDatabase)
		if err := adapter.EnsureIndexes(ctx); err != nil {
			logger.Warn("failed to ensure mongo indexes", zap.Error(err))
		}
		return adapter, cache, func() {
			client.Disconnect(context.Background())
			rdb.Close()
			logger.Info("connections closed")
		}, nil

	default:
		if cfg.RunMigrations {
			if err := storage.MigrateMySQL(cfg.MySQLDSN); err != nil {
				rdb.Close()
				return nil, nil, nil, err
			}
			logger.Info("database migrations applied")
		}

		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			rdb.Close()
			return nil, nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			rdb.Close()
			return nil, nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		logger.Info("connected to mysql")

		return storage.NewMySQLAdapter(db), cache, func() {
			db.Close()
			rdb.Close()
			logger.Info("connections closed")
		}, nil
	}
}
