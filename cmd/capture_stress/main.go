package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/rl1809/checkout/internal/adapter/handler"
	"github.com/rl1809/checkout/internal/adapter/storage"
	"github.com/rl1809/checkout/internal/core/domain"
)

// capture_stress seeds one pending order straight into MySQL and fires
// many concurrent captures for it at a running server. Exactly one capture
// must succeed and stock must drop exactly once.
func main() {
	app := &cli.App{
		Name:  "capture_stress",
		Usage: "fire concurrent payment captures for one order",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "grpc-addr", Value: "localhost:50051", EnvVars: []string{"GRPC_ADDR"}},
			&cli.StringFlag{Name: "mysql-dsn", Value: "root:root@tcp(localhost:3306)/checkout?parseTime=true", EnvVars: []string{"MYSQL_DSN"}},
			&cli.IntFlag{Name: "captures", Value: 50, Usage: "concurrent capture requests"},
			&cli.IntFlag{Name: "stock", Value: 20, Usage: "initial product stock"},
			&cli.IntFlag{Name: "quantity", Value: 2, Usage: "quantity ordered"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(c.Context, time.Minute)
	defer cancel()

	db, err := sql.Open("mysql", c.String("mysql-dsn"))
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	defer db.Close()
	store := storage.NewMySQLAdapter(db)

	suffix := uuid.NewString()[:8]
	product := domain.Product{ID: "stress-product-" + suffix, Title: "Stress Product", Price: 9.99, TotalStock: c.Int("stock")}
	cart := domain.Cart{ID: "stress-cart-" + suffix, UserID: "stress-user"}
	order := domain.Order{
		ID:     "stress-order-" + suffix,
		UserID: "stress-user",
		CartID: cart.ID,
		CartItems: []domain.LineItem{
			{ProductID: product.ID, Title: product.Title, Price: product.Price, Quantity: c.Int("quantity")},
		},
		OrderStatus:     domain.OrderStatusPending,
		PaymentMethod:   domain.PaymentMethodPayPal,
		PaymentStatus:   domain.PaymentStatusPending,
		TotalAmount:     product.Price * float64(c.Int("quantity")),
		OrderDate:       time.Now(),
		OrderUpdateDate: time.Now(),
	}
	cart.Items = order.CartItems

	if err := store.SaveProduct(ctx, product); err != nil {
		return fmt.Errorf("seed product: %w", err)
	}
	if err := store.SaveCart(ctx, cart); err != nil {
		return fmt.Errorf("seed cart: %w", err)
	}
	if err := store.SaveOrder(ctx, order); err != nil {
		return fmt.Errorf("seed order: %w", err)
	}
	log.Printf("seeded order %s (stock %d, quantity %d)", order.ID, product.TotalStock, c.Int("quantity"))

	conn, err := grpc.NewClient(c.String("grpc-addr"), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial grpc: %w", err)
	}
	defer conn.Close()
	client := handler.NewOrderServiceClient(conn)

	var (
		success  atomic.Int32
		rejected atomic.Int32
	)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.Int("captures"); i++ {
		g.Go(func() error {
			_, err := client.CapturePayment(gctx, &handler.CaptureRequest{
				OrderID:   order.ID,
				PaymentID: fmt.Sprintf("PAY-%s-%d", suffix, i),
				PayerID:   "PAYER-" + suffix,
			})
			switch status.Code(err) {
			case codes.OK:
				success.Add(1)
			case codes.FailedPrecondition, codes.Aborted:
				rejected.Add(1)
			default:
				return fmt.Errorf("capture %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	after, err := store.FindProduct(ctx, product.ID)
	if err != nil {
		return fmt.Errorf("read product: %w", err)
	}
	leftCart, err := store.FindCart(ctx, cart.ID)
	if err != nil {
		return fmt.Errorf("read cart: %w", err)
	}

	fmt.Println("=== Capture Stress Results ===")
	fmt.Printf("Captures:    %d\n", c.Int("captures"))
	fmt.Printf("Succeeded:   %d\n", success.Load())
	fmt.Printf("Rejected:    %d\n", rejected.Load())
	fmt.Printf("Stock:       %d -> %d\n", product.TotalStock, after.TotalStock)
	fmt.Printf("Cart gone:   %t\n", leftCart == nil)
	fmt.Printf("Duration:    %v\n", time.Since(start))

	if success.Load() != 1 || after.TotalStock != product.TotalStock-c.Int("quantity") {
		return cli.Exit("FAIL: order captured more than once or stock drifted", 1)
	}
	fmt.Println("PASS")
	return nil
}
