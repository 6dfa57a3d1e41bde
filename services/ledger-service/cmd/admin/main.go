// Command admin issues access tokens and seeds a demo catalog.
//
//	admin token [-broadcast] [-ttl 1h] <user>
//	admin seed [-start 1m] [-duration 30]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/floroz/livebid/pkg/auth"
	pkgdb "github.com/floroz/livebid/pkg/database"
	"github.com/floroz/livebid/services/ledger-service/internal/adapters/database"
	"github.com/floroz/livebid/services/ledger-service/internal/domain/ledger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "token":
		err = runToken(os.Args[2:])
	case "seed":
		err = runSeed(context.Background(), os.Args[2:], logger)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin token [-broadcast] [-ttl 1h] <user>")
	fmt.Fprintln(os.Stderr, "       admin seed [-start 1m] [-duration 30]")
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	broadcast := fs.Bool("broadcast", false, "grant the notice broadcast permission")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one user id")
	}

	privateKey, err := os.ReadFile(os.Getenv("JWT_PRIVATE_KEY_PATH"))
	if err != nil {
		return fmt.Errorf("failed to read private key: %w", err)
	}
	publicKey, err := os.ReadFile(os.Getenv("JWT_PUBLIC_KEY_PATH"))
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "livebid"
	}
	signer, err := auth.NewSigner(privateKey, publicKey, issuer)
	if err != nil {
		return err
	}

	var perms []string
	if *broadcast {
		perms = append(perms, auth.PermissionBroadcast)
	}
	token, _, err := signer.GenerateAccessToken(fs.Arg(0), *ttl, perms...)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func runSeed(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	start := fs.Duration("start", time.Minute, "delay before the auction opens")
	duration := fs.Int("duration", 30, "auction length in minutes")
	_ = fs.Parse(args)

	pool, err := pkgdb.Connect(ctx, os.Getenv("LEDGER_DB_URL"))
	if err != nil {
		return err
	}
	defer pool.Close()

	service := ledger.NewService(
		pkgdb.NewPostgresTransactionManager(pool, 3*time.Second),
		database.NewPostgresCatalogRepository(pool),
		database.NewPostgresBidRepository(pool),
		database.NewPostgresOutboxRepository(pool),
		nil,
	)

	auction := &ledger.Auction{
		Name:            "Evening Sale",
		StartTime:       time.Now().Add(*start).Truncate(time.Second),
		DurationMinutes: *duration,
	}
	items := []*ledger.Item{
		{Title: "Oil on canvas, harbour at dusk", Category: "Art", Condition: "Good", Price: 150000},
		{Title: "Signed first edition", Category: "Books", Condition: "Fair", Price: 45000},
		{Title: "Teak sideboard", Category: "Furniture", Condition: "Restored", Price: 320000},
		{Title: "Mechanical wristwatch", Category: "Jewellery", Condition: "Excellent", Price: 89900},
	}
	if err := service.SeedCatalog(ctx, auction, items); err != nil {
		return err
	}

	logger.Info("Catalog seeded", "auction_id", auction.ID, "start", auction.StartTime, "items", len(items))
	return nil
}
