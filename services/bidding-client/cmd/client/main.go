package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"

	"github.com/floroz/livebid/pkg/auth"
	"github.com/floroz/livebid/services/bidding-client/internal/adapters/events"
	"github.com/floroz/livebid/services/bidding-client/internal/adapters/identity"
	"github.com/floroz/livebid/services/bidding-client/internal/adapters/ledger"
	"github.com/floroz/livebid/services/bidding-client/internal/adapters/notices"
	"github.com/floroz/livebid/services/bidding-client/internal/config"
	"github.com/floroz/livebid/services/bidding-client/internal/domain/bidding"
	"github.com/floroz/livebid/services/bidding-client/internal/domain/bids"
)

func main() {
	// Logs go to stderr so stdout stays readable for command output
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Identity
	publicKey, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		logger.Error("Failed to read public key", "error", err)
		os.Exit(1)
	}
	signer, err := auth.NewSignerFromPublicKey(publicKey, cfg.Issuer)
	if err != nil {
		logger.Error("Failed to load public key", "error", err)
		os.Exit(1)
	}
	session := identity.NewTokenIdentity(signer, cfg.AccessToken, logger)
	if user, ok := session.CurrentUserID(); ok {
		logger.Info("Signed in", "user_id", user)
	} else {
		logger.Warn("No valid access token, bidding is disabled")
	}

	// 2. Ledger client over HTTP/2 cleartext
	httpClient := &http.Client{Transport: &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}}
	ledgerClient := ledger.NewClient(httpClient, cfg.LedgerURL,
		connect.WithInterceptors(auth.NewBearerInterceptor(session.Token)))

	// 3. Feeds
	deps := bidding.Dependencies{
		Reader:   ledgerClient,
		Writer:   ledgerClient,
		Feed:     events.NewRabbitMQFeed(cfg.RabbitMQURL, logger),
		Identity: session,
		Logger:   logger,
	}
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		defer rdb.Close()
		deps.Notices = notices.NewRedisFeed(rdb, logger)
	}

	// 4. Facade
	facade, err := bidding.Open(ctx, bidding.Config{
		SubmitTimeout:        cfg.SubmitTimeout,
		ClockInterval:        cfg.ClockInterval,
		MinIncrement:         cfg.MinBidIncrement,
		ReconnectMaxInterval: cfg.ReconnectBackoff,
	}, deps)
	if err != nil {
		logger.Error("Failed to open bidding session", "error", err)
		os.Exit(1)
	}
	defer facade.Close()

	unsubscribe := facade.Subscribe(func(c bidding.Change) { logChange(logger, c) })
	defer unsubscribe()

	logger.Info("Bidding session ready", "items", facade.Items(bidding.ItemsQuery{}, time.Now()).Total)

	shell := newShell(facade, session, os.Stdout)
	if err := shell.Run(ctx, os.Stdin); err != nil {
		logger.Error("Command loop failed", "error", err)
	}
	logger.Info("Client stopped")
}

func logChange(logger *slog.Logger, c bidding.Change) {
	switch c.Kind {
	case bidding.ChangeHighestBid:
		logger.Info("Highest bid changed", "item_id", c.ItemID, "user_id", c.Highest.UserID, "amount", c.Highest.Amount)
	case bidding.ChangeOutbid:
		logger.Warn("You have been outbid", "item_id", c.ItemID, "new_amount", c.Outbid.NewAmount)
	case bidding.ChangeItemWon:
		logger.Info("You hold the highest bid", "item_id", c.ItemID, "amount", c.Settlement.Highest.Amount)
	case bidding.ChangeSubmissionOutbid:
		logger.Warn("Your bid was beaten", "item_id", c.ItemID, "amount", c.Settlement.Highest.Amount)
	case bidding.ChangeAuction:
		logger.Info("Auction status changed", "auction_id", c.Transition.AuctionID, "from", c.Transition.From, "to", c.Transition.To)
	case bidding.ChangeNotice:
		level := slog.LevelInfo
		switch c.Notice.Severity {
		case bids.SeverityWarning:
			level = slog.LevelWarn
		case bids.SeverityError:
			level = slog.LevelError
		}
		logger.Log(context.Background(), level, "Notice", "message", c.Notice.Message)
	case bidding.ChangeSyncStatus:
		logger.Info("Sync status", "state", c.Sync.State, "error", c.Sync.LastError)
	case bidding.ChangeResynced:
		logger.Info("Resynced with ledger")
	}
}
