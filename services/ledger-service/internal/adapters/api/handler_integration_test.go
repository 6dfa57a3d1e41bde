//go:build integration

package api_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/livebid/pkg/auth"
	"github.com/floroz/livebid/pkg/database"
	"github.com/floroz/livebid/pkg/ledgerapi"
	"github.com/floroz/livebid/pkg/testhelpers"
	"github.com/floroz/livebid/services/ledger-service/internal/adapters/api"
	infradb "github.com/floroz/livebid/services/ledger-service/internal/adapters/database"
	"github.com/floroz/livebid/services/ledger-service/internal/domain/ledger"
)

type recordingNotices struct {
	published []ledger.Notice
}

func (r *recordingNotices) PublishNotice(ctx context.Context, n ledger.Notice) error {
	r.published = append(r.published, n)
	return nil
}

func newSigner(t *testing.T) *auth.Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	signer, err := auth.NewSigner(
		pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}),
		pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub}),
		"ledger-test",
	)
	require.NoError(t, err)
	return signer
}

type ledgerClients struct {
	listItems *connect.Client[ledgerapi.ListItemsRequest, ledgerapi.ListItemsResponse]
	appendBid *connect.Client[ledgerapi.AppendBidRequest, ledgerapi.AppendBidResponse]
	broadcast *connect.Client[ledgerapi.BroadcastNoticeRequest, ledgerapi.BroadcastNoticeResponse]
}

func setupLedger(t *testing.T, pool *pgxpool.Pool, signer *auth.Signer, notices ledger.NoticePublisher, token *string) (*ledger.Service, ledgerClients) {
	t.Helper()
	txManager := database.NewPostgresTransactionManager(pool, 5*time.Second)
	service := ledger.NewService(
		txManager,
		infradb.NewPostgresCatalogRepository(pool),
		infradb.NewPostgresBidRepository(pool),
		infradb.NewPostgresOutboxRepository(pool),
		notices,
	)
	handler := api.NewLedgerHandler(service, slog.New(slog.NewTextHandler(io.Discard, nil)))

	server := httptest.NewServer(api.NewRouter(handler, signer))
	t.Cleanup(server.Close)

	opts := []connect.ClientOption{
		ledgerapi.WithCodec(),
		connect.WithInterceptors(auth.NewBearerInterceptor(func() string { return *token })),
	}
	client := server.Client()
	return service, ledgerClients{
		listItems: connect.NewClient[ledgerapi.ListItemsRequest, ledgerapi.ListItemsResponse](client, server.URL+ledgerapi.ListItemsProcedure, opts...),
		appendBid: connect.NewClient[ledgerapi.AppendBidRequest, ledgerapi.AppendBidResponse](client, server.URL+ledgerapi.AppendBidProcedure, opts...),
		broadcast: connect.NewClient[ledgerapi.BroadcastNoticeRequest, ledgerapi.BroadcastNoticeResponse](client, server.URL+ledgerapi.BroadcastNoticeProcedure, opts...),
	}
}

func TestLedgerHandler_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	defer testDB.Close()

	signer := newSigner(t)
	notices := &recordingNotices{}
	token := ""
	service, clients := setupLedger(t, testDB.Pool, signer, notices, &token)

	auction := &ledger.Auction{Name: "Live", StartTime: time.Now().Add(-time.Minute), DurationMinutes: 30}
	item := &ledger.Item{Title: "Vase", Category: "Art", Price: 1000}
	require.NoError(t, service.SeedCatalog(ctx, auction, []*ledger.Item{item}))

	t.Run("ListItems is public", func(t *testing.T) {
		res, err := clients.listItems.CallUnary(ctx, connect.NewRequest(&ledgerapi.ListItemsRequest{}))
		require.NoError(t, err)
		require.Len(t, res.Msg.Items, 1)
		assert.Equal(t, item.ID.String(), res.Msg.Items[0].ID)
		assert.Equal(t, auction.ID.String(), res.Msg.Items[0].Auction.ID)
	})

	t.Run("AppendBid requires a token", func(t *testing.T) {
		token = ""
		_, err := clients.appendBid.CallUnary(ctx, connect.NewRequest(&ledgerapi.AppendBidRequest{ItemID: item.ID.String(), Amount: 1500}))
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("AppendBid records the token subject", func(t *testing.T) {
		token, _, _ = signer.GenerateAccessToken("alice", time.Minute)
		res, err := clients.appendBid.CallUnary(ctx, connect.NewRequest(&ledgerapi.AppendBidRequest{ItemID: item.ID.String(), Amount: 1500}))
		require.NoError(t, err)
		assert.Equal(t, "alice", res.Msg.Bid.UserID)
		assert.Equal(t, int64(1500), res.Msg.Bid.Amount)
	})

	t.Run("AppendBid too low carries its reason", func(t *testing.T) {
		token, _, _ = signer.GenerateAccessToken("bob", time.Minute)
		_, err := clients.appendBid.CallUnary(ctx, connect.NewRequest(&ledgerapi.AppendBidRequest{ItemID: item.ID.String(), Amount: 1500}))
		assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
		assert.Equal(t, ledgerapi.ReasonBidTooLow, ledgerapi.Reason(err))
	})

	t.Run("AppendBid unknown item", func(t *testing.T) {
		_, err := clients.appendBid.CallUnary(ctx, connect.NewRequest(&ledgerapi.AppendBidRequest{ItemID: "nope", Amount: 1500}))
		assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
		assert.Equal(t, ledgerapi.ReasonUnknownItem, ledgerapi.Reason(err))
	})

	t.Run("BroadcastNotice needs permission", func(t *testing.T) {
		token, _, _ = signer.GenerateAccessToken("bob", time.Minute)
		_, err := clients.broadcast.CallUnary(ctx, connect.NewRequest(&ledgerapi.BroadcastNoticeRequest{Message: "hi"}))
		assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

		token, _, _ = signer.GenerateAccessToken("admin", time.Minute, auth.PermissionBroadcast)
		res, err := clients.broadcast.CallUnary(ctx, connect.NewRequest(&ledgerapi.BroadcastNoticeRequest{Message: "Closing soon", Severity: "warning"}))
		require.NoError(t, err)
		assert.Equal(t, ledger.AudienceAll, res.Msg.Notice.Audience)
		require.Len(t, notices.published, 1)
		assert.Equal(t, "Closing soon", notices.published[0].Message)
	})
}
