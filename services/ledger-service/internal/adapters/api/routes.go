package api

import (
	"net/http"

	"connectrpc.com/connect"

	"github.com/floroz/livebid/pkg/auth"
	"github.com/floroz/livebid/pkg/ledgerapi"
)

// NewRouter mounts the ledger procedures on a mux. Reads are public; writes
// go through the auth interceptor.
func NewRouter(h *LedgerHandler, signer *auth.Signer) *http.ServeMux {
	authenticated := connect.WithInterceptors(auth.NewAuthInterceptor(signer))

	mux := http.NewServeMux()
	mux.Handle(ledgerapi.ListItemsProcedure, connect.NewUnaryHandler(
		ledgerapi.ListItemsProcedure, h.ListItems, ledgerapi.WithCodec(),
	))
	mux.Handle(ledgerapi.ListBidsProcedure, connect.NewUnaryHandler(
		ledgerapi.ListBidsProcedure, h.ListBids, ledgerapi.WithCodec(),
	))
	mux.Handle(ledgerapi.AppendBidProcedure, connect.NewUnaryHandler(
		ledgerapi.AppendBidProcedure, h.AppendBid, ledgerapi.WithCodec(), authenticated,
	))
	mux.Handle(ledgerapi.BroadcastNoticeProcedure, connect.NewUnaryHandler(
		ledgerapi.BroadcastNoticeProcedure, h.BroadcastNotice, ledgerapi.WithCodec(), authenticated,
	))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}
