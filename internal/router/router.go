package router

import (
	"net/http"

	"github.com/rupeevault/backend/internal/admin"
	"github.com/rupeevault/backend/internal/middleware"
	"github.com/rupeevault/backend/internal/wallet"
)

// New returns the API handler. User routes require any authenticated
// caller; admin routes additionally require the admin or support role.
func New(walletHandler *wallet.Handler, adminHandler *admin.Handler, jwtSecret []byte) http.Handler {
	mux := http.NewServeMux()

	auth := middleware.Auth(jwtSecret)
	adminOnly := middleware.RequireRole("admin", "support")

	user := func(h http.HandlerFunc) http.Handler { return auth(h) }
	privileged := func(h http.HandlerFunc) http.Handler { return auth(adminOnly(h)) }

	base := "/api/v1"

	// User surface.
	mux.Handle("POST "+base+"/wallet/withdrawals", user(walletHandler.SubmitWithdrawal))
	mux.Handle("POST "+base+"/wallet/deposits", user(walletHandler.SubmitDeposit))
	mux.Handle("POST "+base+"/wallet/deposits/quote", user(walletHandler.QuoteDeposit))
	mux.Handle("GET "+base+"/wallet/requests", user(walletHandler.ListRequests))
	mux.Handle("GET "+base+"/wallet/requests/{id}", user(walletHandler.GetRequest))
	mux.Handle("POST "+base+"/wallet/requests/{id}/contest", user(walletHandler.Contest))
	mux.Handle("GET "+base+"/wallet/balance", user(walletHandler.GetBalance))
	mux.Handle("GET "+base+"/wallet/ledger", user(walletHandler.ListLedgerEntries))
	mux.Handle("POST "+base+"/wallet/unhold-requests", user(walletHandler.RequestUnhold))
	mux.Handle("GET "+base+"/wallet/unhold-requests", user(walletHandler.ListUnholds))
	mux.Handle("POST "+base+"/tickets/{id}/messages", user(walletHandler.AppendTicketMessage))
	mux.Handle("GET "+base+"/tickets/{id}/messages", user(walletHandler.ListTicketMessages))

	// Admin gateway.
	mux.Handle("GET "+base+"/admin/requests/{id}", privileged(adminHandler.GetRequest))
	mux.Handle("POST "+base+"/admin/requests/{id}/approve", privileged(adminHandler.Approve))
	mux.Handle("POST "+base+"/admin/requests/{id}/reject", privileged(adminHandler.Reject))
	mux.Handle("POST "+base+"/admin/requests/{id}/hold", privileged(adminHandler.Hold))
	mux.Handle("POST "+base+"/admin/requests/{id}/start-processing", privileged(adminHandler.StartProcessing))
	mux.Handle("POST "+base+"/admin/requests/{id}/complete", privileged(adminHandler.Complete))
	mux.Handle("POST "+base+"/admin/requests/{id}/fail", privileged(adminHandler.Fail))
	mux.Handle("POST "+base+"/admin/requests/{id}/resubmit", privileged(adminHandler.Resubmit))
	mux.Handle("POST "+base+"/admin/unhold-requests/{id}/approve", privileged(adminHandler.ApproveUnhold))
	mux.Handle("POST "+base+"/admin/unhold-requests/{id}/reject", privileged(adminHandler.RejectUnhold))
	mux.Handle("POST "+base+"/admin/accounts", privileged(adminHandler.CreateAccount))
	mux.Handle("POST "+base+"/admin/tickets/{id}/close", privileged(adminHandler.CloseTicket))

	return mux
}
