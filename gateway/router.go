package gateway

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"mailboxchain/core"
	"mailboxchain/core/mailbox"
	"mailboxchain/crypto"
	"mailboxchain/gateway/middleware"
	"mailboxchain/observability"
)

// Config carries the read-only gateway settings.
type Config struct {
	RatePerSecond float64
	Burst         int
}

type router struct {
	node *core.Node
}

// NewRouter builds the read-only HTTP surface: protocol queries, health and
// metrics. Mutations go through the JSON-RPC endpoint only.
func NewRouter(node *core.Node, metrics *observability.Metrics, logger *slog.Logger, cfg Config) http.Handler {
	gw := &router{node: node}
	limiter := middleware.NewRateLimiter(cfg.RatePerSecond, cfg.Burst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID(logger))
	r.Use(limiter.Middleware)

	r.Get("/healthz", gw.handleHealth)
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}
	r.Route("/v1", func(sr chi.Router) {
		sr.Get("/mailer/state", gw.handleMailerState)
		sr.Get("/mailer/claims/{address}", gw.handleMailerClaim)
		sr.Get("/mailservice/state", gw.handleServiceState)
		sr.Get("/mailservice/delegations/{address}", gw.handleDelegation)
		sr.Get("/accounts/{address}", gw.handleAccount)
		sr.Get("/events", gw.handleEvents)
	})
	return r
}

func (gw *router) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"height": gw.node.Height(),
		"root":   hex.EncodeToString(gw.node.StateRoot()),
	})
}

func (gw *router) handleMailerState(w http.ResponseWriter, r *http.Request) {
	st, ok := gw.node.MailerState()
	if !ok {
		writeJSONError(w, http.StatusNotFound, "mailer not initialized")
		return
	}
	balance, err := gw.node.MailerVaultBalance()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"owner":          formatAddress(st.Owner),
		"unitMint":       st.UnitMint,
		"sendFee":        st.SendFee,
		"ownerClaimable": st.OwnerClaimable,
		"vaultBalance":   balance.String(),
	})
}

func (gw *router) handleMailerClaim(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	claim, found := gw.node.MailerClaim(addr)
	if !found || claim.Amount == 0 {
		writeJSONError(w, http.StatusNotFound, "no pending claim")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recipient": formatAddress(claim.Recipient),
		"amount":    claim.Amount,
		"timestamp": claim.Timestamp,
		"expiresAt": claim.Timestamp + mailbox.ClaimWindowSecs,
	})
}

func (gw *router) handleServiceState(w http.ResponseWriter, r *http.Request) {
	st, ok := gw.node.ServiceState()
	if !ok {
		writeJSONError(w, http.StatusNotFound, "mail service not initialized")
		return
	}
	balance, err := gw.node.ServiceVaultBalance()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"owner":           formatAddress(st.Owner),
		"unitMint":        st.UnitMint,
		"delegationFee":   st.DelegationFee,
		"registrationFee": st.RegistrationFee,
		"ownerClaimable":  st.OwnerClaimable,
		"vaultBalance":    balance.String(),
	})
}

func (gw *router) handleDelegation(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	record, found := gw.node.Delegation(addr)
	if !found || !record.Active() {
		writeJSONError(w, http.StatusNotFound, "no active delegation")
		return
	}
	var delegate [20]byte
	copy(delegate[:], record.Delegate)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"delegator": formatAddress(record.Delegator),
		"delegate":  formatAddress(delegate),
	})
}

func (gw *router) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	account, err := gw.node.Account(addr[:])
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":     formatAddress(addr),
		"nonce":       account.Nonce,
		"balanceUNIT": account.BalanceUNIT.String(),
	})
}

func (gw *router) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, gw.node.Events(limit))
}

func pathAddress(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "address"))
	decoded, err := crypto.ParseAddress(raw)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid address")
		return [20]byte{}, false
	}
	return decoded.Raw(), true
}

func formatAddress(b [20]byte) string {
	return crypto.MustAddressFromBytes(b[:]).String()
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
