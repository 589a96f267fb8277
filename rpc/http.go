package rpc

import (
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"mailboxchain/core"
	"mailboxchain/crypto"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ServerConfig carries the RPC listener settings.
type ServerConfig struct {
	// AuthToken gates every mutating method when non-empty. Read methods are
	// always open.
	AuthToken string
}

// Server exposes the node over JSON-RPC 2.0 on a single POST endpoint.
type Server struct {
	node      *core.Node
	authToken string
	log       *slog.Logger
}

func NewServer(node *core.Node, logger *slog.Logger, cfg ServerConfig) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{node: node, authToken: strings.TrimSpace(cfg.AuthToken), log: logger}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body", nil)
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request body too large", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", nil)
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}
	s.dispatch(w, r, &req)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.log.Debug("rpc request", "method", req.Method, "id", req.ID)
	switch req.Method {
	// Mailer
	case "mailer_initialize":
		s.handleMailerInitialize(w, r, req)
	case "mailer_sendPriority":
		s.handleMailerSendPriority(w, r, req)
	case "mailer_sendPriorityPrepared":
		s.handleMailerSendPriorityPrepared(w, r, req)
	case "mailer_send":
		s.handleMailerSend(w, r, req)
	case "mailer_sendPrepared":
		s.handleMailerSendPrepared(w, r, req)
	case "mailer_claimRecipientShare":
		s.handleMailerClaimRecipientShare(w, r, req)
	case "mailer_claimOwnerShare":
		s.handleMailerClaimOwnerShare(w, r, req)
	case "mailer_claimExpiredShares":
		s.handleMailerClaimExpiredShares(w, r, req)
	case "mailer_setFee":
		s.handleMailerSetFee(w, r, req)
	case "mailer_getState":
		s.handleMailerGetState(w, req)
	case "mailer_getClaim":
		s.handleMailerGetClaim(w, req)
	// Mail service
	case "mailservice_initialize":
		s.handleServiceInitialize(w, r, req)
	case "mailservice_delegateTo":
		s.handleServiceDelegateTo(w, r, req)
	case "mailservice_rejectDelegation":
		s.handleServiceRejectDelegation(w, r, req)
	case "mailservice_registerDomain":
		s.handleServiceRegisterDomain(w, r, req)
	case "mailservice_setRegistrationFee":
		s.handleServiceSetRegistrationFee(w, r, req)
	case "mailservice_setDelegationFee":
		s.handleServiceSetDelegationFee(w, r, req)
	case "mailservice_withdrawFees":
		s.handleServiceWithdrawFees(w, r, req)
	case "mailservice_getState":
		s.handleServiceGetState(w, req)
	case "mailservice_getDelegation":
		s.handleServiceGetDelegation(w, req)
	// Node
	case "mbx_getAccount":
		s.handleGetAccount(w, req)
	case "mbx_getEvents":
		s.handleGetEvents(w, req)
	case "mbx_getStateRoot":
		s.handleGetStateRoot(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method), nil)
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	token, err := extractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return &RPCError{Code: codeUnauthorized, Message: err.Error()}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

func extractBearerToken(header string) (string, error) {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(trimmed, prefix) {
		return "", fmt.Errorf("authorization scheme must be Bearer")
	}
	token := strings.TrimSpace(trimmed[len(prefix):])
	if token == "" {
		return "", fmt.Errorf("empty bearer token")
	}
	return token, nil
}

func parseParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected exactly one params object"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid params", Data: err.Error()}
	}
	return nil
}

func parseAddress(value string) ([20]byte, error) {
	decoded, err := crypto.ParseAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, err
	}
	return decoded.Raw(), nil
}

func formatAddress(b [20]byte) string {
	return crypto.MustAddressFromBytes(b[:]).String()
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}

func writeRPCError(w http.ResponseWriter, id interface{}, rpcErr *RPCError) {
	status := http.StatusBadRequest
	if rpcErr.Code == codeUnauthorized {
		status = http.StatusUnauthorized
	}
	writeError(w, status, id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
}

// --- Node-level handlers ---

type accountParams struct {
	Address string `json:"address"`
}

type accountResult struct {
	Address     string `json:"address"`
	Nonce       uint64 `json:"nonce"`
	BalanceUNIT string `json:"balanceUNIT"`
}

func (s *Server) handleGetAccount(w http.ResponseWriter, req *RPCRequest) {
	var params accountParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	account, err := s.node.Account(addr[:])
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "account lookup failed", err.Error())
		return
	}
	writeResult(w, req.ID, accountResult{
		Address:     formatAddress(addr),
		Nonce:       account.Nonce,
		BalanceUNIT: account.BalanceUNIT.String(),
	})
}

type eventsParams struct {
	Limit int `json:"limit"`
}

func (s *Server) handleGetEvents(w http.ResponseWriter, req *RPCRequest) {
	params := eventsParams{}
	if len(req.Params) > 0 {
		if rpcErr := parseParams(req, &params); rpcErr != nil {
			writeRPCError(w, req.ID, rpcErr)
			return
		}
	}
	writeResult(w, req.ID, s.node.Events(params.Limit))
}

func (s *Server) handleGetStateRoot(w http.ResponseWriter, req *RPCRequest) {
	writeResult(w, req.ID, map[string]string{
		"root": hex.EncodeToString(s.node.StateRoot()),
	})
}
