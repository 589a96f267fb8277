package rpc

import (
	"errors"
	"net/http"

	"mailboxchain/core/mailbox"
)

const (
	codeMailerInvalidParams = -32061
	codeMailerForbidden     = -32062
	codeMailerConflict      = -32063
	codeMailerInternal      = -32064
)

func mailerRPCError(err error) *RPCError {
	switch {
	case errors.Is(err, mailbox.ErrOnlyOwner):
		return &RPCError{Code: codeMailerForbidden, Message: "caller is not the mailer owner"}
	case errors.Is(err, mailbox.ErrAlreadyInitialized):
		return &RPCError{Code: codeMailerConflict, Message: "mailer already initialized"}
	case errors.Is(err, mailbox.ErrNotInitialized):
		return &RPCError{Code: codeMailerConflict, Message: "mailer not initialized"}
	case errors.Is(err, mailbox.ErrNoClaimableAmount):
		return &RPCError{Code: codeMailerConflict, Message: "no claimable amount"}
	case errors.Is(err, mailbox.ErrClaimExpired):
		return &RPCError{Code: codeMailerConflict, Message: "claim window expired"}
	case errors.Is(err, mailbox.ErrClaimPeriodNotExpired):
		return &RPCError{Code: codeMailerConflict, Message: "claim period not expired"}
	case errors.Is(err, mailbox.ErrInsufficientFunds):
		return &RPCError{Code: codeMailerConflict, Message: "insufficient UNIT balance"}
	case errors.Is(err, mailbox.ErrMathOverflow):
		return &RPCError{Code: codeMailerInternal, Message: "arithmetic overflow"}
	default:
		return &RPCError{Code: codeMailerInternal, Message: "mailer operation failed", Data: err.Error()}
	}
}

type mailerInitializeParams struct {
	Caller   string `json:"caller"`
	UnitMint string `json:"unitMint"`
}

func (s *Server) handleMailerInitialize(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	var params mailerInitializeParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMailerInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.node.MailerInitialize(caller, params.UnitMint); err != nil {
		writeRPCError(w, req.ID, mailerRPCError(err))
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

type sendParams struct {
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type sendPreparedParams struct {
	From   string `json:"from"`
	MailID string `json:"mailId"`
}

type okResult struct {
	OK bool `json:"ok"`
}

type claimAmountResult struct {
	Amount uint64 `json:"amount"`
}

func (s *Server) handleMailerSendPriority(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleSend(w, r, req, s.node.MailerSendPriority)
}

func (s *Server) handleMailerSend(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleSend(w, r, req, s.node.MailerSend)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request, req *RPCRequest, op func([20]byte, string, string) error) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	var params sendParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	from, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMailerInvalidParams, "invalid sender address", err.Error())
		return
	}
	if err := op(from, params.Subject, params.Body); err != nil {
		writeRPCError(w, req.ID, mailerRPCError(err))
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleMailerSendPriorityPrepared(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleSendPrepared(w, r, req, s.node.MailerSendPriorityPrepared)
}

func (s *Server) handleMailerSendPrepared(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleSendPrepared(w, r, req, s.node.MailerSendPrepared)
}

func (s *Server) handleSendPrepared(w http.ResponseWriter, r *http.Request, req *RPCRequest, op func([20]byte, string) error) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	var params sendPreparedParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	from, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMailerInvalidParams, "invalid sender address", err.Error())
		return
	}
	if err := op(from, params.MailID); err != nil {
		writeRPCError(w, req.ID, mailerRPCError(err))
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

type callerParams struct {
	Caller string `json:"caller"`
}

func (s *Server) handleMailerClaimRecipientShare(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	var params callerParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMailerInvalidParams, "invalid caller address", err.Error())
		return
	}
	amount, err := s.node.MailerClaimRecipientShare(caller)
	if err != nil {
		writeRPCError(w, req.ID, mailerRPCError(err))
		return
	}
	writeResult(w, req.ID, claimAmountResult{Amount: amount})
}

func (s *Server) handleMailerClaimOwnerShare(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	var params callerParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMailerInvalidParams, "invalid caller address", err.Error())
		return
	}
	amount, err := s.node.MailerClaimOwnerShare(caller)
	if err != nil {
		writeRPCError(w, req.ID, mailerRPCError(err))
		return
	}
	writeResult(w, req.ID, claimAmountResult{Amount: amount})
}

type claimExpiredParams struct {
	Caller string `json:"caller"`
	Sender string `json:"sender"`
}

func (s *Server) handleMailerClaimExpiredShares(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	var params claimExpiredParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMailerInvalidParams, "invalid caller address", err.Error())
		return
	}
	sender, err := parseAddress(params.Sender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMailerInvalidParams, "invalid sender address", err.Error())
		return
	}
	amount, err := s.node.MailerClaimExpiredShares(caller, sender)
	if err != nil {
		writeRPCError(w, req.ID, mailerRPCError(err))
		return
	}
	writeResult(w, req.ID, claimAmountResult{Amount: amount})
}

type setFeeParams struct {
	Caller string `json:"caller"`
	Fee    uint64 `json:"fee"`
}

func (s *Server) handleMailerSetFee(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	var params setFeeParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMailerInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.node.MailerSetFee(caller, params.Fee); err != nil {
		writeRPCError(w, req.ID, mailerRPCError(err))
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

type mailerStateResult struct {
	Owner          string `json:"owner"`
	UnitMint       string `json:"unitMint"`
	SendFee        uint64 `json:"sendFee"`
	OwnerClaimable uint64 `json:"ownerClaimable"`
	VaultBalance   string `json:"vaultBalance"`
}

func (s *Server) handleMailerGetState(w http.ResponseWriter, req *RPCRequest) {
	st, ok := s.node.MailerState()
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMailerConflict, "mailer not initialized", nil)
		return
	}
	balance, err := s.node.MailerVaultBalance()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeMailerInternal, "vault lookup failed", err.Error())
		return
	}
	writeResult(w, req.ID, mailerStateResult{
		Owner:          formatAddress(st.Owner),
		UnitMint:       st.UnitMint,
		SendFee:        st.SendFee,
		OwnerClaimable: st.OwnerClaimable,
		VaultBalance:   balance.String(),
	})
}

type claimQueryParams struct {
	Address string `json:"address"`
}

type claimResult struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Timestamp int64  `json:"timestamp"`
	ExpiresAt int64  `json:"expiresAt"`
}

func (s *Server) handleMailerGetClaim(w http.ResponseWriter, req *RPCRequest) {
	var params claimQueryParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMailerInvalidParams, "invalid address", err.Error())
		return
	}
	claim, ok := s.node.MailerClaim(addr)
	if !ok || claim.Amount == 0 {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, claimResult{
		Recipient: formatAddress(claim.Recipient),
		Amount:    claim.Amount,
		Timestamp: claim.Timestamp,
		ExpiresAt: claim.Timestamp + mailbox.ClaimWindowSecs,
	})
}
