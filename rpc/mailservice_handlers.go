package rpc

import (
	"errors"
	"net/http"
	"strings"

	"mailboxchain/native/mailservice"
)

const (
	codeServiceInvalidParams = -32071
	codeServiceForbidden     = -32072
	codeServiceConflict      = -32073
	codeServiceInternal      = -32074
)

func serviceRPCError(err error) *RPCError {
	switch {
	case errors.Is(err, mailservice.ErrOnlyOwner):
		return &RPCError{Code: codeServiceForbidden, Message: "caller is not the service owner"}
	case errors.Is(err, mailservice.ErrUnauthorizedRejector):
		return &RPCError{Code: codeServiceForbidden, Message: "caller is not the named delegate"}
	case errors.Is(err, mailservice.ErrAlreadyInitialized):
		return &RPCError{Code: codeServiceConflict, Message: "mail service already initialized"}
	case errors.Is(err, mailservice.ErrNotInitialized):
		return &RPCError{Code: codeServiceConflict, Message: "mail service not initialized"}
	case errors.Is(err, mailservice.ErrSelfDelegation):
		return &RPCError{Code: codeServiceInvalidParams, Message: "self delegation is forbidden"}
	case errors.Is(err, mailservice.ErrInvalidDelegate):
		return &RPCError{Code: codeServiceInvalidParams, Message: "invalid delegate"}
	case errors.Is(err, mailservice.ErrEmptyDomain):
		return &RPCError{Code: codeServiceInvalidParams, Message: "domain name must not be empty"}
	case errors.Is(err, mailservice.ErrInvalidAmount):
		return &RPCError{Code: codeServiceInvalidParams, Message: "amount must be positive"}
	case errors.Is(err, mailservice.ErrNoDelegationToReject):
		return &RPCError{Code: codeServiceConflict, Message: "no delegation to reject"}
	case errors.Is(err, mailservice.ErrInsufficientFunds):
		return &RPCError{Code: codeServiceConflict, Message: "insufficient UNIT balance"}
	case errors.Is(err, mailservice.ErrMathOverflow):
		return &RPCError{Code: codeServiceInternal, Message: "arithmetic overflow"}
	default:
		return &RPCError{Code: codeServiceInternal, Message: "mail service operation failed", Data: err.Error()}
	}
}

type serviceInitializeParams struct {
	Caller   string `json:"caller"`
	UnitMint string `json:"unitMint"`
}

func (s *Server) handleServiceInitialize(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	var params serviceInitializeParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServiceInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.node.ServiceInitialize(caller, params.UnitMint); err != nil {
		writeRPCError(w, req.ID, serviceRPCError(err))
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

type delegateToParams struct {
	Caller string `json:"caller"`
	// Delegate clears the delegation when empty.
	Delegate string `json:"delegate"`
}

func (s *Server) handleServiceDelegateTo(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	var params delegateToParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServiceInvalidParams, "invalid caller address", err.Error())
		return
	}
	var delegate []byte
	if strings.TrimSpace(params.Delegate) != "" {
		parsed, err := parseAddress(params.Delegate)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeServiceInvalidParams, "invalid delegate address", err.Error())
			return
		}
		delegate = parsed[:]
	}
	if err := s.node.ServiceDelegateTo(caller, delegate); err != nil {
		writeRPCError(w, req.ID, serviceRPCError(err))
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

type rejectDelegationParams struct {
	Caller    string `json:"caller"`
	Delegator string `json:"delegator"`
}

func (s *Server) handleServiceRejectDelegation(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	var params rejectDelegationParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServiceInvalidParams, "invalid caller address", err.Error())
		return
	}
	delegator, err := parseAddress(params.Delegator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServiceInvalidParams, "invalid delegator address", err.Error())
		return
	}
	if err := s.node.ServiceRejectDelegation(caller, delegator); err != nil {
		writeRPCError(w, req.ID, serviceRPCError(err))
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

type registerDomainParams struct {
	Caller      string `json:"caller"`
	Name        string `json:"name"`
	IsExtension bool   `json:"isExtension"`
}

func (s *Server) handleServiceRegisterDomain(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	var params registerDomainParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServiceInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.node.ServiceRegisterDomain(caller, params.Name, params.IsExtension); err != nil {
		writeRPCError(w, req.ID, serviceRPCError(err))
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleServiceSetRegistrationFee(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleServiceSetFee(w, r, req, s.node.ServiceSetRegistrationFee)
}

func (s *Server) handleServiceSetDelegationFee(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleServiceSetFee(w, r, req, s.node.ServiceSetDelegationFee)
}

func (s *Server) handleServiceSetFee(w http.ResponseWriter, r *http.Request, req *RPCRequest, op func([20]byte, uint64) error) {
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
		writeError(w, http.StatusBadRequest, req.ID, codeServiceInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := op(caller, params.Fee); err != nil {
		writeRPCError(w, req.ID, serviceRPCError(err))
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

type withdrawFeesParams struct {
	Caller string `json:"caller"`
	Amount uint64 `json:"amount"`
}

func (s *Server) handleServiceWithdrawFees(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	var params withdrawFeesParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServiceInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.node.ServiceWithdrawFees(caller, params.Amount); err != nil {
		writeRPCError(w, req.ID, serviceRPCError(err))
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

type serviceStateResult struct {
	Owner           string `json:"owner"`
	UnitMint        string `json:"unitMint"`
	DelegationFee   uint64 `json:"delegationFee"`
	RegistrationFee uint64 `json:"registrationFee"`
	OwnerClaimable  uint64 `json:"ownerClaimable"`
	VaultBalance    string `json:"vaultBalance"`
}

func (s *Server) handleServiceGetState(w http.ResponseWriter, req *RPCRequest) {
	st, ok := s.node.ServiceState()
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeServiceConflict, "mail service not initialized", nil)
		return
	}
	balance, err := s.node.ServiceVaultBalance()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServiceInternal, "vault lookup failed", err.Error())
		return
	}
	writeResult(w, req.ID, serviceStateResult{
		Owner:           formatAddress(st.Owner),
		UnitMint:        st.UnitMint,
		DelegationFee:   st.DelegationFee,
		RegistrationFee: st.RegistrationFee,
		OwnerClaimable:  st.OwnerClaimable,
		VaultBalance:    balance.String(),
	})
}

type delegationQueryParams struct {
	Address string `json:"address"`
}

type delegationResult struct {
	Delegator string `json:"delegator"`
	Delegate  string `json:"delegate,omitempty"`
}

func (s *Server) handleServiceGetDelegation(w http.ResponseWriter, req *RPCRequest) {
	var params delegationQueryParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServiceInvalidParams, "invalid address", err.Error())
		return
	}
	record, ok := s.node.Delegation(addr)
	if !ok || !record.Active() {
		writeResult(w, req.ID, nil)
		return
	}
	var delegate [20]byte
	copy(delegate[:], record.Delegate)
	writeResult(w, req.ID, delegationResult{
		Delegator: formatAddress(record.Delegator),
		Delegate:  formatAddress(delegate),
	})
}
