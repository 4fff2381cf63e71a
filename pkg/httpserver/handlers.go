package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/mselser95/coinflip/internal/access"
	"github.com/mselser95/coinflip/internal/params"
	"github.com/mselser95/coinflip/internal/reserve"
	"github.com/mselser95/coinflip/internal/settlement"
	"github.com/mselser95/coinflip/pkg/types"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type handler struct {
	engine     settlement.Engine
	access     settlement.Authorizer
	house      common.Address
	monitor    ReserveMonitor
	commitment CommitmentSource
	dev        DevLedger
	logger     *zap.Logger
}

// ParamsResponse is the body of GET /api/params.
type ParamsResponse struct {
	Mode        types.Mode `json:"mode"`
	Coefficient uint64     `json:"coefficient"`
	Multiplier  string     `json:"multiplier"`
	MinStake    uint64     `json:"min_stake"`
	MaxStake    uint64     `json:"max_stake"`
}

// CoefficientRequest is the body of PUT /api/params/coefficient.
type CoefficientRequest struct {
	Coefficient uint64 `json:"coefficient"`
}

// StakeBoundsRequest is the body of PUT /api/params/stake-bounds.
type StakeBoundsRequest struct {
	MinStake uint64 `json:"min_stake"`
	MaxStake uint64 `json:"max_stake"`
}

// WithdrawRequest is the body of POST /api/reserve/withdraw.
type WithdrawRequest struct {
	Amount uint64 `json:"amount"`
}

// ReserveResponse is the body of GET /api/reserve.
type ReserveResponse struct {
	settlement.ReserveStatus
	Monitor *reserve.Status `json:"monitor,omitempty"`
}

// CommitmentResponse is the body of GET /api/oracle/commitment.
type CommitmentResponse struct {
	Commitment string `json:"commitment"`
}

// MintRequest is the body of POST /api/dev/mint.
type MintRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

// ApproveRequest is the body of POST /api/dev/approve.
type ApproveRequest struct {
	Amount uint64 `json:"amount"`
}

func (h *handler) getParams(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.paramsResponse(h.engine.Parameters()))
}

func (h *handler) paramsResponse(snap params.Snapshot) ParamsResponse {
	return ParamsResponse{
		Mode:        h.engine.Mode(),
		Coefficient: snap.Coefficient,
		Multiplier:  types.Multiplier(snap.Coefficient),
		MinStake:    snap.MinStake,
		MaxStake:    snap.MaxStake,
	}
}

func (h *handler) setCoefficient(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req CoefficientRequest
	if !h.decode(w, r, &req) {
		return
	}

	snap, err := h.engine.SetCoefficient(r.Context(), caller, req.Coefficient)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, h.paramsResponse(snap))
}

func (h *handler) setStakeBounds(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req StakeBoundsRequest
	if !h.decode(w, r, &req) {
		return
	}

	snap, err := h.engine.SetStakeBounds(r.Context(), caller, req.MinStake, req.MaxStake)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, h.paramsResponse(snap))
}

func (h *handler) placeWager(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req settlement.PlaceRequest
	if !h.decode(w, r, &req) {
		return
	}

	wager, err := h.engine.PlaceWager(r.Context(), caller, req)
	if err != nil {
		h.writeError(w, err, wager)
		return
	}

	status := http.StatusOK
	if wager.Status == types.StatusPending {
		status = http.StatusAccepted
	}
	h.writeJSON(w, status, wager)
}

func (h *handler) getWager(w http.ResponseWriter, r *http.Request) {
	wager, err := h.engine.Wager(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, wager)
}

func (h *handler) confirmWager(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	wager, err := h.engine.Confirm(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err, wager)
		return
	}
	h.writeJSON(w, http.StatusOK, wager)
}

func (h *handler) pendingWager(w http.ResponseWriter, r *http.Request) {
	player, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	wager, err := h.engine.PendingWager(r.Context(), player)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, wager)
}

func (h *handler) getReserve(w http.ResponseWriter, r *http.Request) {
	status, err := h.engine.Reserve(r.Context())
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	resp := ReserveResponse{ReserveStatus: status}
	if h.monitor != nil {
		m := h.monitor.Status()
		resp.Monitor = &m
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req WithdrawRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.engine.Withdraw(r.Context(), caller, req.Amount)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	status, err := h.engine.Reserve(r.Context())
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, ReserveResponse{ReserveStatus: status})
}

func (h *handler) getCommitment(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, CommitmentResponse{Commitment: h.commitment.Commitment().Hex()})
}

func (h *handler) mint(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req MintRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.access.Authorize(access.OpMint, caller)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}
	account, err := parseAddress(req.Account)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	err = h.dev.Mint(account, req.Amount)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	h.logger.Info("dev-tokens-minted",
		zap.String("account", account.Hex()),
		zap.Uint64("amount", req.Amount),
		zap.String("by", caller.Hex()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) approve(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req ApproveRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.dev.Approve(caller, h.house, req.Amount)
	w.WriteHeader(http.StatusNoContent)
}

// caller reads the caller account from CallerHeader, writing a 400 when it is
// missing or malformed.
func (h *handler) caller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addr, err := parseAddress(r.Header.Get(CallerHeader))
	if err != nil {
		h.writeError(w, fmt.Errorf("%s header: %w", CallerHeader, err), nil)
		return common.Address{}, false
	}
	return addr, true
}

func parseAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q: %w", raw, types.ErrInvalidParameter)
	}
	return common.HexToAddress(raw), nil
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		h.writeError(w, fmt.Errorf("decode request body: %v: %w", err, types.ErrInvalidParameter), nil)
		return false
	}
	return true
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}
