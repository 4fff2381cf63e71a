package httpserver

import (
	"errors"
	"net/http"

	"github.com/mselser95/coinflip/pkg/types"
	"go.uber.org/zap"
)

// ErrorResponse represents an HTTP error response. Wager is set when the
// operation recorded a wager before failing.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Code    string       `json:"code"`
	WagerID string       `json:"wager_id,omitempty"`
	Wager   *types.Wager `json:"wager,omitempty"`
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case types.CodeInvalidParameter, types.CodeInvalidChoice, types.CodeStakeOutOfRange:
		return http.StatusBadRequest
	case types.CodeUnauthorized:
		return http.StatusForbidden
	case types.CodeUnknownWager:
		return http.StatusNotFound
	case types.CodeConflictingPendingWager, types.CodeDuplicateWager, types.CodeAlreadySettled:
		return http.StatusConflict
	case types.CodeInsufficientFunds, types.CodeInsufficientAllowance, types.CodeInsufficientReserve,
		types.CodePayoutOverflow:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeError(w http.ResponseWriter, err error, wager *types.Wager) {
	code := types.CodeOf(err)
	status := StatusFor(code)

	resp := ErrorResponse{Error: err.Error(), Code: code, Wager: wager}
	var serr *types.SettlementError
	if errors.As(err, &serr) {
		resp.WagerID = serr.WagerID
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request-failed", zap.Error(err), zap.String("code", code))
	} else {
		h.logger.Debug("request-rejected", zap.Error(err), zap.String("code", code))
	}

	h.writeJSON(w, status, resp)
}
