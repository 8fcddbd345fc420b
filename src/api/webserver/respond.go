package webserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/agent-ledger/src/apperr"
	"github.com/stake-plus/agent-ledger/src/ledger"
)

// statusFor maps engine error codes to HTTP statuses. Timing and state
// failures are conflicts: the request is well-formed, the world just
// is not in the required shape yet.
func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidAmount, apperr.CodeEscrowIDTooLong, apperr.CodeAgentIDTooLong,
		apperr.CodeTaskIDTooLong, apperr.CodeMetadataURITooLong, apperr.CodeCommentTooLong,
		apperr.CodeInvalidRating, apperr.CodeInvalidAddress:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeUnauthorized, apperr.CodeSelfAttestation, apperr.CodeBadAuthority:
		return http.StatusForbidden
	case apperr.CodeEscrowNotPending, apperr.CodeEscrowExists, apperr.CodeAgentExists,
		apperr.CodeTaskExists, apperr.CodeReleaseTimeNotReached, apperr.CodeDisputePeriodActive:
		return http.StatusConflict
	case apperr.CodeInsufficientFunds:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func respondErr(c *gin.Context, err error) {
	var e *apperr.Error
	if errors.As(err, &e) {
		c.JSON(statusFor(e.Code), gin.H{"err": e.Msg, "code": e.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
}

// signerAddr parses the authenticated signer identity the JWT
// middleware stored in the context.
func signerAddr(c *gin.Context) (ledger.Address, bool) {
	addr, err := ledger.ParseAddress(c.GetString("addr"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "bad signer identity"})
		return ledger.Address{}, false
	}
	return addr, true
}

// pathAddr parses a base58 address path parameter.
func pathAddr(c *gin.Context, param string) (ledger.Address, bool) {
	addr, err := ledger.ParseAddress(c.Param(param))
	if err != nil {
		respondErr(c, err)
		return ledger.Address{}, false
	}
	return addr, true
}
