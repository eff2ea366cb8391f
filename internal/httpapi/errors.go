package httpapi

import (
	"errors"
	"net/http"

	"github.com/govfin/ledger/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }
func notFound(w http.ResponseWriter)               { writeErr(w, http.StatusNotFound, "not_found", "not_found") }
func forbidden(w http.ResponseWriter)              { writeErr(w, http.StatusForbidden, "forbidden", "forbidden") }
func unauthorized(w http.ResponseWriter)           { w.WriteHeader(http.StatusUnauthorized) }

// writeDomainErr maps service errors onto HTTP statuses. Absence and
// conflicts stay opaque; validation failures carry their message. Anything
// else is a store or transaction failure: the detail is logged and the caller
// sees a generic 500.
func (s *Server) writeDomainErr(w http.ResponseWriter, err error) {
	var ve *errs.ValidationError
	switch {
	case errors.Is(err, errs.ErrNotFound):
		notFound(w)
	case errors.Is(err, errs.ErrForbidden):
		forbidden(w)
	case errors.Is(err, errs.ErrDuplicateName):
		writeErr(w, http.StatusConflict, "duplicate name", "duplicate_name")
	case errors.Is(err, errs.ErrConflict):
		writeErr(w, http.StatusConflict, "conflict", "conflict")
	case errors.Is(err, errs.ErrNegativePayment):
		writeErr(w, http.StatusUnprocessableEntity, "payment must not be negative", "negative_payment")
	case errors.Is(err, errs.ErrBadLink):
		writeErr(w, http.StatusUnprocessableEntity, "linked category must be an expense category of the same account", "invalid_link")
	case errors.As(err, &ve):
		writeErr(w, http.StatusUnprocessableEntity, ve.Msg, "validation_error")
	case errors.Is(err, errs.ErrInvalid):
		badRequest(w, "invalid request")
	default:
		s.log.Error("operation failed", "error", err)
		writeErr(w, http.StatusInternalServerError, "operation failed", "internal")
	}
}
