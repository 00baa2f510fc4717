package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mesh-intelligence/stockroom/internal/query"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

// Error codes in response bodies.
const (
	codeBadRequest            = "bad_request"
	codeValidationFailed      = "validation_failed"
	codeInvalidDefinition     = "invalid_definition"
	codeUnknownCharacteristic = "unknown_characteristic"
	codeNotFound              = "not_found"
	codeConflict              = "conflict"
	codeInUse                 = "in_use"
	codeNothingToUndo         = "nothing_to_undo"
	codePersistence           = "persistence_failure"
	codeRateLimited           = "rate_limited"
	codeInternal              = "internal_error"
)

type errorResponse struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []fieldError `json:"fields,omitempty"`
}

type fieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// errorHandler writes a response for err and reports whether it did.
type errorHandler func(w http.ResponseWriter, err error) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		validationHandler,
		sentinelHandler(query.ErrInvalidPredicate, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(types.ErrInvalidName, http.StatusBadRequest, codeInvalidDefinition),
		sentinelHandler(types.ErrInvalidDataType, http.StatusBadRequest, codeInvalidDefinition),
		sentinelHandler(types.ErrInvalidDefinition, http.StatusBadRequest, codeInvalidDefinition),
		sentinelHandler(types.ErrUnknownCharacteristic, http.StatusUnprocessableEntity, codeUnknownCharacteristic),
		sentinelHandler(types.ErrDuplicateName, http.StatusConflict, codeConflict),
		sentinelHandler(types.ErrDuplicateGroup, http.StatusConflict, codeConflict),
		sentinelHandler(types.ErrInUse, http.StatusConflict, codeInUse),
		sentinelHandler(types.ErrNothingToUndo, http.StatusConflict, codeNothingToUndo),
		sentinelHandler(types.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(types.ErrUnknownGroup, http.StatusNotFound, codeNotFound),
		persistenceHandler,
	}
}

// validationHandler reports every failed field of a *types.ValidationErrors.
func validationHandler(w http.ResponseWriter, err error) bool {
	ve, ok := types.AsValidation(err)
	if !ok {
		return false
	}
	resp := errorResponse{Code: codeValidationFailed, Message: types.ErrValidation.Error()}
	for _, f := range ve.Fields {
		resp.Fields = append(resp.Fields, fieldError{Field: f.Field, Reason: f.Reason.Error(), Detail: f.Detail})
	}
	writeJSON(w, http.StatusUnprocessableEntity, resp)
	return true
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

// persistenceHandler hides backend details from clients.
func persistenceHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, types.ErrPersistence) {
		return false
	}
	writeError(w, http.StatusServiceUnavailable, codePersistence, types.ErrPersistence.Error())
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
