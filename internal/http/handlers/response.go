package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/albocarride/server/internal/auth"
	"github.com/albocarride/server/internal/sms"
)

// errorResponse is the JSON body of every error
type errorResponse struct {
	Error             string `json:"error"`
	AttemptsRemaining *int   `json:"attemptsRemaining,omitempty"`
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, errorResponse{Error: message})
}

// writeError maps service errors to HTTP responses
func writeError(w http.ResponseWriter, phone string, err error) {
	var (
		ve *auth.ValidationError
		se *auth.StateError
		me *auth.MismatchError
		de *auth.DependencyError
	)
	switch {
	case errors.As(err, &ve):
		respondWithError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, auth.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "No OTP found for this phone number")
	case errors.As(err, &se):
		respondWithError(w, http.StatusBadRequest, se.Error())
	case errors.As(err, &me):
		remaining := me.AttemptsRemaining
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid OTP", AttemptsRemaining: &remaining})
	case errors.Is(err, auth.ErrRateLimited):
		respondWithError(w, http.StatusTooManyRequests, "Too many OTP requests, please try again later")
	case errors.Is(err, auth.ErrConflict):
		respondWithError(w, http.StatusConflict, "Verification already in progress, please retry")
	case errors.As(err, &de):
		logMaskedPhone(phone, "%s failed: %v", de.Op, de.Err)
		respondWithError(w, http.StatusInternalServerError, dependencyMessage(de.Op))
	default:
		logMaskedPhone(phone, "unexpected error: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func dependencyMessage(op string) string {
	switch op {
	case auth.OpStoreOTP:
		return "Failed to store OTP"
	case auth.OpSendSMS:
		return "Failed to send OTP via SMS"
	case auth.OpProvisionAccount:
		return "Failed to create user account"
	default:
		return "Failed to verify OTP"
	}
}

// logMaskedPhone logs a message with masked phone number
func logMaskedPhone(phone, format string, args ...interface{}) {
	log.Printf("Phone "+sms.MaskPhone(phone)+": "+format, args...)
}
