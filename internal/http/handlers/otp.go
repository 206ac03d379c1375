package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/albocarride/server/internal/auth"
)

// OTPHandler handles the phone verification endpoints
type OTPHandler struct {
	otpService *auth.OtpService
}

// NewOTPHandler creates a new OTP handler
func NewOTPHandler(otpService *auth.OtpService) *OTPHandler {
	return &OTPHandler{otpService: otpService}
}

// sendOTPRequest is the request body for POST /auth/send-otp
type sendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// sendOTPResponse is the JSON response for send-otp
type sendOTPResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ExpiresIn int    `json:"expiresIn"`
	DevOTP    string `json:"devOtp,omitempty"`
}

// verifyOTPRequest is the request body for POST /auth/verify-otp
type verifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
	FullName    string `json:"fullName"`
	Role        string `json:"role"`
}

// verifyOTPResponse is the JSON response for verify-otp
type verifyOTPResponse struct {
	Success     bool   `json:"success"`
	UserID      string `json:"userId"`
	IsNewUser   bool   `json:"isNewUser"`
	Role        string `json:"role"`
	Email       string `json:"email"`
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"`
}

// HandleSendOTP handles POST /auth/send-otp
func (h *OTPHandler) HandleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.otpService.RequestOTP(r.Context(), req.PhoneNumber)
	if err != nil {
		writeError(w, req.PhoneNumber, err)
		return
	}
	logMaskedPhone(req.PhoneNumber, "OTP issued")

	respondWithJSON(w, http.StatusOK, sendOTPResponse{
		Success:   true,
		Message:   "OTP sent successfully",
		ExpiresIn: res.ExpiresIn,
		DevOTP:    res.DevCode,
	})
}

// HandleVerifyOTP handles POST /auth/verify-otp
func (h *OTPHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	acc, err := h.otpService.VerifyOTP(r.Context(), auth.VerifyRequest{
		Phone:    req.PhoneNumber,
		Code:     req.OTP,
		FullName: req.FullName,
		Role:     req.Role,
	})
	if err != nil {
		writeError(w, req.PhoneNumber, err)
		return
	}

	respondWithJSON(w, http.StatusOK, verifyOTPResponse{
		Success:     true,
		UserID:      acc.UserID.String(),
		IsNewUser:   acc.IsNewUser,
		Role:        string(acc.Role),
		Email:       acc.Email,
		Message:     "Phone number verified successfully",
		AccessToken: acc.Session.AccessToken,
		TokenType:   acc.Session.TokenType,
		ExpiresIn:   acc.Session.ExpiresIn,
	})
}
