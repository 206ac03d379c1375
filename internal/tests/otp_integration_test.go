package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albocarride/server/internal/auth"
	"github.com/albocarride/server/internal/db"
	httphandler "github.com/albocarride/server/internal/http"
	"github.com/albocarride/server/internal/http/handlers"
	"github.com/albocarride/server/internal/identity"
	"github.com/albocarride/server/internal/ratelimit"
	"github.com/albocarride/server/internal/repo"
	"github.com/albocarride/server/internal/sms"
)

const testPhone = "+15551234567"

// testServer holds the server and DB for integration tests
type testServer struct {
	Server *httptest.Server
	DB     *sql.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	database := OpenTestDB(t)

	otpRepo := repo.NewOtpRepo(database)
	accountRepo := repo.NewAccountRepo(database)
	idp := identity.NewLocalProvider(accountRepo, identity.NewJWTService("test-jwt-secret-at-least-32-characters-long", time.Hour))

	otpService := auth.NewOtpService(
		otpRepo,
		sms.NewLogGateway(),
		ratelimit.NewMemoryLimiter(10*time.Minute, 100),
		auth.NewAccountService(accountRepo, idp, "albocarride.com"),
		auth.OtpConfig{TTL: 10 * time.Minute, MaxAttempts: 5, AppName: "AlboCarRide", DevMode: true},
	)

	router := httphandler.NewRouter(httphandler.RouterDeps{
		OTPHandler:    handlers.NewOTPHandler(otpService),
		HealthHandler: handlers.NewHealthHandler(func(ctx context.Context) error { return db.Ping(ctx, database) }),
		SendLimiter:   ratelimit.NewMemoryLimiter(time.Minute, 1000),
		VerifyLimiter: ratelimit.NewMemoryLimiter(time.Minute, 1000),
		TokenVerifier: idp,
		Accounts:      accountRepo,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{Server: server, DB: database}
}

func (s *testServer) Truncate(t *testing.T) {
	t.Helper()
	require.NoError(t, TruncateTables(context.Background(), s.DB), "truncate tables")
}

func (s *testServer) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := s.Server.Client().Post(s.Server.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	return resp.StatusCode, out
}

// sendOTP issues an OTP for phone and returns the dev code
func (s *testServer) sendOTP(t *testing.T, phone string) string {
	t.Helper()
	code, body := s.post(t, "/auth/send-otp", map[string]string{"phoneNumber": phone})
	require.Equal(t, http.StatusOK, code, "send-otp body: %v", body)
	otp, _ := body["devOtp"].(string)
	require.Len(t, otp, 6)
	return otp
}

func wrongCode(otp string) string {
	if otp == "000000" {
		return "111111"
	}
	return "000000"
}

func TestOTPIntegration(t *testing.T) {
	ts := newTestServer(t)

	t.Run("A_HealthCheck", func(t *testing.T) {
		resp, err := ts.Server.Client().Get(ts.Server.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("B_CustomerScenario", func(t *testing.T) {
		ts.Truncate(t)
		otp := ts.sendOTP(t, testPhone)

		code, body := ts.post(t, "/auth/verify-otp", map[string]string{"phoneNumber": testPhone, "otp": wrongCode(otp)})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Invalid OTP", body["error"])
		assert.EqualValues(t, 4, body["attemptsRemaining"])

		code, body = ts.post(t, "/auth/verify-otp", map[string]string{"phoneNumber": testPhone, "otp": otp})
		require.Equal(t, http.StatusOK, code, "body: %v", body)
		assert.Equal(t, true, body["isNewUser"])
		assert.Equal(t, "customer", body["role"])

		var method string
		require.NoError(t, ts.DB.QueryRow(`SELECT preferred_payment_method FROM customers WHERE id = $1`, body["userId"]).Scan(&method))
		assert.Equal(t, "cash", method)

		var accountID sql.NullString
		require.NoError(t, ts.DB.QueryRow(`SELECT account_id FROM otp_verifications WHERE phone_number = $1`, testPhone).Scan(&accountID))
		assert.Equal(t, body["userId"], accountID.String)

		code, body = ts.post(t, "/auth/verify-otp", map[string]string{"phoneNumber": testPhone, "otp": otp})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "OTP already used", body["error"])
	})

	t.Run("C_DriverScenario", func(t *testing.T) {
		ts.Truncate(t)
		otp := ts.sendOTP(t, testPhone)

		code, body := ts.post(t, "/auth/verify-otp", map[string]string{
			"phoneNumber": testPhone, "otp": otp, "fullName": "Sipho Dlamini", "role": "driver",
		})
		require.Equal(t, http.StatusOK, code, "body: %v", body)

		var approved, online bool
		require.NoError(t, ts.DB.QueryRow(`SELECT is_approved, is_online FROM drivers WHERE id = $1`, body["userId"]).Scan(&approved, &online))
		assert.False(t, approved)
		assert.False(t, online)
	})

	t.Run("D_Expired", func(t *testing.T) {
		ts.Truncate(t)
		otp := ts.sendOTP(t, testPhone)
		_, err := ts.DB.Exec(`UPDATE otp_verifications SET expires_at = now() - interval '1 second' WHERE phone_number = $1`, testPhone)
		require.NoError(t, err)

		code, body := ts.post(t, "/auth/verify-otp", map[string]string{"phoneNumber": testPhone, "otp": otp})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "OTP has expired", body["error"])
	})

	t.Run("E_Lockout", func(t *testing.T) {
		ts.Truncate(t)
		otp := ts.sendOTP(t, testPhone)
		for i := 0; i < 5; i++ {
			code, _ := ts.post(t, "/auth/verify-otp", map[string]string{"phoneNumber": testPhone, "otp": wrongCode(otp)})
			require.Equal(t, http.StatusBadRequest, code)
		}
		code, body := ts.post(t, "/auth/verify-otp", map[string]string{"phoneNumber": testPhone, "otp": otp})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Maximum verification attempts exceeded", body["error"])
	})

	t.Run("F_ReissueReplacesCode", func(t *testing.T) {
		ts.Truncate(t)
		first := ts.sendOTP(t, "+15557654321")
		second := ts.sendOTP(t, "+15557654321")

		var attempts int
		var verified bool
		require.NoError(t, ts.DB.QueryRow(`SELECT attempts, verified FROM otp_verifications WHERE phone_number = $1`, "+15557654321").Scan(&attempts, &verified))
		assert.Zero(t, attempts)
		assert.False(t, verified)

		if first != second {
			code, _ := ts.post(t, "/auth/verify-otp", map[string]string{"phoneNumber": "+15557654321", "otp": first})
			assert.Equal(t, http.StatusBadRequest, code)
		}
		code, _ := ts.post(t, "/auth/verify-otp", map[string]string{"phoneNumber": "+15557654321", "otp": second})
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("G_NotFound", func(t *testing.T) {
		ts.Truncate(t)
		code, body := ts.post(t, "/auth/verify-otp", map[string]string{"phoneNumber": "+15550000000", "otp": "123456"})
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "No OTP found for this phone number", body["error"])
	})

	t.Run("H_Me", func(t *testing.T) {
		ts.Truncate(t)
		otp := ts.sendOTP(t, "+15559990000")
		_, body := ts.post(t, "/auth/verify-otp", map[string]string{"phoneNumber": "+15559990000", "otp": otp})

		req, _ := http.NewRequest(http.MethodGet, ts.Server.URL+"/me", nil)
		req.Header.Set("Authorization", "Bearer "+body["accessToken"].(string))
		resp, err := ts.Server.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
