package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go-marketplace-pos/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMpesaServer(t *testing.T, tokenCalls *int32, push func(w http.ResponseWriter, body stkPushRequest)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body stkPushRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		push(w, body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func mpesaConfig(baseURL string) config.MPesaConfig {
	return config.MPesaConfig{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		PassKey:        "pass",
		CallbackURL:    "https://example.com/api/payments/mpesa/callback",
		Timeout:        5 * time.Second,
	}
}

func TestMpesaInitiateSendsSTKPush(t *testing.T) {
	var tokenCalls int32
	var got stkPushRequest
	srv := newMpesaServer(t, &tokenCalls, func(w http.ResponseWriter, body stkPushRequest) {
		got = body
		_ = json.NewEncoder(w).Encode(stkPushResponse{
			CheckoutRequestID: "ws_CO_123",
			ResponseCode:      "0",
			CustomerMessage:   "Success. Request accepted for processing",
		})
	})

	client := NewMpesaClient(mpesaConfig(srv.URL))
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	client.now = func() time.Time { return fixed }

	orderID := uuid.New()
	res, err := client.Initiate(context.Background(), Request{OrderID: orderID, Amount: 4000, Phone: "0712345678"})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_123", res.Reference)

	assert.Equal(t, "254712345678", got.PhoneNumber)
	assert.Equal(t, "254712345678", got.PartyA)
	assert.EqualValues(t, 4000, got.Amount)
	assert.Equal(t, "20260301093000", got.Timestamp)
	want := base64.StdEncoding.EncodeToString([]byte("174379" + "pass" + "20260301093000"))
	assert.Equal(t, want, got.Password)
	assert.Len(t, got.AccountReference, 12)

	// token is cached
	_, err = client.Initiate(context.Background(), Request{OrderID: orderID, Amount: 10, Phone: "254712345678"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&tokenCalls))
}

func TestMpesaInitiateRejected(t *testing.T) {
	var tokenCalls int32
	srv := newMpesaServer(t, &tokenCalls, func(w http.ResponseWriter, _ stkPushRequest) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(stkPushResponse{ErrorCode: "400.002.02", ErrorMessage: "Bad Request - Invalid Amount"})
	})

	_, err := NewMpesaClient(mpesaConfig(srv.URL)).Initiate(context.Background(), Request{OrderID: uuid.New(), Amount: 0, Phone: "0712345678"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "Invalid Amount")
}

func TestMpesaNotConfigured(t *testing.T) {
	_, err := NewMpesaClient(config.MPesaConfig{}).Initiate(context.Background(), Request{Phone: "0712345678"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNormalizeMSISDN(t *testing.T) {
	cases := map[string]string{
		"0712345678":     "254712345678",
		"0112345678":     "254112345678",
		"+254712345678":  "254712345678",
		"254 712 345678": "254712345678",
	}
	for in, want := range cases {
		got, err := NormalizeMSISDN(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"", "12345", "07123456789", "07123abc78"} {
		_, err := NormalizeMSISDN(bad)
		assert.Error(t, err, bad)
	}
}
