package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySettlementError(t *testing.T) {
	assert.Equal(t, SettleErrAlreadyLocked,
		ClassifySettlementError(&SettlementError{Code: SettleErrAlreadyLocked}))
	assert.Equal(t, SettleErrFatal,
		ClassifySettlementError(&SettlementError{Code: SettleErrFatal}))

	// Anything unclassified counts as transient.
	assert.Equal(t, SettleErrTransient, ClassifySettlementError(errors.New("connection reset")))
}

func newTestHub(t *testing.T, handler http.HandlerFunc) *HubClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &HubClient{
		BaseURL:    srv.URL,
		Token:      "test-token",
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestHubClientReportResultSuccess(t *testing.T) {
	hub := newTestHub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sessions/m1/result", r.URL.Path)
		assert.Equal(t, "test-token", r.Header.Get("X-Service-Token"))
		w.Write([]byte(`{"tx_hash":"0xabc"}`))
	})

	receipt, err := hub.ReportResult(context.Background(), "m1", "alice", "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", receipt.TxHash)
}

func TestHubClientMapsWireCodes(t *testing.T) {
	cases := map[string]SettlementErrorCode{
		"ALREADY_LOCKED":    SettleErrAlreadyLocked,
		"ALREADY_SETTLED":   SettleErrAlreadySettled,
		"SESSION_NOT_FOUND": SettleErrSessionMissing,
		"UNAVAILABLE":       SettleErrTransient,
		"TIMEOUT":           SettleErrTransient,
		"STAKE_MISMATCH":    SettleErrFatal, // unmapped contract rejection
	}

	for wire, want := range cases {
		wire, want := wire, want
		t.Run(wire, func(t *testing.T) {
			hub := newTestHub(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte(`{"code":"` + wire + `","message":"nope"}`))
			})
			_, err := hub.ReportResult(context.Background(), "m1", "alice", "bob", "alice")
			require.Error(t, err)
			assert.Equal(t, want, ClassifySettlementError(err))
		})
	}
}

func TestHubClientUnstructured5xxIsTransient(t *testing.T) {
	hub := newTestHub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream timeout"))
	})
	_, err := hub.Cancel(context.Background(), "m1")
	require.Error(t, err)
	assert.Equal(t, SettleErrTransient, ClassifySettlementError(err))
}

func TestHubClientUnstructured4xxIsFatal(t *testing.T) {
	hub := newTestHub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad request"))
	})
	_, err := hub.Cancel(context.Background(), "m1")
	require.Error(t, err)
	assert.Equal(t, SettleErrFatal, ClassifySettlementError(err))
}

func TestHubClientConnectionFailureIsTransient(t *testing.T) {
	hub := &HubClient{
		BaseURL:    "http://127.0.0.1:1", // nothing listens here
		Token:      "t",
		HTTPClient: &http.Client{Timeout: time.Second},
	}
	_, err := hub.ReportResult(context.Background(), "m1", "a", "b", "a")
	require.Error(t, err)
	assert.Equal(t, SettleErrTransient, ClassifySettlementError(err))
}
