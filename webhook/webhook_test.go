package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

func TestDeliver_SignsPayload(t *testing.T) {
	const secret = "topsecret"

	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-AISFeed-Signature")
	}))
	defer srv.Close()

	event := NewRunCompleted(models.RunSummary{Sources: 3, Succeeded: 2, Failed: 1, Articles: 40})
	require.NoError(t, Deliver(context.Background(), srv.URL, secret, event))

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSig)

	var decoded Event
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, EventRunCompleted, decoded.Type)
	assert.NotEmpty(t, decoded.RunID)
}

func TestDeliver_NoSignatureWithoutSecret(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-AISFeed-Signature")
	}))
	defer srv.Close()

	require.NoError(t, Deliver(context.Background(), srv.URL, "", NewRunCompleted(models.RunSummary{})))
	assert.Empty(t, gotSig)
}

func TestDeliver_ErrorStatusIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := Deliver(context.Background(), srv.URL, "", NewRunCompleted(models.RunSummary{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
