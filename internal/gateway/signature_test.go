package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/dineflow/pkg/apperr"
)

func TestSignVerifyRoundtrip(t *testing.T) {
	secret := []byte("whsec_abc")
	payload := []byte(`{"id":"evt_1"}`)

	header := Sign(secret, time.Now(), payload)
	assert.NoError(t, VerifySignature(secret, header, payload, 5*time.Minute))
}

func TestVerifySignatureRejects(t *testing.T) {
	secret := []byte("whsec_abc")
	payload := []byte(`{"id":"evt_1"}`)
	good := Sign(secret, time.Now(), payload)

	cases := []struct {
		name      string
		header    string
		payload   []byte
		tolerance time.Duration
	}{
		{"empty header", "", payload, 0},
		{"malformed header", "garbage", payload, 0},
		{"missing digest", "t=1700000000", payload, 0},
		{"missing timestamp", "v1=deadbeef", payload, 0},
		{"bad timestamp", "t=notanumber,v1=deadbeef", payload, 0},
		{"wrong secret", Sign([]byte("other"), time.Now(), payload), payload, 0},
		{"tampered body", good, []byte(`{"id":"evt_2"}`), 0},
		{"stale timestamp", Sign(secret, time.Now().Add(-time.Hour), payload), payload, 5 * time.Minute},
		{"future timestamp", Sign(secret, time.Now().Add(time.Hour), payload), payload, 5 * time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifySignature(secret, tc.header, tc.payload, tc.tolerance)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindInvalidSignature))
		})
	}
}

func TestVerifySignatureZeroToleranceSkipsAgeCheck(t *testing.T) {
	secret := []byte("whsec_abc")
	payload := []byte(`{"id":"evt_old"}`)
	header := Sign(secret, time.Now().Add(-24*time.Hour), payload)
	assert.NoError(t, VerifySignature(secret, header, payload, 0))
}
