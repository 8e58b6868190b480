package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyWebhookSignatureRoundtrip(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Now()

	header := BuildWebhookSignature(payload, "whsec_test", now)
	assert.NoError(t, VerifyWebhookSignature(payload, header, "whsec_test", now))
}

func TestVerifyWebhookSignatureTamperedPayload(t *testing.T) {
	payload := []byte(`{"amount":4500}`)
	now := time.Now()
	header := BuildWebhookSignature(payload, "whsec_test", now)

	tampered := []byte(`{"amount":1}`)
	assert.Error(t, VerifyWebhookSignature(tampered, header, "whsec_test", now))
}

func TestVerifyWebhookSignatureWrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now()
	header := BuildWebhookSignature(payload, "whsec_a", now)

	assert.Error(t, VerifyWebhookSignature(payload, header, "whsec_b", now))
}

func TestVerifyWebhookSignatureStaleTimestamp(t *testing.T) {
	payload := []byte(`{}`)
	signedAt := time.Now().Add(-10 * time.Minute)
	header := BuildWebhookSignature(payload, "whsec_test", signedAt)

	err := VerifyWebhookSignature(payload, header, "whsec_test", time.Now())
	require.Error(t, err)
}

func TestVerifyWebhookSignatureWithinTolerance(t *testing.T) {
	payload := []byte(`{}`)
	signedAt := time.Now().Add(-4 * time.Minute)
	header := BuildWebhookSignature(payload, "whsec_test", signedAt)

	assert.NoError(t, VerifyWebhookSignature(payload, header, "whsec_test", time.Now()))
}

func TestVerifyWebhookSignatureMalformedHeaders(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now()

	cases := []string{
		"",
		"v1=abc",
		fmt.Sprintf("t=%d", now.Unix()),
		"t=notanumber,v1=abc",
		"garbage",
	}
	for _, header := range cases {
		assert.Error(t, VerifyWebhookSignature(payload, header, "whsec_test", now), "header=%q", header)
	}
}
