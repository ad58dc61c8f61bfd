package mailclient

import (
	"testing"

	"github.com/emersion/go-sasl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXOAuth2_InitialResponse(t *testing.T) {
	client := newXOAuth2Client("owner@gmail.com", "ya29.token")

	mech, resp, err := client.Start()
	require.NoError(t, err)
	assert.Equal(t, "XOAUTH2", mech)
	assert.Equal(t, "user=owner@gmail.com\x01auth=Bearer ya29.token\x01\x01", string(resp))
}

func TestXOAuth2_AcknowledgesErrorChallenge(t *testing.T) {
	client := newXOAuth2Client("owner@gmail.com", "expired")
	_, _, err := client.Start()
	require.NoError(t, err)

	// The error blob is acknowledged empty so the server can reject
	resp, err := client.Next([]byte(`{"status":"400"}`))
	require.NoError(t, err)
	assert.Empty(t, resp)

	_, err = client.Next(nil)
	assert.ErrorIs(t, err, sasl.ErrUnexpectedServerChallenge)
}
