package contracts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestEnvelopeRoundTrip(t *testing.T) {
	original := RequestEnvelope{
		Path:   "/api/recipes/42",
		Method: "GET",
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-Trace-Id":   "abc, def",
		},
		QueryParams: map[string]string{"page": "1"},
		Body:        `{"foo":"bar"}`,
		Principal: &AuthPrincipal{
			AccountID: "acc-1",
			Roles:     []string{"user", "admin"},
			Email:     "a@b.com",
		},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded RequestEnvelope
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original, decoded)
}

func TestResponseEnvelopeRoundTrip(t *testing.T) {
	original := ResponseEnvelope{
		CorrelationID: "c1",
		StatusCode:    200,
		Headers:       map[string]string{"Content-Type": "application/json"},
		Body:          `{"id":42}`,
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded ResponseEnvelope
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original, decoded)
}

func TestErrCodeFormat(t *testing.T) {
	assert.Equal(t, "ERR_504", ErrCode(504))
	assert.Equal(t, "ERR_400", ErrCode(400))
}

func TestIsHopByHop(t *testing.T) {
	assert.True(t, IsHopByHop("Connection"))
	assert.True(t, IsHopByHop("keep-alive"))
	assert.True(t, IsHopByHop("Proxy-Authenticate"))
	assert.True(t, IsHopByHop("TE"))
	assert.False(t, IsHopByHop("Content-Type"))
	assert.False(t, IsHopByHop("X-Trace-Id"))
}

func TestApiResponseSuccessErrorExclusive(t *testing.T) {
	ok := NewSuccessResponse(200, "OK", map[string]int{"id": 42})
	require.Nil(t, ok.Error)
	require.NotNil(t, ok.Data)

	bad := NewErrorResponse(504, "Gateway Timeout", "upstream timeout")
	require.Nil(t, bad.Data)
	require.NotNil(t, bad.Error)
	assert.Equal(t, "ERR_504", bad.Error.Code)
}
