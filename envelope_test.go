package rescache_test

import (
	"encoding/json"
	"testing"

	"github.com/caiofalcao/rescache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_SuccessRoundTrip(t *testing.T) {
	original := rescache.SuccessEnvelope(json.RawMessage(`{"a":1}`))

	b, err := rescache.EncodeEnvelope(original)
	require.NoError(t, err)

	decoded, err := rescache.DecodeEnvelope(b)
	require.NoError(t, err)
	assert.True(t, decoded.Success)
	assert.JSONEq(t, `{"a":1}`, string(decoded.Value))
}

func TestEnvelope_FailureRoundTrip(t *testing.T) {
	original := rescache.FailureEnvelope(&rescache.CachedFailure{
		Type:    "InvalidCepError",
		Message: "CEP not found",
		Data:    []byte(`{"code":404}`),
	})

	b, err := rescache.EncodeEnvelope(original)
	require.NoError(t, err)

	decoded, err := rescache.DecodeEnvelope(b)
	require.NoError(t, err)
	assert.False(t, decoded.Success)
	assert.Equal(t, "InvalidCepError", decoded.Err.Type)
	assert.Equal(t, "CEP not found", decoded.Err.Message)
	assert.JSONEq(t, `{"code":404}`, string(decoded.Err.Data))
}

func TestEnvelope_CorruptedSuccessIsDistinctFromMalformed(t *testing.T) {
	_, err := rescache.DecodeEnvelope([]byte(`{"s":true}`))
	assert.ErrorIs(t, err, rescache.ErrCorruptedCache)

	_, err = rescache.DecodeEnvelope([]byte(`not json`))
	assert.ErrorIs(t, err, rescache.ErrMalformedEnvelope)

	_, err = rescache.DecodeEnvelope([]byte(`{"s":false,"e":{"type":""}}`))
	assert.ErrorIs(t, err, rescache.ErrMalformedEnvelope)
}
