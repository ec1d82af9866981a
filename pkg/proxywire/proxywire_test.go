package proxywire_test

import (
	"encoding/base64"
	"testing"

	"the-dev-tools/apiconsole/pkg/model/mcall"
	"the-dev-tools/apiconsole/pkg/proxywire"

	"github.com/stretchr/testify/require"
)

func TestPairJSONShape(t *testing.T) {
	data, err := proxywire.Marshal(proxywire.Pair{Name: "Set-Cookie", Value: "a=1"})
	require.NoError(t, err)
	require.JSONEq(t, `["Set-Cookie","a=1"]`, string(data))

	var p proxywire.Pair
	require.NoError(t, proxywire.Unmarshal([]byte(`["X-Req","abc"]`), &p))
	require.Equal(t, proxywire.Pair{Name: "X-Req", Value: "abc"}, p)

	require.Error(t, proxywire.Unmarshal([]byte(`["only-one"]`), &p))
	require.Error(t, proxywire.Unmarshal([]byte(`{"name":"x"}`), &p))
}

func TestEnvelopeRoundTripText(t *testing.T) {
	draft := mcall.RequestDraft{
		Method: "POST",
		URL:    "https://api.test/items",
		Headers: []mcall.Header{
			{Key: "Accept", Value: "application/json"},
			{Key: "Accept", Value: "text/plain"},
		},
		Body: []byte(`{"name":"x"}`),
	}

	env := proxywire.NewEnvelope(draft)
	require.NotNil(t, env.Body)
	require.Equal(t, `{"name":"x"}`, *env.Body)
	require.NotNil(t, env.BodyEncoding)
	require.Equal(t, proxywire.EncodingText, *env.BodyEncoding)

	data, err := proxywire.Marshal(env)
	require.NoError(t, err)

	var decoded proxywire.Envelope
	require.NoError(t, proxywire.Unmarshal(data, &decoded))

	back, err := decoded.RequestDraft()
	require.NoError(t, err)
	require.Equal(t, draft.Method, back.Method)
	require.Equal(t, draft.URL, back.URL)
	// Duplicate headers survive in order.
	require.Equal(t, draft.Headers, back.Headers)
	require.Equal(t, draft.Body, back.Body)
}

func TestEnvelopeBinaryBody(t *testing.T) {
	binary := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0xff}
	draft := mcall.RequestDraft{Method: "PUT", URL: "https://api.test/blob", Body: binary}

	env := proxywire.NewEnvelope(draft)
	require.NotNil(t, env.BodyEncoding)
	require.Equal(t, proxywire.EncodingBase64, *env.BodyEncoding)
	require.Equal(t, base64.StdEncoding.EncodeToString(binary), *env.Body)

	back, err := env.RequestDraft()
	require.NoError(t, err)
	require.Equal(t, binary, back.Body)
}

func TestEnvelopeWithoutBody(t *testing.T) {
	env := proxywire.NewEnvelope(mcall.RequestDraft{Method: "GET", URL: "https://api.test"})
	require.Nil(t, env.Body)
	require.Nil(t, env.BodyEncoding)

	data, err := proxywire.Marshal(env)
	require.NoError(t, err)
	require.Contains(t, string(data), `"body":null`)
}

func TestResponseBodyEncoding(t *testing.T) {
	text := proxywire.NewResponse(200, "OK", nil, []byte("hello"), 12)
	require.Equal(t, proxywire.EncodingText, text.BodyEncoding)
	body, err := text.DecodeBody()
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))

	binary := proxywire.NewResponse(200, "OK", nil, []byte{0xff, 0xfe}, 5)
	require.Equal(t, proxywire.EncodingBase64, binary.BodyEncoding)
	body, err = binary.DecodeBody()
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0xfe}, body)

	empty := proxywire.NewResponse(204, "No Content", nil, nil, 1)
	body, err = empty.DecodeBody()
	require.NoError(t, err)
	require.Nil(t, body)
}

func TestResponseUnknownEncoding(t *testing.T) {
	body := "x"
	resp := proxywire.Response{Body: &body, BodyEncoding: "hex"}
	_, err := resp.DecodeBody()
	require.Error(t, err)
}
