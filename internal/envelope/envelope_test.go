package envelope

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
)

type loginFields struct {
	Email   string `json:"email"`
	Captcha string `json:"captcha"`
}

// Produced by `openssl enc -aes-256-cbc -md md5 -pass pass:s3cret` with salt
// 0102030405060708, the same format CryptoJS.AES.encrypt emits.
const opensslEnvelope = "U2FsdGVkX18BAgMEBQYHCD1G9CkjzBLB0N87rYgnHGz3Y8TkvtZqjVQnp03fKzWGa51JPgwbnZRB6jxxdw2aVg=="

func newGate(t *testing.T) *Gate {
	t.Helper()
	g, err := New("s3cret")
	require.NoError(t, err)
	return g
}

func TestUnwrap_OpenSSLCompatible(t *testing.T) {
	var got loginFields
	require.NoError(t, newGate(t).Unwrap(opensslEnvelope, &got))
	assert.Equal(t, loginFields{Email: "a@b.co", Captcha: "482913"}, got)
}

func TestSealUnwrap_RoundTrip(t *testing.T) {
	g := newGate(t)
	in := loginFields{Email: "x@y.z", Captcha: "100000"}
	env, err := g.Seal(in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(env, "U2FsdGVkX1"), "salted header")

	var out loginFields
	require.NoError(t, g.Unwrap(env, &out))
	assert.Equal(t, in, out)
}

func TestUnwrap_Failures(t *testing.T) {
	g := newGate(t)
	raw, _ := base64.StdEncoding.DecodeString(opensslEnvelope)
	tampered := append([]byte(nil), raw...)
	tampered[len(tampered)-1] ^= 0xff

	notObject, err := g.Seal([]int{1, 2})
	require.NoError(t, err)

	other, err := New("other")
	require.NoError(t, err)

	tests := []struct {
		name string
		gate *Gate
		env  string
	}{
		{"empty", g, ""},
		{"not base64", g, "%%%"},
		{"garbage", g, base64.StdEncoding.EncodeToString([]byte("hello world, definitely not salted"))},
		{"truncated", g, base64.StdEncoding.EncodeToString(raw[:20])},
		{"partial block", g, base64.StdEncoding.EncodeToString(raw[:len(raw)-3])},
		{"tampered", g, base64.StdEncoding.EncodeToString(tampered)},
		{"wrong key", other, opensslEnvelope},
		{"json array", g, notObject},
		{"nil gate", nil, opensslEnvelope},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out loginFields
			assert.NotPanics(t, func() {
				err := tc.gate.Unwrap(tc.env, &out)
				assert.ErrorIs(t, err, ErrBadEnvelope)
				assert.ErrorIs(t, err, errorz.ErrBadRequest)
			})
			assert.Nil(t, tc.gate.Fields(tc.env))
		})
	}
}

func TestFields(t *testing.T) {
	f := newGate(t).Fields(opensslEnvelope)
	assert.Equal(t, map[string]any{"email": "a@b.co", "captcha": "482913"}, f)
}

func TestKeyIsRedacted(t *testing.T) {
	k := Key("s3cret")
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", k))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", k))
}

func TestNew_EmptyKey(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ENVELOPE_SECRET_KEY", "")
	assert.Nil(t, FromEnv())
	t.Setenv("ENVELOPE_SECRET_KEY", "s3cret")
	assert.NotNil(t, FromEnv())
}

func TestDecodeRequest(t *testing.T) {
	g := newGate(t)

	t.Run("envelope", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"data":"`+opensslEnvelope+`"}`))
		var out loginFields
		require.NoError(t, DecodeRequest(g, r, &out))
		assert.Equal(t, "482913", out.Captcha)
	})

	t.Run("plaintext", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"p@q.r","captcha":"1"}`))
		var out loginFields
		require.NoError(t, DecodeRequest(g, r, &out))
		assert.Equal(t, "p@q.r", out.Email)
	})

	t.Run("envelope without gate", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"data":"`+opensslEnvelope+`"}`))
		var out loginFields
		assert.ErrorIs(t, DecodeRequest(nil, r, &out), ErrBadEnvelope)
	})

	t.Run("bad envelope", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"data":"nope"}`))
		var out loginFields
		assert.ErrorIs(t, DecodeRequest(g, r, &out), ErrBadEnvelope)
	})

	t.Run("malformed json", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		var out loginFields
		assert.ErrorIs(t, DecodeRequest(g, r, &out), errorz.ErrBadRequest)
	})
}
