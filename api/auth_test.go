package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureVerifier_Authenticate(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	verifier := NewSignatureVerifier(time.Minute)
	verifier.now = func() time.Time { return now }

	signed := func(method, path string, at time.Time) *http.Request {
		req := httptest.NewRequest(method, path, nil)
		require.NoError(t, SignRequest(req, key, at))
		return req
	}
	signedBody := func(path, body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		require.NoError(t, SignRequest(req, key, now))
		return req
	}

	tests := []struct {
		name    string
		request func() *http.Request
		wantErr bool
	}{
		{
			name:    "valid signature",
			request: func() *http.Request { return signed(http.MethodPost, "/enter", now) },
		},
		{
			name:    "small clock skew is accepted",
			request: func() *http.Request { return signed(http.MethodGet, "/players", now.Add(-30*time.Second)) },
		},
		{
			name: "recovery id without the 27 offset",
			request: func() *http.Request {
				req := signed(http.MethodGet, "/players", now)
				sig, err := hexutil.Decode(req.Header.Get(HeaderCallerSignature))
				require.NoError(t, err)
				sig[crypto.RecoveryIDOffset] -= 27
				req.Header.Set(HeaderCallerSignature, hexutil.Encode(sig))
				return req
			},
		},
		{
			name:    "missing headers",
			request: func() *http.Request { return httptest.NewRequest(http.MethodGet, "/players", nil) },
			wantErr: true,
		},
		{
			name:    "stale timestamp",
			request: func() *http.Request { return signed(http.MethodGet, "/players", now.Add(-2*time.Minute)) },
			wantErr: true,
		},
		{
			name:    "future timestamp",
			request: func() *http.Request { return signed(http.MethodGet, "/players", now.Add(2*time.Minute)) },
			wantErr: true,
		},
		{
			name: "signature replayed on another route",
			request: func() *http.Request {
				req := signed(http.MethodGet, "/players", now)
				replay := httptest.NewRequest(http.MethodPost, "/pick-winner", nil)
				replay.Header = req.Header.Clone()
				return replay
			},
			wantErr: true,
		},
		{
			name: "signed body",
			request: func() *http.Request {
				return signedBody("/accounts/0x00000000000000000000000000000000000000bb/deposit", `{"ether":"1"}`)
			},
		},
		{
			name: "body swapped after signing",
			request: func() *http.Request {
				path := "/accounts/0x00000000000000000000000000000000000000cc/deposit"
				req := signedBody(path, `{"ether":"1"}`)
				swapped := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"ether":"1000000"}`))
				swapped.Header = req.Header.Clone()
				return swapped
			},
			wantErr: true,
		},
		{
			name: "claimed address differs from signer",
			request: func() *http.Request {
				req := signed(http.MethodGet, "/players", now)
				req.Header.Set(HeaderCallerAddress, crypto.PubkeyToAddress(other.PublicKey).Hex())
				return req
			},
			wantErr: true,
		},
		{
			name: "malformed timestamp",
			request: func() *http.Request {
				req := signed(http.MethodGet, "/players", now)
				req.Header.Set(HeaderCallerTimestamp, "yesterday")
				return req
			},
			wantErr: true,
		},
		{
			name: "truncated signature",
			request: func() *http.Request {
				req := signed(http.MethodGet, "/players", now)
				req.Header.Set(HeaderCallerSignature, "0x1234")
				return req
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller, err := verifier.Authenticate(tt.request())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), caller)
		})
	}
}

func TestSignatureVerifier_RejectsReplay(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	verifier := NewSignatureVerifier(time.Minute)
	verifier.now = func() time.Time { return now }

	body := `{"ether":"1"}`
	original := httptest.NewRequest(http.MethodPost, "/accounts/0x00000000000000000000000000000000000000bb/deposit", strings.NewReader(body))
	require.NoError(t, SignRequest(original, key, now))

	caller, err := verifier.Authenticate(original)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), caller)

	// The handler still sees the body
	read, err := io.ReadAll(original.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(read))

	for i := 0; i < 3; i++ {
		replay := httptest.NewRequest(original.Method, original.URL.Path, strings.NewReader(body))
		replay.Header = original.Header.Clone()
		_, err := verifier.Authenticate(replay)
		assert.ErrorIs(t, err, errReplayedRequest)
	}

	// A fresh signature for the same request one second later is accepted
	next := httptest.NewRequest(original.Method, original.URL.Path, strings.NewReader(body))
	require.NoError(t, SignRequest(next, key, now.Add(time.Second)))
	_, err = verifier.Authenticate(next)
	assert.NoError(t, err)

	// Used messages are forgotten once they can no longer pass the skew check
	now = now.Add(3 * time.Minute)
	later := httptest.NewRequest(http.MethodGet, "/players", nil)
	require.NoError(t, SignRequest(later, key, now))
	_, err = verifier.Authenticate(later)
	require.NoError(t, err)
	assert.Len(t, verifier.seen, 1)
}

func TestSignatureVerifier_BodyTooLarge(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/enter", strings.NewReader(strings.Repeat("a", MaxSignedBodyBytes+1)))
	req.Header.Set(HeaderCallerAddress, crypto.PubkeyToAddress(key.PublicKey).Hex())
	req.Header.Set(HeaderCallerTimestamp, "1700000000")
	req.Header.Set(HeaderCallerSignature, hexutil.Encode(make([]byte, crypto.SignatureLength)))

	verifier := NewSignatureVerifier(time.Minute)
	verifier.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	_, err = verifier.Authenticate(req)
	assert.ErrorIs(t, err, errBodyTooLarge)
}

func TestSigningMessage(t *testing.T) {
	t.Parallel()

	empty := crypto.Keccak256Hash(nil)
	assert.Equal(t,
		"POST /pick-winner 1700000000 0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		SigningMessage("POST", "/pick-winner", 1_700_000_000, empty))
	assert.NotEqual(t,
		SigningMessage("POST", "/enter", 0, crypto.Keccak256Hash([]byte(`{"ether":"1"}`))),
		SigningMessage("POST", "/enter", 0, common.Hash{}))
}
