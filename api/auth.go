package api

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Request signature headers
const (
	HeaderCallerAddress   = "X-Caller-Address"
	HeaderCallerTimestamp = "X-Caller-Timestamp"
	HeaderCallerSignature = "X-Caller-Signature"
)

var (
	errMissingSignature = errors.New("missing caller signature headers")
	errStaleSignature   = errors.New("signature timestamp outside the allowed window")
	errBadSignature     = errors.New("signature does not match caller address")
	errReplayedRequest  = errors.New("signed request has already been used")
	errBodyTooLarge     = errors.New("signed request body too large")
)

// MaxSignedBodyBytes bounds the request body read for signature checks
const MaxSignedBodyBytes = 1 << 20

// SigningMessage is the text a caller signs with personal_sign for a request.
// bodyHash is the keccak256 of the raw request body (the hash of empty input for no body).
func SigningMessage(method, path string, timestamp int64, bodyHash common.Hash) string {
	return fmt.Sprintf("%s %s %d %s", method, path, timestamp, bodyHash.Hex())
}

// SignatureVerifier authenticates callers from personal_sign request signatures.
// A signed message is accepted once; repeats inside the skew window are rejected.
type SignatureVerifier struct {
	maxSkew time.Duration
	now     func() time.Time

	mu   sync.Mutex
	seen map[common.Hash]time.Time // message hash -> time it leaves the window
}

// NewSignatureVerifier creates a verifier that accepts timestamps within maxSkew of now
func NewSignatureVerifier(maxSkew time.Duration) *SignatureVerifier {
	return &SignatureVerifier{
		maxSkew: maxSkew,
		now:     time.Now,
		seen:    make(map[common.Hash]time.Time),
	}
}

// Authenticate returns the address that signed the request.
// The body is read and put back so handlers can still decode it.
func (v *SignatureVerifier) Authenticate(r *http.Request) (common.Address, error) {
	rawAddress := r.Header.Get(HeaderCallerAddress)
	rawTimestamp := r.Header.Get(HeaderCallerTimestamp)
	rawSignature := r.Header.Get(HeaderCallerSignature)
	if rawAddress == "" || rawTimestamp == "" || rawSignature == "" {
		return common.Address{}, errMissingSignature
	}

	if !common.IsHexAddress(rawAddress) {
		return common.Address{}, fmt.Errorf("invalid %s header %q", HeaderCallerAddress, rawAddress)
	}
	claimed := common.HexToAddress(rawAddress)

	timestamp, err := strconv.ParseInt(rawTimestamp, 10, 64)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid %s header: %w", HeaderCallerTimestamp, err)
	}
	skew := v.now().Sub(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.maxSkew {
		return common.Address{}, errStaleSignature
	}

	sig, err := hexutil.Decode(rawSignature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid %s header: %w", HeaderCallerSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid %s header: want %d bytes, got %d", HeaderCallerSignature, crypto.SignatureLength, len(sig))
	}
	// Wallets emit V as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	bodyHash, err := hashBody(r)
	if err != nil {
		return common.Address{}, err
	}

	hash := accounts.TextHash([]byte(SigningMessage(r.Method, r.URL.Path, timestamp, bodyHash)))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	if crypto.PubkeyToAddress(*pub) != claimed {
		return common.Address{}, errBadSignature
	}

	if !v.markUsed(common.BytesToHash(hash), time.Unix(timestamp, 0).Add(v.maxSkew)) {
		return common.Address{}, errReplayedRequest
	}

	return claimed, nil
}

// markUsed records a verified message and reports whether it was new
func (v *SignatureVerifier) markUsed(message common.Hash, expires time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	for h, exp := range v.seen {
		if now.After(exp) {
			delete(v.seen, h)
		}
	}

	if _, ok := v.seen[message]; ok {
		return false
	}
	v.seen[message] = expires
	return true
}

// hashBody returns keccak256 of the request body and rewinds it for the handler
func hashBody(r *http.Request) (common.Hash, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return crypto.Keccak256Hash(nil), nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxSignedBodyBytes+1))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read request body: %w", err)
	}
	r.Body.Close()
	if len(body) > MaxSignedBodyBytes {
		return common.Hash{}, errBodyTooLarge
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	return crypto.Keccak256Hash(body), nil
}

// SignRequest adds signature headers to req for the key's address
func SignRequest(req *http.Request, key *ecdsa.PrivateKey, at time.Time) error {
	timestamp := at.Unix()
	bodyHash, err := hashBody(req)
	if err != nil {
		return err
	}
	hash := accounts.TextHash([]byte(SigningMessage(req.Method, req.URL.Path, timestamp, bodyHash)))

	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	req.Header.Set(HeaderCallerAddress, crypto.PubkeyToAddress(key.PublicKey).Hex())
	req.Header.Set(HeaderCallerTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set(HeaderCallerSignature, hexutil.Encode(sig))
	return nil
}
