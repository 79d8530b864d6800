// Package identity verifies bearer tokens and extracts the caller's subject.
package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrNoVerifier   = errors.New("no token verifier configured")
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingSub   = errors.New("token has no subject")
)

type Options struct {
	// Secret enables HS256 verification.
	Secret string
	// JWKSURL enables RS256 verification against a key set.
	JWKSURL string
	Issuer  string
}

type Verifier struct {
	opts   Options
	client *http.Client
	logger *zap.Logger

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

func NewVerifier(opts Options, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		opts:   opts,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		keys:   make(map[string]*rsa.PublicKey),
	}
}

// Verify validates the token and returns its subject claim.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (string, error) {
	methods := make([]string, 0, 2)
	if v.opts.Secret != "" {
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	if v.opts.JWKSURL != "" {
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}
	if len(methods) == 0 {
		return "", ErrNoVerifier
	}

	parserOpts := []jwt.ParserOption{jwt.WithValidMethods(methods), jwt.WithLeeway(30 * time.Second)}
	if v.opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.opts.Issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodHMAC:
			return []byte(v.opts.Secret), nil
		case *jwt.SigningMethodRSA:
			kid, _ := token.Header["kid"].(string)
			return v.publicKey(ctx, kid)
		}
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}, parserOpts...)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", ErrMissingSub
	}
	return sub, nil
}

// publicKey returns the key for kid, refreshing the key set once when kid is
// unknown. An empty kid matches the only key when the set has one.
func (v *Verifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key := v.lookup(kid); key != nil {
		return key, nil
	}
	if err := v.fetchKeys(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch public keys: %w", err)
	}
	if key := v.lookup(kid); key != nil {
		return key, nil
	}
	return nil, fmt.Errorf("unknown signing key %q", kid)
}

func (v *Verifier) lookup(kid string) *rsa.PublicKey {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if key, ok := v.keys[kid]; ok {
		return key
	}
	if kid == "" && len(v.keys) == 1 {
		for _, key := range v.keys {
			return key
		}
	}
	return nil
}

func (v *Verifier) fetchKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.opts.JWKSURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("failed to decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := parseJWK(k.N, k.E)
		if err != nil {
			v.logger.Warn("Skipping unparsable key", zap.String("kid", k.Kid), zap.Error(err))
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("no suitable RSA signing key found")
	}

	v.mu.Lock()
	v.keys = keys
	v.mu.Unlock()

	v.logger.Info("Loaded signing keys", zap.Int("count", len(keys)))
	return nil
}

func parseJWK(n, e string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode e: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
