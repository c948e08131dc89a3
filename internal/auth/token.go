// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// DefaultProduct is the namespace used for token prefixes and the session cookie.
const DefaultProduct = "cr0n"

// TokenGenerator issues opaque bearer tokens namespaced by product.
// The prefix is cosmetic; the secret is the random UUIDv4 suffix.
type TokenGenerator struct {
	product string
}

// NewTokenGenerator creates a TokenGenerator for the product namespace.
func NewTokenGenerator(product string) *TokenGenerator {
	product = strings.TrimSpace(product)
	if product == "" {
		product = DefaultProduct
	}
	return &TokenGenerator{product: product}
}

// Product returns the product namespace.
func (g *TokenGenerator) Product() string {
	return g.product
}

// SessionToken returns "<product>_<uuid>".
func (g *TokenGenerator) SessionToken() (string, error) {
	return g.generate(g.product + "_")
}

// ResetToken returns "<product>_reset_<uuid>".
func (g *TokenGenerator) ResetToken() (string, error) {
	return g.generate(g.product + "_reset_")
}

// VerifyToken returns "<product>_verify_<uuid>".
func (g *TokenGenerator) VerifyToken() (string, error) {
	return g.generate(g.product + "_verify_")
}

func (g *TokenGenerator) generate(prefix string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").
			With("prefix", prefix).
			Wrap(err)
	}
	return prefix + id.String(), nil
}

// HashToken computes the SHA-256 hex digest under which a token is stored.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// MatchToken reports whether token hashes to the stored digest, in constant time.
func MatchToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}
