/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package httpsig

import (
	"crypto/rsa"
	"fmt"
	"net/http"

	"github.com/go-fed/httpsig"
)

// KeyResolver resolves the RSA public key for a signature's keyId parameter.
type KeyResolver interface {
	ResolveKey(keyID string) (*rsa.PublicKey, error)
}

// Verifier verifies the HTTP signature on incoming requests.
type Verifier struct {
	keyResolver KeyResolver
}

// NewVerifier returns a new signature verifier that resolves public keys with
// the given resolver.
func NewVerifier(keyResolver KeyResolver) *Verifier {
	return &Verifier{keyResolver: keyResolver}
}

// VerifyRequest verifies the signature on the given request and returns the
// keyId parameter of the signature.
func (v *Verifier) VerifyRequest(req *http.Request) (string, error) {
	verifier, err := httpsig.NewVerifier(req)
	if err != nil {
		return "", fmt.Errorf("parse signature: %w", err)
	}

	keyID := verifier.KeyId()

	publicKey, err := v.keyResolver.ResolveKey(keyID)
	if err != nil {
		return "", fmt.Errorf("resolve key [%s]: %w", keyID, err)
	}

	if err := verifier.Verify(publicKey, httpsig.RSA_SHA256); err != nil {
		return "", fmt.Errorf("verify signature [%s]: %w", keyID, err)
	}

	return keyID, nil
}
