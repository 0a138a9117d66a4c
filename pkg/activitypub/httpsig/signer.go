/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package httpsig signs and verifies HTTP requests using HTTP Signatures.
package httpsig

import (
	"crypto/rsa"
	"fmt"
	"net/http"
	"time"

	"github.com/go-fed/httpsig"

	"github.com/weft-social/weft/internal/pkg/log"
)

var logger = log.New("httpsig")

// SignerConfig holds the configuration of a request signer.
type SignerConfig struct {
	// Headers are the headers included in the signature, in order.
	Headers []string
}

// DefaultGetSignerConfig returns the signer configuration used for HTTP GET,
// which does not include a Digest header.
func DefaultGetSignerConfig() SignerConfig {
	return SignerConfig{
		Headers: []string{httpsig.RequestTarget, "Host", "Date"},
	}
}

// DefaultPostSignerConfig returns the signer configuration used for HTTP POST.
// The signature covers the Digest header so that the body is tamper-evident.
func DefaultPostSignerConfig() SignerConfig {
	return SignerConfig{
		Headers: []string{httpsig.RequestTarget, "Host", "Date", "Digest"},
	}
}

// Signer signs HTTP requests with the rsa-sha256 algorithm. The Digest header
// (when covered) uses SHA-256.
type Signer struct {
	SignerConfig
}

// NewSigner returns a new request signer with the given configuration.
func NewSigner(cfg SignerConfig) *Signer {
	return &Signer{SignerConfig: cfg}
}

// SignRequest signs the given request with the given private key. The key ID is
// placed in the signature's keyId parameter so that the receiver can resolve
// the corresponding public key. The Date header is set if not already present.
func (s *Signer) SignRequest(privateKey *rsa.PrivateKey, keyID string, req *http.Request, body []byte) error {
	if req.Header.Get("Date") == "" {
		req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}

	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		s.Headers,
		httpsig.Signature,
		0,
	)
	if err != nil {
		return fmt.Errorf("create signer: %w", err)
	}

	if err := signer.SignRequest(privateKey, keyID, req, body); err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	logger.Debug("Signed request", log.WithKeyID(keyID),
		log.WithTargetIRI(req.URL.String()))

	return nil
}
