/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package transport performs signed HTTP requests to ActivityPub services.
package transport

import (
	"bytes"
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"

	"github.com/weft-social/weft/internal/pkg/log"
	"github.com/weft-social/weft/pkg/activitypub/httpsig"
)

// ActivityJSONType is the media type for ActivityStreams documents.
const ActivityJSONType = "application/activity+json"

var logger = log.New("activitypub_transport")

// Signer signs an outbound HTTP request.
type Signer interface {
	SignRequest(req *http.Request, body []byte) error
}

// Request is a request to an ActivityPub endpoint. If Signer is nil then the
// request is sent unsigned.
type Request struct {
	URL    string
	Signer Signer
	Header http.Header
}

// RequestOpt sets an option on a request.
type RequestOpt func(req *Request)

// WithHeader adds the given header to the request. Headers are set before the
// request is signed.
func WithHeader(name, value string) RequestOpt {
	return func(req *Request) {
		if req.Header == nil {
			req.Header = http.Header{}
		}

		req.Header.Add(name, value)
	}
}

// NewRequest returns a request to the given URL signed by the given signer.
func NewRequest(url string, signer Signer, opts ...RequestOpt) *Request {
	req := &Request{URL: url, Signer: signer}

	for _, opt := range opts {
		opt(req)
	}

	return req
}

// Transport performs signed HTTP requests.
type Transport struct {
	client *http.Client
}

// New returns a new transport using the given HTTP client.
func New(client *http.Client) *Transport {
	return &Transport{client: client}
}

// Post posts the given payload to the endpoint in the request.
func (t *Transport) Post(ctx context.Context, req *Request, payload []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL,
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request [%s]: %w", req.URL, err)
	}

	httpReq.Header.Set("Content-Type", ActivityJSONType)

	copyHeaders(req, httpReq)

	if err := sign(req, httpReq, payload); err != nil {
		return nil, err
	}

	logger.Debug("Posting request", log.WithTargetIRI(req.URL), log.WithSize(len(payload)))

	return t.client.Do(httpReq)
}

// Get sends a GET request to the endpoint in the request.
func (t *Transport) Get(ctx context.Context, req *Request) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request [%s]: %w", req.URL, err)
	}

	httpReq.Header.Set("Accept", ActivityJSONType)

	copyHeaders(req, httpReq)

	if err := sign(req, httpReq, nil); err != nil {
		return nil, err
	}

	logger.Debug("Sending request", log.WithTargetIRI(req.URL))

	return t.client.Do(httpReq)
}

func copyHeaders(req *Request, httpReq *http.Request) {
	for name, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(name, value)
		}
	}
}

func sign(req *Request, httpReq *http.Request, body []byte) error {
	if req.Signer == nil {
		return nil
	}

	if err := req.Signer.SignRequest(httpReq, body); err != nil {
		return fmt.Errorf("sign request [%s]: %w", req.URL, err)
	}

	return nil
}

// KeySigner signs requests with a local actor's private key.
type KeySigner struct {
	signer     *httpsig.Signer
	keyID      string
	privateKey *rsa.PrivateKey
}

// NewKeySigner returns a signer that signs requests with the given key. The
// key ID is placed in the signature so that the receiver can fetch the
// corresponding public key.
func NewKeySigner(cfg httpsig.SignerConfig, keyID string, privateKey *rsa.PrivateKey) *KeySigner {
	return &KeySigner{
		signer:     httpsig.NewSigner(cfg),
		keyID:      keyID,
		privateKey: privateKey,
	}
}

// SignRequest signs the given request.
func (s *KeySigner) SignRequest(req *http.Request, body []byte) error {
	return s.signer.SignRequest(s.privateKey, s.keyID, req, body)
}

// NoOpSigner is a signer that does not sign the request.
type NoOpSigner struct{}

// NewNoOpSigner returns a signer that does not sign the request.
func NewNoOpSigner() *NoOpSigner {
	return &NoOpSigner{}
}

// SignRequest does nothing.
func (s *NoOpSigner) SignRequest(*http.Request, []byte) error {
	return nil
}
