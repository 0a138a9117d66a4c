/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package resolver resolves actors and objects by IRI.
package resolver

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bluele/gcache"

	"github.com/weft-social/weft/internal/pkg/log"
	"github.com/weft-social/weft/pkg/activitypub/client/transport"
	"github.com/weft-social/weft/pkg/activitypub/httpsig"
	"github.com/weft-social/weft/pkg/activitypub/store/spi"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
	weftErrors "github.com/weft-social/weft/pkg/errors"
)

const (
	defaultCacheSize       = 100
	defaultCacheExpiration = 10 * time.Minute
	defaultFetchTimeout    = 30 * time.Second
)

var logger = log.New("activitypub_resolver")

type objectStore interface {
	GetObject(objectIRI string) (*vocab.Object, error)
}

type httpTransport interface {
	Get(ctx context.Context, req *transport.Request) (*http.Response, error)
}

// Option sets a resolver option.
type Option func(r *Resolver)

// WithCacheSize sets the size of the remote object cache.
func WithCacheSize(size int) Option {
	return func(r *Resolver) {
		r.cacheSize = size
	}
}

// WithCacheExpiration sets the expiration time of remote object cache entries.
func WithCacheExpiration(expiration time.Duration) Option {
	return func(r *Resolver) {
		r.cacheExpiration = expiration
	}
}

// WithSigner sets the signer used on remote fetches, for federations that
// require signed GET requests.
func WithSigner(signer transport.Signer) Option {
	return func(r *Resolver) {
		r.signer = signer
	}
}

// WithFetchTimeout sets the timeout of a remote fetch.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		r.fetchTimeout = timeout
	}
}

// Resolver resolves actors and objects by IRI. IRIs under the local base URL
// are resolved from the store; remote IRIs are fetched over HTTP and cached.
// The cache loader is single-flight per IRI, so concurrent resolutions of the
// same IRI result in one fetch.
type Resolver struct {
	baseURL         string
	store           objectStore
	transport       httpTransport
	signer          transport.Signer
	cacheSize       int
	cacheExpiration time.Duration
	fetchTimeout    time.Duration
	remoteCache     gcache.Cache
}

// New returns a new resolver. IRIs prefixed with baseURL are considered local.
func New(baseURL string, store objectStore, t httpTransport, opts ...Option) *Resolver {
	r := &Resolver{
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		store:           store,
		transport:       t,
		cacheSize:       defaultCacheSize,
		cacheExpiration: defaultCacheExpiration,
		fetchTimeout:    defaultFetchTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.remoteCache = gcache.New(r.cacheSize).ARC().
		Expiration(r.cacheExpiration).
		LoaderFunc(func(iri interface{}) (interface{}, error) {
			return r.fetch(iri.(string))
		}).Build()

	return r
}

// IsLocal returns true if the given IRI is served by this instance.
func (r *Resolver) IsLocal(iri string) bool {
	return strings.HasPrefix(iri, r.baseURL+"/")
}

// Resolve returns the object with the given IRI. Local IRIs are read from the
// store; remote IRIs are fetched and cached. Returns a not-found error if the
// object does not exist or has been deleted (a Tombstone), and a transient
// error if a remote fetch failed in a way that may succeed later.
func (r *Resolver) Resolve(iri string) (*vocab.Object, error) {
	if r.IsLocal(iri) {
		obj, err := r.store.GetObject(iri)
		if err != nil {
			if errors.Is(err, spi.ErrNotFound) {
				return nil, weftErrors.NewNotFoundf("object [%s]", iri)
			}

			return nil, fmt.Errorf("get object [%s]: %w", iri, err)
		}

		return obj, nil
	}

	obj, err := r.remoteCache.Get(iri)
	if err != nil {
		return nil, err
	}

	return obj.(*vocab.Object), nil
}

// ResolveActor resolves the given IRI and ensures that the result has an inbox.
func (r *Resolver) ResolveActor(iri string) (*vocab.Object, error) {
	obj, err := r.Resolve(iri)
	if err != nil {
		return nil, err
	}

	if obj.Inbox() == "" {
		return nil, fmt.Errorf("object [%s] is not an actor: no inbox", iri)
	}

	return obj, nil
}

// ResolveKey resolves the public key with the given ID. A key ID is the owning
// actor's IRI with a fragment, e.g. https://example.com/u/alice#main-key.
func (r *Resolver) ResolveKey(keyID string) (*rsa.PublicKey, error) {
	actorIRI := keyID

	if i := strings.Index(keyID, "#"); i > 0 {
		actorIRI = keyID[:i]
	}

	actor, err := r.Resolve(actorIRI)
	if err != nil {
		return nil, err
	}

	keyPem := actor.PublicKeyPem()
	if keyPem == "" {
		return nil, fmt.Errorf("actor [%s] has no public key", actorIRI)
	}

	return httpsig.ParsePublicKeyPem(keyPem)
}

func (r *Resolver) fetch(iri string) (*vocab.Object, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.fetchTimeout)
	defer cancel()

	logger.Debug("Fetching remote object", log.WithTargetIRI(iri))

	resp, err := r.transport.Get(ctx, transport.NewRequest(iri, r.signer))
	if err != nil {
		return nil, weftErrors.NewTransientf("fetch [%s]: %w", iri, err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.CloseResponseBodyError(logger, err)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, weftErrors.NewNotFoundf("object [%s]", iri)
	case resp.StatusCode >= http.StatusInternalServerError ||
		resp.StatusCode == http.StatusRequestTimeout ||
		resp.StatusCode == http.StatusTooManyRequests:
		return nil, weftErrors.NewTransientf("fetch [%s]: status %d", iri, resp.StatusCode)
	default:
		return nil, fmt.Errorf("fetch [%s]: status %d", iri, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, weftErrors.NewTransientf("read response [%s]: %w", iri, err)
	}

	doc, err := vocab.UnmarshalToDoc(body)
	if err != nil {
		return nil, fmt.Errorf("unmarshal object [%s]: %w", iri, err)
	}

	normalized, err := vocab.Normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize object [%s]: %w", iri, err)
	}

	obj := vocab.NewObject(normalized)

	if obj.Type() == vocab.TypeTombstone {
		return nil, weftErrors.NewNotFoundf("object [%s] was deleted", iri)
	}

	return obj, nil
}
