/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package delivery

import (
	"context"
	"crypto/rsa"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	wmhttp "github.com/ThreeDotsLabs/watermill-http/pkg/http"
	"github.com/stretchr/testify/require"

	"github.com/weft-social/weft/pkg/activitypub/client/transport"
	"github.com/weft-social/weft/pkg/activitypub/httpsig"
	"github.com/weft-social/weft/pkg/activitypub/store/memstore"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
	"github.com/weft-social/weft/pkg/pubsub/mempubsub"
	pubsubspi "github.com/weft-social/weft/pkg/pubsub/spi"
)

const senderIRI = "https://localhost/u/test"

func TestDelivery_SignedPost(t *testing.T) {
	publicPem, privatePem, err := httpsig.GenerateKeyPair()
	require.NoError(t, err)

	publicKey, err := httpsig.ParsePublicKeyPem(publicPem)
	require.NoError(t, err)

	var mutex sync.Mutex

	var requests []*http.Request

	inboxServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mutex.Lock()
		requests = append(requests, r.Clone(context.Background()))
		mutex.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	defer inboxServer.Close()

	sender := vocab.NewObject(vocab.Document{
		vocab.PropertyID:   senderIRI,
		vocab.PropertyType: vocab.TypePerson,
	})
	sender.SetPrivateKeyPem(privatePem)

	store := memstore.New("service1")
	require.NoError(t, store.PutObject(sender))

	ps := mempubsub.New(mempubsub.DefaultConfig())
	defer func() {
		require.NoError(t, ps.Close())
	}()

	s := New(&Config{ServiceName: "service1"}, ps, transport.New(http.DefaultClient),
		&storeResolver{store: store}, &mockMetrics{})

	s.Start()
	defer s.Stop()

	activity := vocab.NewActivity(vocab.Document{
		vocab.PropertyID:    "https://localhost/s/1",
		vocab.PropertyType:  vocab.TypeCreate,
		vocab.PropertyActor: []interface{}{senderIRI},
		vocab.PropertyBcc:   []interface{}{"https://localhost/u/hidden"},
	})
	activity.AddCollection("https://localhost/outbox/test")

	require.NoError(t, s.Enqueue(senderIRI, inboxServer.URL+"/inbox/mocked", activity))

	require.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()

		return len(requests) == 1
	}, 5*time.Second, 50*time.Millisecond)

	mutex.Lock()
	req := requests[0]
	mutex.Unlock()

	// The signature must verify under the sender's public key and cover the digest.
	require.Contains(t, req.Header.Get("Signature"), "digest")
	require.NotEmpty(t, req.Header.Get(wmhttp.HeaderUUID))

	keyID, err := httpsig.NewVerifier(&staticKeys{key: publicKey}).VerifyRequest(req)
	require.NoError(t, err)
	require.Equal(t, senderIRI+"#main-key", keyID)
}

func TestDelivery_ExternalForm(t *testing.T) {
	_, privatePem, err := httpsig.GenerateKeyPair()
	require.NoError(t, err)

	bodyChan := make(chan []byte, 1)

	inboxServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		bodyChan <- body

		w.WriteHeader(http.StatusAccepted)
	}))
	defer inboxServer.Close()

	sender := vocab.NewObject(vocab.Document{
		vocab.PropertyID:   senderIRI,
		vocab.PropertyType: vocab.TypePerson,
	})
	sender.SetPrivateKeyPem(privatePem)

	store := memstore.New("service1")
	require.NoError(t, store.PutObject(sender))

	ps := mempubsub.New(mempubsub.DefaultConfig())
	defer func() {
		require.NoError(t, ps.Close())
	}()

	s := New(&Config{ServiceName: "service1"}, ps, transport.New(http.DefaultClient),
		&storeResolver{store: store}, &mockMetrics{})

	s.Start()
	defer s.Stop()

	activity := vocab.NewActivity(vocab.Document{
		vocab.PropertyID:    "https://localhost/s/1",
		vocab.PropertyType:  vocab.TypeCreate,
		vocab.PropertyActor: []interface{}{senderIRI},
		vocab.PropertyBto:   []interface{}{"https://localhost/u/hidden"},
	})
	activity.AddCollection("https://localhost/outbox/test")
	activity.SetPrivateKeyPem(privatePem)

	require.NoError(t, s.Enqueue(senderIRI, inboxServer.URL+"/inbox/mocked", activity))

	select {
	case body := <-bodyChan:
		doc, err := vocab.UnmarshalToDoc(body)
		require.NoError(t, err)

		// External form: @context added, internal metadata and bto stripped.
		require.Equal(t, vocab.ContextActivityStreams, doc[vocab.PropertyContext])
		require.NotContains(t, doc, vocab.PropertyMeta)
		require.NotContains(t, doc, vocab.PropertyBto)

		// No byte sequence of the private key leaves the server.
		require.NotContains(t, string(body), "PRIVATE KEY")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestDelivery_Retry(t *testing.T) {
	_, privatePem, err := httpsig.GenerateKeyPair()
	require.NoError(t, err)

	var mutex sync.Mutex

	var statuses []int

	remaining := []int{http.StatusInternalServerError, http.StatusTooManyRequests, http.StatusOK}

	inboxServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mutex.Lock()
		status := remaining[0]

		if len(remaining) > 1 {
			remaining = remaining[1:]
		}

		statuses = append(statuses, status)
		mutex.Unlock()

		w.WriteHeader(status)
	}))
	defer inboxServer.Close()

	sender := vocab.NewObject(vocab.Document{
		vocab.PropertyID:   senderIRI,
		vocab.PropertyType: vocab.TypePerson,
	})
	sender.SetPrivateKeyPem(privatePem)

	store := memstore.New("service1")
	require.NoError(t, store.PutObject(sender))

	ps := mempubsub.New(mempubsub.DefaultConfig())
	defer func() {
		require.NoError(t, ps.Close())
	}()

	metrics := &mockMetrics{}

	s := New(&Config{
		ServiceName:          "service1",
		RetryInitialInterval: 10 * time.Millisecond,
		RetryMaxInterval:     20 * time.Millisecond,
	}, ps, transport.New(http.DefaultClient), &storeResolver{store: store}, metrics)

	s.Start()
	defer s.Stop()

	activity := vocab.NewActivity(vocab.Document{
		vocab.PropertyID:    "https://localhost/s/1",
		vocab.PropertyType:  vocab.TypeCreate,
		vocab.PropertyActor: []interface{}{senderIRI},
	})

	require.NoError(t, s.Enqueue(senderIRI, inboxServer.URL+"/inbox/mocked", activity))

	require.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()

		return len(statuses) == 3 && statuses[2] == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	require.Equal(t, 2, metrics.retries())
}

func TestDelivery_PermanentFailure(t *testing.T) {
	_, privatePem, err := httpsig.GenerateKeyPair()
	require.NoError(t, err)

	var requestCount int32

	var mutex sync.Mutex

	inboxServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mutex.Lock()
		requestCount++
		mutex.Unlock()

		w.WriteHeader(http.StatusForbidden)
	}))
	defer inboxServer.Close()

	sender := vocab.NewObject(vocab.Document{
		vocab.PropertyID:   senderIRI,
		vocab.PropertyType: vocab.TypePerson,
	})
	sender.SetPrivateKeyPem(privatePem)

	store := memstore.New("service1")
	require.NoError(t, store.PutObject(sender))

	ps := mempubsub.New(mempubsub.DefaultConfig())
	defer func() {
		require.NoError(t, ps.Close())
	}()

	metrics := &mockMetrics{}

	s := New(&Config{ServiceName: "service1"}, ps, transport.New(http.DefaultClient),
		&storeResolver{store: store}, metrics)

	s.Start()
	defer s.Stop()

	activity := vocab.NewActivity(vocab.Document{
		vocab.PropertyID:    "https://localhost/s/1",
		vocab.PropertyType:  vocab.TypeCreate,
		vocab.PropertyActor: []interface{}{senderIRI},
	})

	require.NoError(t, s.Enqueue(senderIRI, inboxServer.URL+"/inbox/mocked", activity))

	require.Eventually(t, func() bool {
		return metrics.dropped() == 1
	}, 5*time.Second, 20*time.Millisecond)

	// A 4xx is not retried.
	time.Sleep(100 * time.Millisecond)

	mutex.Lock()
	defer mutex.Unlock()

	require.EqualValues(t, 1, requestCount)
}

func TestDelivery_Undeliverable(t *testing.T) {
	_, privatePem, err := httpsig.GenerateKeyPair()
	require.NoError(t, err)

	inboxServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer inboxServer.Close()

	sender := vocab.NewObject(vocab.Document{
		vocab.PropertyID:   senderIRI,
		vocab.PropertyType: vocab.TypePerson,
	})
	sender.SetPrivateKeyPem(privatePem)

	store := memstore.New("service1")
	require.NoError(t, store.PutObject(sender))

	ps := mempubsub.New(mempubsub.DefaultConfig())
	defer func() {
		require.NoError(t, ps.Close())
	}()

	undeliverableChan, err := ps.Subscribe(context.Background(), pubsubspi.UndeliverableTopic)
	require.NoError(t, err)

	s := New(&Config{
		ServiceName:          "service1",
		MaxRetries:           2,
		RetryInitialInterval: 10 * time.Millisecond,
		RetryMaxInterval:     20 * time.Millisecond,
	}, ps, transport.New(http.DefaultClient), &storeResolver{store: store}, &mockMetrics{})

	s.Start()
	defer s.Stop()

	activity := vocab.NewActivity(vocab.Document{
		vocab.PropertyID:    "https://localhost/s/1",
		vocab.PropertyType:  vocab.TypeCreate,
		vocab.PropertyActor: []interface{}{senderIRI},
	})

	require.NoError(t, s.Enqueue(senderIRI, inboxServer.URL+"/inbox/mocked", activity))

	select {
	case msg := <-undeliverableChan:
		require.NotNil(t, msg)

		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for undeliverable message")
	}
}

func TestDelivery_NotStarted(t *testing.T) {
	ps := mempubsub.New(mempubsub.DefaultConfig())
	defer func() {
		require.NoError(t, ps.Close())
	}()

	s := New(&Config{ServiceName: "service1"}, ps, transport.New(http.DefaultClient),
		&storeResolver{store: memstore.New("service1")}, &mockMetrics{})

	err := s.Enqueue(senderIRI, "https://remote.example/inbox", vocab.NewActivity(vocab.Document{
		vocab.PropertyID:   "https://localhost/s/1",
		vocab.PropertyType: vocab.TypeCreate,
	}))
	require.Error(t, err)
}

type storeResolver struct {
	store *memstore.Store
}

func (r *storeResolver) Resolve(iri string) (*vocab.Object, error) {
	return r.store.GetObject(iri)
}

type staticKeys struct {
	key *rsa.PublicKey
}

func (k *staticKeys) ResolveKey(string) (*rsa.PublicKey, error) {
	return k.key, nil
}

type mockMetrics struct {
	mutex        sync.Mutex
	retryCount   int
	droppedCount int
}

func (m *mockMetrics) DeliveryTime(time.Duration) {}

func (m *mockMetrics) DeliveryRetry() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.retryCount++
}

func (m *mockMetrics) DeliveryDropped() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.droppedCount++
}

func (m *mockMetrics) retries() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.retryCount
}

func (m *mockMetrics) dropped() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.droppedCount
}
