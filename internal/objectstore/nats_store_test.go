// Package objectstore_test tests the NATS object store implementation.
package objectstore_test

import (
	"context"
	"testing"

	"github.com/book-expert/phonemizer-service/internal/objectstore"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestServer starts an in-memory NATS server with JetStream for testing purposes.
func startTestServer(t *testing.T) jetstream.JetStream {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	require.NoError(t, err)

	t.Cleanup(func() {
		natsConnection.Close()
		natsServer.Shutdown()
	})

	js, err := jetstream.New(natsConnection)
	require.NoError(t, err)

	return js
}

func TestNatsObjectStore_UploadDownload(t *testing.T) {
	t.Parallel()

	js := startTestServer(t)
	ctx := context.Background()

	store, err := objectstore.New(ctx, js, "test-bucket")
	require.NoError(t, err)

	key := "chapter-1.txt"
	uploadData := []byte("The quick brown fox.")

	require.NoError(t, store.Upload(ctx, key, uploadData))

	downloadData, err := store.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, uploadData, downloadData)
}

func TestNatsObjectStore_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	js := startTestServer(t)
	ctx := context.Background()

	first, err := objectstore.New(ctx, js, "shared-bucket")
	require.NoError(t, err)
	require.NoError(t, first.Upload(ctx, "key", []byte("value")))

	second, err := objectstore.New(ctx, js, "shared-bucket")
	require.NoError(t, err)

	data, err := second.Download(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), data)
}

func TestNatsObjectStore_MissingKey(t *testing.T) {
	t.Parallel()

	js := startTestServer(t)
	ctx := context.Background()

	store, err := objectstore.New(ctx, js, "empty-bucket")
	require.NoError(t, err)

	_, err = store.Download(ctx, "missing")
	require.ErrorIs(t, err, objectstore.ErrObjectNotFound)
}
