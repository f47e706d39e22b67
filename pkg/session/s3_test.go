package session

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory S3Client.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*params.Bucket+"/"+*params.Key] = body
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, ok := f.objects[*params.Bucket+"/"+*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *params.Bucket+"/"+*params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoreSaveLoad(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "sessions")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", []byte("snap"), time.Now().Add(time.Hour)))

	data, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, []byte("snap"), data)
}

func TestS3StoreKeyPrefix(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "sessions", WithS3Prefix("qs/"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", []byte("snap"), time.Now().Add(time.Hour)))

	client.mu.Lock()
	_, ok := client.objects["sessions/qs/s1"]
	client.mu.Unlock()
	require.True(t, ok, "expected object under configured prefix")
}

func TestS3StoreLoadMissing(t *testing.T) {
	store := NewS3Store(newFakeS3(), "sessions")

	data, err := store.Load(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestS3StoreLoadExpired(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "sessions")
	ctx := context.Background()

	// Write an envelope directly; Save refuses already-expired snapshots.
	require.NoError(t, store.put(ctx, "s1", s3Envelope{
		Data:      []byte("snap"),
		ExpiresAt: time.Now().Add(-time.Second),
	}))

	data, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestS3StoreSaveExpiredDeletes(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "sessions")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", []byte("snap"), time.Now().Add(time.Hour)))
	require.NoError(t, store.Save(ctx, "s1", []byte("snap"), time.Now().Add(-time.Second)))

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Empty(t, client.objects)
}

func TestS3StoreTouch(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "sessions")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", []byte("snap"), time.Now().Add(time.Millisecond)))
	require.NoError(t, store.Touch(ctx, "s1", time.Now().Add(time.Hour)))

	time.Sleep(5 * time.Millisecond)

	data, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, []byte("snap"), data)

	// Touching a missing session is not an error and writes nothing.
	before := client.puts
	require.NoError(t, store.Touch(ctx, "missing", time.Now().Add(time.Hour)))
	require.Equal(t, before, client.puts)
}

func TestS3StoreDelete(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "sessions")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", []byte("snap"), time.Now().Add(time.Hour)))
	require.NoError(t, store.Delete(ctx, "s1"))

	data, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestS3StoreSaveAllSkipsExpired(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "sessions")

	err := store.SaveAll(context.Background(), map[string]Stored{
		"live": {Data: []byte("x"), ExpiresAt: time.Now().Add(time.Hour)},
		"dead": {Data: []byte("y"), ExpiresAt: time.Now().Add(-time.Hour)},
	})
	require.NoError(t, err)

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.objects, 1)
}

func TestS3StoreClosed(t *testing.T) {
	store := NewS3Store(newFakeS3(), "sessions")
	require.NoError(t, store.Close())

	err := store.Save(context.Background(), "s1", nil, time.Now().Add(time.Hour))
	require.ErrorIs(t, err, ErrStoreClosed{})
}

func TestS3StoreCloseDuringSave(t *testing.T) {
	store := NewS3Store(newFakeS3(), "sessions")
	ctx := context.Background()

	// Shutdown closes the store while a detaching session may still be
	// saving; both must be safe concurrently.
	var wg sync.WaitGroup
	var saveErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if err := store.Save(ctx, "s1", []byte("snap"), time.Now().Add(time.Hour)); err != nil {
				saveErr = err
				return
			}
		}
	}()

	require.NoError(t, store.Close())
	wg.Wait()

	if saveErr != nil {
		require.ErrorIs(t, saveErr, ErrStoreClosed{})
	}
	require.ErrorIs(t, store.Save(ctx, "s1", nil, time.Now().Add(time.Hour)), ErrStoreClosed{})
}
