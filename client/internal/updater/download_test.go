package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	size     int64
	checkErr error

	chunks   map[int64][]byte
	chunkErr error

	checkCalls atomic.Int32
	chunkCalls atomic.Int32
}

func (f *fakeClient) CheckForUpdate(_ context.Context, _ ServiceIdentity) (int64, error) {
	f.checkCalls.Add(1)
	return f.size, f.checkErr
}

func (f *fakeClient) DownloadChunk(_ context.Context, _ string, offset int64) ([]byte, error) {
	f.chunkCalls.Add(1)
	if f.chunkErr != nil {
		return nil, f.chunkErr
	}
	chunk, ok := f.chunks[offset]
	if !ok {
		return nil, fmt.Errorf("no chunk registered at offset %d", offset)
	}
	return chunk, nil
}

// chunksAt splits the payload into consecutive chunks of the given
// lengths, keyed by their offsets.
func chunksAt(payload []byte, lengths ...int) map[int64][]byte {
	chunks := make(map[int64][]byte)
	var offset int64
	for _, l := range lengths {
		chunks[offset] = payload[offset : offset+int64(l)]
		offset += int64(l)
	}
	return chunks
}

func testPayload(n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	return payload
}

func TestDownloadPayload_AssemblesChunksInOrder(t *testing.T) {
	payload := testPayload(1000)
	client := &fakeClient{chunks: chunksAt(payload, 400, 400, 200)}

	got, err := DownloadPayload(context.Background(), client, ServiceIdentity{Name: "fleetlink"}, 1000)
	require.NoError(t, err)
	require.Len(t, got, 1000)
	assert.True(t, bytes.Equal(payload, got))
	assert.EqualValues(t, 3, client.chunkCalls.Load())
}

func TestDownloadPayload_Errors(t *testing.T) {
	payload := testPayload(100)

	testMatrix := []struct {
		name   string
		size   int64
		client *fakeClient
	}{
		{
			name:   "transport failure aborts the whole download",
			size:   100,
			client: &fakeClient{chunkErr: errors.New("connection reset")},
		},
		{
			name:   "zero length chunk before payload end fails fast",
			size:   100,
			client: &fakeClient{chunks: map[int64][]byte{0: payload[:60], 60: {}}},
		},
		{
			name:   "chunk overrunning the payload size is rejected",
			size:   50,
			client: &fakeClient{chunks: map[int64][]byte{0: payload}},
		},
		{
			name:   "non-positive size is rejected",
			size:   0,
			client: &fakeClient{},
		},
	}

	for _, c := range testMatrix {
		t.Run(c.name, func(t *testing.T) {
			got, err := DownloadPayload(context.Background(), c.client, ServiceIdentity{Name: "fleetlink"}, c.size)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTransport)
			assert.Nil(t, got)
		})
	}
}

func TestDownloadPayload_CancelledContext(t *testing.T) {
	payload := testPayload(100)
	client := &fakeClient{chunks: chunksAt(payload, 100)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DownloadPayload(ctx, client, ServiceIdentity{Name: "fleetlink"}, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Zero(t, client.chunkCalls.Load())
}
