package updater

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// DownloadPayload pulls an update payload of a known total size via
// repeated offset-addressed chunk requests into a single contiguous
// buffer. Chunks are strictly sequential; the remote protocol is an
// offset cursor with no concurrency primitive.
//
// Any transport failure aborts the whole download; no partial buffer is
// returned. A zero-length chunk while bytes remain is a protocol
// violation and fails immediately rather than looping forever.
func DownloadPayload(ctx context.Context, client Client, identity ServiceIdentity, sizeBytes int64) ([]byte, error) {
	if sizeBytes <= 0 {
		return nil, fmt.Errorf("%w: invalid payload size %d", ErrTransport, sizeBytes)
	}

	buf := make([]byte, sizeBytes)
	var offset int64
	for offset < sizeBytes {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: download cancelled at offset %d: %v", ErrTransport, offset, err)
		}

		chunk, err := client.DownloadChunk(ctx, identity.Name, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk at offset %d of %d: %v", ErrTransport, offset, sizeBytes, err)
		}
		if len(chunk) == 0 {
			return nil, fmt.Errorf("%w: empty chunk at offset %d of %d", ErrTransport, offset, sizeBytes)
		}
		if offset+int64(len(chunk)) > sizeBytes {
			return nil, fmt.Errorf("%w: chunk at offset %d overruns payload size %d by %d bytes",
				ErrTransport, offset, sizeBytes, offset+int64(len(chunk))-sizeBytes)
		}

		copy(buf[offset:], chunk)
		offset += int64(len(chunk))
		log.Tracef("downloaded chunk, offset now %d of %d", offset, sizeBytes)
	}

	log.Debugf("downloaded update payload of %d bytes for %s", sizeBytes, identity.Name)
	return buf, nil
}
