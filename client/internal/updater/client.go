package updater

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fleetlink/fleetlink/version"
)

const (
	userAgent = "Fleetlink agent/%s"

	// defaultChunkSize bounds how much of the payload a single chunk
	// request may return.
	defaultChunkSize int64 = 512 * 1024

	// maxOfferBody bounds the availability check response; the body is a
	// single decimal byte count.
	maxOfferBody int64 = 100
)

// UpdateOffer is the result of an availability check. A size of zero or
// less means no update is available; any positive value is the exact
// byte length of the payload to retrieve.
type UpdateOffer struct {
	SizeBytes int64
}

// Available reports whether the offer carries a payload.
func (o UpdateOffer) Available() bool {
	return o.SizeBytes > 0
}

// Client is the remote update service capability. Transport and
// encoding are the collaborator's concern; the orchestrator only
// requires these two operations and that chunk offsets are honored
// exactly.
type Client interface {
	// CheckForUpdate returns the byte size of an update payload for the
	// given identity, or a non-positive size when no update exists.
	CheckForUpdate(ctx context.Context, identity ServiceIdentity) (int64, error)

	// DownloadChunk returns the payload bytes starting at offset. The
	// chunk length is chosen by the server and may be shorter than
	// requested, but never zero before the payload end.
	DownloadChunk(ctx context.Context, name string, offset int64) ([]byte, error)
}

// HTTPClient talks to the update service over plain HTTP: a small GET
// for the availability check and Range-addressed GETs for chunks.
type HTTPClient struct {
	baseURL   string
	chunkSize int64
	client    *http.Client
}

// NewHTTPClient creates a client for the update service at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		chunkSize: defaultChunkSize,
		client:    &http.Client{Timeout: time.Minute},
	}
}

func (c *HTTPClient) CheckForUpdate(ctx context.Context, identity ServiceIdentity) (int64, error) {
	checkURL := fmt.Sprintf("%s/check?name=%s&version=%s",
		c.baseURL, url.QueryEscape(identity.Name), url.QueryEscape(identity.Version))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create availability request: %w", err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf(userAgent, version.FleetlinkVersion()))

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("availability check: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warnf("error closing response body: %v", cerr)
		}
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		// no build published for this agent
		return 0, nil
	default:
		return 0, fmt.Errorf("availability check: unexpected HTTP status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOfferBody))
	if err != nil {
		return 0, fmt.Errorf("read availability response: %w", err)
	}

	size, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse payload size %q: %w", string(body), err)
	}

	return size, nil
}

func (c *HTTPClient) DownloadChunk(ctx context.Context, name string, offset int64) ([]byte, error) {
	chunkURL := fmt.Sprintf("%s/download/%s", c.baseURL, url.PathEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chunkURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create chunk request: %w", err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf(userAgent, version.FleetlinkVersion()))
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+c.chunkSize-1))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch chunk at offset %d: %w", offset, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warnf("error closing response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("fetch chunk at offset %d: unexpected HTTP status: %d", offset, resp.StatusCode)
	}

	// a 200 past the first chunk means the server ignored the range
	// header and is sending the whole payload again
	if offset > 0 && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("fetch chunk at offset %d: server ignored the range request", offset)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.chunkSize))
	if err != nil {
		return nil, fmt.Errorf("read chunk at offset %d: %w", offset, err)
	}

	return data, nil
}
