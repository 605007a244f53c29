package recommendations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultFeedTimeout = 4 * time.Second
	maxFeedBodyBytes   = 1 << 20
)

// FeedClientConfig configures the outbound recommendation feed call.
type FeedClientConfig struct {
	URL        string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
}

// FeedClient queries an external recommendation feed. Every failure mode
// (timeout, transport error, bad status, unusable payload) degrades to an
// empty result so the resolver can fall back; nothing here is fatal.
type FeedClient struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// NewFeedClient constructs a feed client. An empty URL yields a client whose
// fetches always return nothing.
func NewFeedClient(cfg FeedClientConfig) *FeedClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFeedTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedClient{
		url:        strings.TrimSpace(cfg.URL),
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
	}
}

type feedRequest struct {
	CertName  string `json:"cert_name"`
	Authority string `json:"authority"`
	UserID    string `json:"user_id,omitempty"`
}

// Fetch posts the certificate context to the feed and returns whatever
// structured records came back, in feed order.
func (c *FeedClient) Fetch(ctx context.Context, certName, authority, userID string) []Resource {
	if c == nil || c.url == "" {
		return nil
	}

	body, err := json.Marshal(feedRequest{CertName: certName, Authority: authority, UserID: userID})
	if err != nil {
		return nil
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(requestCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("recommendation feed request build failed", zap.Error(err))
		return nil
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Warn("recommendation feed fetch failed", zap.Error(err))
		return nil
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		c.logger.Warn("recommendation feed returned non-ok status", zap.Int("status", response.StatusCode))
		return nil
	}

	payload, err := io.ReadAll(io.LimitReader(response.Body, maxFeedBodyBytes))
	if err != nil {
		c.logger.Warn("recommendation feed body read failed", zap.Error(err))
		return nil
	}

	resources, err := decodeFeedPayload(payload)
	if err != nil {
		c.logger.Warn("recommendation feed payload rejected", zap.Error(err))
		return nil
	}
	return resources
}

// feedEnvelope enumerates the wrapper keys conventional feed responses use.
type feedEnvelope struct {
	Recommendations []json.RawMessage `json:"recommendations"`
	Data            []json.RawMessage `json:"data"`
	Items           []json.RawMessage `json:"items"`
}

// decodeFeedPayload accepts exactly three response shapes: a bare list of
// records, an object wrapping a list under a conventional key, or a single
// record object. Elements that are not objects are dropped; anything else is
// rejected.
func decodeFeedPayload(payload []byte) ([]Resource, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	switch trimmed[0] {
	case '[':
		var elements []json.RawMessage
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return nil, err
		}
		return decodeElements(elements), nil

	case '{':
		var envelope feedEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, err
		}
		for _, elements := range [][]json.RawMessage{envelope.Recommendations, envelope.Data, envelope.Items} {
			if elements != nil {
				return decodeElements(elements), nil
			}
		}
		// A plain object with none of the wrapper keys is a single record.
		return decodeElements([]json.RawMessage{trimmed}), nil
	}

	return nil, fmt.Errorf("unsupported payload shape")
}

func decodeElements(elements []json.RawMessage) []Resource {
	resources := make([]Resource, 0, len(elements))
	for _, element := range elements {
		candidate := bytes.TrimSpace(element)
		if len(candidate) == 0 || candidate[0] != '{' {
			continue
		}
		var resource Resource
		if err := json.Unmarshal(candidate, &resource); err != nil {
			continue
		}
		resources = append(resources, resource)
	}
	return resources
}
