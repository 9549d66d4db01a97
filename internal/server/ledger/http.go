package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// HTTPAnchor talks to a topic-message REST API:
//
//	POST {base}/topics/{topic}/messages   {"message": "<payload>"}  -> {"sequence_number": N}
//	GET  {base}/topics/{topic}/messages/N                           -> {"message": "<payload>"}
//
// Submit retries transient failures with exponential backoff; the retry
// policy lives here, in the client, not in the pipelines.
type HTTPAnchor struct {
	base    string
	topicID string
	client  *http.Client
}

func NewHTTPAnchor(base, topicID string) *HTTPAnchor {
	return &HTTPAnchor{
		base:    base,
		topicID: topicID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type submitRequest struct {
	Message string `json:"message"`
}

type submitResponse struct {
	SequenceNumber int64 `json:"sequence_number"`
}

type fetchResponse struct {
	Message string `json:"message"`
}

func (a *HTTPAnchor) Submit(ctx context.Context, payload string) (string, error) {
	body, err := json.Marshal(submitRequest{Message: payload})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/topics/%s/messages", a.base, a.topicID)

	var seq int64
	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("ledger submit: %s", resp.Status))
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("ledger submit: %s", resp.Status)
		}

		var sr submitResponse
		if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
			return err
		}
		seq = sr.SequenceNumber
		return nil
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%d", a.topicID, seq), nil
}

func (a *HTTPAnchor) Fetch(ctx context.Context, ref string) (string, error) {
	if IsPlaceholder(ref) {
		return "", fmt.Errorf("placeholder reference %q cannot be fetched", ref)
	}

	// References have the form "<topic>/<sequence>".
	topic, seq, ok := strings.Cut(ref, "/")
	if !ok {
		return "", fmt.Errorf("malformed ledger reference %q", ref)
	}

	url := fmt.Sprintf("%s/topics/%s/messages/%s", a.base, topic, seq)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ledger fetch: %s; body: %s", resp.Status, string(b))
	}

	var fr fetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return "", err
	}
	return fr.Message, nil
}
