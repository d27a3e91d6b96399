package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPSubmitter posts intents to a dicepoker server.
type HTTPSubmitter struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSubmitter creates a submitter for the server at baseURL.
func NewHTTPSubmitter(baseURL string) *HTTPSubmitter {
	return &HTTPSubmitter{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SubmitError is returned when the server rejects an intent.
type SubmitError struct {
	Status int
	Kind   string
	Msg    string
}

func (e *SubmitError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("wallet: server rejected intent (%d %s): %s", e.Status, e.Kind, e.Msg)
	}
	return fmt.Sprintf("wallet: server rejected intent (%d): %s", e.Status, e.Msg)
}

// Submit validates and posts the intent.
func (s *HTTPSubmitter) Submit(ctx context.Context, in Intent) (Receipt, error) {
	if err := in.Validate(); err != nil {
		return Receipt{}, err
	}
	body, err := json.Marshal(in)
	if err != nil {
		return Receipt{}, fmt.Errorf("wallet: encode intent: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/tables/%s/actions", s.BaseURL, url.PathEscape(in.TableID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("wallet: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("wallet: submit: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Receipt{}, fmt.Errorf("wallet: read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		var apiErr struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		_ = json.Unmarshal(data, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return Receipt{}, &SubmitError{Status: resp.StatusCode, Kind: apiErr.Kind, Msg: apiErr.Error}
	}

	var receipt Receipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return Receipt{}, fmt.Errorf("wallet: decode receipt: %w", err)
	}
	return receipt, nil
}
