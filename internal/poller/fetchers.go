package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type statusPayload struct {
	Status     string `json:"status"`
	DocumentID string `json:"documentId"`
	RagID      string `json:"ragId"`
	Error      string `json:"error"`
}

type jobPayload struct {
	Status  string           `json:"status"`
	Error   string           `json:"error"`
	Results []map[string]any `json:"results"`
}

// StatusFetcher builds a FetchFunc over the process status read API.
// baseURL is the API root, e.g. "http://localhost:8080/api/v1".
func StatusFetcher(client *http.Client, baseURL, recordID string) FetchFunc {
	url := strings.TrimRight(baseURL, "/") + "/status/" + recordID
	return func(ctx context.Context) (Observation, error) {
		var payload statusPayload
		if err := fetchJSON(ctx, client, url, &payload); err != nil {
			return Observation{}, err
		}
		return Observation{
			Status:     payload.Status,
			DocumentID: payload.DocumentID,
			RagID:      payload.RagID,
			Error:      payload.Error,
		}, nil
	}
}

// JobFetcher builds a FetchFunc over the job read API. Identifiers come
// out of the first result entry once the job completes.
func JobFetcher(client *http.Client, baseURL, jobID string) FetchFunc {
	url := strings.TrimRight(baseURL, "/") + "/jobs/" + jobID
	return func(ctx context.Context) (Observation, error) {
		var payload jobPayload
		if err := fetchJSON(ctx, client, url, &payload); err != nil {
			return Observation{}, err
		}
		obs := Observation{Status: payload.Status, Error: payload.Error}
		if len(payload.Results) > 0 {
			if v, ok := payload.Results[0]["documentId"].(string); ok {
				obs.DocumentID = v
			}
			if v, ok := payload.Results[0]["ragId"].(string); ok {
				obs.RagID = v
			}
		}
		return obs, nil
	}
}

func fetchJSON(ctx context.Context, client *http.Client, url string, out any) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: not found", ErrGone)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: invalid record id", ErrGone)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
