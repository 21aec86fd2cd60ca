package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// QueryEntities decodes every entity of a type into T and passes it to callback.
// Attributes are decoded in their full form, i.e. {"type":"Property","value":...}.
func QueryEntities[T any](ctx context.Context, mapperURL, token, entityType string, callback func(t T)) (count int, err error) {

	logger := logging.GetFromContext(ctx)

	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	endpoint := fmt.Sprintf("%s/api/v0/entities/%s", strings.TrimSuffix(mapperURL, "/"), url.PathEscape(entityType))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		err = fmt.Errorf("failed to create request: %w", err)
		return
	}

	req.Header.Add("Accept", "application/json")
	if token != "" {
		req.Header.Add("Authorization", "Bearer "+token)
	}

	logger.Debug("calling entity mapper", "url", endpoint)

	resp, err := httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("failed to send request: %w", err)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("failed to read response body: %w", err)
		return
	}

	if resp.StatusCode != http.StatusOK {
		err = newErrorFromProblemReport(resp.StatusCode, entityType, respBody)
		return
	}

	result := make([]T, 0)

	err = json.Unmarshal(respBody, &result)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal response: %w", err)
		return
	}

	for _, e := range result {
		callback(e)
	}

	return len(result), nil
}
