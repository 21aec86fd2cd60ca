// Package client calls the entity mapper http api
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/diwise/entity-mapper/pkg/errors"
	"github.com/diwise/entity-mapper/pkg/types"
	"github.com/diwise/entity-mapper/pkg/types/entities"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type EntityMapperClient interface {
	MapEntities(ctx context.Context, entityType string, records io.Reader, parameters ...RequestDecoratorFunc) (*MapEntitiesResult, error)
	QueryEntities(ctx context.Context, entityType string) ([]types.Entity, error)
	RetrieveEntity(ctx context.Context, entityType, remoteID string) (types.Entity, error)
}

type MapEntitiesResult struct {
	Created  int            `json:"created"`
	Updated  int            `json:"updated"`
	Deleted  int            `json:"deleted"`
	Skipped  int            `json:"skipped"`
	Entities []types.Entity `json:"-"`
}

// RequestDecoratorFunc appends query parameters to a request
type RequestDecoratorFunc func([]string) []string

// DeleteMissing asks the mapper to remove entities that are absent from the records
func DeleteMissing() RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, "deleteMissing=true")
	}
}

// Scope limits matching and deletion to entities whose attribute equals value
func Scope(attribute, value string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, "scope="+url.QueryEscape(attribute+":"+value))
	}
}

func Debug(enabled string) func(*emClient) {
	return func(c *emClient) {
		c.debug = (enabled == "true")
	}
}

// Token sets the bearer token sent with every request
func Token(token string) func(*emClient) {
	return func(c *emClient) {
		c.token = token
	}
}

func NewEntityMapperClient(baseURL string, options ...func(*emClient)) EntityMapperClient {
	c := &emClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, option := range options {
		option(c)
	}

	return c
}

const (
	TraceAttributeEntityType string = "entity-type"
	TraceAttributeRemoteID   string = "remote-id"
)

var tracer = otel.Tracer("entity-mapper-client")

type emClient struct {
	baseURL    string
	token      string
	debug      bool
	httpClient http.Client
}

func (c *emClient) MapEntities(ctx context.Context, entityType string, records io.Reader, parameters ...RequestDecoratorFunc) (result *MapEntitiesResult, err error) {
	ctx, span := tracer.Start(ctx, "map-entities",
		trace.WithAttributes(attribute.String(TraceAttributeEntityType, entityType)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	params := []string{}
	for _, decorate := range parameters {
		params = decorate(params)
	}

	endpoint := c.entitiesURL(entityType)
	if len(params) > 0 {
		endpoint += "?" + strings.Join(params, "&")
	}

	resp, respBody, err := c.call(ctx, http.MethodPost, endpoint, records)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		err = newErrorFromProblemReport(resp.StatusCode, entityType, respBody)
		return nil, err
	}

	result = &MapEntitiesResult{}
	contents := struct {
		*MapEntitiesResult
		Entities json.RawMessage `json:"entities"`
	}{MapEntitiesResult: result}

	err = json.Unmarshal(respBody, &contents)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal response: %s (%w)", err.Error(), errors.ErrInternal)
		return nil, err
	}

	if len(contents.Entities) > 0 {
		result.Entities, err = entities.NewFromSlice(contents.Entities)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (c *emClient) QueryEntities(ctx context.Context, entityType string) (found []types.Entity, err error) {
	ctx, span := tracer.Start(ctx, "query-entities",
		trace.WithAttributes(attribute.String(TraceAttributeEntityType, entityType)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	resp, respBody, err := c.call(ctx, http.MethodGet, c.entitiesURL(entityType), nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		err = newErrorFromProblemReport(resp.StatusCode, entityType, respBody)
		return nil, err
	}

	return entities.NewFromSlice(respBody)
}

func (c *emClient) RetrieveEntity(ctx context.Context, entityType, remoteID string) (e types.Entity, err error) {
	ctx, span := tracer.Start(ctx, "retrieve-entity",
		trace.WithAttributes(attribute.String(TraceAttributeEntityType, entityType)),
		trace.WithAttributes(attribute.String(TraceAttributeRemoteID, remoteID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	resp, respBody, err := c.call(ctx, http.MethodGet, c.entitiesURL(entityType)+"/"+url.PathEscape(remoteID), nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		err = newErrorFromProblemReport(resp.StatusCode, entityType, respBody)
		return nil, err
	}

	return entities.NewFromJSON(respBody)
}

func (c *emClient) entitiesURL(entityType string) string {
	return c.baseURL + "/api/v0/entities/" + url.PathEscape(entityType)
}

func (c *emClient) call(ctx context.Context, method, endpoint string, body io.Reader) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrInternal)
	}

	req.Header.Add("Accept", "application/json")

	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	if c.token != "" {
		req.Header.Add("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %s (%w)", err.Error(), errors.ErrInternal)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %s (%w)", err.Error(), errors.ErrInternal)
	}

	if c.debug && resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		reqbytes, _ := httputil.DumpRequest(req, false)
		respbytes, _ := httputil.DumpResponse(resp, false)

		logging.GetFromContext(ctx).Error("request failed", "request", string(reqbytes), "response", string(respbytes))
	}

	return resp, respBody, nil
}

func newErrorFromProblemReport(code int, entityType string, body []byte) error {
	report := &struct {
		Type   string `json:"type"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}{}

	err := json.Unmarshal(body, report)
	if err != nil {
		return fmt.Errorf("unexpected response code %d (%w)", code, errors.ErrInternal)
	}

	switch {
	case strings.HasSuffix(report.Type, "/UnknownEntityType"):
		return errors.NewUnknownEntityTypeError(entityType)
	case code == http.StatusNotFound:
		return errors.NewNotFoundError(report.Detail)
	case code == http.StatusBadRequest:
		return errors.NewBadRequestDataError(report.Detail)
	}

	return fmt.Errorf("%s: %s (%w)", report.Title, report.Detail, errors.ErrInternal)
}
