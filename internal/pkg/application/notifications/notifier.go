package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/diwise/entity-mapper/pkg/mapper"
	"github.com/diwise/entity-mapper/pkg/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Notifier interface {
	Start() error
	Stop() error

	EntitiesChanged(ctx context.Context, entityType string, result *mapper.Result)
}

var tracer = otel.Tracer("entity-mapper/notifier")

const NotificationType string = "EntityChangeNotification"

type Notification struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	EntityType string         `json:"entityType"`
	NotifiedAt string         `json:"notifiedAt"`
	Created    []types.Entity `json:"created"`
	Updated    []types.Entity `json:"updated"`
	Deleted    []types.Entity `json:"deleted"`
}

func NewNotification(entityType string, result *mapper.Result) Notification {
	nonNil := func(e []types.Entity) []types.Entity {
		if e == nil {
			return []types.Entity{}
		}
		return e
	}

	return Notification{
		ID:         fmt.Sprintf("urn:uuid:%s", uuid.NewString()),
		Type:       NotificationType,
		EntityType: entityType,
		NotifiedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Created:    nonNil(result.Created),
		Updated:    nonNil(result.Updated),
		Deleted:    nonNil(result.Deleted),
	}
}

type action func()

type notifier struct {
	started  bool
	endpoint string
	client   http.Client

	queue chan action
}

func NewNotifier(ctx context.Context, endpoint string) (Notifier, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("notifier endpoint must not be empty")
	}

	return &notifier{
		endpoint: endpoint,
		client: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
		queue: make(chan action, 32),
	}, nil
}

func (n *notifier) Start() error {
	if n.started {
		return fmt.Errorf("already started")
	}

	n.started = true

	go n.run()

	return nil
}

func (n *notifier) Stop() error {
	if n.started {
		resultChan := make(chan bool)

		n.queue <- func() {
			// closing the queue ends the run loop once this action returns
			close(n.queue)
			resultChan <- true
		}

		<-resultChan
		n.started = false
	}
	return nil
}

// EntitiesChanged queues a notification about the changes in result. Results without
// changes are ignored.
func (n *notifier) EntitiesChanged(ctx context.Context, entityType string, result *mapper.Result) {
	if !n.started || result == nil || !result.HasChanges() {
		return
	}

	var err error

	logger := logging.GetFromContext(ctx)
	notification := NewNotification(entityType, result)

	// the post outlives the request so only the span context is carried over
	ctx, span := tracer.Start(
		trace.ContextWithSpanContext(context.Background(), trace.SpanContextFromContext(ctx)),
		"post-notification",
	)

	n.queue <- func() {
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = n.post(ctx, notification)
		if err != nil {
			logger.Error("failed to post notification", "type", entityType, "err", err.Error())
		}
	}
}

func (n *notifier) post(ctx context.Context, notification Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshalling error (%w)", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("unable to create new request (%w)", err)
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request (%w)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification endpoint responded with status code %d", resp.StatusCode)
	}

	return nil
}

func (n *notifier) run() {
	for action := range n.queue {
		if action == nil {
			return
		}

		action()
	}
}
