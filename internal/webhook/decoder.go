package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jenkins-hooks/pkg/webhook"
)

// DefaultEventHeader carries the event type of a GitHub delivery.
const DefaultEventHeader = "X-GitHub-Event"

// DeliveryHeader carries the sender's delivery id, when it provides one.
const DeliveryHeader = "X-GitHub-Delivery"

var (
	// ErrMissingEvent reports a request without the event-type header.
	ErrMissingEvent = errors.New("missing event header")
	// ErrUnsupportedEvent reports an event other than a push.
	ErrUnsupportedEvent = errors.New("event is not a push")
	// ErrMalformedPayload reports a body that is not a push payload.
	ErrMalformedPayload = errors.New("malformed push payload")
)

// Decoder validates inbound deliveries and extracts push events.
type Decoder struct {
	EventHeader string
	Now         func() time.Time
}

// NewDecoder returns a decoder reading the event type from eventHeader.
func NewDecoder(eventHeader string) *Decoder {
	if eventHeader == "" {
		eventHeader = DefaultEventHeader
	}
	return &Decoder{EventHeader: eventHeader, Now: time.Now}
}

// Decode checks the event header and parses body into a PushEvent.
func (d *Decoder) Decode(header http.Header, body []byte) (webhook.PushEvent, error) {
	values := header.Values(d.EventHeader)
	if len(values) == 0 {
		return webhook.PushEvent{}, fmt.Errorf("%w: %s", ErrMissingEvent, d.EventHeader)
	}
	if event := values[0]; event != webhook.EventPush {
		return webhook.PushEvent{}, fmt.Errorf("%w: %q", ErrUnsupportedEvent, event)
	}

	var payload webhook.PushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return webhook.PushEvent{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.Ref == nil {
		return webhook.PushEvent{}, fmt.Errorf("%w: ref is required", ErrMalformedPayload)
	}
	if payload.Repository == nil || payload.Repository.Name == nil {
		return webhook.PushEvent{}, fmt.Errorf("%w: repository.name is required", ErrMalformedPayload)
	}

	deliveryID := header.Get(DeliveryHeader)
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	return webhook.PushEvent{
		Repository: *payload.Repository.Name,
		Branch:     webhook.BranchFromRef(*payload.Ref),
		Ref:        *payload.Ref,
		DeliveryID: deliveryID,
		ReceivedAt: now(),
	}, nil
}
