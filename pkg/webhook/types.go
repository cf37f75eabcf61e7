// Package webhook provides the types of push notifications accepted by the relay.
package webhook

import (
	"strings"
	"time"
)

// EventPush is the event-type header value identifying a push.
const EventPush = "push"

// BranchRefPrefix is stripped from a ref to obtain the branch name.
const BranchRefPrefix = "refs/heads/"

// PushPayload is the subset of a push webhook body the relay reads.
// Pointer fields distinguish absent keys from empty strings.
type PushPayload struct {
	Ref        *string     `json:"ref"`
	Repository *Repository `json:"repository"`
}

// Repository identifies the source repository of a push.
type Repository struct {
	Name     *string `json:"name"`
	FullName string  `json:"full_name,omitempty"`
}

// PushEvent is a decoded push notification.
type PushEvent struct {
	Repository string
	Branch     string
	Ref        string
	DeliveryID string
	ReceivedAt time.Time
}

// BranchFromRef strips BranchRefPrefix from ref. Refs without the prefix are
// returned unchanged.
func BranchFromRef(ref string) string {
	return strings.TrimPrefix(ref, BranchRefPrefix)
}
