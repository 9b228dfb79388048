package merge

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/featurebasedb/edp/errors"
)

// Outcome classifies one step of unwrapping a queued storage notification.
type Outcome int

const (
	// Empty is a well-formed envelope with nothing inside.
	Empty Outcome = iota
	// Malformed is an envelope that could not be decoded.
	Malformed
	// Event carries a storage event.
	Event
)

func (o Outcome) String() string {
	switch o {
	case Empty:
		return "empty"
	case Malformed:
		return "malformed"
	case Event:
		return "event"
	}
	return "unknown"
}

// Notification is the result of decoding a queue message body: the inner
// pub/sub message text when Outcome is Event.
type Notification struct {
	Outcome Outcome
	Message string
	Err     error
}

// StorageEvent is the result of decoding a notification message: the
// bucket and URL-decoded key of its first storage record when Outcome is
// Event.
type StorageEvent struct {
	Outcome Outcome
	Bucket  string
	Key     string
	Err     error
}

// DecodeQueueMessage decodes an SQS message body holding an SNS
// notification. A body without a Message is Empty.
func DecodeQueueMessage(body string) Notification {
	var entity events.SNSEntity
	if err := json.Unmarshal([]byte(body), &entity); err != nil {
		return Notification{Outcome: Malformed, Err: errors.WithCode(errors.Wrap(err, "decoding queue message"), errors.ErrMalformedEnvelope)}
	}
	if strings.TrimSpace(entity.Message) == "" {
		return Notification{Outcome: Empty}
	}
	return Notification{Outcome: Event, Message: entity.Message}
}

// DecodeNotification decodes an SNS message holding an S3 event. Only the
// first record is used; S3 sends one record per notification.
func DecodeNotification(message string) StorageEvent {
	var ev events.S3Event
	if err := json.Unmarshal([]byte(message), &ev); err != nil {
		return StorageEvent{Outcome: Malformed, Err: errors.WithCode(errors.Wrap(err, "decoding storage notification"), errors.ErrMalformedEnvelope)}
	}
	if len(ev.Records) == 0 {
		return StorageEvent{Outcome: Empty}
	}
	rec := ev.Records[0]
	bucket, rawKey := rec.S3.Bucket.Name, rec.S3.Object.Key
	if bucket == "" || rawKey == "" {
		return StorageEvent{Outcome: Malformed, Err: errors.New(errors.ErrMalformedEnvelope, "missing bucket name or object key")}
	}
	// keys in S3 event notifications are form encoded
	key, err := url.QueryUnescape(rawKey)
	if err != nil {
		return StorageEvent{Outcome: Malformed, Err: errors.WithCode(errors.Wrapf(err, "decoding object key %q", rawKey), errors.ErrMalformedEnvelope)}
	}
	return StorageEvent{Outcome: Event, Bucket: bucket, Key: key}
}

// Unwrapped is the result of unwrapping one queue record.
type Unwrapped struct {
	MessageID string
	StorageEvent
}

// Unwrap decodes every record of a queue event, one result per record in
// delivery order.
func Unwrap(event events.SQSEvent) []Unwrapped {
	out := make([]Unwrapped, 0, len(event.Records))
	for _, rec := range event.Records {
		u := Unwrapped{MessageID: rec.MessageId}
		n := DecodeQueueMessage(rec.Body)
		switch n.Outcome {
		case Event:
			u.StorageEvent = DecodeNotification(n.Message)
		default:
			u.StorageEvent = StorageEvent{Outcome: n.Outcome, Err: n.Err}
		}
		out = append(out, u)
	}
	return out
}
