package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	routingKeyPrefix = "media."
	suffixProcessed  = ".processed"
	suffixFailed     = ".failed"
)

var ErrPublisherClosed = errors.New("events: publisher closed")

// Event is one message on the media topic exchange. Data is the payload
// consumers see; the envelope fields travel as transport metadata.
type Event struct {
	ID         string          `json:"id"`
	RoutingKey string          `json:"routing_key"`
	CreatedAt  time.Time       `json:"created_at"`
	Data       json.RawMessage `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, e *Event) error
	Close() error
}

func NewEvent(routingKey string, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s data: %w", routingKey, err)
	}
	return &Event{
		ID:         uuid.New().String(),
		RoutingKey: routingKey,
		CreatedAt:  time.Now().UTC(),
		Data:       dataBytes,
	}, nil
}

// ProcessedKey returns the routing key for a successful run, e.g. media.video.processed.
func ProcessedKey(uploadType string) string {
	return routingKeyPrefix + uploadType + suffixProcessed
}

// FailedKey returns the routing key for a failed run, e.g. media.video.failed.
func FailedKey(uploadType string) string {
	return routingKeyPrefix + uploadType + suffixFailed
}

func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

type VideoProcessed struct {
	LessonID string `json:"lessonId"`
	VideoURL string `json:"videoUrl"`
}

type AvatarURLs struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

type AvatarProcessed struct {
	UserID     string     `json:"userId"`
	AvatarURLs AvatarURLs `json:"avatarUrls"`
}

type ThumbnailProcessed struct {
	CourseID     string `json:"courseId"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

type ResourceProcessed struct {
	LessonID    string `json:"lessonId"`
	ResourceURL string `json:"resourceUrl"`
}

type AttachmentProcessed struct {
	ConversationID string `json:"conversationId"`
	AttachmentURL  string `json:"attachmentUrl"`
}

type ReportProcessed struct {
	UserID     string `json:"userId"`
	ReportURL  string `json:"reportUrl"`
	ChartURL   string `json:"chartUrl,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// Failed serializes as {<OwnerField>: OwnerID, "reason": Reason}, so every
// upload type shares one failure shape keyed by its own owner field.
type Failed struct {
	OwnerField string
	OwnerID    string
	Reason     string
}

func (f Failed) MarshalJSON() ([]byte, error) {
	if f.OwnerField == "" || f.OwnerField == "reason" {
		return nil, fmt.Errorf("events: invalid owner field %q", f.OwnerField)
	}
	return json.Marshal(map[string]string{
		f.OwnerField: f.OwnerID,
		"reason":     f.Reason,
	})
}

// Open returns the publisher for bus: "amqp", "redis" (job-queue broker,
// requires b) or "log".
func Open(bus, amqpURL, exchange string, b Enqueuer) (Publisher, error) {
	switch bus {
	case "amqp":
		p, err := NewAMQPPublisher(amqpURL, exchange)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "redis":
		if b == nil {
			return nil, fmt.Errorf("events: redis bus needs a broker")
		}
		return NewBrokerPublisher(b), nil
	case "log":
		return NewLogPublisher(), nil
	}
	return nil, fmt.Errorf("events: unknown bus %q", bus)
}
