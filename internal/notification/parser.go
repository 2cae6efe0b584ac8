// Package notification turns object-storage upload notifications into
// processor contexts.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/abdul-hamid-achik/mediaflow/internal/apperror"
	"github.com/abdul-hamid-achik/mediaflow/internal/logger"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor"
)

var (
	ErrMalformedMessage = apperror.New("malformed_message", "notification: malformed message", apperror.KindParse)
	ErrTagLookup        = errors.New("notification: tag lookup failed")
)

// Event is the S3 event notification envelope. MinIO emits the same shape.
type Event struct {
	Records []Record `json:"Records"`
}

type Record struct {
	EventName string `json:"eventName"`
	EventTime string `json:"eventTime"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
			ETag string `json:"eTag"`
		} `json:"object"`
	} `json:"s3"`
}

// snsEnvelope is how the event arrives when S3 publishes to SNS and SNS
// fans out to the queue without raw message delivery.
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// TagReader fetches the tag set of an object.
type TagReader interface {
	GetTags(ctx context.Context, bucket, key string) (map[string]string, error)
}

type Parser struct {
	tags TagReader
}

func NewParser(tags TagReader) *Parser {
	return &Parser{tags: tags}
}

// ObjectRef names one uploaded object.
type ObjectRef struct {
	Bucket string
	Key    string
}

// Parse resolves bucket, key and tags for the first record of a queue
// message body. Failures to understand the body wrap ErrMalformedMessage;
// failures to read tags wrap ErrTagLookup.
func (p *Parser) Parse(ctx context.Context, body string) (*processor.Context, error) {
	bucket, key, err := Decode(ctx, body)
	if err != nil {
		return nil, err
	}
	return p.Resolve(ctx, bucket, key)
}

// ParseAll resolves every record of a queue message body, in order. A tag
// failure on any record fails the whole message.
func (p *Parser) ParseAll(ctx context.Context, body string) ([]*processor.Context, error) {
	refs, err := DecodeAll(body)
	if err != nil {
		return nil, err
	}

	out := make([]*processor.Context, 0, len(refs))
	for _, ref := range refs {
		pc, err := p.Resolve(ctx, ref.Bucket, ref.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, nil
}

// Resolve builds a processor context for an already decoded object
// reference. Redrive enters here, skipping the envelope.
func (p *Parser) Resolve(ctx context.Context, bucket, key string) (*processor.Context, error) {
	tags, err := p.tags.GetTags(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %w", ErrTagLookup, bucket, key, err)
	}
	if tags == nil {
		tags = map[string]string{}
	}

	return &processor.Context{
		Bucket:   bucket,
		Key:      key,
		Metadata: tags,
	}, nil
}

// Decode extracts the bucket and URL-decoded key of the first record.
func Decode(ctx context.Context, body string) (bucket, key string, err error) {
	refs, err := DecodeAll(body)
	if err != nil {
		return "", "", err
	}
	if len(refs) > 1 {
		logger.FromContext(ctx).Warn("notification carries multiple records, using the first", "records", len(refs))
	}
	return refs[0].Bucket, refs[0].Key, nil
}

// DecodeAll extracts every record. One bad record makes the whole message
// malformed.
func DecodeAll(body string) ([]ObjectRef, error) {
	var event Event
	if err := json.Unmarshal([]byte(body), &event); err != nil {
		return nil, apperror.Wrap(err, ErrMalformedMessage)
	}

	if len(event.Records) == 0 {
		var sns snsEnvelope
		if err := json.Unmarshal([]byte(body), &sns); err == nil && sns.Type == "Notification" && sns.Message != "" {
			return DecodeAll(sns.Message)
		}
		return nil, apperror.Wrap(errors.New("no records"), ErrMalformedMessage)
	}

	refs := make([]ObjectRef, 0, len(event.Records))
	for i, rec := range event.Records {
		bucket := rec.S3.Bucket.Name
		rawKey := rec.S3.Object.Key
		if bucket == "" || rawKey == "" {
			return nil, apperror.Wrap(fmt.Errorf("record %d: missing bucket or key", i), ErrMalformedMessage)
		}

		// S3 encodes keys like form values: spaces arrive as '+'.
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, apperror.Wrap(fmt.Errorf("record %d: key %q: %w", i, rawKey, err), ErrMalformedMessage)
		}
		refs = append(refs, ObjectRef{Bucket: bucket, Key: key})
	}
	return refs, nil
}

// NewEvent builds a notification body with one record per key in bucket,
// each key encoded the way S3 encodes it.
func NewEvent(bucket, key string, more ...string) (string, error) {
	records := make([]Record, 0, 1+len(more))
	for _, k := range append([]string{key}, more...) {
		var rec Record
		rec.EventName = "ObjectCreated:Put"
		rec.S3.Bucket.Name = bucket
		rec.S3.Object.Key = url.QueryEscape(k)
		records = append(records, rec)
	}

	data, err := json.Marshal(Event{Records: records})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
