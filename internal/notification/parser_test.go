package notification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/mediaflow/internal/apperror"
	"github.com/abdul-hamid-achik/mediaflow/internal/storage"
)

func TestParser_Parse(t *testing.T) {
	objects := storage.NewMemoryStorage()
	objects.Put("raw", "lessons/L1/my intro+final.mp4", []byte("x"), map[string]string{
		"uploadType": "video",
		"lessonId":   "L1",
	})
	p := NewParser(objects)

	body := `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"raw"},"object":{"key":"lessons/L1/my+intro%2Bfinal.mp4","size":1}}}]}`
	pc, err := p.Parse(context.Background(), body)
	require.NoError(t, err)

	assert.Equal(t, "raw", pc.Bucket)
	assert.Equal(t, "lessons/L1/my intro+final.mp4", pc.Key)
	assert.Equal(t, "video", pc.Metadata["uploadType"])
	assert.Equal(t, "L1", pc.Metadata["lessonId"])
}

func TestParser_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"json string", `"not json"`},
		{"json array", `[1,2,3]`},
		{"json but not an envelope", `{"hello":"world"}`},
		{"test event", `{"Service":"Amazon S3","Event":"s3:TestEvent","Bucket":"raw"}`},
		{"empty records", `{"Records":[]}`},
		{"missing bucket", `{"Records":[{"s3":{"object":{"key":"a.mp4"}}}]}`},
		{"missing key", `{"Records":[{"s3":{"bucket":{"name":"raw"}}}]}`},
		{"undecodable key", `{"Records":[{"s3":{"bucket":{"name":"raw"},"object":{"key":"bad%zzkey"}}}]}`},
		{"empty body", ``},
	}

	p := NewParser(storage.NewMemoryStorage())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(context.Background(), tt.body)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedMessage), "error = %v", err)
			assert.Equal(t, apperror.KindParse, apperror.KindOf(err))
		})
	}
}

func TestParser_MultipleRecordsUsesFirst(t *testing.T) {
	objects := storage.NewMemoryStorage()
	objects.Put("raw", "first.png", nil, map[string]string{"uploadType": "avatar"})
	objects.Put("raw", "second.png", nil, map[string]string{"uploadType": "thumbnail"})

	body := `{"Records":[
		{"s3":{"bucket":{"name":"raw"},"object":{"key":"first.png"}}},
		{"s3":{"bucket":{"name":"raw"},"object":{"key":"second.png"}}}
	]}`
	pc, err := NewParser(objects).Parse(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, "first.png", pc.Key)
	assert.Equal(t, "avatar", pc.Metadata["uploadType"])
}

func TestParser_ParseAllResolvesEveryRecord(t *testing.T) {
	objects := storage.NewMemoryStorage()
	objects.Put("raw", "first.png", nil, map[string]string{"uploadType": "avatar"})
	objects.Put("raw", "second file.png", nil, map[string]string{"uploadType": "thumbnail"})

	body, err := NewEvent("raw", "first.png", "second file.png")
	require.NoError(t, err)

	pcs, err := NewParser(objects).ParseAll(context.Background(), body)
	require.NoError(t, err)
	require.Len(t, pcs, 2)
	assert.Equal(t, "first.png", pcs[0].Key)
	assert.Equal(t, "second file.png", pcs[1].Key)
	assert.Equal(t, "thumbnail", pcs[1].Metadata["uploadType"])
}

func TestParser_ParseAllFailures(t *testing.T) {
	objects := storage.NewMemoryStorage()
	objects.Put("raw", "first.png", nil, map[string]string{"uploadType": "avatar"})

	t.Run("one bad record", func(t *testing.T) {
		body := `{"Records":[
			{"s3":{"bucket":{"name":"raw"},"object":{"key":"first.png"}}},
			{"s3":{"bucket":{"name":"raw"},"object":{"key":""}}}
		]}`
		_, err := NewParser(objects).ParseAll(context.Background(), body)
		assert.ErrorIs(t, err, ErrMalformedMessage)
		assert.Equal(t, apperror.KindParse, apperror.KindOf(err))
	})

	t.Run("one missing object", func(t *testing.T) {
		body, err := NewEvent("raw", "first.png", "gone.png")
		require.NoError(t, err)
		_, err = NewParser(objects).ParseAll(context.Background(), body)
		assert.ErrorIs(t, err, ErrTagLookup)
		assert.True(t, apperror.KindOf(err).Retryable())
	})
}

func TestParser_SNSWrapped(t *testing.T) {
	objects := storage.NewMemoryStorage()
	objects.Put("raw", "a b.pdf", nil, map[string]string{"uploadType": "report"})

	inner, err := NewEvent("raw", "a b.pdf")
	require.NoError(t, err)
	body := `{"Type":"Notification","MessageId":"1","Message":` + quote(inner) + `}`

	pc, err := NewParser(objects).Parse(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, "a b.pdf", pc.Key)
}

func TestParser_TagLookupFailure(t *testing.T) {
	objects := storage.NewMemoryStorage()
	objects.TagsErr = errors.New("access denied")

	body, _ := NewEvent("raw", "x.mp4")
	_, err := NewParser(objects).Parse(context.Background(), body)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTagLookup)
	assert.ErrorIs(t, err, objects.TagsErr)
	assert.False(t, errors.Is(err, ErrMalformedMessage), "tag lookup must not be a parse failure")
	assert.Equal(t, apperror.KindTransient, apperror.KindOf(err))
}

func TestParser_MissingObjectIsTagLookupFailure(t *testing.T) {
	body, _ := NewEvent("raw", "gone.mp4")
	_, err := NewParser(storage.NewMemoryStorage()).Parse(context.Background(), body)
	assert.ErrorIs(t, err, ErrTagLookup)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNewEvent_RoundTrip(t *testing.T) {
	keys := []string{"plain.mp4", "with space.mp4", "dir/a+b&c=d.mp4", "ünïcode/ファイル.mov"}
	for _, k := range keys {
		body, err := NewEvent("raw", k)
		require.NoError(t, err)
		bucket, key, err := Decode(context.Background(), body)
		require.NoError(t, err)
		assert.Equal(t, "raw", bucket)
		assert.Equal(t, k, key)
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
}
