package processor

import (
	"context"
	"errors"

	"github.com/abdul-hamid-achik/mediaflow/internal/apperror"
)

var (
	ErrNoProcessor  = apperror.New("no_processor", "processor: no strategy accepts this upload", apperror.KindNoProcessor)
	ErrMissingOwner = apperror.New("missing_owner", "processor: owner id missing from metadata", apperror.KindContract)

	ErrDuplicateUploadType = errors.New("processor: upload type already registered")
	ErrUnsupportedType     = errors.New("processor: unsupported file type")
	ErrCorruptedFile       = errors.New("processor: file appears corrupted")
	ErrTransformPanic      = errors.New("processor: transform panicked")
)

// Object tag names attached at upload time.
const (
	MetaUploadType     = "uploadType"
	MetaUserID         = "userId"
	MetaLessonID       = "lessonId"
	MetaCourseID       = "courseId"
	MetaConversationID = "conversationId"
)

type UploadType string

const (
	UploadTypeAvatar          UploadType = "avatar"
	UploadTypeVideo           UploadType = "video"
	UploadTypeThumbnail       UploadType = "thumbnail"
	UploadTypeGenericResource UploadType = "generic-resource"
	UploadTypeChatAttachment  UploadType = "chat-attachment"
	UploadTypeReport          UploadType = "report"
)

// UploadTypes is the closed set of upload types the worker understands.
var UploadTypes = []UploadType{
	UploadTypeAvatar,
	UploadTypeVideo,
	UploadTypeThumbnail,
	UploadTypeGenericResource,
	UploadTypeChatAttachment,
	UploadTypeReport,
}

var ownerFields = map[UploadType]string{
	UploadTypeAvatar:          MetaUserID,
	UploadTypeVideo:           MetaLessonID,
	UploadTypeThumbnail:       MetaCourseID,
	UploadTypeGenericResource: MetaLessonID,
	UploadTypeChatAttachment:  MetaConversationID,
	UploadTypeReport:          MetaUserID,
}

func (t UploadType) Valid() bool {
	_, ok := ownerFields[t]
	return ok
}

// OwnerField is the metadata tag naming the domain object the upload belongs to.
func (t UploadType) OwnerField() string {
	return ownerFields[t]
}

func (t UploadType) String() string {
	return string(t)
}

// Matches is the predicate every strategy uses: a single comparison of the
// uploadType tag against the strategy's constant.
func Matches(t UploadType, metadata map[string]string) bool {
	return metadata[MetaUploadType] == string(t)
}

// Context is everything a strategy receives about the object to process.
type Context struct {
	Bucket    string
	Key       string
	Metadata  map[string]string
	MessageID string
}

func (c *Context) UploadType() UploadType {
	return UploadType(c.Metadata[MetaUploadType])
}

type Strategy interface {
	UploadType() UploadType
	CanProcess(metadata map[string]string) bool
	Process(ctx context.Context, pc *Context) error
}

type Config struct {
	TempDir         string
	ProcessedBucket string
}
