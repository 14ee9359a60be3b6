package evidence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrRecorderClosed is returned when recording after Close.
	ErrRecorderClosed = errors.New("recorder closed")

	// ErrBufferFull is returned when a record could not be queued within
	// the recorder's write timeout.
	ErrBufferFull = errors.New("recording buffer full")
)

// Error classes. Every typed error below matches its class with errors.Is,
// so callers that only care about the stage need no errors.As.
var (
	ErrStorage   = errors.New("evidence storage")
	ErrQuery     = errors.New("evidence query")
	ErrRecorder  = errors.New("evidence recorder")
	ErrRetention = errors.New("evidence retention")
	ErrExport    = errors.New("evidence export")
)

// describe renders "class [k=v ...]: cause", skipping empty values.
func describe(class error, cause error, kv ...string) string {
	var b strings.Builder
	b.WriteString(class.Error())
	var attrs []string
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			attrs = append(attrs, kv[i]+"="+kv[i+1])
		}
	}
	if len(attrs) > 0 {
		b.WriteString(" [" + strings.Join(attrs, " ") + "]")
	}
	b.WriteString(": ")
	b.WriteString(fmt.Sprint(cause))
	return b.String()
}

// StorageError is a failed storage backend operation.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

func (e *StorageError) Error() string {
	return describe(ErrStorage, e.Cause, "backend", e.Backend, "op", e.Operation)
}

func (e *StorageError) Unwrap() error        { return e.Cause }
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// QueryError is a query rejected by validation or failed by the backend.
type QueryError struct {
	Query *Query
	Cause error
}

func NewQueryError(query *Query, cause error) *QueryError {
	return &QueryError{Query: query, Cause: cause}
}

func (e *QueryError) Error() string {
	var episode string
	if e.Query != nil {
		episode = e.Query.EpisodeID
	}
	return describe(ErrQuery, e.Cause, "episode", episode)
}

func (e *QueryError) Unwrap() error        { return e.Cause }
func (e *QueryError) Is(target error) bool { return target == ErrQuery }

// RecorderError is a record the recorder could not accept.
type RecorderError struct {
	RecordID string
	Cause    error
}

func NewRecorderError(recordID string, cause error) *RecorderError {
	return &RecorderError{RecordID: recordID, Cause: cause}
}

func (e *RecorderError) Error() string {
	return describe(ErrRecorder, e.Cause, "record", e.RecordID)
}

func (e *RecorderError) Unwrap() error        { return e.Cause }
func (e *RecorderError) Is(target error) bool { return target == ErrRecorder }

// RetentionError is a failed pruning run.
type RetentionError struct {
	MaxAge time.Duration
	Cause  error
}

func NewRetentionError(maxAge time.Duration, cause error) *RetentionError {
	return &RetentionError{MaxAge: maxAge, Cause: cause}
}

func (e *RetentionError) Error() string {
	maxAge := "forever"
	if e.MaxAge > 0 {
		maxAge = e.MaxAge.String()
	}
	return describe(ErrRetention, e.Cause, "max_age", maxAge)
}

func (e *RetentionError) Unwrap() error        { return e.Cause }
func (e *RetentionError) Is(target error) bool { return target == ErrRetention }

// ExportError is a failed export of RecordCount records.
type ExportError struct {
	Format      string
	RecordCount int
	Cause       error
}

func NewExportError(format string, recordCount int, cause error) *ExportError {
	return &ExportError{Format: format, RecordCount: recordCount, Cause: cause}
}

func (e *ExportError) Error() string {
	return describe(ErrExport, e.Cause, "format", e.Format, "records", fmt.Sprint(e.RecordCount))
}

func (e *ExportError) Unwrap() error        { return e.Cause }
func (e *ExportError) Is(target error) bool { return target == ErrExport }
