package kafka

import (
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// Header names stamped on every produced message.
const (
	HeaderContentType     = "content-type"
	HeaderContentEncoding = "content-encoding"
	HeaderTimestamp       = "timestamp"
)

// Header returns the value of the first header called name.
func Header(msg kafka.Message, name string) (string, bool) {
	for _, h := range msg.Headers {
		if h.Key == name {
			return string(h.Value), true
		}
	}
	return "", false
}

// Timestamp parses the epoch-millisecond timestamp header.
func Timestamp(msg kafka.Message) (time.Time, bool) {
	v, ok := Header(msg, HeaderTimestamp)
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

func producedHeaders(contentType, contentEncoding string, at time.Time) []kafka.Header {
	return []kafka.Header{
		{Key: HeaderContentType, Value: []byte(contentType)},
		{Key: HeaderContentEncoding, Value: []byte(contentEncoding)},
		{Key: HeaderTimestamp, Value: []byte(strconv.FormatInt(at.UnixMilli(), 10))},
	}
}
