package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/issue-geocoder-service/internal/domain"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("iss-1"),
		Value:     []byte(`{"id":"iss-1"}`),
		Topic:     "issue-reports",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("mobile")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("iss-1"), raw.Key)
	assert.JSONEq(t, `{"id":"iss-1"}`, string(raw.Value))
	assert.Equal(t, "issue-reports", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "mobile", raw.Headers["source"])
	assert.Nil(t, raw.Commit, "commit is attached by the reader")
}

func TestToMessage(t *testing.T) {
	report := domain.IssueReport{
		ID:        "iss-1",
		Geotag:    "12.9716,77.5946",
		Geo:       &domain.Geo{Lat: 12.9716, Lng: 77.5946},
		Place:     &domain.PlaceResult{PlaceName: "Bengaluru, Karnataka"},
		GeoSource: domain.GeoSourceResolved,
	}
	event, err := domain.SerializeIssueReport(report)
	require.NoError(t, err)
	event.Headers["content_type"] = "application/json"

	msg := toMessage(event)

	assert.Equal(t, []byte("iss-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"placeName":"Bengaluru, Karnataka"`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "content_type", msg.Headers[0].Key)
	assert.Equal(t, "geo_source", msg.Headers[1].Key)
	assert.Equal(t, []byte(domain.GeoSourceResolved), msg.Headers[1].Value)
}

func TestToMessage_NoHeaders(t *testing.T) {
	msg := toMessage(domain.OutputEvent{Key: []byte("k"), Value: []byte("{}")})
	assert.Empty(t, msg.Headers)
}
