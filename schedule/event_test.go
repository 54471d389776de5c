package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_JSON(t *testing.T) {
	events := []Event{
		{Index: 0, Kind: DateOnly, Date: MustParseDate("2020-01-03")},
		{Index: 2, Kind: Timestamp, Time: time.Date(2020, 6, 1, 14, 0, 0, 0, time.UTC)},
	}

	b, err := json.Marshal(events)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"index": 0, "type": "date", "date": "2020-01-03"},
		{"index": 2, "type": "time", "date": "2020-06-01T14:00:00.000Z"}
	]`, string(b))

	var back []Event
	require.NoError(t, json.Unmarshal(b, &back))
	require.Len(t, back, 2)
	assert.Equal(t, events[0], back[0])
	assert.True(t, events[1].Time.Equal(back[1].Time))
	assert.Equal(t, Timestamp, back[1].Kind)
}

func TestEvent_JSONRejectsUnknownType(t *testing.T) {
	var e Event
	assert.Error(t, json.Unmarshal([]byte(`{"index":0,"type":"week","date":"2020-01-01"}`), &e))
	assert.Error(t, json.Unmarshal([]byte(`{"index":0,"type":"time","date":"yesterday"}`), &e))
}

func TestEvent_SortKey(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	dateOnly := Event{Kind: DateOnly, Date: MustParseDate("2020-01-03")}
	assert.True(t, time.Date(2020, 1, 3, 23, 59, 59, int(time.Second-time.Nanosecond), tokyo).Equal(dateOnly.SortKey(tokyo)))

	at := time.Date(2020, 1, 3, 1, 0, 0, 0, time.UTC)
	assert.True(t, at.Equal(Event{Kind: Timestamp, Time: at}.SortKey(tokyo)))
}
