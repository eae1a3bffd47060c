package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-scheduler-api/internal/client"
)

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestReportFieldDetails(t *testing.T) {
	var raw struct{ Errors []client.GraphQLError }
	require.NoError(t, json.Unmarshal([]byte(`{"errors":[{
		"message": "Invalid input",
		"extensions": {"code": "BAD_USER_INPUT", "details": [
			{"field": "endTime", "message": "startTime must be before endTime"},
			{"field": "attendeeIds[1]", "message": "Unknown user"}
		]}
	}]}`), &raw))

	var buf bytes.Buffer
	report(zerolog.New(&buf), &client.ResponseError{StatusCode: 200, Errors: raw.Errors})

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "Invalid input", lines[0]["message"])
	assert.Equal(t, "BAD_USER_INPUT", lines[0]["code"])
	assert.Equal(t, map[string]any{
		"endTime":        "startTime must be before endTime",
		"attendeeIds[1]": "Unknown user",
	}, lines[0]["details"])
}

func TestReportOtherErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want map[string]any
	}{
		{
			name: "code only",
			err: &client.ResponseError{StatusCode: 200, Errors: []client.GraphQLError{{
				Message:    "Not authorized",
				Extensions: map[string]any{"code": "FORBIDDEN"},
			}}},
			want: map[string]any{"level": "error", "code": "FORBIDDEN", "message": "Not authorized"},
		},
		{
			name: "http status without body",
			err:  &client.ResponseError{StatusCode: 502},
			want: map[string]any{"level": "error", "status": float64(502), "message": "request failed"},
		},
		{
			name: "transport error",
			err:  errors.New("connection refused"),
			want: map[string]any{"level": "error", "error": "connection refused", "message": "request failed"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			report(zerolog.New(&buf), tc.err)
			lines := logLines(t, &buf)
			require.Len(t, lines, 1)
			assert.Equal(t, tc.want, lines[0])
		})
	}
}

func TestMeetingInput(t *testing.T) {
	in, err := meetingInput([]string{
		"-title", "Sync",
		"-start", "2030-01-02T15:00:00Z",
		"-end", "2030-01-02T16:00:00+01:00",
		"-attendees", "u1, ,u2",
		"-description", "weekly",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sync", in.Title)
	assert.True(t, in.StartTime.Equal(time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC)))
	assert.True(t, in.EndTime.Equal(time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{"u1", "u2"}, in.AttendeeIDs)
	require.NotNil(t, in.Description)
	assert.Equal(t, "weekly", *in.Description)
}

func TestMeetingInputRequiresTimes(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"no start", []string{"-title", "x", "-end", "2030-01-02T16:00:00Z"}, "missing -start"},
		{"no end", []string{"-title", "x", "-start", "2030-01-02T15:00:00Z"}, "missing -end"},
		{"nothing", nil, "missing -title, -start, -end"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := meetingInput(tc.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	_, err := meetingInput([]string{"-title", "x", "-start", "tomorrow", "-end", "2030-01-02T16:00:00Z"})
	assert.Error(t, err, "unparseable time")
}
