package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{45 * time.Minute, "45m"},
		{2*time.Hour + 15*time.Minute, "2h 15m"},
		{3 * time.Hour, "3h"},
		{26 * time.Hour, "1d 2h"},
		{48 * time.Hour, "2d"},
		{-90 * time.Minute, "1h 30m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Duration(tt.in), tt.in.String())
	}
}

func TestRelative(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "just now", Relative(now.Add(-20*time.Second), now))
	assert.Equal(t, "5 minutes ago", Relative(now.Add(-5*time.Minute), now))
	assert.Equal(t, "1 hour ago", Relative(now.Add(-time.Hour), now))
	assert.Equal(t, "3 days ago", Relative(now.Add(-72*time.Hour), now))
	assert.Equal(t, "in 2 hours", Relative(now.Add(2*time.Hour), now))
}

func TestCaseConversion(t *testing.T) {
	assert.Equal(t, "patientId", SnakeToCamel("patient_id"))
	assert.Equal(t, "responseTimeMs", SnakeToCamel("response_time_ms"))
	assert.Equal(t, "model", SnakeToCamel("model"))

	assert.Equal(t, "patient_id", CamelToSnake("patientId"))
	assert.Equal(t, "response_time_ms", CamelToSnake("responseTimeMs"))
	assert.Equal(t, "patient_id", CamelToSnake("patientID"))
	assert.Equal(t, "http_status", CamelToSnake("HTTPStatus"))
}

func TestKeysRecursive(t *testing.T) {
	in := map[string]interface{}{
		"tenant_id": "t1",
		"context": map[string]interface{}{
			"history_of_falls": true,
			"items":            []interface{}{map[string]interface{}{"bed_type": "icu"}},
		},
	}
	out := KeysToCamel(in).(map[string]interface{})
	assert.Equal(t, "t1", out["tenantId"])
	ctx := out["context"].(map[string]interface{})
	assert.Equal(t, true, ctx["historyOfFalls"])
	item := ctx["items"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "icu", item["bedType"])

	back := KeysToSnake(out).(map[string]interface{})
	assert.Equal(t, "t1", back["tenant_id"])
}
