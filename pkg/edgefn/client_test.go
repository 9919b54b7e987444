package edgefn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeSkillReshapesKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/fall-risk", r.URL.Path)
		assert.Equal(t, "Bearer anon", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "p-1", body["patientId"])
		assert.Equal(t, "t-1", body["tenantId"])
		ctx := body["context"].(map[string]interface{})
		assert.Equal(t, true, ctx["historyOfFalls"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"score":55,"riskLevel":"high"},"metadata":{"model":"m-1","responseTimeMs":812}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "anon"}, nil)
	res, err := c.InvokeSkill(context.Background(), "fall-risk", "t-1", "p-1", map[string]interface{}{"history_of_falls": true})
	require.NoError(t, err)
	assert.Equal(t, "m-1", res.Model)
	assert.Equal(t, int64(812), res.ResponseTimeMs)
	assert.JSONEq(t, `{"score":55,"risk_level":"high"}`, string(res.Result))
}

func TestInvokeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"not allowed"}`))
	}))
	defer srv.Close()

	err := NewClient(Config{BaseURL: srv.URL}, nil).Invoke(context.Background(), "send-notification", map[string]string{"to": "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestInvokeSkillEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":null,"metadata":{}}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}, nil).InvokeSkill(context.Background(), "care-plan", "t", "p", nil)
	assert.Error(t, err)
}
