package clay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit(t *testing.T) {
	var got LookupRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "clay-key", r.Header.Get("x-clay-webhook-auth"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := NewClient("clay-key", srv.URL).Submit(context.Background(), LookupRequest{
		RequestID:   "req-1",
		CompanyID:   "c1",
		CompanyName: "Acme",
		Domain:      "acme.com",
		CallbackURL: "https://api.example.com/v1/webhooks/clay",
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "acme.com", got.Domain)
}

func TestSubmit_Errors(t *testing.T) {
	err := NewClient("k", "").Submit(context.Background(), LookupRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook url")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err = NewClient("k", srv.URL).Submit(context.Background(), LookupRequest{CompanyID: "c1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
}

func TestSignVerify(t *testing.T) {
	body := []byte(`{"company_id":"c1"}`)
	sig := Sign("secret", body)

	assert.True(t, Verify("secret", body, sig))
	assert.True(t, Verify("secret", body, "sha256="+sig))
	assert.False(t, Verify("other", body, sig))
	assert.False(t, Verify("secret", []byte(`{"company_id":"c2"}`), sig))
	assert.False(t, Verify("secret", body, "not-hex"))
	assert.False(t, Verify("", body, sig))
}

func TestParseCallback(t *testing.T) {
	cb, err := ParseCallback([]byte(`{"request_id":"r1","company_id":"c1","owner_name":" Jane Doe ","employee_count":12,"revenue":0}`))
	require.NoError(t, err)

	fields := cb.Fields()
	assert.Equal(t, "Jane Doe", fields["owner_name"])
	assert.Equal(t, float64(12), fields["employee_count"])
	_, hasRevenue := fields["revenue"]
	assert.False(t, hasRevenue)
	_, hasEmail := fields["owner_email"]
	assert.False(t, hasEmail)

	_, err = ParseCallback([]byte(`{"owner_name":"x"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CompanyID")

	_, err = ParseCallback([]byte(`{"company_id":"c1","employee_count":-3}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EmployeeCount")

	_, err = ParseCallback([]byte(`not json`))
	assert.Error(t, err)
}
