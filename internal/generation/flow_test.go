package generation

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offerdesk/console-be/internal/services/genai"
)

func validSubmission() Submission {
	return Submission{
		TargetURL: "https://acme.test",
		Alias:     "acme-saas",
		OfferType: TypeSaaS,
	}
}

func TestValidateAlias(t *testing.T) {
	tests := []struct {
		alias string
		ok    bool
	}{
		{"acme-saas", true},
		{"Acme SaaS 2", true},
		{"abc", true},
		{"ab", false},
		{"", false},
		{"acme_saas", false},
		{"acme.saas", false},
		{"héllo-app", false},
	}

	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			s := validSubmission()
			s.Alias = tt.alias
			errs := s.Validate()
			if tt.ok {
				assert.Nil(t, errs)
			} else {
				assert.Contains(t, errs, "alias")
			}
		})
	}
}

func TestValidateAliasLength(t *testing.T) {
	s := validSubmission()

	s.Alias = "aaa"
	assert.Nil(t, s.Validate())

	long := make([]byte, 50)
	for i := range long {
		long[i] = 'a'
	}
	s.Alias = string(long)
	assert.Nil(t, s.Validate())

	s.Alias = string(long) + "a"
	assert.Contains(t, s.Validate(), "alias")
}

func TestValidateOfferTypes(t *testing.T) {
	for _, disabled := range []OfferType{TypeApp, TypeConsulting, TypeContainer} {
		s := validSubmission()
		s.OfferType = disabled
		errs := s.Validate()
		require.Contains(t, errs, "offer_type")
		assert.Contains(t, errs["offer_type"][0], "not available")
	}

	s := validSubmission()
	s.OfferType = OfferType("vm")
	errs := s.Validate()
	require.Contains(t, errs, "offer_type")
	assert.Contains(t, errs["offer_type"][0], "Unknown")
}

func TestValidateRequiredFields(t *testing.T) {
	errs := Submission{}.Validate()
	assert.Contains(t, errs, "target_url")
	assert.Contains(t, errs, "alias")
	assert.Contains(t, errs, "offer_type")
}

func TestInvalidSubmissionNeverReachesNetwork(t *testing.T) {
	// nil client: any network attempt would panic
	f := NewFlow(nil, 0)

	s := validSubmission()
	s.Alias = "a"
	_, errs, err := f.Submit(context.Background(), s, "https://console.test/cb")

	require.NoError(t, err)
	assert.Contains(t, errs, "alias")
	assert.Equal(t, StateIdle, f.State())
	assert.Equal(t, 0, f.Progress())
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *genai.GenAIService {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &genai.GenAIService{
		Client:  srv.Client(),
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}
}

func TestSubmitSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/offers/generate", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req genai.SubmitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "acme-saas", req.Alias)
		assert.Equal(t, "https://console.test/cb", req.Callback)

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"job_id": "job-42", "status": "running"},
		})
	})

	f := NewFlow(client, 0)
	res, errs, err := f.Submit(context.Background(), validSubmission(), "https://console.test/cb")

	require.NoError(t, err)
	require.Nil(t, errs)
	assert.Equal(t, "job-42", res.JobID)
	assert.Equal(t, "running", res.Status)
	assert.Equal(t, StateSucceeded, f.State())
	assert.Equal(t, 100, f.Progress())

	got, ok := f.Result()
	require.True(t, ok)
	assert.Equal(t, res, got)
}

func TestSubmitRejectedByBackend(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "unsupported site",
		})
	})

	f := NewFlow(client, 0)
	_, errs, err := f.Submit(context.Background(), validSubmission(), "cb")

	require.Nil(t, errs)
	var rejected *genai.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "unsupported site", rejected.Message)
	assert.Equal(t, StateFailed, f.State())
	assert.Equal(t, 0, f.Progress())
	assert.Equal(t, err, f.Err())
}

func TestSubmitUnauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	f := NewFlow(client, 0)
	_, _, err := f.Submit(context.Background(), validSubmission(), "cb")
	assert.ErrorIs(t, err, genai.ErrNotAuthenticated)
	assert.Equal(t, StateFailed, f.State())
}

func TestSubmitWithoutCredential(t *testing.T) {
	f := NewFlow(&genai.GenAIService{Client: http.DefaultClient}, 0)
	_, _, err := f.Submit(context.Background(), validSubmission(), "cb")
	assert.ErrorIs(t, err, genai.ErrNotAuthenticated)
}

func TestProgressTracksElapsedTime(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	f := NewFlow(client, 100*time.Second)
	base := time.Now()
	now := base
	f.now = func() time.Time { return now }

	done := make(chan struct{})
	go func() {
		f.Submit(context.Background(), validSubmission(), "cb")
		close(done)
	}()
	<-started

	now = base.Add(30 * time.Second)
	assert.Equal(t, 30, f.Progress())

	// never reports 100 before the response lands
	now = base.Add(500 * time.Second)
	assert.Equal(t, 99, f.Progress())

	close(release)
	<-done
	assert.Equal(t, 100, f.Progress())
}

func TestSecondSubmitWhileInFlightRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	f := NewFlow(client, 0)
	go f.Submit(context.Background(), validSubmission(), "cb")
	<-started

	_, _, err := f.Submit(context.Background(), validSubmission(), "cb")
	assert.ErrorIs(t, err, ErrSubmitInProgress)
	close(release)
}

func TestResetReturnsTerminalFlowToIdle(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "no"})
	})

	f := NewFlow(client, 0)
	_, _, err := f.Submit(context.Background(), validSubmission(), "cb")
	require.Error(t, err)
	require.Equal(t, StateFailed, f.State())

	f.Reset()
	assert.Equal(t, StateIdle, f.State())
	assert.NoError(t, f.Err())
	_, ok := f.Result()
	assert.False(t, ok)
}

func TestCallbackSignatureValidation(t *testing.T) {
	svc := &genai.GenAIService{CallbackSecret: "topsecret"}
	body := `{"job_id":"job-42","status":"succeeded"}`

	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write([]byte(body))
	valid := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, svc.ValidateSignature(valid, body))
	assert.False(t, svc.ValidateSignature("deadbeef", body))
	assert.False(t, svc.ValidateSignature(valid, body+" "))

	other := &genai.GenAIService{CallbackSecret: "different"}
	assert.False(t, other.ValidateSignature(valid, body))
}

func TestFlowErrorTaxonomyDistinct(t *testing.T) {
	// transport failure is neither a rejection nor an auth error
	client := &genai.GenAIService{
		Client:  &http.Client{Timeout: 50 * time.Millisecond},
		APIKey:  "k",
		BaseURL: "http://127.0.0.1:1",
	}
	f := NewFlow(client, 0)
	_, _, err := f.Submit(context.Background(), validSubmission(), "cb")

	require.Error(t, err)
	assert.NotErrorIs(t, err, genai.ErrNotAuthenticated)
	var rejected *genai.RejectedError
	assert.False(t, errors.As(err, &rejected))
	assert.Equal(t, StateFailed, f.State())
}
