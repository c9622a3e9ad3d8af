package genai

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// GenAIService talks to the external generation backend: it submits a draft
// job for a vendor's product URL and validates the signed callback the
// backend sends when the draft is ready.
type GenAIService struct {
	Client         *http.Client
	APIKey         string
	CallbackSecret string
	BaseURL        string
}

func NewGenAIService() *GenAIService {
	baseURL := os.Getenv("GENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.offergen.dev/v1"
	}

	return &GenAIService{
		Client:         &http.Client{Timeout: 30 * time.Second},
		APIKey:         os.Getenv("GENAI_API_KEY"),
		CallbackSecret: os.Getenv("GENAI_CALLBACK_SECRET"),
		BaseURL:        baseURL,
	}
}

// ErrNotAuthenticated means no credential is available for the backend.
// Expiry and absence are deliberately indistinguishable: both route the user
// to sign in again.
var ErrNotAuthenticated = errors.New("no generation credential available")

// RejectedError is a non-success answer from an authenticated request. The
// request reached the backend; the backend said no.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return "generation request rejected: " + e.Message
}

type DocumentRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type SubmitRequest struct {
	TargetURL string        `json:"target_url"`
	Alias     string        `json:"alias"`
	OfferType string        `json:"offer_type"`
	Documents []DocumentRef `json:"documents,omitempty"`
	Callback  string        `json:"callback_url"`
}

type SubmitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	} `json:"data"`
}

// Submit posts a generation job. Error taxonomy: ErrNotAuthenticated when no
// credential is configured, *RejectedError on a non-success answer, and a
// wrapped transport error otherwise.
func (s *GenAIService) Submit(ctx context.Context, reqBody SubmitRequest) (*SubmitResponse, error) {
	if s.APIKey == "" {
		return nil, ErrNotAuthenticated
	}

	jsonBody, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/offers/generate", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrNotAuthenticated
	}

	bodyBytes, _ := io.ReadAll(resp.Body)

	var apiResp SubmitResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}

	if !apiResp.Success {
		return nil, &RejectedError{Message: apiResp.Message}
	}

	return &apiResp, nil
}

// ValidateSignature checks the HMAC the backend sends with its callback.
// Callback signature: HMAC-SHA256( JSON_BODY, callback_secret ).
func (s *GenAIService) ValidateSignature(incomingSig, jsonBody string) bool {
	h := hmac.New(sha256.New, []byte(s.CallbackSecret))
	h.Write([]byte(jsonBody))
	calculated := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(calculated), []byte(incomingSig))
}
