package partner

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// PartnerService is the client for the external partner platform that hosts
// published listings. The four publish steps each map to one call here.
type PartnerService struct {
	Client     *http.Client
	APIKey     string
	PrivateKey string
	SellerID   string
	BaseURL    string
}

func NewPartnerService() *PartnerService {
	baseURL := "https://partner.sandbox.offerdesk.dev/api"
	if os.Getenv("PARTNER_ENV") == "production" {
		baseURL = "https://partner.offerdesk.dev/api"
	}

	return &PartnerService{
		Client:     &http.Client{Timeout: 20 * time.Second},
		APIKey:     os.Getenv("PARTNER_API_KEY"),
		PrivateKey: os.Getenv("PARTNER_PRIVATE_KEY"),
		SellerID:   os.Getenv("PARTNER_SELLER_ID"),
		BaseURL:    baseURL,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *PartnerService) post(ctx context.Context, path string, body any, out any) error {
	jsonBody, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", s.sign(jsonBody))

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("partner platform unreachable: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	var apiResp envelope
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return fmt.Errorf("failed to parse response: %v", err)
	}
	if !apiResp.Success {
		return fmt.Errorf("partner error: %s", apiResp.Message)
	}
	if out != nil && len(apiResp.Data) > 0 {
		if err := json.Unmarshal(apiResp.Data, out); err != nil {
			return fmt.Errorf("failed to parse response data: %v", err)
		}
	}
	return nil
}

// Signature: HMAC-SHA256( request body, private_key ).
func (s *PartnerService) sign(body []byte) string {
	h := hmac.New(sha256.New, []byte(s.PrivateKey))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// SubmissionPayload is the offer content sent to the partner platform.
type SubmissionPayload struct {
	SellerID string         `json:"seller_id"`
	Alias    string         `json:"alias"`
	Offer    map[string]any `json:"offer"`
}

// Validate asks the platform to pre-validate the submission payload.
func (s *PartnerService) Validate(ctx context.Context, p SubmissionPayload) error {
	return s.post(ctx, "/offers/validate", p, nil)
}

// Send uploads the offer content for staging.
func (s *PartnerService) Send(ctx context.Context, p SubmissionPayload) error {
	return s.post(ctx, "/offers/stage", p, nil)
}

type createResult struct {
	PartnerCenterID string `json:"partner_center_id"`
}

// Create creates the listing record on the platform and returns its ID.
func (s *PartnerService) Create(ctx context.Context, p SubmissionPayload) (string, error) {
	var out createResult
	if err := s.post(ctx, "/offers", p, &out); err != nil {
		return "", err
	}
	return out.PartnerCenterID, nil
}

// Finalize completes the submission for the given platform listing ID.
func (s *PartnerService) Finalize(ctx context.Context, partnerCenterID string) error {
	return s.post(ctx, "/offers/"+partnerCenterID+"/complete", map[string]string{
		"seller_id": s.SellerID,
	}, nil)
}
