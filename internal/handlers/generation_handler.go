package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/offerdesk/console-be/internal/generation"
	"github.com/offerdesk/console-be/internal/models"
	"github.com/offerdesk/console-be/internal/realtime"
	"github.com/offerdesk/console-be/internal/sections"
	"github.com/offerdesk/console-be/internal/services/genai"
	"github.com/offerdesk/console-be/internal/utils"
)

type GenerationHandler struct {
	DB            *gorm.DB
	Service       *genai.GenAIService
	Hub           *realtime.Hub
	RDB           *redis.Client
	IDEncryptKey  string
	PublicBaseURL string

	mu    sync.Mutex
	flows map[uuid.UUID]*generation.Flow
}

func NewGenerationHandler(db *gorm.DB, svc *genai.GenAIService, hub *realtime.Hub, rdb *redis.Client, idEncryptKey, publicBaseURL string) *GenerationHandler {
	return &GenerationHandler{
		DB:            db,
		Service:       svc,
		Hub:           hub,
		RDB:           rdb,
		IDEncryptKey:  idEncryptKey,
		PublicBaseURL: publicBaseURL,
		flows:         make(map[uuid.UUID]*generation.Flow),
	}
}

type SubmitGenerationReq struct {
	TargetURL string              `json:"target_url"`
	Alias     string              `json:"alias"`
	OfferType string              `json:"offer_type"`
	Documents []genai.DocumentRef `json:"documents"`
}

// Submit validates the form, submits the generation job and creates the
// draft offer record the review page will open. Validation failures never
// reach the network.
func (h *GenerationHandler) Submit(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return err
	}

	var req SubmitGenerationReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid body",
		})
	}

	sub := generation.Submission{
		TargetURL: req.TargetURL,
		Alias:     req.Alias,
		OfferType: generation.OfferType(req.OfferType),
		Documents: req.Documents,
	}

	if errs := sub.Validate(); errs != nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success": false,
			"message": "Validation error",
			"errors":  errs,
		})
	}

	docsJSON, _ := json.Marshal(req.Documents)
	job := models.GenerationJob{
		OwnerID:   userID,
		TargetURL: strings.TrimSpace(req.TargetURL),
		Alias:     strings.TrimSpace(req.Alias),
		OfferType: req.OfferType,
		Documents: datatypes.JSON(docsJSON),
		Status:    models.GenerationSubmitting,
	}
	if err := h.DB.Create(&job).Error; err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create generation job",
		})
	}

	flow := generation.NewFlow(h.Service, 0)
	h.trackFlow(job.ID, flow)

	callbackURL := strings.TrimRight(h.PublicBaseURL, "/") + "/generation/callback"
	result, _, err := flow.Submit(c.Context(), sub, callbackURL)
	if err != nil {
		h.dropFlow(job.ID)
		h.DB.Model(&job).Updates(map[string]any{
			"status": models.GenerationFailed,
			"error":  err.Error(),
		})

		if errors.Is(err, genai.ErrNotAuthenticated) {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Not authorized for generation, please sign in again",
			})
		}
		var rejected *genai.RejectedError
		if errors.As(err, &rejected) {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"success": false,
				"message": rejected.Message,
			})
		}
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": "Generation service unreachable, please retry",
		})
	}

	setupJSON, _ := sections.Encode(sections.OfferSetup{Alias: job.Alias})
	offer := models.Offer{
		OwnerID:    userID,
		Alias:      job.Alias,
		Status:     models.OfferStatusGenerating,
		OfferSetup: setupJSON,
	}
	if err := h.DB.Create(&offer).Error; err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create offer",
		})
	}

	h.DB.Model(&job).Updates(map[string]any{
		"remote_job_id": result.JobID,
		"status":        models.GenerationRunning,
		"offer_id":      offer.ID,
	})

	encID, _ := utils.EncryptID(offer.ID, h.IDEncryptKey)
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Generation started",
		"data": fiber.Map{
			"job_id":   job.ID,
			"offer_id": encID,
			"status":   offer.Status,
		},
	})
}

// Status reports the job state plus the cosmetic progress number. The real
// completion signal is the callback, never this percentage.
func (h *GenerationHandler) Status(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return err
	}

	jobID, err := uuid.Parse(c.Params("job"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid job ID")
	}

	var job models.GenerationJob
	if err := h.DB.First(&job, "id = ? AND owner_id = ?", jobID, userID).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, "Job not found")
	}

	progress := 0
	switch job.Status {
	case models.GenerationSucceeded:
		progress = 100
	case models.GenerationSubmitting, models.GenerationRunning:
		h.mu.Lock()
		flow, ok := h.flows[job.ID]
		h.mu.Unlock()
		if ok {
			progress = flow.Progress()
		} else {
			progress = 1
		}
	}

	resp := fiber.Map{
		"job_id":   job.ID,
		"status":   job.Status,
		"progress": progress,
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	if job.OfferID != nil {
		encID, _ := utils.EncryptID(*job.OfferID, h.IDEncryptKey)
		resp["offer_id"] = encID
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    resp,
	})
}

type generationCallback struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"` // succeeded | failed
	Error  string `json:"error"`
	Offer  struct {
		OfferSetup          json.RawMessage `json:"offerSetup"`
		Properties          json.RawMessage `json:"properties"`
		OfferListing        json.RawMessage `json:"offerListing"`
		Plans               json.RawMessage `json:"plans"`
		TechnicalConfig     json.RawMessage `json:"technicalConfig"`
		PreviewAudience     json.RawMessage `json:"previewAudience"`
		ResellCSP           json.RawMessage `json:"resellCSP"`
		SupplementalContent json.RawMessage `json:"supplementalContent"`
	} `json:"offer"`
}

// Callback receives the generation backend's signed result and fills the
// offer's sections. Runs unauthenticated: the HMAC signature is the
// credential.
func (h *GenerationHandler) Callback(c *fiber.Ctx) error {
	signature := c.Get("X-Callback-Signature")
	body := c.Body()

	if !h.Service.ValidateSignature(signature, string(body)) {
		log.Printf("Generation callback with bad signature rejected")
		return fiber.NewError(fiber.StatusUnauthorized, "invalid signature")
	}

	var cb generationCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	var job models.GenerationJob
	if err := h.DB.First(&job, "remote_job_id = ?", cb.JobID).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, "unknown job")
	}

	h.dropFlow(job.ID)

	if cb.Status != "succeeded" {
		h.DB.Model(&job).Updates(map[string]any{
			"status": models.GenerationFailed,
			"error":  cb.Error,
		})
		if job.OfferID != nil {
			h.DB.Model(&models.Offer{}).Where("id = ?", *job.OfferID).
				Update("status", models.OfferStatusFailed)
			h.notify(*job.OfferID, "status_changed", fiber.Map{"status": models.OfferStatusFailed})
		}
		return c.JSON(fiber.Map{"success": true})
	}

	if job.OfferID == nil {
		return fiber.NewError(fiber.StatusConflict, "job has no offer")
	}

	updates := map[string]any{"status": models.OfferStatusReadyToReview}
	generated := map[sections.Key]json.RawMessage{
		sections.KeyOfferSetup:          cb.Offer.OfferSetup,
		sections.KeyProperties:          cb.Offer.Properties,
		sections.KeyOfferListing:        cb.Offer.OfferListing,
		sections.KeyPlans:               cb.Offer.Plans,
		sections.KeyTechnicalConfig:     cb.Offer.TechnicalConfig,
		sections.KeyPreviewAudience:     cb.Offer.PreviewAudience,
		sections.KeyResellCSP:           cb.Offer.ResellCSP,
		sections.KeySupplementalContent: cb.Offer.SupplementalContent,
	}
	for key, raw := range generated {
		if len(raw) == 0 {
			continue
		}
		// re-encode through the registry so malformed backend output
		// degrades to an empty section instead of poisoning the column
		p, _ := sections.Decode(key, datatypes.JSON(raw))
		enc, err := sections.Encode(p)
		if err != nil {
			continue
		}
		column, _ := models.SectionColumn(string(key))
		updates[column] = enc
	}

	if err := h.DB.Model(&models.Offer{}).Where("id = ?", *job.OfferID).
		Updates(updates).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to store generated offer")
	}

	h.DB.Model(&job).Update("status", models.GenerationSucceeded)
	h.notify(*job.OfferID, "status_changed", fiber.Map{"status": models.OfferStatusReadyToReview})

	return c.JSON(fiber.Map{"success": true})
}

func (h *GenerationHandler) trackFlow(jobID uuid.UUID, f *generation.Flow) {
	h.mu.Lock()
	h.flows[jobID] = f
	h.mu.Unlock()
}

// dropFlow forgets a job's flow once the job is terminal; from then on the
// job row carries the outcome and Status no longer needs live progress.
func (h *GenerationHandler) dropFlow(jobID uuid.UUID) {
	h.mu.Lock()
	delete(h.flows, jobID)
	h.mu.Unlock()
}

// notify fans the event out through Redis when configured (the subscription
// delivers it to the local hub too), or straight to the hub otherwise.
func (h *GenerationHandler) notify(offerID uint, eventType string, data fiber.Map) {
	event := realtime.OfferEvent{Type: eventType, OfferID: offerID, Data: data}
	if h.RDB != nil {
		realtime.PublishOfferEvent(context.Background(), h.RDB, event)
		return
	}
	if h.Hub != nil {
		h.Hub.SendToOffer(offerID, event)
	}
}
