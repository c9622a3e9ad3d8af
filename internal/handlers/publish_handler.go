package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/offerdesk/console-be/internal/models"
	"github.com/offerdesk/console-be/internal/publish"
	"github.com/offerdesk/console-be/internal/readiness"
	"github.com/offerdesk/console-be/internal/realtime"
	"github.com/offerdesk/console-be/internal/sections"
	"github.com/offerdesk/console-be/internal/services/partner"
	"github.com/offerdesk/console-be/internal/utils"
)

type PublishHandler struct {
	DB           *gorm.DB
	Partner      *partner.PartnerService
	Offers       *OfferHandler
	Hub          *realtime.Hub
	RDB          *redis.Client
	IDEncryptKey string

	mu        sync.Mutex
	pipelines map[uint]*publish.Pipeline
	starting  map[uint]bool
}

func NewPublishHandler(db *gorm.DB, svc *partner.PartnerService, offers *OfferHandler, hub *realtime.Hub, rdb *redis.Client, idEncryptKey string) *PublishHandler {
	return &PublishHandler{
		DB:           db,
		Partner:      svc,
		Offers:       offers,
		Hub:          hub,
		RDB:          rdb,
		IDEncryptKey: idEncryptKey,
		pipelines:    make(map[uint]*publish.Pipeline),
		starting:     make(map[uint]bool),
	}
}

// acquire reserves the publish slot for an offer. It fails while another
// request is between acquire and install, or while a pipeline is still
// running, so at most one run can ever be started per offer. Every
// successful acquire is paired with exactly one install or release.
func (h *PublishHandler) acquire(offerID uint) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.starting[offerID] {
		return false
	}
	if p, ok := h.pipelines[offerID]; ok && p.Snapshot().Running {
		return false
	}
	h.starting[offerID] = true
	return true
}

func (h *PublishHandler) install(offerID uint, p *publish.Pipeline) {
	h.mu.Lock()
	h.pipelines[offerID] = p
	delete(h.starting, offerID)
	h.mu.Unlock()
}

func (h *PublishHandler) release(offerID uint) {
	h.mu.Lock()
	delete(h.starting, offerID)
	h.mu.Unlock()
}

func (h *PublishHandler) pipelineFor(offerID uint) (*publish.Pipeline, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pipelines[offerID]
	return p, ok
}

// submissionPayload renders the offer document the way the partner platform
// wants it: one object with all eight sections.
func submissionPayload(offer *models.Offer, doc sections.Document, sellerID string) partner.SubmissionPayload {
	content := map[string]any{}
	for _, key := range sections.Keys() {
		content[string(key)] = doc.Payload(key)
	}
	return partner.SubmissionPayload{
		SellerID: sellerID,
		Alias:    offer.Alias,
		Offer:    content,
	}
}

func (h *PublishHandler) stepFuncs(offer *models.Offer, run *models.PublishRun, payload partner.SubmissionPayload) map[publish.StepName]publish.StepFunc {
	return map[publish.StepName]publish.StepFunc{
		publish.StepValidate: func(ctx context.Context) error {
			return h.Partner.Validate(ctx, payload)
		},
		publish.StepSend: func(ctx context.Context) error {
			return h.Partner.Send(ctx, payload)
		},
		publish.StepCreate: func(ctx context.Context) error {
			id, err := h.Partner.Create(ctx, payload)
			if err != nil {
				return err
			}
			run.PartnerCenterID = id
			return h.DB.Model(run).Update("partner_center_id", id).Error
		},
		publish.StepComplete: func(ctx context.Context) error {
			if err := h.Partner.Finalize(ctx, run.PartnerCenterID); err != nil {
				return err
			}
			return h.DB.Model(&models.Offer{}).Where("id = ?", offer.ID).
				Updates(map[string]any{
					"status":            models.OfferStatusSubmitted,
					"partner_center_id": run.PartnerCenterID,
				}).Error
		},
	}
}

// onChange persists every step transition and pushes it to watchers.
func (h *PublishHandler) onChange(offerID uint, runID any) func(publish.Snapshot) {
	return func(snap publish.Snapshot) {
		stepsJSON, _ := json.Marshal(snap.Steps)

		status := models.PublishRunRunning
		if snap.Failed != nil {
			status = models.PublishRunFailed
		} else if snap.Complete {
			status = models.PublishRunCompleted
		}

		if err := h.DB.Model(&models.PublishRun{}).Where("id = ?", runID).
			Updates(map[string]any{
				"steps":  datatypes.JSON(stepsJSON),
				"status": status,
			}).Error; err != nil {
			log.Printf("Failed to persist publish run %v: %v", runID, err)
		}

		event := realtime.OfferEvent{
			Type:    "publish_progress",
			OfferID: offerID,
			Data: map[string]any{
				"steps":    snap.Steps,
				"percent":  snap.Percent,
				"complete": snap.Complete,
			},
		}
		if h.RDB != nil {
			realtime.PublishOfferEvent(context.Background(), h.RDB, event)
		} else if h.Hub != nil {
			h.Hub.SendToOffer(offerID, event)
		}
	}
}

// Start gates on readiness, creates a run and walks the pipeline in the
// background. Publish must not be invocable below 100% required readiness.
func (h *PublishHandler) Start(c *fiber.Ctx) error {
	offer, err := h.Offers.findOwnedOffer(c)
	if err != nil {
		return err
	}

	doc := DecodeDocument(offer)
	report := readiness.Evaluate(doc)
	if !report.PublishReady() {
		return c.Status(http.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Offer is not ready to publish",
			"data":    report,
		})
	}

	if !h.acquire(offer.ID) {
		return c.Status(http.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Publishing is already in progress",
		})
	}

	run := models.PublishRun{OfferID: offer.ID, Status: models.PublishRunRunning}
	if err := h.DB.Create(&run).Error; err != nil {
		h.release(offer.ID)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create publish run",
		})
	}

	payload := submissionPayload(offer, doc, h.Partner.SellerID)
	pipeline := publish.New(h.stepFuncs(offer, &run, payload), h.onChange(offer.ID, run.ID))
	h.install(offer.ID, pipeline)

	go func() {
		if err := pipeline.Run(context.Background()); err != nil {
			log.Printf("Publish pipeline for offer %d failed: %v", offer.ID, err)
		}
	}()

	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"message": "Publishing started",
		"data": fiber.Map{
			"run_id": run.ID,
			"steps":  pipeline.Snapshot().Steps,
		},
	})
}

// Status reports the latest run. Percent is doneCount/totalSteps, nothing
// else.
func (h *PublishHandler) Status(c *fiber.Ctx) error {
	offer, err := h.Offers.findOwnedOffer(c)
	if err != nil {
		return err
	}

	if pipeline, ok := h.pipelineFor(offer.ID); ok {
		snap := pipeline.Snapshot()
		resp := fiber.Map{
			"steps":    snap.Steps,
			"percent":  snap.Percent,
			"complete": snap.Complete,
			"running":  snap.Running,
		}
		if snap.Complete {
			encID, _ := utils.EncryptID(offer.ID, h.IDEncryptKey)
			resp["redirect"] = "/offers/" + encID + "/created"
		}
		if snap.Failed != nil {
			resp["failed_step"] = *snap.Failed
		}
		return c.JSON(fiber.Map{"success": true, "data": resp})
	}

	var run models.PublishRun
	if err := h.DB.Where("offer_id = ?", offer.ID).
		Order("created_at DESC").First(&run).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, "No publish run for this offer")
	}

	var steps []publish.StepState
	_ = json.Unmarshal(run.Steps, &steps)

	done := 0
	for _, s := range steps {
		if s.Status == publish.StatusDone {
			done++
		}
	}
	percent := 0
	if len(steps) > 0 {
		percent = done * 100 / len(steps)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"steps":    steps,
			"percent":  percent,
			"complete": run.Status == models.PublishRunCompleted,
			"running":  run.Status == models.PublishRunRunning,
		},
	})
}

// Retry resumes the latest failed run at its failed step; completed steps
// are not re-run.
func (h *PublishHandler) Retry(c *fiber.Ctx) error {
	offer, err := h.Offers.findOwnedOffer(c)
	if err != nil {
		return err
	}

	if !h.acquire(offer.ID) {
		return c.Status(http.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Publishing is already in progress",
		})
	}

	pipeline, ok := h.pipelineFor(offer.ID)
	if !ok {
		// rebuild from the persisted run after a restart
		var run models.PublishRun
		if err := h.DB.Where("offer_id = ? AND status = ?", offer.ID, models.PublishRunFailed).
			Order("created_at DESC").First(&run).Error; err != nil {
			h.release(offer.ID)
			return fiber.NewError(fiber.StatusNotFound, "No failed publish run to retry")
		}

		var steps []publish.StepState
		_ = json.Unmarshal(run.Steps, &steps)

		doc := DecodeDocument(offer)
		payload := submissionPayload(offer, doc, h.Partner.SellerID)
		pipeline = publish.Restore(steps, h.stepFuncs(offer, &run, payload), h.onChange(offer.ID, run.ID))
	}

	if pipeline.Snapshot().Failed == nil {
		h.release(offer.ID)
		return c.Status(http.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "No failed step to retry",
		})
	}
	h.install(offer.ID, pipeline)

	go func() {
		if err := pipeline.Retry(context.Background()); err != nil {
			log.Printf("Publish retry for offer %d failed: %v", offer.ID, err)
		}
	}()

	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"message": "Retrying from failed step",
	})
}
