package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/offerdesk/console-be/internal/models"
	"github.com/offerdesk/console-be/internal/review"
	"github.com/offerdesk/console-be/internal/sections"
	"github.com/offerdesk/console-be/internal/utils"
)

type OfferHandler struct {
	DB           *gorm.DB
	Sessions     *review.Manager
	IDEncryptKey string
}

func NewOfferHandler(db *gorm.DB, sessions *review.Manager, idEncryptKey string) *OfferHandler {
	return &OfferHandler{DB: db, Sessions: sessions, IDEncryptKey: idEncryptKey}
}

func getAuth(c *fiber.Ctx) (uuid.UUID, error) {
	rawID, ok := c.Locals("userId").(string)
	if !ok || rawID == "" {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	uID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "invalid user id")
	}
	return uID, nil
}

// findOwnedOffer resolves an encrypted offer ID to the caller's offer row.
func (h *OfferHandler) findOwnedOffer(c *fiber.Ctx) (*models.Offer, error) {
	userID, err := getAuth(c)
	if err != nil {
		return nil, err
	}

	encID := c.Params("id")
	rawID, err := utils.DecryptID(encID, h.IDEncryptKey)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid offer ID")
	}

	var offer models.Offer
	if err := h.DB.First(&offer, "id = ? AND owner_id = ?", rawID, userID).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "Offer not found")
	}
	return &offer, nil
}

// DecodeDocument builds the in-memory document from the stored section
// columns. Missing or malformed columns decode to empty sections.
func DecodeDocument(offer *models.Offer) sections.Document {
	var doc sections.Document
	for _, key := range sections.Keys() {
		raw := rawSection(offer, key)
		p, _ := sections.Decode(key, raw)
		doc.Apply(p)
	}
	return doc
}

func rawSection(offer *models.Offer, key sections.Key) []byte {
	switch key {
	case sections.KeyOfferSetup:
		return offer.OfferSetup
	case sections.KeyProperties:
		return offer.Properties
	case sections.KeyOfferListing:
		return offer.OfferListing
	case sections.KeyPlans:
		return offer.Plans
	case sections.KeyTechnicalConfig:
		return offer.TechnicalConfig
	case sections.KeyPreviewAudience:
		return offer.PreviewAudience
	case sections.KeyResellCSP:
		return offer.ResellCSP
	case sections.KeySupplementalContent:
		return offer.SupplementalContent
	}
	return nil
}

func (h *OfferHandler) ListMine(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return err
	}

	var offers []models.Offer
	if err := h.DB.
		Where("owner_id = ?", userID).
		Order("created_at DESC").
		Find(&offers).Error; err != nil {

		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to load offers",
		})
	}

	out := make([]fiber.Map, 0, len(offers))
	for _, o := range offers {
		enc, err := utils.EncryptID(o.ID, h.IDEncryptKey)
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to encode offer ID",
			})
		}
		out = append(out, fiber.Map{
			"id":           enc,
			"alias":        o.Alias,
			"status":       o.Status,
			"status_label": models.StatusLabel(o.Status),
			"created_at":   o.CreatedAt,
			"updated_at":   o.UpdatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    out,
	})
}

// GetOne opens (or refreshes) the review session for an offer and returns
// the full section views plus readiness. A missing offer is terminal for
// the view: the client redirects to the dashboard.
func (h *OfferHandler) GetOne(c *fiber.Ctx) error {
	offer, err := h.findOwnedOffer(c)
	if err != nil {
		return err
	}

	doc := DecodeDocument(offer)
	sess := h.Sessions.Open(offer.ID, string(offer.Status), doc, offer.UpdatedAt)

	views := fiber.Map{}
	for _, key := range sections.Keys() {
		views[string(key)] = fiber.Map{
			"label":   sections.Label(key),
			"view":    sections.View(key, doc.Payload(key)),
			"editing": sess.IsEditing(key),
		}
	}

	state, active, editing := sess.State()

	encID, _ := utils.EncryptID(offer.ID, h.IDEncryptKey)
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":                encID,
			"alias":             offer.Alias,
			"status":            offer.Status,
			"status_label":      models.StatusLabel(offer.Status),
			"partner_center_id": offer.PartnerCenterID,
			"sections":          views,
			"review_state": fiber.Map{
				"state":   state,
				"active":  active,
				"editing": editing,
			},
			"readiness":  sess.Readiness(),
			"created_at": offer.CreatedAt,
			"updated_at": offer.UpdatedAt,
		},
	})
}

func (h *OfferHandler) Delete(c *fiber.Ctx) error {
	offer, err := h.findOwnedOffer(c)
	if err != nil {
		return err
	}

	if err := h.DB.Delete(offer).Error; err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to delete offer",
		})
	}

	h.Sessions.Close(offer.ID)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Offer deleted",
	})
}
