package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/offerdesk/console-be/internal/review"
	"github.com/offerdesk/console-be/internal/sections"
)

// ReviewHandler exposes the review state machine over HTTP. Every endpoint
// operates on the session opened by GET /offers/:id; the session, not the
// client, is the source of truth for which section is editing.
type ReviewHandler struct {
	Offers   *OfferHandler
	Sessions *review.Manager
}

func NewReviewHandler(offers *OfferHandler, sessions *review.Manager) *ReviewHandler {
	return &ReviewHandler{Offers: offers, Sessions: sessions}
}

// session loads the offer (ownership-checked) and returns its open session,
// creating one if the offer was opened on another instance.
func (h *ReviewHandler) session(c *fiber.Ctx) (*review.Session, error) {
	offer, err := h.Offers.findOwnedOffer(c)
	if err != nil {
		return nil, err
	}
	if sess, ok := h.Sessions.Get(offer.ID); ok {
		return sess, nil
	}
	doc := DecodeDocument(offer)
	return h.Sessions.Open(offer.ID, string(offer.Status), doc, offer.UpdatedAt), nil
}

func sectionParam(c *fiber.Ctx) (sections.Key, error) {
	key := sections.Key(c.Params("section"))
	if !sections.Valid(key) {
		return "", fiber.NewError(fiber.StatusBadRequest, "Unknown section")
	}
	return key, nil
}

func reviewStateJSON(sess *review.Session) fiber.Map {
	state, active, editing := sess.State()
	return fiber.Map{
		"state":   state,
		"active":  active,
		"editing": editing,
	}
}

// Focus marks a section as scrolled into view. Pure view-state tracking.
func (h *ReviewHandler) Focus(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	key, err := sectionParam(c)
	if err != nil {
		return err
	}

	if err := sess.Focus(key); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    reviewStateJSON(sess),
	})
}

// Edit puts a section into edit mode and returns the payload the form seeds
// from. Any other section's pending edit is discarded, not saved.
func (h *ReviewHandler) Edit(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	key, err := sectionParam(c)
	if err != nil {
		return err
	}

	if err := sess.Edit(key); err != nil {
		if errors.Is(err, review.ErrSaveInFlight) {
			return c.Status(http.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": "A save is still in progress, try again in a moment",
			})
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"review_state": reviewStateJSON(sess),
			"payload":      sess.Document().Payload(key),
		},
	})
}

// Save persists the submitted payload as the section's full replacement.
func (h *ReviewHandler) Save(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	key, err := sectionParam(c)
	if err != nil {
		return err
	}

	payload, err := sections.DecodeRequest(key, c.Body())
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid section payload",
		})
	}

	if err := sess.Save(c.Context(), payload); err != nil {
		switch {
		case errors.Is(err, review.ErrNotEditing):
			return c.Status(http.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": "Section is not in edit mode",
			})
		case errors.Is(err, review.ErrSaveInFlight):
			return c.Status(http.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": "A save is already in progress",
			})
		default:
			// remote rejection or transport failure: state intact, retryable
			return c.Status(http.StatusBadGateway).JSON(fiber.Map{
				"success": false,
				"message": "Failed to save " + sections.Label(key) + ", please retry",
			})
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": sections.Label(key) + " saved",
		"data": fiber.Map{
			"review_state": reviewStateJSON(sess),
			"view":         sections.View(key, sess.Document().Payload(key)),
			"readiness":    sess.Readiness(),
			"status":       sess.Status(),
			"updated_at":   sess.UpdatedAt(),
		},
	})
}

// Cancel discards the in-progress edit. Idempotent; never touches storage.
func (h *ReviewHandler) Cancel(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}

	sess.Cancel()

	return c.JSON(fiber.Map{
		"success": true,
		"data":    reviewStateJSON(sess),
	})
}

// Readiness recomputes the checklist for the current document.
func (h *ReviewHandler) Readiness(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    sess.Readiness(),
	})
}
