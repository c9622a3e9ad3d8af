package handlers

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/offerdesk/console-be/internal/models"
	"github.com/offerdesk/console-be/internal/realtime"
	"github.com/offerdesk/console-be/internal/sections"
)

// GormOfferStore is the review.Store backed by the offers table. A section
// save writes exactly one JSON column: full replacement, no merge.
type GormOfferStore struct {
	DB *gorm.DB
}

func (s *GormOfferStore) SaveSection(ctx context.Context, offerID uint, p sections.Payload) error {
	column, ok := models.SectionColumn(string(p.Key()))
	if !ok {
		return fmt.Errorf("unknown section %q", p.Key())
	}

	raw, err := sections.Encode(p)
	if err != nil {
		return err
	}

	updates := map[string]any{column: raw}
	if setup, ok := p.(sections.OfferSetup); ok {
		// alias is denormalized for the dashboard list
		updates["alias"] = setup.Alias
	}

	res := s.DB.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ?", offerID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *GormOfferStore) UpdateStatus(ctx context.Context, offerID uint, status string) error {
	return s.DB.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ?", offerID).
		Update("status", status).Error
}

// HubNotifier turns review outcomes into offer events, fanned out locally
// through the hub and across instances through Redis.
type HubNotifier struct {
	Hub *realtime.Hub
	RDB *redis.Client
}

// Redis carries the event when configured; the subscription relays it into
// every instance's hub, this one included. Direct hub delivery is the
// single-instance fallback only, otherwise local clients would see the
// event twice.
func (n *HubNotifier) publish(event realtime.OfferEvent) {
	if n.RDB != nil {
		realtime.PublishOfferEvent(context.Background(), n.RDB, event)
		return
	}
	if n.Hub != nil {
		n.Hub.SendToOffer(event.OfferID, event)
	}
}

func (n *HubNotifier) SectionSaved(offerID uint, key sections.Key) {
	n.publish(realtime.OfferEvent{
		Type:    "section_saved",
		OfferID: offerID,
		Data:    map[string]any{"section": key, "message": sections.Label(key) + " saved"},
	})
}

func (n *HubNotifier) SectionSaveFailed(offerID uint, key sections.Key, err error) {
	n.publish(realtime.OfferEvent{
		Type:    "save_failed",
		OfferID: offerID,
		Data:    map[string]any{"section": key, "message": "Failed to save " + sections.Label(key) + ": " + err.Error()},
	})
}
