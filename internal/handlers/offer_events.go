package handlers

import (
	"log"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/offerdesk/console-be/internal/models"
	"github.com/offerdesk/console-be/internal/realtime"
	"github.com/offerdesk/console-be/internal/utils"
)

// OfferEventsHandler upgrades a console tab to a websocket that watches one
// open offer for external changes (section saves elsewhere, generation
// completion, publish progress). The client re-fetches on events instead of
// trusting pushed content over its in-flight local edits.
type OfferEventsHandler struct {
	DB           *gorm.DB
	Hub          *realtime.Hub
	JWTSecret    string
	IDEncryptKey string
}

func NewOfferEventsHandler(db *gorm.DB, hub *realtime.Hub, jwtSecret, idEncryptKey string) *OfferEventsHandler {
	return &OfferEventsHandler{DB: db, Hub: hub, JWTSecret: jwtSecret, IDEncryptKey: idEncryptKey}
}

// WebSocketHandler authenticates via query params (the upgrade request
// carries no cookies from cross-origin consoles).
func (h *OfferEventsHandler) WebSocketHandler(c *websocket.Conn) {
	tokenStr := c.Query("token")
	encOfferID := c.Query("offer")
	if tokenStr == "" || encOfferID == "" {
		log.Println("WebSocket: token/offer parameter missing")
		c.Close()
		return
	}

	claims, err := utils.ParseJWT(h.JWTSecret, tokenStr)
	if err != nil {
		log.Println("WebSocket: invalid token:", err)
		c.Close()
		return
	}

	userUUID, err := uuid.Parse(claims.UserID)
	if err != nil {
		log.Println("WebSocket: invalid user id in token")
		c.Close()
		return
	}

	offerID, err := utils.DecryptID(encOfferID, h.IDEncryptKey)
	if err != nil {
		log.Println("WebSocket: invalid offer id:", err)
		c.Close()
		return
	}

	var offer models.Offer
	if err := h.DB.First(&offer, "id = ? AND owner_id = ?", offerID, userUUID).Error; err != nil {
		log.Printf("WebSocket: offer %d not accessible for user %s", offerID, userUUID)
		c.Close()
		return
	}

	log.Printf("WebSocket: user %s watching offer %d\n", userUUID, offerID)

	client := &realtime.Client{
		ID:      uuid.New().String(),
		UserID:  userUUID,
		OfferID: offerID,
		Conn:    realtime.NewWebSocketConn(c),
		Send:    make(chan []byte, 256),
	}

	h.Hub.RegisterClient(client)
	defer func() {
		h.Hub.UnregisterClient(client)
		log.Printf("WebSocket: user %s stopped watching offer %d\n", userUUID, offerID)
	}()

	go func() {
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Println("WebSocket write error:", err)
				return
			}
		}
	}()

	for {
		var payload map[string]interface{}
		if err := c.ReadJSON(&payload); err != nil {
			break
		}
		if msgType, ok := payload["type"].(string); ok && msgType == "pong" {
			continue
		}
	}
}
