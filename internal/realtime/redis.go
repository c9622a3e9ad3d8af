package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// NewRedis creates the Redis client used to fan offer events out across API
// instances.
func NewRedis(addr, password string) *redis.Client {
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	log.Printf("Redis client created (addr: %s)\n", addr)
	return rdb
}

func offerChannel(offerID uint) string {
	return fmt.Sprintf("offer:%d", offerID)
}

// PublishOfferEvent publishes an offer event on its Redis channel so every
// instance's hub can deliver it to local subscribers.
func PublishOfferEvent(ctx context.Context, rdb *redis.Client, event OfferEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling offer event: %v", err)
		return
	}
	if err := rdb.Publish(ctx, offerChannel(event.OfferID), payload).Err(); err != nil {
		log.Printf("Redis publish failed for offer %d: %v", event.OfferID, err)
	}
}

// SubscribeOfferEvents relays Redis offer events into the hub. Runs until
// ctx is cancelled.
func SubscribeOfferEvents(ctx context.Context, rdb *redis.Client, hub *Hub) {
	sub := rdb.PSubscribe(ctx, "offer:*")
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var event OfferEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("Bad offer event payload on %s: %v", msg.Channel, err)
				continue
			}
			hub.SendToOffer(event.OfferID, event)
		}
	}
}
