package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RoomIndex marks live room codes in Redis with a TTL. Best-effort: markers
// are ops visibility only (dashboards, debugging a stuck room) and are never
// consulted for correctness, so write errors are ignored. State stays
// volatile by design.
type RoomIndex struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRoomIndex(client *redis.Client, ttl time.Duration) *RoomIndex {
	return &RoomIndex{client: client, ttl: ttl}
}

func (i *RoomIndex) MarkLive(kind, code string) {
	_ = i.client.Set(context.Background(), i.key(kind, code), "1", i.ttl).Err()
}

func (i *RoomIndex) Drop(kind, code string) {
	_ = i.client.Del(context.Background(), i.key(kind, code)).Err()
}

func (i *RoomIndex) key(kind, code string) string {
	return "room:" + kind + ":" + code
}
