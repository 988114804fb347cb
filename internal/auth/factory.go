package auth

import (
	"log"

	"termshare/internal/utils"
)

const (
	EnvRedisHost     = "REDIS_HOST"
	EnvRedisPort     = "REDIS_PORT"
	EnvRedisUser     = "REDIS_USERNAME"
	EnvRedisPassword = "REDIS_PASSWORD"
)

// NewTicketStore picks the ticket backend: Redis when REDIS_HOST is set and
// reachable, otherwise the in-memory store.
func NewTicketStore(token *SessionToken) TicketStore {
	redisHost := utils.GetEnv(EnvRedisHost, "")

	if redisHost != "" {
		redisPort := utils.GetEnv(EnvRedisPort, "6379")
		redisUser := utils.GetEnv(EnvRedisUser, "")
		redisPassword := utils.GetEnv(EnvRedisPassword, "")

		store, err := NewRedisTicketStore(redisHost, redisPort, redisUser, redisPassword, token)
		if err != nil {
			log.Printf("⚠️  Redis connection failed: %v", err)
			log.Println("💾 Falling back to in-memory ticket store")
			return NewMemoryTicketStore(token)
		}
		log.Printf("💾 Using Redis ticket store: %s:%s", redisHost, redisPort)
		return store
	}

	return NewMemoryTicketStore(token)
}
