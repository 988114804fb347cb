package auth

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"termshare/internal/constants"
)

const redisTicketPrefix = "termshare:ticket:"

// RedisTicketStore keeps tickets in Redis so a bridge restarted behind the
// same relay honors tickets minted just before the restart. GETDEL makes
// redemption a single atomic check-and-delete; expiry is Redis TTL, so no
// sweep is needed.
type RedisTicketStore struct {
	client *redis.Client
	token  *SessionToken
	ctx    context.Context
	cancel func()
}

func NewRedisTicketStore(host, port, username, password string, token *SessionToken) (*RedisTicketStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Username: username,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithCancel(context.Background())

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		cancel()
		return nil, err
	}

	return &RedisTicketStore{
		client: client,
		token:  token,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func (st *RedisTicketStore) Issue(sessionToken string) (Ticket, error) {
	if !st.token.Verify(sessionToken) {
		return Ticket{}, ErrAuth
	}

	t := Ticket{
		ID:        newTicketID(),
		ExpiresAt: time.Now().Add(constants.TicketTTL),
	}

	key := redisTicketPrefix + t.ID
	if err := st.client.Set(st.ctx, key, "1", constants.TicketTTL).Err(); err != nil {
		log.Printf("Failed to save ticket to Redis: %v", err)
		return Ticket{}, err
	}

	return t, nil
}

func (st *RedisTicketStore) Redeem(ticketID string) bool {
	key := redisTicketPrefix + ticketID
	_, err := st.client.GetDel(st.ctx, key).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		log.Printf("Failed to redeem ticket from Redis: %v", err)
		return false
	}
	return true
}

func (st *RedisTicketStore) Close() {
	st.cancel()
	st.client.Close()
}
