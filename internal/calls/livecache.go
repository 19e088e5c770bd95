package calls

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	liveCallKey      = "voice:live"
	callStateKeyPfx  = "voice:call:"
	callStateTTL     = 24 * time.Hour
	cachedTurnsLimit = 50
)

// LiveSnapshot is the Redis view of the in-progress call. It feeds the
// websocket live feed's connect snapshot without a database round trip; the
// session store stays authoritative.
type LiveSnapshot struct {
	CallID      string    `json:"call_id"`
	FromNumber  string    `json:"from_number"`
	ToNumber    string    `json:"to_number"`
	Status      string    `json:"status"`
	Booked      bool      `json:"booked"`
	StartedAt   time.Time `json:"started_at"`
	LastTurnAt  time.Time `json:"last_turn_at"`
	RecentTurns []Turn    `json:"recent_turns"`
}

// LiveCache mirrors the current live call in Redis.
type LiveCache struct {
	rdb *redis.Client
}

// NewLiveCache creates a live-call cache backed by Redis.
func NewLiveCache(rdb *redis.Client) *LiveCache {
	return &LiveCache{rdb: rdb}
}

func callStateKey(callID string) string {
	return callStateKeyPfx + callID
}

// TrackCallStart records a new live call and points the live key at it.
func (c *LiveCache) TrackCallStart(ctx context.Context, sess *Session) error {
	if sess == nil || sess.CallID == "" {
		return fmt.Errorf("calls: live cache: session with call id required")
	}
	snap := LiveSnapshot{
		CallID:     sess.CallID,
		FromNumber: sess.FromNumber,
		ToNumber:   sess.ToNumber,
		Status:     sess.Status,
		Booked:     sess.AppointmentBooked,
		StartedAt:  sess.StartTime,
		LastTurnAt: sess.StartTime,
	}
	if err := c.save(ctx, &snap); err != nil {
		return err
	}
	return c.rdb.Set(ctx, liveCallKey, sess.CallID, callStateTTL).Err()
}

// TrackTurn appends a turn to the cached snapshot, keeping a bounded tail.
func (c *LiveCache) TrackTurn(ctx context.Context, callID string, turn Turn) error {
	snap, err := c.get(ctx, callID)
	if err != nil {
		return err
	}
	if snap == nil {
		// Cache miss (restart, eviction): track what we know.
		snap = &LiveSnapshot{CallID: callID, Status: StatusActive, StartedAt: turn.Timestamp}
	}
	snap.RecentTurns = append(snap.RecentTurns, turn)
	if len(snap.RecentTurns) > cachedTurnsLimit {
		snap.RecentTurns = snap.RecentTurns[len(snap.RecentTurns)-cachedTurnsLimit:]
	}
	snap.LastTurnAt = turn.Timestamp
	return c.save(ctx, snap)
}

// TrackBooked flags the cached snapshot as booked.
func (c *LiveCache) TrackBooked(ctx context.Context, callID string) error {
	snap, err := c.get(ctx, callID)
	if err != nil || snap == nil {
		return err
	}
	snap.Booked = true
	return c.save(ctx, snap)
}

// TrackCallEnd records the terminal status and clears the live pointer if it
// still points at this call.
func (c *LiveCache) TrackCallEnd(ctx context.Context, callID, status string) error {
	snap, err := c.get(ctx, callID)
	if err != nil {
		return err
	}
	if snap != nil {
		snap.Status = status
		if err := c.save(ctx, snap); err != nil {
			return err
		}
	}
	current, err := c.rdb.Get(ctx, liveCallKey).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("calls: live cache: get live pointer: %w", err)
	}
	if current == callID {
		return c.rdb.Del(ctx, liveCallKey).Err()
	}
	return nil
}

// Live returns the snapshot of the current live call, or nil when no call is
// live (or the cache has no record of it).
func (c *LiveCache) Live(ctx context.Context) (*LiveSnapshot, error) {
	callID, err := c.rdb.Get(ctx, liveCallKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("calls: live cache: get live pointer: %w", err)
	}
	return c.get(ctx, callID)
}

func (c *LiveCache) save(ctx context.Context, snap *LiveSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("calls: live cache: marshal: %w", err)
	}
	return c.rdb.Set(ctx, callStateKey(snap.CallID), data, callStateTTL).Err()
}

func (c *LiveCache) get(ctx context.Context, callID string) (*LiveSnapshot, error) {
	data, err := c.rdb.Get(ctx, callStateKey(callID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("calls: live cache: get: %w", err)
	}
	var snap LiveSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("calls: live cache: unmarshal: %w", err)
	}
	return &snap, nil
}
