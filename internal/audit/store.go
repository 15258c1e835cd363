// Package audit keeps the bounded, append-only record of cash-out outcomes.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payoutcore-backend/internal/verification"
	"github.com/angelmondragon/payoutcore-backend/pkg/db/models"
	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
)

// DefaultMaxEntries bounds the ledger when no size is configured.
const DefaultMaxEntries = 1000

// ChannelNone marks an entry where no channel was attempted.
const ChannelNone = "none"

// Entry is one cash-out outcome.
type Entry struct {
	Timestamp     time.Time            `json:"timestamp"`
	CorrelationID string               `json:"correlationId"`
	RequesterID   string               `json:"requesterId"`
	Amount        decimal.Decimal      `json:"amount"`
	Units         int64                `json:"units"`
	Channel       string               `json:"channel"`
	Status        enums.AuditStatus    `json:"status"`
	Error         string               `json:"error,omitempty"`
	Verification  *verification.Result `json:"verification,omitempty"`
}

// ChannelStats aggregates the entries recorded for one channel.
type ChannelStats struct {
	Count        int             `json:"count"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	SuccessCount int             `json:"successCount"`
	SuccessRate  float64         `json:"successRate"`
}

// Store is a fixed-size ring of entries backed by an optional repository.
type Store struct {
	mu      sync.RWMutex
	ring    []Entry
	head    int
	size    int
	repo    Repository
	logg    *logger.Logger
	maxSize int
}

// NewStore builds the ring and, when a repository is given, preloads the
// newest maxEntries rows.
func NewStore(ctx context.Context, maxEntries int, repo Repository, logg *logger.Logger) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	s := &Store{
		ring:    make([]Entry, maxEntries),
		repo:    repo,
		logg:    logg,
		maxSize: maxEntries,
	}
	if repo == nil {
		return s, nil
	}

	rows, err := repo.ListNewest(ctx, maxEntries)
	if err != nil {
		return nil, fmt.Errorf("load audit entries: %w", err)
	}
	for i := len(rows) - 1; i >= 0; i-- {
		s.push(entryFromModel(rows[i]))
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "entries", len(rows)), "audit ledger loaded")
	}
	return s, nil
}

// Append records entry in memory, evicting the oldest when full, then
// persists it. A persistence error is returned but the in-memory append
// stands.
func (s *Store) Append(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Channel == "" {
		entry.Channel = ChannelNone
	}

	s.mu.Lock()
	s.push(entry)
	s.mu.Unlock()

	if s.repo == nil {
		return nil
	}
	row, err := entryToModel(entry)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(ctx, row); err != nil {
		return fmt.Errorf("persist audit entry: %w", err)
	}
	if err := s.repo.TrimTo(ctx, s.maxSize); err != nil {
		return fmt.Errorf("trim audit entries: %w", err)
	}
	return nil
}

// push must be called with the write lock held.
func (s *Store) push(entry Entry) {
	idx := (s.head + s.size) % s.maxSize
	s.ring[idx] = entry
	if s.size < s.maxSize {
		s.size++
		return
	}
	s.head = (s.head + 1) % s.maxSize
}

// List returns up to limit entries, most recent first. limit <= 0 returns all.
func (s *Store) List(limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		idx := (s.head + s.size - 1 - i) % s.maxSize
		out = append(out, s.ring[idx])
	}
	return out
}

// Len returns the number of entries currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// MaxEntries returns the ring capacity.
func (s *Store) MaxEntries() int {
	return s.maxSize
}

// StatsByChannel aggregates the held entries per channel.
func (s *Store) StatsByChannel() map[string]ChannelStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]ChannelStats)
	for i := 0; i < s.size; i++ {
		entry := s.ring[(s.head+i)%s.maxSize]
		agg := stats[entry.Channel]
		agg.Count++
		agg.TotalAmount = agg.TotalAmount.Add(entry.Amount)
		if entry.Status == enums.AuditStatusSuccess {
			agg.SuccessCount++
		}
		stats[entry.Channel] = agg
	}
	for channel, agg := range stats {
		if agg.Count > 0 {
			agg.SuccessRate = float64(agg.SuccessCount) / float64(agg.Count)
		}
		stats[channel] = agg
	}
	return stats
}

func entryToModel(entry Entry) (*models.AuditEntry, error) {
	row := &models.AuditEntry{
		CorrelationID: entry.CorrelationID,
		RequesterID:   entry.RequesterID,
		AmountCents:   entry.Amount.Shift(2).Round(0).IntPart(),
		Units:         entry.Units,
		Channel:       entry.Channel,
		Status:        entry.Status,
		CreatedAt:     entry.Timestamp,
	}
	if entry.Error != "" {
		msg := entry.Error
		row.ErrorMessage = &msg
	}
	if entry.Verification != nil {
		raw, err := json.Marshal(entry.Verification)
		if err != nil {
			return nil, fmt.Errorf("encode verification: %w", err)
		}
		row.Verification = raw
	}
	return row, nil
}

func entryFromModel(row models.AuditEntry) Entry {
	entry := Entry{
		Timestamp:     row.CreatedAt,
		CorrelationID: row.CorrelationID,
		RequesterID:   row.RequesterID,
		Amount:        decimal.New(row.AmountCents, -2),
		Units:         row.Units,
		Channel:       row.Channel,
		Status:        row.Status,
	}
	if row.ErrorMessage != nil {
		entry.Error = *row.ErrorMessage
	}
	if len(row.Verification) > 0 {
		var result verification.Result
		if err := json.Unmarshal(row.Verification, &result); err == nil {
			entry.Verification = &result
		}
	}
	return entry
}
