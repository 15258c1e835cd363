package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutcore-backend/internal/verification"
	"github.com/angelmondragon/payoutcore-backend/pkg/db/models"
	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&models.AuditEntry{}))
	return conn
}

func entry(n int, channel string, status enums.AuditStatus) Entry {
	return Entry{
		Timestamp:     time.Date(2026, 3, 1, 0, 0, n, 0, time.UTC),
		CorrelationID: fmt.Sprintf("corr-%d", n),
		RequesterID:   "player-1",
		Amount:        decimal.NewFromInt(int64(n)),
		Units:         int64(n) * 100,
		Channel:       channel,
		Status:        status,
	}
}

type failingRepo struct{}

func (failingRepo) Insert(ctx context.Context, entry *models.AuditEntry) error {
	return errors.New("db down")
}
func (failingRepo) TrimTo(ctx context.Context, keep int) error { return nil }
func (failingRepo) ListNewest(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return nil, nil
}

func TestStore_EvictsOldestBeyondCapacity(t *testing.T) {
	store, err := NewStore(context.Background(), 3, nil, nil)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Append(context.Background(), entry(i, "instant", enums.AuditStatusSuccess)))
		assert.LessOrEqual(t, store.Len(), 3)
	}

	got := store.List(0)
	require.Len(t, got, 3)
	assert.Equal(t, "corr-5", got[0].CorrelationID)
	assert.Equal(t, "corr-4", got[1].CorrelationID)
	assert.Equal(t, "corr-3", got[2].CorrelationID)
}

func TestStore_ListLimit(t *testing.T) {
	store, _ := NewStore(context.Background(), 10, nil, nil)
	for i := 1; i <= 4; i++ {
		require.NoError(t, store.Append(context.Background(), entry(i, "standard", enums.AuditStatusSuccess)))
	}

	got := store.List(2)
	require.Len(t, got, 2)
	assert.Equal(t, "corr-4", got[0].CorrelationID)
	assert.Equal(t, "corr-3", got[1].CorrelationID)
	assert.Len(t, store.List(-1), 4)
	assert.Len(t, store.List(100), 4)
}

func TestStore_DefaultsChannelAndTimestamp(t *testing.T) {
	store, _ := NewStore(context.Background(), 0, nil, nil)
	assert.Equal(t, DefaultMaxEntries, store.MaxEntries())

	require.NoError(t, store.Append(context.Background(), Entry{CorrelationID: "c", Status: enums.AuditStatusRejected}))
	got := store.List(1)[0]
	assert.Equal(t, ChannelNone, got.Channel)
	assert.False(t, got.Timestamp.IsZero())
}

func TestStore_StatsByChannel(t *testing.T) {
	store, _ := NewStore(context.Background(), 10, nil, nil)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, entry(1, "instant", enums.AuditStatusSuccess)))
	require.NoError(t, store.Append(ctx, entry(2, "instant", enums.AuditStatusFailed)))
	require.NoError(t, store.Append(ctx, entry(3, "instant", enums.AuditStatusSuccess)))
	require.NoError(t, store.Append(ctx, entry(4, "contact_hold", enums.AuditStatusSuccess)))

	stats := store.StatsByChannel()
	require.Len(t, stats, 2)

	instant := stats["instant"]
	assert.Equal(t, 3, instant.Count)
	assert.Equal(t, 2, instant.SuccessCount)
	assert.True(t, instant.TotalAmount.Equal(decimal.NewFromInt(6)))
	assert.InDelta(t, 2.0/3.0, instant.SuccessRate, 1e-9)

	hold := stats["contact_hold"]
	assert.Equal(t, 1, hold.Count)
	assert.Equal(t, 1.0, hold.SuccessRate)
}

func TestStore_PersistsAndReloads(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	store, err := NewStore(ctx, 2, repo, nil)
	require.NoError(t, err)

	vr := verification.NewEngine(100).Verify(300, decimal.NewFromInt(3))
	first := entry(1, "instant", enums.AuditStatusFailed)
	first.Error = "card_declined"
	require.NoError(t, store.Append(ctx, first))
	second := entry(2, "standard", enums.AuditStatusSuccess)
	second.Verification = &vr
	require.NoError(t, store.Append(ctx, second))
	require.NoError(t, store.Append(ctx, entry(3, "standard", enums.AuditStatusSuccess)))

	var count int64
	require.NoError(t, conn.Model(&models.AuditEntry{}).Count(&count).Error)
	assert.Equal(t, int64(2), count, "table must be trimmed to the ring size")

	reloaded, err := NewStore(ctx, 2, repo, nil)
	require.NoError(t, err)
	got := reloaded.List(0)
	require.Len(t, got, 2)
	assert.Equal(t, "corr-3", got[0].CorrelationID)
	assert.Equal(t, "corr-2", got[1].CorrelationID)
	require.NotNil(t, got[1].Verification)
	assert.True(t, got[1].Verification.IsValid)
	assert.True(t, got[1].Amount.Equal(decimal.NewFromInt(2)))
}

func TestStore_PersistenceFailureKeepsMemoryEntry(t *testing.T) {
	store, err := NewStore(context.Background(), 5, failingRepo{}, nil)
	require.NoError(t, err)

	err = store.Append(context.Background(), entry(1, "instant", enums.AuditStatusSuccess))
	require.Error(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestStore_ConcurrentAppendsStayBounded(t *testing.T) {
	store, _ := NewStore(context.Background(), 50, nil, nil)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 40; i++ {
				_ = store.Append(context.Background(), entry(w*100+i, "instant", enums.AuditStatusSuccess))
				_ = store.List(5)
				_ = store.StatsByChannel()
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 50, store.Len())
	assert.Equal(t, 50, store.StatsByChannel()["instant"].Count)
}
