package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sixd/internal/platform/kafka"
	auditpostgres "sixd/pkg/platform/audit/store/postgres"
)

type fakeSource struct {
	pending   []auditpostgres.OutboxEntry
	published map[uuid.UUID]time.Time
	fetchErr  error
}

func (f *fakeSource) FetchPending(_ context.Context, limit int) ([]auditpostgres.OutboxEntry, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []auditpostgres.OutboxEntry
	for _, e := range f.pending {
		if _, done := f.published[e.ID]; done {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeSource) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	for _, id := range ids {
		f.published[id] = at
	}
	return nil
}

type fakeSink struct {
	got []kafka.Message
	err error
}

func (f *fakeSink) Publish(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, msgs...)
	return nil
}

func newEntries(n int) []auditpostgres.OutboxEntry {
	out := make([]auditpostgres.OutboxEntry, n)
	for i := range out {
		out[i] = auditpostgres.OutboxEntry{
			ID:          uuid.New(),
			AggregateID: "acct-1",
			EventType:   "address_updated",
			Payload:     []byte(`{}`),
			CreatedAt:   time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRelayOncePublishesAndMarks(t *testing.T) {
	src := &fakeSource{pending: newEntries(3), published: map[uuid.UUID]time.Time{}}
	sink := &fakeSink{}
	r := NewRelay(src, sink, discardLogger(), time.Second, 2)

	n, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sink.got, 2)
	assert.Equal(t, "acct-1", string(sink.got[0].Key))
	assert.Equal(t, src.pending[0].ID.String(), sink.got[0].Headers["event_id"])

	n, err = r.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, src.published, 3)
}

func TestRelayOnceLeavesRowsPendingWhenPublishFails(t *testing.T) {
	src := &fakeSource{pending: newEntries(2), published: map[uuid.UUID]time.Time{}}
	sink := &fakeSink{err: errors.New("broker down")}
	r := NewRelay(src, sink, discardLogger(), time.Second, 10)

	_, err := r.RelayOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, src.published)
}

func TestRelayOnceEmpty(t *testing.T) {
	src := &fakeSource{published: map[uuid.UUID]time.Time{}}
	r := NewRelay(src, &fakeSink{}, discardLogger(), time.Second, 10)
	n, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
