package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/civicdesk/correspondence-backend/internal/apperrors"
	"github.com/civicdesk/correspondence-backend/internal/model"
)

type fakeLock struct {
	available  bool
	extendFail bool

	acquires int
	releases int
	extends  int
}

func (f *fakeLock) Acquire(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	f.acquires++
	return f.available, nil
}

func (f *fakeLock) Release(ctx context.Context, holder string) error {
	f.releases++
	return nil
}

func (f *fakeLock) Extend(ctx context.Context, holder string) error {
	f.extends++
	if f.extendFail {
		return apperrors.NewConflict("automation_lock", "lease lost by "+holder)
	}
	return nil
}

func (f *fakeLock) Get(ctx context.Context) (*model.AutomationLock, error) {
	return &model.AutomationLock{IsLocked: f.available}, nil
}

type fakeOutbox struct {
	pending []*model.OutboxEntry

	claims int
	sent   map[uuid.UUID]string
	failed map[uuid.UUID]string
}

func newFakeOutbox(entries ...*model.OutboxEntry) *fakeOutbox {
	return &fakeOutbox{
		pending: entries,
		sent:    map[uuid.UUID]string{},
		failed:  map[uuid.UUID]string{},
	}
}

func (f *fakeOutbox) ClaimBatch(ctx context.Context, workerID string, limit int) ([]*model.OutboxEntry, error) {
	f.claims++
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	batch := f.pending[:limit]
	f.pending = f.pending[limit:]
	for _, e := range batch {
		e.Status = model.OutboxProcessing
		e.WorkerID = workerID
	}
	return batch, nil
}

func (f *fakeOutbox) MarkSent(ctx context.Context, id uuid.UUID, messageID string) error {
	f.sent[id] = messageID
	return nil
}

func (f *fakeOutbox) MarkFailed(ctx context.Context, id uuid.UUID, sendErr string) error {
	f.failed[id] = sendErr
	return nil
}

func (f *fakeOutbox) RetrySweep(ctx context.Context, backoffBase time.Duration) (int, int, error) {
	return 0, 0, nil
}

func (f *fakeOutbox) RequeueStaleProcessing(ctx context.Context, staleAfter time.Duration) (int, error) {
	return 0, nil
}

func (f *fakeOutbox) CountByStatus(ctx context.Context, campaignID uuid.UUID) (map[string]int, error) {
	return map[string]int{}, nil
}

type fakeResponses struct {
	finalizePending int
	finalizeCalls   int
}

func (f *fakeResponses) Create(ctx context.Context, b *model.BulkResponse) error { return nil }

func (f *fakeResponses) FinalizeSent(ctx context.Context) (int, error) {
	f.finalizeCalls++
	n := f.finalizePending
	f.finalizePending = 0
	return n, nil
}

func (f *fakeResponses) ListLogs(ctx context.Context, bulkResponseID uuid.UUID) ([]*model.BulkResponseLog, error) {
	return nil, nil
}

type fakeSender struct {
	fail  bool
	sends []string
}

func (f *fakeSender) Send(ctx context.Context, to, subject, bodyHTML string) (string, error) {
	if f.fail {
		return "", errors.New("smtp connection refused")
	}
	f.sends = append(f.sends, to)
	return "<" + to + ">", nil
}

func entry(email string) *model.OutboxEntry {
	return &model.OutboxEntry{
		ID:             uuid.New(),
		RecipientEmail: email,
		Subject:        "Re: save our library",
		BodyHTML:       "<p>Dear constituent,</p>",
		Status:         model.OutboxPending,
		MaxAttempts:    3,
	}
}

func newTestDispatcher(outbox *fakeOutbox, lock *fakeLock, sender *fakeSender) *Dispatcher {
	d := NewDispatcher(outbox, lock, &fakeResponses{}, sender, rate.NewLimiter(rate.Inf, 1), zap.NewNop())
	d.BatchSize = 2
	d.SendRetries = 0
	return d
}

func TestDrainSendsClaimedEntries(t *testing.T) {
	a, b, c := entry("a@example.com"), entry("b@example.com"), entry("c@example.com")
	outbox := newFakeOutbox(a, b, c)
	lock := &fakeLock{available: true}
	sender := &fakeSender{}
	d := newTestDispatcher(outbox, lock, sender)

	d.drain(context.Background())

	assert.Len(t, sender.sends, 3)
	assert.Len(t, outbox.sent, 3)
	assert.Contains(t, outbox.sent, a.ID)
	assert.Contains(t, outbox.sent, b.ID)
	assert.Contains(t, outbox.sent, c.ID)
	assert.Equal(t, 1, lock.releases)
}

func TestDrainSkipsWhenLockHeldElsewhere(t *testing.T) {
	outbox := newFakeOutbox(entry("a@example.com"))
	lock := &fakeLock{available: false}
	sender := &fakeSender{}
	d := newTestDispatcher(outbox, lock, sender)

	d.drain(context.Background())

	assert.Zero(t, outbox.claims)
	assert.Empty(t, sender.sends)
	assert.Zero(t, lock.releases)
}

func TestDrainStopsWhenLeaseLost(t *testing.T) {
	outbox := newFakeOutbox(
		entry("a@example.com"), entry("b@example.com"),
		entry("c@example.com"), entry("d@example.com"),
	)
	lock := &fakeLock{available: true, extendFail: true}
	sender := &fakeSender{}
	d := newTestDispatcher(outbox, lock, sender)

	d.drain(context.Background())

	// First batch of two sends, then the failed lease refresh halts the drain
	// with the remaining entries unclaimed.
	assert.Equal(t, 1, outbox.claims)
	assert.Len(t, sender.sends, 2)
	assert.Len(t, outbox.pending, 2)
}

func TestDrainFinalizesCompletedBulkResponses(t *testing.T) {
	outbox := newFakeOutbox()
	lock := &fakeLock{available: true}
	responses := &fakeResponses{finalizePending: 1}
	d := newTestDispatcher(outbox, lock, &fakeSender{})
	d.Responses = responses

	d.drain(context.Background())

	assert.Equal(t, 1, responses.finalizeCalls)
	assert.Zero(t, responses.finalizePending)
}

func TestDrainMarksFailedOnSendError(t *testing.T) {
	a := entry("a@example.com")
	outbox := newFakeOutbox(a)
	lock := &fakeLock{available: true}
	sender := &fakeSender{fail: true}
	d := newTestDispatcher(outbox, lock, sender)

	d.drain(context.Background())

	require.Contains(t, outbox.failed, a.ID)
	assert.Contains(t, outbox.failed[a.ID], "smtp connection refused")
	assert.Empty(t, outbox.sent)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	outbox := newFakeOutbox()
	lock := &fakeLock{available: true}
	d := newTestDispatcher(outbox, lock, &fakeSender{})
	d.PollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	kicks := make(chan struct{}, 1)
	go func() {
		d.Run(ctx, kicks)
		close(done)
	}()

	kicks <- struct{}{}
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancellation")
	}
	assert.GreaterOrEqual(t, lock.acquires, 1)
}
