package reconcile

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grupofy/grupofy-backend/internal/messenger"
	"github.com/grupofy/grupofy-backend/pkg/db/models"
	"github.com/grupofy/grupofy-backend/pkg/logger"
	"github.com/grupofy/grupofy-backend/pkg/phone"
)

type fakeStore struct {
	members  map[uuid.UUID][]models.GroupMember
	pending  map[uuid.UUID][]models.Purchase
	groups   map[string][]uuid.UUID
	joined   map[uuid.UUID]string
	alreadyJ map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members:  map[uuid.UUID][]models.GroupMember{},
		pending:  map[uuid.UUID][]models.Purchase{},
		groups:   map[string][]uuid.UUID{},
		joined:   map[uuid.UUID]string{},
		alreadyJ: map[uuid.UUID]bool{},
	}
}

func (f *fakeStore) RealMembersByProject(ctx context.Context, projectID uuid.UUID) ([]models.GroupMember, error) {
	return f.members[projectID], nil
}

func (f *fakeStore) ProjectIDsForGroup(ctx context.Context, groupID string) ([]uuid.UUID, error) {
	return f.groups[groupID], nil
}

func (f *fakeStore) PendingByProject(ctx context.Context, projectID uuid.UUID, phoneClause string, phoneArg any) ([]models.Purchase, error) {
	// clause filtering is exercised against the real matcher in Match calls
	return f.pending[projectID], nil
}

func (f *fakeStore) MarkJoined(ctx context.Context, purchaseID uuid.UUID, groupID string, at time.Time) (bool, error) {
	if f.alreadyJ[purchaseID] {
		return false, nil
	}
	f.alreadyJ[purchaseID] = true
	f.joined[purchaseID] = groupID
	return true, nil
}

func newTestService(t *testing.T, store *fakeStore) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Members:   store,
		Projects:  store,
		Purchases: store,
		Matcher:   phone.NewMatcher(phone.StrategyContains),
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}),
	})
	require.NoError(t, err)
	return svc
}

func TestReconcileMarksMatchingPurchase(t *testing.T) {
	store := newFakeStore()
	projectID := uuid.New()
	purchaseID := uuid.New()

	store.members[projectID] = []models.GroupMember{
		{GroupID: "g1@g.us", Phone: "5511987654321"},
	}
	store.pending[projectID] = []models.Purchase{
		{ID: purchaseID, CustomerPhone: "11987654321"},
	}

	svc := newTestService(t, store)
	updated, err := svc.Reconcile(context.Background(), projectID, "")
	require.NoError(t, err)

	assert.Equal(t, 1, updated)
	assert.Equal(t, "g1@g.us", store.joined[purchaseID])
}

func TestReconcileFirstMatchingGroupWins(t *testing.T) {
	store := newFakeStore()
	projectID := uuid.New()
	purchaseID := uuid.New()

	store.members[projectID] = []models.GroupMember{
		{GroupID: "g1@g.us", Phone: "5511987654321"},
		{GroupID: "g2@g.us", Phone: "5511987654321"},
	}
	store.pending[projectID] = []models.Purchase{
		{ID: purchaseID, CustomerPhone: "11987654321"},
	}

	svc := newTestService(t, store)
	updated, err := svc.Reconcile(context.Background(), projectID, "")
	require.NoError(t, err)

	assert.Equal(t, 1, updated)
	assert.Equal(t, "g1@g.us", store.joined[purchaseID])
}

func TestReconcileIsIdempotent(t *testing.T) {
	store := newFakeStore()
	projectID := uuid.New()
	purchaseID := uuid.New()

	store.members[projectID] = []models.GroupMember{
		{GroupID: "g1@g.us", Phone: "5511987654321"},
	}
	store.pending[projectID] = []models.Purchase{
		{ID: purchaseID, CustomerPhone: "11987654321"},
	}

	svc := newTestService(t, store)
	first, err := svc.Reconcile(context.Background(), projectID, "")
	require.NoError(t, err)
	second, err := svc.Reconcile(context.Background(), projectID, "")
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second, "already-joined purchases are not counted again")
}

func TestReconcileSkipsNonMatching(t *testing.T) {
	store := newFakeStore()
	projectID := uuid.New()

	store.members[projectID] = []models.GroupMember{
		{GroupID: "g1@g.us", Phone: "5521912345678"},
	}
	store.pending[projectID] = []models.Purchase{
		{ID: uuid.New(), CustomerPhone: "11987654321"},
		{ID: uuid.New(), CustomerPhone: ""},
	}

	svc := newTestService(t, store)
	updated, err := svc.Reconcile(context.Background(), projectID, "")
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
	assert.Empty(t, store.joined)
}

func TestHandleJoinsMarksAcrossProjects(t *testing.T) {
	store := newFakeStore()
	projectA := uuid.New()
	projectB := uuid.New()
	purchaseA := uuid.New()
	purchaseB := uuid.New()

	store.groups["g1@g.us"] = []uuid.UUID{projectA, projectB}
	store.pending[projectA] = []models.Purchase{{ID: purchaseA, CustomerPhone: "11987654321"}}
	store.pending[projectB] = []models.Purchase{{ID: purchaseB, CustomerPhone: "11987654321"}}

	svc := newTestService(t, store)
	svc.HandleJoins(context.Background(), "g1@g.us", []messenger.Participant{
		{ID: "5511987654321@s.whatsapp.net", Phone: "5511987654321"},
	})

	assert.Equal(t, "g1@g.us", store.joined[purchaseA])
	assert.Equal(t, "g1@g.us", store.joined[purchaseB])
}

func TestHandleJoinsIgnoresOpaqueParticipants(t *testing.T) {
	store := newFakeStore()
	projectID := uuid.New()
	store.groups["g1@g.us"] = []uuid.UUID{projectID}
	store.pending[projectID] = []models.Purchase{{ID: uuid.New(), CustomerPhone: "11987654321"}}

	svc := newTestService(t, store)
	svc.HandleJoins(context.Background(), "g1@g.us", []messenger.Participant{
		{ID: "123456@lid", Opaque: true},
	})

	assert.Empty(t, store.joined)
}
