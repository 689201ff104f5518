package usersvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/db/models"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/events"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/security"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     8,
		ArgonKeyLen:      16,
	}
}

type fakeStore struct {
	profiles      map[int64]*models.UserProfile
	addresses     map[int64]*models.Address
	nextAddressID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles:  map[int64]*models.UserProfile{},
		addresses: map[int64]*models.Address{},
	}
}

func (f *fakeStore) FindProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	profile, ok := f.profiles[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *profile
	return &copied, nil
}

func (f *fakeStore) UpsertProfile(ctx context.Context, profile *models.UserProfile) error {
	copied := *profile
	f.profiles[profile.ID] = &copied
	return nil
}

func (f *fakeStore) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	return f.UpsertProfile(ctx, profile)
}

func (f *fakeStore) CreateAddress(ctx context.Context, address *models.Address) error {
	f.nextAddressID++
	address.ID = f.nextAddressID
	copied := *address
	f.addresses[address.ID] = &copied
	return nil
}

func (f *fakeStore) FindAddress(ctx context.Context, id, userID int64) (*models.Address, error) {
	address, ok := f.addresses[id]
	if !ok || address.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *address
	return &copied, nil
}

func (f *fakeStore) ListAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	var rows []models.Address
	for _, address := range f.addresses {
		if address.UserID == userID {
			rows = append(rows, *address)
		}
	}
	return rows, nil
}

func (f *fakeStore) SaveAddress(ctx context.Context, address *models.Address) error {
	copied := *address
	f.addresses[address.ID] = &copied
	return nil
}

func (f *fakeStore) DeleteAddress(ctx context.Context, id, userID int64) (bool, error) {
	address, ok := f.addresses[id]
	if !ok || address.UserID != userID {
		return false, nil
	}
	delete(f.addresses, id)
	return true, nil
}

func (f *fakeStore) ClearDefaultAddress(ctx context.Context, userID int64) error {
	for _, address := range f.addresses {
		if address.UserID == userID {
			address.IsDefault = false
		}
	}
	return nil
}

type recordedEvent struct {
	topic   events.Topic
	payload any
}

type fakePublisher struct {
	published []recordedEvent
	failWith  error
}

func (f *fakePublisher) PublishEvent(ctx context.Context, topic events.Topic, payload any) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.published = append(f.published, recordedEvent{topic: topic, payload: payload})
	return nil
}

func (f *fakePublisher) lastTopic() events.Topic {
	if len(f.published) == 0 {
		return ""
	}
	return f.published[len(f.published)-1].topic
}

func (f *fakePublisher) countTopic(topic events.Topic) int {
	n := 0
	for _, rec := range f.published {
		if rec.topic == topic {
			n++
		}
	}
	return n
}

func newTestService() (*Service, *fakeStore, *fakePublisher) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	svc := NewService(store, store, publisher, testLogger(), testPasswordConfig())
	return svc, store, publisher
}

func seedProfile(store *fakeStore, id int64, hash string) {
	store.profiles[id] = &models.UserProfile{
		ID:           id,
		Name:         "Jo Doe",
		Email:        "jo@example.com",
		Phone:        "555-0100",
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
}

func TestGetProfileMissingReadsAsNotFound(t *testing.T) {
	t.Parallel()

	svc, store, publisher := newTestService()

	_, err := svc.GetProfile(context.Background(), 7)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, ok := store.profiles[7]; ok {
		t.Fatal("a read must not persist a row")
	}
	if len(publisher.published) != 0 {
		t.Fatalf("a read of a missing row must not publish, got %+v", publisher.published)
	}
}

func TestGetProfileBlankRequestsSync(t *testing.T) {
	t.Parallel()

	svc, store, publisher := newTestService()
	store.profiles[7] = &models.UserProfile{ID: 7}

	dto, err := svc.GetProfile(context.Background(), 7)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if !dto.Pending {
		t.Fatal("expected pending flag on blank replica")
	}
	if publisher.countTopic(events.TopicUserSyncRequested) != 1 {
		t.Fatal("blank replica must trigger a sync request")
	}
	payload := publisher.published[0].payload.(events.UserSyncRequested)
	if payload.UserID != 7 || payload.Requester != "user-service" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestGetProfileWhitespaceCountsAsBlank(t *testing.T) {
	t.Parallel()

	svc, store, publisher := newTestService()
	store.profiles[7] = &models.UserProfile{ID: 7, Name: "  ", Email: "\t", Phone: " "}

	dto, err := svc.GetProfile(context.Background(), 7)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if !dto.Pending {
		t.Fatal("whitespace-only replica must read as pending")
	}
	if publisher.countTopic(events.TopicUserSyncRequested) != 1 {
		t.Fatal("whitespace-only replica must trigger a sync request")
	}
}

func TestGetProfileHealthyNoSync(t *testing.T) {
	t.Parallel()

	svc, store, publisher := newTestService()
	seedProfile(store, 7, "")

	dto, err := svc.GetProfile(context.Background(), 7)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if dto.Pending {
		t.Fatal("replicated profile must not be pending")
	}
	if publisher.countTopic(events.TopicUserSyncRequested) != 0 {
		t.Fatal("no sync request expected for a healthy replica")
	}
}

func TestUpdateProfilePublishesPartialPatch(t *testing.T) {
	t.Parallel()

	svc, store, publisher := newTestService()
	seedProfile(store, 7, "")

	name := "New Name"
	dto, err := svc.UpdateProfile(context.Background(), 7, UpdateProfileInput{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if dto.Name != "New Name" || dto.Phone != "555-0100" {
		t.Fatalf("unexpected dto %+v", dto)
	}

	if publisher.lastTopic() != events.TopicUserProfileUpdated {
		t.Fatalf("expected user.profile.updated, got %s", publisher.lastTopic())
	}
	payload := publisher.published[len(publisher.published)-1].payload.(events.UserProfileUpdated)
	if payload.Name == nil || *payload.Name != "New Name" {
		t.Fatalf("expected name in patch, got %+v", payload)
	}
	if payload.Phone != nil {
		t.Fatal("phone was not part of the update and must be nil in the patch")
	}
}

func TestUpdateProfilePatchesEmail(t *testing.T) {
	t.Parallel()

	svc, store, publisher := newTestService()
	seedProfile(store, 7, "")

	email := "  New@Example.COM "
	dto, err := svc.UpdateProfile(context.Background(), 7, UpdateProfileInput{Email: &email})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if dto.Email != "new@example.com" {
		t.Fatalf("expected normalized email, got %q", dto.Email)
	}
	if store.profiles[7].Email != "new@example.com" {
		t.Fatalf("expected email persisted, got %q", store.profiles[7].Email)
	}

	payload := publisher.published[len(publisher.published)-1].payload.(events.UserProfileUpdated)
	if payload.Email == nil {
		t.Fatal("email was part of the update and must be in the patch")
	}
	if payload.Name != nil || payload.Phone != nil {
		t.Fatalf("untouched fields must stay nil in the patch, got %+v", payload)
	}
}

func TestUpdateProfilePublishFailurePropagates(t *testing.T) {
	t.Parallel()

	svc, store, publisher := newTestService()
	seedProfile(store, 7, "")
	publisher.failWith = errors.New("broker down")

	name := "New Name"
	_, err := svc.UpdateProfile(context.Background(), 7, UpdateProfileInput{Name: &name})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error from failed publish, got %v", err)
	}
	if store.profiles[7].Name != "New Name" {
		t.Fatal("the local write must stay committed despite the failed publish")
	}
}

func TestUpdateProfileBootstrapsMissingReplica(t *testing.T) {
	t.Parallel()

	svc, store, publisher := newTestService()

	name := "Jo"
	if _, err := svc.UpdateProfile(context.Background(), 7, UpdateProfileInput{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if store.profiles[7].Name != "Jo" {
		t.Fatal("expected profile created with patch applied")
	}
	if publisher.countTopic(events.TopicUserProfileCreated) != 1 {
		t.Fatal("expected user.profile.created for a bootstrap")
	}
	if publisher.countTopic(events.TopicUserSyncRequested) != 1 {
		t.Fatal("bootstrap must also request a sync")
	}
}

func TestUpdateProfileEmptyPatchRejected(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService()

	_, err := svc.UpdateProfile(context.Background(), 7, UpdateProfileInput{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestChangePasswordVerifiesCachedHash(t *testing.T) {
	t.Parallel()

	svc, store, publisher := newTestService()
	hash, err := security.HashPassword("old-pass", testPasswordConfig())
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	seedProfile(store, 7, hash)

	if err := svc.ChangePassword(context.Background(), 7, "wrong", "new-pass"); err == nil {
		t.Fatal("expected rejection with wrong old password")
	}

	if err := svc.ChangePassword(context.Background(), 7, "old-pass", "new-pass"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if publisher.lastTopic() != events.TopicUserPasswordChanged {
		t.Fatalf("expected user.password.changed, got %s", publisher.lastTopic())
	}
	payload := publisher.published[len(publisher.published)-1].payload.(events.UserPasswordChanged)
	ok, err := security.VerifyPassword("new-pass", payload.PasswordHash)
	if err != nil || !ok {
		t.Fatal("published hash must match the new password")
	}
}

func TestChangePasswordBlankCacheSkipsVerification(t *testing.T) {
	t.Parallel()

	svc, store, publisher := newTestService()
	seedProfile(store, 7, "")

	if err := svc.ChangePassword(context.Background(), 7, "anything", "new-pass"); err != nil {
		t.Fatalf("change without cached hash: %v", err)
	}
	if store.profiles[7].PasswordHash == "" {
		t.Fatal("expected new hash cached")
	}
	if publisher.countTopic(events.TopicUserSyncRequested) != 1 {
		t.Fatal("blank cache must trigger a sync request")
	}
	if publisher.countTopic(events.TopicUserPasswordChanged) != 1 {
		t.Fatal("expected user.password.changed")
	}
}

func TestCreateAddressBootstrapsProfile(t *testing.T) {
	t.Parallel()

	svc, store, publisher := newTestService()

	dto, err := svc.CreateAddress(context.Background(), 7, AddressInput{
		Line1:      "1 Main St",
		City:       "Springfield",
		PostalCode: "00001",
		Country:    "US",
		IsDefault:  true,
	})
	if err != nil {
		t.Fatalf("create address: %v", err)
	}
	if dto.ID == 0 || !dto.IsDefault {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if _, ok := store.profiles[7]; !ok {
		t.Fatal("expected minimal profile bootstrapped")
	}
	if publisher.countTopic(events.TopicUserAddressCreated) != 1 {
		t.Fatal("expected user.address.created")
	}
	if publisher.countTopic(events.TopicUserSyncRequested) != 1 {
		t.Fatal("expected sync request for the bootstrap")
	}
}

func TestDefaultAddressIsExclusive(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService()
	seedProfile(store, 7, "")

	first, err := svc.CreateAddress(context.Background(), 7, AddressInput{
		Line1: "1 Main St", City: "Springfield", PostalCode: "00001", Country: "US", IsDefault: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = svc.CreateAddress(context.Background(), 7, AddressInput{
		Line1: "2 Oak Ave", City: "Springfield", PostalCode: "00002", Country: "US", IsDefault: true,
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if store.addresses[first.ID].IsDefault {
		t.Fatal("first address must lose the default flag")
	}
}

func TestDeleteAddressNotFound(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService()

	err := svc.DeleteAddress(context.Background(), 7, 404)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateAddressScopedToOwner(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService()
	seedProfile(store, 7, "")
	created, err := svc.CreateAddress(context.Background(), 7, AddressInput{
		Line1: "1 Main St", City: "Springfield", PostalCode: "00001", Country: "US",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.UpdateAddress(context.Background(), 99, created.ID, AddressInput{
		Line1: "Hijack", City: "X", PostalCode: "1", Country: "US",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for foreign owner, got %v", err)
	}
}
