package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"nsimbi-wallet/internal/core/domain"
	"nsimbi-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, zerolog.Nop())

	done := make(chan *domain.AuditLog, 1)
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, log *domain.AuditLog) error {
			done <- log
			return nil
		},
	)

	userID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	svc.Log(ctx, &domain.AuditLog{
		UserID:       &userID,
		Action:       domain.AuditActionCharge,
		ResourceType: "ledger_entry",
		ResourceID:   uuid.New().String(),
		IPAddress:    "127.0.0.1",
	})
	// The request finishing must not abort the write.
	cancel()

	select {
	case log := <-done:
		assert.Equal(t, domain.AuditActionCharge, log.Action)
		assert.NotEqual(t, uuid.Nil, log.ID)
		assert.False(t, log.CreatedAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

func TestAuditService_Log_RepoErrorIsSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, zerolog.Nop())

	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ *domain.AuditLog) error {
			close(done)
			return errors.New("db down")
		},
	)

	svc.Log(context.Background(), &domain.AuditLog{Action: domain.AuditActionResetPin, ResourceType: "user"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not attempted in time")
	}
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, zerolog.Nop())

	assert.NotPanics(t, func() {
		svc.Log(context.Background(), &domain.AuditLog{
			Action:       domain.AuditActionLogin,
			ResourceType: "session",
			IPAddress:    "127.0.0.1",
		})
		time.Sleep(50 * time.Millisecond)
	})
}
