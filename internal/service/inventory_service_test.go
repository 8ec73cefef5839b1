package service

import (
	"context"
	"errors"
	"testing"

	"nsimbi-wallet/internal/core/domain"
	"nsimbi-wallet/internal/core/ports"
	"nsimbi-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupInventoryService(t *testing.T) (ports.InventoryService, *mocks.MockInventoryRepository) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockInventoryRepository(ctrl)
	return NewInventoryService(repo), repo
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(i int) *int { return &i }

func TestInventoryService_Create(t *testing.T) {
	svc, repo := setupInventoryService(t)
	ctx := context.Background()
	merchantID := uuid.New()

	repo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	item, err := svc.Create(ctx, merchantID, ports.InventoryInput{
		Name:        strPtr(" Juice "),
		Description: strPtr("Mango 300ml"),
		Price:       decPtr("2.499"),
		Stock:       intPtr(5),
	})
	require.NoError(t, err)
	assert.Equal(t, merchantID, item.MerchantID)
	assert.Equal(t, "Juice", item.Name)
	assert.Equal(t, "Mango 300ml", *item.Description)
	assert.Equal(t, "2.50", item.Price.StringFixed(2))
	assert.Equal(t, 5, item.Stock)
	assert.NotEqual(t, uuid.Nil, item.ID)
}

func TestInventoryService_Create_Validation(t *testing.T) {
	svc, _ := setupInventoryService(t)
	ctx := context.Background()
	merchantID := uuid.New()

	tests := []struct {
		name string
		in   ports.InventoryInput
	}{
		{"missing name", ports.InventoryInput{Price: decPtr("1")}},
		{"blank name", ports.InventoryInput{Name: strPtr(" "), Price: decPtr("1")}},
		{"missing price", ports.InventoryInput{Name: strPtr("Juice")}},
		{"negative price", ports.InventoryInput{Name: strPtr("Juice"), Price: decPtr("-1")}},
		{"negative stock", ports.InventoryInput{Name: strPtr("Juice"), Price: decPtr("1"), Stock: intPtr(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, merchantID, tt.in)
			assertAppError(t, err, "VAL_001")
		})
	}
}

func TestInventoryService_Update_PartialFields(t *testing.T) {
	svc, repo := setupInventoryService(t)
	ctx := context.Background()
	merchantID, itemID := uuid.New(), uuid.New()
	existing := &domain.InventoryItem{ID: itemID, MerchantID: merchantID, Name: "Juice", Price: dec("2"), Stock: 5}

	repo.EXPECT().GetOwned(ctx, itemID, merchantID).Return(existing, nil)
	repo.EXPECT().Update(ctx, existing).Return(nil)

	item, err := svc.Update(ctx, merchantID, itemID, ports.InventoryInput{Stock: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, "Juice", item.Name)
	assert.Equal(t, 0, item.Stock)
	assert.True(t, item.Price.Equal(dec("2")))
}

func TestInventoryService_Update_NotOwned(t *testing.T) {
	svc, repo := setupInventoryService(t)
	ctx := context.Background()
	merchantID, itemID := uuid.New(), uuid.New()

	repo.EXPECT().GetOwned(ctx, itemID, merchantID).Return(nil, nil)

	_, err := svc.Update(ctx, merchantID, itemID, ports.InventoryInput{Stock: intPtr(1)})
	appErr := assertAppError(t, err, "NF_001")
	assert.Equal(t, "Item not found", appErr.Message)
}

func TestInventoryService_Delete(t *testing.T) {
	svc, repo := setupInventoryService(t)
	ctx := context.Background()
	merchantID, itemID := uuid.New(), uuid.New()

	repo.EXPECT().Delete(ctx, itemID, merchantID).Return(true, nil)
	require.NoError(t, svc.Delete(ctx, merchantID, itemID))

	repo.EXPECT().Delete(ctx, itemID, merchantID).Return(false, nil)
	assertAppError(t, svc.Delete(ctx, merchantID, itemID), "NF_001")

	repo.EXPECT().Delete(ctx, itemID, merchantID).Return(false, errors.New("db down"))
	assertAppError(t, svc.Delete(ctx, merchantID, itemID), "SYS_001")
}

func TestInventoryService_List(t *testing.T) {
	svc, repo := setupInventoryService(t)
	ctx := context.Background()
	merchantID := uuid.New()
	items := []domain.InventoryItem{{ID: uuid.New(), Name: "Bun"}}

	repo.EXPECT().ListByMerchant(ctx, merchantID, 1, defaultPageSize).Return(items, int64(1), nil)

	got, total, err := svc.List(ctx, merchantID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, items, got)
	assert.Equal(t, int64(1), total)
}
