package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nsimbi-wallet/internal/core/domain"
	"nsimbi-wallet/internal/core/ports"
	"nsimbi-wallet/pkg/apperror"
	"nsimbi-wallet/pkg/money"

	"github.com/google/uuid"
)

type inventoryService struct {
	repo ports.InventoryRepository
}

// NewInventoryService creates a new merchant inventory service.
func NewInventoryService(repo ports.InventoryRepository) ports.InventoryService {
	return &inventoryService{repo: repo}
}

func (s *inventoryService) List(ctx context.Context, merchantID uuid.UUID, page, pageSize int) ([]domain.InventoryItem, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	items, total, err := s.repo.ListByMerchant(ctx, merchantID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list inventory: %w", err))
	}
	return items, total, nil
}

func (s *inventoryService) Create(ctx context.Context, merchantID uuid.UUID, in ports.InventoryInput) (*domain.InventoryItem, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, apperror.Validation("Item name is required")
	}
	if in.Price == nil {
		return nil, apperror.Validation("Item price is required")
	}

	now := time.Now().UTC()
	item := &domain.InventoryItem{
		ID:         uuid.New(),
		MerchantID: merchantID,
		CreatedAt:  now,
	}
	if err := applyInventoryInput(item, in); err != nil {
		return nil, err
	}
	item.UpdatedAt = now

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create inventory item: %w", err))
	}
	return item, nil
}

func (s *inventoryService) Update(ctx context.Context, merchantID, itemID uuid.UUID, in ports.InventoryInput) (*domain.InventoryItem, error) {
	item, err := s.repo.GetOwned(ctx, itemID, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find inventory item: %w", err))
	}
	if item == nil {
		return nil, apperror.ErrNotFound("Item")
	}

	if err := applyInventoryInput(item, in); err != nil {
		return nil, err
	}
	item.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update inventory item: %w", err))
	}
	return item, nil
}

func (s *inventoryService) Delete(ctx context.Context, merchantID, itemID uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, itemID, merchantID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("delete inventory item: %w", err))
	}
	if !deleted {
		return apperror.ErrNotFound("Item")
	}
	return nil
}

// applyInventoryInput copies the non-nil fields of in onto item.
func applyInventoryInput(item *domain.InventoryItem, in ports.InventoryInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return apperror.Validation("Item name is required")
		}
		item.Name = name
	}
	if in.Description != nil {
		item.Description = trimOptional(in.Description)
	}
	if in.Price != nil {
		price := money.Round(*in.Price)
		if price.IsNegative() {
			return apperror.Validation("Item price cannot be negative")
		}
		item.Price = price
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return apperror.Validation("Item stock cannot be negative")
		}
		item.Stock = *in.Stock
	}
	return nil
}
