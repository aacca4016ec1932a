package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nurpe/freight-booking/internal/model"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	var row struct {
		ID                 uuid.UUID
		AccountName        string
		Currency           string
		PaymentTerms       string
		AccessorialPricing datatypes.JSONType[model.PricingTable]
		CreatedBy          *uuid.UUID
		CreatedAt          time.Time
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, account_name, currency, payment_terms, accessorial_pricing, created_by, created_at
		FROM accounts
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}

	return &model.Account{
		ID:                 row.ID,
		AccountName:        row.AccountName,
		Currency:           row.Currency,
		PaymentTerms:       row.PaymentTerms,
		AccessorialPricing: row.AccessorialPricing.Data(),
		CreatedByID:        row.CreatedBy,
		CreatedAt:          row.CreatedAt,
	}, nil
}
