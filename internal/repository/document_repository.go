package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/freight-booking/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) GetDocument(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, download_url, description, upload_date
		FROM documents
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &doc, nil
}

func (r *DocumentRepository) ListShipmentDocuments(ctx context.Context, shipmentID uuid.UUID) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.WithContext(ctx).Raw(`
		SELECT d.id, d.download_url, d.description, d.upload_date
		FROM shipment_documents sd
		JOIN documents d ON d.id = sd.document_id
		WHERE sd.shipment_id = ?
		ORDER BY sd.position ASC
	`, shipmentID).Scan(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *DocumentRepository) ListUserDocuments(ctx context.Context, userID uuid.UUID) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.WithContext(ctx).Raw(`
		SELECT d.id, d.download_url, d.description, d.upload_date
		FROM user_documents ud
		JOIN documents d ON d.id = ud.document_id
		WHERE ud.user_id = ?
		ORDER BY ud.position DESC
	`, userID).Scan(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// AttachRateConfirmation records an uploaded rate confirmation in one
// transaction: the document is upserted by storage key, linked to the
// shipment and the carrier at most once each, and the key is stored on the
// shipment. Re-running it for the same key leaves a single document.
func (r *DocumentRepository) AttachRateConfirmation(
	ctx context.Context,
	shipmentID uuid.UUID,
	carrierID uuid.UUID,
	doc model.Document,
) (*model.Document, error) {
	var saved model.Document
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Raw(`
			INSERT INTO documents (download_url, description, upload_date)
			VALUES (?, ?, ?)
			ON CONFLICT (download_url) DO UPDATE
			SET description = EXCLUDED.description,
				upload_date = EXCLUDED.upload_date
			RETURNING id, download_url, description, upload_date
		`, doc.DownloadURL, doc.Description, doc.UploadDate).Scan(&saved).Error
		if err != nil {
			return err
		}

		if err := tx.Exec(`
			INSERT INTO shipment_documents (shipment_id, document_id)
			VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, shipmentID, saved.ID).Error; err != nil {
			return err
		}

		if err := tx.Exec(`
			INSERT INTO user_documents (user_id, document_id)
			VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, carrierID, saved.ID).Error; err != nil {
			return err
		}

		return tx.Exec(`
			UPDATE shipments
			SET rate_confirmation_url = ?, updated_at = ?
			WHERE id = ?
		`, saved.DownloadURL, time.Now().UTC(), shipmentID).Error
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}
