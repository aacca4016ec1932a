package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/freight-booking/internal/model"
	"github.com/nurpe/freight-booking/internal/storage"
)

type DocumentReader interface {
	GetDocument(ctx context.Context, id uuid.UUID) (*model.Document, error)
	ListUserDocuments(ctx context.Context, userID uuid.UUID) ([]model.Document, error)
}

type URLSigner interface {
	SignedURL(ctx context.Context, key string, disposition storage.Disposition, contentType string, ttl time.Duration) (string, error)
}

type DocumentService struct {
	documents DocumentReader
	signer    URLSigner
	ttl       time.Duration
}

func NewDocumentService(documents DocumentReader, signer URLSigner, ttl time.Duration) *DocumentService {
	return &DocumentService{documents: documents, signer: signer, ttl: ttl}
}

// ViewURL returns a short-lived signed URL for the document. The URL is
// never stored.
func (s *DocumentService) ViewURL(ctx context.Context, id uuid.UUID, disposition storage.Disposition) (string, error) {
	doc, err := s.documents.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: document %s", ErrNotFound, id)
		}
		return "", err
	}

	contentType := mime.TypeByExtension(path.Ext(doc.DownloadURL))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.signer.SignedURL(ctx, doc.DownloadURL, disposition, contentType, s.ttl)
}

func (s *DocumentService) ListMine(ctx context.Context, principal model.Principal) ([]model.Document, error) {
	docs, err := s.documents.ListUserDocuments(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []model.Document{}
	}
	return docs, nil
}
