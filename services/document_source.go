package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/voicetutor/api/model"
	"github.com/voicetutor/api/services/spaces"
	"github.com/voicetutor/api/utils/pdfvalidation"
	"gorm.io/gorm"
)

// DocumentSourceService resolves study documents to their metadata rows and
// raw Spaces content. Text extraction and embedding happen in a separate
// pipeline; this service only hands bytes to the agent provider.
type DocumentSourceService struct {
	db     *gorm.DB
	spaces *spaces.Client
}

// NewDocumentSourceService creates a new document source
func NewDocumentSourceService(db *gorm.DB, spacesClient *spaces.Client) *DocumentSourceService {
	return &DocumentSourceService{db: db, spaces: spacesClient}
}

// GetDocument returns the metadata row for a document owned by the user, or
// (nil, nil) when it does not exist or belongs to someone else.
func (s *DocumentSourceService) GetDocument(ctx context.Context, docID uint, userID uint) (*model.StudyDocument, error) {
	var doc model.StudyDocument
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", docID, userID).
		First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query document %d: %w", docID, err)
	}
	return &doc, nil
}

// GetDocumentContent fetches the raw content for a document from Spaces.
// Returns (nil, nil) when the row or the stored object is missing, and also
// when a PDF fails the sanity check; all three mean "skip this document".
func (s *DocumentSourceService) GetDocumentContent(ctx context.Context, docID uint) ([]byte, error) {
	var doc model.StudyDocument
	err := s.db.WithContext(ctx).First(&doc, docID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query document %d: %w", docID, err)
	}

	content, err := s.spaces.Download(ctx, doc.SpacesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content for document %d: %w", docID, err)
	}
	if content == nil {
		return nil, nil
	}

	if strings.EqualFold(doc.FileType, "application/pdf") {
		result, err := pdfvalidation.ValidatePDFBytes(content, pdfvalidation.DefaultLimits)
		if err != nil {
			log.Printf("DocumentSource: document %d failed PDF validation, skipping: %v", docID, err)
			return nil, nil
		}
		if !result.Valid {
			log.Printf("DocumentSource: document %d failed PDF validation, skipping: %s", docID, result.Error)
			return nil, nil
		}
	}

	return content, nil
}
