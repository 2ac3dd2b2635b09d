package receipt

import (
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service owns the durable side of the pipeline: committing confirmed
// drafts, receipt CRUD, and the stored source images
type Service struct {
	db          DB
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, storage Storage) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		idGenerator: &uuidGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// CommitDraft turns a confirmed draft into a persisted receipt. The
// presentation-only OCR fields are dropped, uncategorized items are
// categorized, and the receipt category is inferred from the items when the
// user left it at the default. The draft itself is untouched: on failure the
// caller keeps it staged and may retry with the same data.
func (s *Service) CommitDraft(draft *Draft) (*Receipt, error) {
	now := s.timeSource.Now()

	items := make([]ReceiptItem, len(draft.Items))
	copy(items, draft.Items)
	CategorizeItems(items)

	category := draft.Category
	if !ValidCategory(category) || category == CategoryOther {
		category = InferCategory(items)
	}

	tags := draft.Tags
	if len(tags) == 0 {
		tags = []string{"verified", "ocr-extracted"}
	}

	date := draft.Date
	if date == "" {
		date = now.Format("2006-01-02")
	}

	rec := &Receipt{
		ID:          s.idGenerator.Generate(),
		StoreName:   draft.StoreName,
		Date:        date,
		TotalAmount: draft.TotalAmount,
		TaxAmount:   draft.TaxAmount,
		Category:    category,
		Items:       items,
		Tags:        tags,
		Notes:       draft.Notes,
		ImageURL:    draft.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.db.SaveReceipt(rec); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}

	return rec, nil
}

// CreateReceipt persists a manually entered receipt. Client-supplied id and
// timestamps are ignored; the persistence layer assigns its own.
func (s *Service) CreateReceipt(rec *Receipt) (*Receipt, error) {
	now := s.timeSource.Now()

	saved := *rec
	saved.ID = s.idGenerator.Generate()
	saved.CreatedAt = now
	saved.UpdatedAt = now
	if !ValidCategory(saved.Category) {
		saved.Category = CategoryOther
	}
	if saved.Date == "" {
		saved.Date = now.Format("2006-01-02")
	}
	if saved.Items == nil {
		saved.Items = []ReceiptItem{}
	}
	if saved.Tags == nil {
		saved.Tags = []string{}
	}

	if err := s.db.SaveReceipt(&saved); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}

	return &saved, nil
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	rec, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return rec, nil
}

// ListReceipts returns all receipts
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// UpdateReceipt replaces a persisted receipt. Identity and creation time are
// preserved; UpdatedAt is refreshed. A single attempt, surfaced to the user
// on failure.
func (s *Service) UpdateReceipt(id string, updated *Receipt) (*Receipt, error) {
	existing, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt for update: %w", err)
	}

	saved := *updated
	saved.ID = existing.ID
	saved.CreatedAt = existing.CreatedAt
	saved.UpdatedAt = s.timeSource.Now()
	if saved.ImageURL == "" {
		saved.ImageURL = existing.ImageURL
	}
	if !ValidCategory(saved.Category) {
		saved.Category = CategoryOther
	}
	if saved.Items == nil {
		saved.Items = []ReceiptItem{}
	}
	if saved.Tags == nil {
		saved.Tags = []string{}
	}

	if err := s.db.SaveReceipt(&saved); err != nil {
		return nil, fmt.Errorf("updating receipt: %w", err)
	}

	return &saved, nil
}

// DeleteReceipt removes a receipt and its stored image. Delete is immediate
// and irreversible; there is no soft delete.
func (s *Service) DeleteReceipt(id string) error {
	rec, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	if path := storedPath(rec.ImageURL); path != "" {
		if err := s.storage.Delete(path); err != nil {
			// Keep going; an orphaned file beats an undeletable receipt
			slog.Warn("Failed to delete receipt image", "path", path, "error", err)
		}
	}

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the stored source image for a receipt
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	rec, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	path := storedPath(rec.ImageURL)
	if path == "" {
		return nil, "", fmt.Errorf("receipt %s has no stored image", id)
	}

	data, err := s.storage.Get(path)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return data, contentType, nil
}

// Stats summarizes the receipt collection: totals plus the last six months
// of spend. Recomputed from the full set on every call.
func (s *Service) Stats() (*Stats, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts for stats: %w", err)
	}

	stats := &Stats{
		TotalReceipts: len(receipts),
		Monthly:       []MonthlyTotal{},
	}
	for _, rec := range receipts {
		stats.TotalAmount += rec.TotalAmount
	}
	if len(receipts) > 0 {
		stats.AvgAmount = stats.TotalAmount / float64(len(receipts))
	}

	now := s.timeSource.Now()
	for i := 5; i >= 0; i-- {
		month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -i, 0)
		total := MonthlyTotal{Month: month.Format("Jan 2006")}
		for _, rec := range receipts {
			if rec.CreatedAt.Year() == month.Year() && rec.CreatedAt.Month() == month.Month() {
				total.Amount += rec.TotalAmount
				total.Count++
			}
		}
		stats.Monthly = append(stats.Monthly, total)
	}

	return stats, nil
}

// storedPath maps an imageUrl back to the storage path it references
func storedPath(imageURL string) string {
	return strings.TrimPrefix(imageURL, "/uploads/")
}
