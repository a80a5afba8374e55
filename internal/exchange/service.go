// Package exchange implements the item lifecycle: donation, moderation,
// reservation and hand-over.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/metrics"
	"github.com/swapshop/swapshop/internal/model"
	"github.com/swapshop/swapshop/internal/photos"
	"github.com/swapshop/swapshop/internal/store"
)

// DonateRequest carries the fields of a new donation.
type DonateRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category" validate:"required"`
	Condition   string `json:"condition" validate:"required"`
	Donor       string `json:"donor" validate:"required"`
}

// ValidationError lists the request fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// MyItems groups the items relevant to one user.
type MyItems struct {
	Donated  []model.Item `json:"donated"`
	Pending  []model.Item `json:"pending"`
	Approved []model.Item `json:"approved"`
	Reserved []model.Item `json:"reserved"`
	Claimed  []model.Item `json:"claimed"`
}

// Service coordinates the item store and the photo store.
type Service struct {
	db        *sqlx.DB
	photos    *photos.Store
	validator *validator.Validate
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewService constructs the exchange service. validate, m and logger may be nil.
func NewService(db *sqlx.DB, ps *photos.Store, validate *validator.Validate, m *metrics.Metrics, logger *zap.Logger) *Service {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, photos: ps, validator: validate, metrics: m, logger: logger}
}

// Donate validates req, stores the photos and creates a pending item.
func (s *Service) Donate(ctx context.Context, req DonateRequest, uploads []io.Reader) (*model.Item, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Category = strings.TrimSpace(req.Category)
	req.Condition = strings.TrimSpace(req.Condition)
	req.Donor = model.NormalizeEmail(req.Donor)

	if err := s.validator.Struct(req); err != nil {
		return nil, toValidationError(err)
	}

	staged, err := s.photos.Stage(uploads)
	if err != nil {
		return nil, fmt.Errorf("storing photos: %w", err)
	}

	item, err := store.CreateItem(ctx, s.db, store.NewItem{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Condition:   req.Condition,
		Donor:       req.Donor,
	}, staged.Names)
	if err != nil {
		staged.Discard()
		return nil, err
	}

	if err := staged.Commit(item.ID); err != nil {
		staged.Discard()
		if _, delErr := store.DeleteItem(ctx, s.db, item.ID); delErr != nil {
			s.logger.Error("removing item after photo failure", zap.Int64("item_id", item.ID), zap.Error(delErr))
		}
		s.photos.RemoveItem(item.ID)
		return nil, fmt.Errorf("storing photos: %w", err)
	}

	s.metrics.ItemEvent("donated")
	s.logger.Info("item donated",
		zap.Int64("item_id", item.ID),
		zap.String("donor", item.Donor),
		zap.String("category", item.Category),
		zap.Int("photos", len(item.Images)),
	)
	return item, nil
}

// Approve publishes a pending item. Unknown or already approved items are a no-op.
func (s *Service) Approve(ctx context.Context, id int64) (bool, error) {
	ok, err := store.ApproveItem(ctx, s.db, id)
	if err != nil {
		return false, err
	}
	if ok {
		s.metrics.ItemEvent("approved")
		s.logger.Info("item approved", zap.Int64("item_id", id))
	}
	return ok, nil
}

// Reject deletes an item, notifies its donor and removes its photos.
func (s *Service) Reject(ctx context.Context, id int64, reason string) (bool, error) {
	item, n, err := store.RejectItem(ctx, s.db, id, reason)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}

	s.removePhotos(id)
	s.metrics.ItemEvent("rejected")
	s.logger.Info("item rejected",
		zap.Int64("item_id", id),
		zap.String("donor", item.Donor),
		zap.String("notification_id", n.ID),
		zap.String("reason", reason),
	)
	return true, nil
}

// Reserve claims an available item for user. It reports false when the item
// is missing, unapproved, not available or donated by user.
func (s *Service) Reserve(ctx context.Context, id int64, user string) (bool, error) {
	user = model.NormalizeEmail(user)
	if user == "" {
		return false, nil
	}
	ok, err := store.ReserveItem(ctx, s.db, id, user)
	if err != nil {
		return false, err
	}
	s.metrics.Reservation(ok)
	if ok {
		s.logger.Info("item reserved", zap.Int64("item_id", id), zap.String("user", user))
	} else {
		s.logger.Debug("reservation refused", zap.Int64("item_id", id), zap.String("user", user))
	}
	return ok, nil
}

// UpdateStatus applies a donor's status change. It reports false when the
// item is missing or user is not the donor.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status, user string) (bool, error) {
	ok, err := store.UpdateItemStatus(ctx, s.db, id, status, model.NormalizeEmail(user))
	if err != nil {
		return false, err
	}
	if ok {
		switch status {
		case model.StatusTaken:
			s.metrics.ItemEvent("taken")
		case model.StatusAvailable:
			s.metrics.ItemEvent("relisted")
		}
		s.logger.Info("item status updated", zap.Int64("item_id", id), zap.String("status", status))
	}
	return ok, nil
}

// Delete removes an item and its photos.
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	ok, err := store.DeleteItem(ctx, s.db, id)
	if err != nil {
		return false, err
	}
	s.removePhotos(id)
	if ok {
		s.metrics.ItemEvent("deleted")
		s.logger.Info("item deleted", zap.Int64("item_id", id))
	}
	return ok, nil
}

// Get returns an item by ID, or nil if it does not exist.
func (s *Service) Get(ctx context.Context, id int64) (*model.Item, error) {
	return store.GetItem(ctx, s.db, id)
}

// GetVisible returns an item if viewer may see it. Unapproved items are only
// visible to their donor and to admins.
func (s *Service) GetVisible(ctx context.Context, id int64, viewer string, admin bool) (*model.Item, error) {
	item, err := store.GetItem(ctx, s.db, id)
	if err != nil || item == nil {
		return nil, err
	}
	if !item.Approved && !admin && item.Donor != viewer {
		return nil, nil
	}
	return item, nil
}

// Browse lists approved items, optionally limited to one category.
func (s *Service) Browse(ctx context.Context, category string) ([]model.Item, error) {
	approved := true
	return store.ListItems(ctx, s.db, store.ItemFilter{Approved: &approved, Category: category})
}

// List returns items matching filter.
func (s *Service) List(ctx context.Context, filter store.ItemFilter) ([]model.Item, error) {
	return store.ListItems(ctx, s.db, filter)
}

// Categories returns the categories of approved items.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return store.ListCategories(ctx, s.db)
}

// Moderation returns pending and approved items for the admin page.
func (s *Service) Moderation(ctx context.Context) (pending, approved []model.Item, err error) {
	all, err := store.ListItems(ctx, s.db, store.ItemFilter{})
	if err != nil {
		return nil, nil, err
	}
	pending, approved = []model.Item{}, []model.Item{}
	for _, it := range all {
		if it.Approved {
			approved = append(approved, it)
		} else {
			pending = append(pending, it)
		}
	}
	return pending, approved, nil
}

// Mine returns the items donated, reserved or claimed by email.
func (s *Service) Mine(ctx context.Context, email string) (*MyItems, error) {
	email = model.NormalizeEmail(email)

	donated, err := store.ListItems(ctx, s.db, store.ItemFilter{Donor: email})
	if err != nil {
		return nil, err
	}
	reserved, err := store.ListItems(ctx, s.db, store.ItemFilter{ReservedBy: email})
	if err != nil {
		return nil, err
	}
	claimed, err := store.ListItems(ctx, s.db, store.ItemFilter{ClaimedBy: email})
	if err != nil {
		return nil, err
	}

	mine := &MyItems{
		Donated:  donated,
		Pending:  []model.Item{},
		Approved: []model.Item{},
		Reserved: reserved,
		Claimed:  claimed,
	}
	for _, it := range donated {
		if it.Approved {
			mine.Approved = append(mine.Approved, it)
		} else {
			mine.Pending = append(mine.Pending, it)
		}
	}
	return mine, nil
}

func (s *Service) removePhotos(id int64) {
	if err := s.photos.RemoveItem(id); err != nil {
		s.logger.Warn("removing photo folder", zap.Int64("item_id", id), zap.Error(err))
	}
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating donation: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return &ValidationError{Fields: fields}
}
