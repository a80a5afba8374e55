package exchange

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/model"
	"github.com/swapshop/swapshop/internal/sheet"
	"github.com/swapshop/swapshop/internal/store"
)

// ImportSheet loads items from a workbook, replacing stored items with the
// same ID. Returns the number of items written.
func (s *Service) ImportSheet(ctx context.Context, r io.Reader) (int, error) {
	items, err := sheet.Read(r)
	if err != nil {
		return 0, err
	}
	return s.ImportItems(ctx, items)
}

// ImportItems stores items with their given IDs and makes sure each has a
// photo folder.
func (s *Service) ImportItems(ctx context.Context, items []model.Item) (int, error) {
	for i := range items {
		if err := store.ImportItem(ctx, s.db, &items[i]); err != nil {
			return i, err
		}
		if err := s.photos.EnsureItemDir(items[i].ID); err != nil {
			return i + 1, err
		}
	}
	s.logger.Info("items imported", zap.Int("count", len(items)))
	return len(items), nil
}

// ExportSheet writes every stored item as a workbook.
func (s *Service) ExportSheet(ctx context.Context, w io.Writer) error {
	items, err := store.ListItems(ctx, s.db, store.ItemFilter{})
	if err != nil {
		return err
	}
	return sheet.Write(w, items)
}

// Empty reports whether no items are stored.
func (s *Service) Empty(ctx context.Context) (bool, error) {
	n, err := store.CountItems(ctx, s.db)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}
