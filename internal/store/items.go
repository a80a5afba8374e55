package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/swapshop/swapshop/internal/model"
)

const itemColumns = `id, title, description, category, condition, status, donor,
	reserved_by, claimed_by, approved, created_at, updated_at`

// NewItem holds the donor-supplied fields of a donation.
type NewItem struct {
	Title       string
	Description string
	Category    string
	Condition   string
	Donor       string
}

// ItemFilter narrows ListItems. Zero values match everything.
type ItemFilter struct {
	Approved   *bool
	Category   string
	Status     string
	Donor      string
	ReservedBy string
	ClaimedBy  string
}

// CreateItem inserts a pending item and its photo filenames in one transaction.
func CreateItem(ctx context.Context, db *sqlx.DB, in NewItem, images []string) (*model.Item, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO items (title, description, category, condition, status, donor, approved)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		in.Title, in.Description, in.Category, in.Condition, model.StatusPendingApproval, in.Donor,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	if err := setItemImages(ctx, tx, id, images); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Item, error) {
	item := &model.Item{}
	err := sqlx.GetContext(ctx, q, item, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	images, err := itemImages(ctx, q, []int64{id})
	if err != nil {
		return nil, err
	}
	item.Images = nonNil(images[id])
	return item, nil
}

// ListItems returns items in insertion order, narrowed by filter.
func ListItems(ctx context.Context, q sqlx.QueryerContext, filter ItemFilter) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	var args []any

	if filter.Approved != nil {
		query += ` AND approved = ?`
		args = append(args, *filter.Approved)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Donor != "" {
		query += ` AND donor = ?`
		args = append(args, filter.Donor)
	}
	if filter.ReservedBy != "" {
		query += ` AND reserved_by = ?`
		args = append(args, filter.ReservedBy)
	}
	if filter.ClaimedBy != "" {
		query += ` AND claimed_by = ?`
		args = append(args, filter.ClaimedBy)
	}

	query += ` ORDER BY id`

	items := []model.Item{}
	if err := sqlx.SelectContext(ctx, q, &items, query, args...); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	images, err := itemImages(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Images = nonNil(images[items[i].ID])
	}
	return items, nil
}

// ListCategories returns the distinct categories of approved items.
func ListCategories(ctx context.Context, q sqlx.QueryerContext) ([]string, error) {
	categories := []string{}
	err := sqlx.SelectContext(ctx, q, &categories,
		`SELECT DISTINCT category FROM items WHERE approved = 1 ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

// CountItems returns the number of stored items.
func CountItems(ctx context.Context, q sqlx.QueryerContext) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM items`); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

// ApproveItem publishes a pending item. Reports false when the item is
// missing or already approved.
func ApproveItem(ctx context.Context, db sqlx.ExecerContext, id int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET approved = 1, status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND approved = 0`,
		model.StatusAvailable, id,
	)
	if err != nil {
		return false, fmt.Errorf("approving item: %w", err)
	}
	return affected(result)
}

// ReserveItem claims an available item for user. The status check and the
// write are one statement, so concurrent callers cannot both win.
func ReserveItem(ctx context.Context, db sqlx.ExecerContext, id int64, user string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET status = ?, reserved_by = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND approved = 1 AND status = ? AND donor <> ?`,
		model.StatusReserved, user, id, model.StatusAvailable, user,
	)
	if err != nil {
		return false, fmt.Errorf("reserving item: %w", err)
	}
	return affected(result)
}

// UpdateItemStatus applies a donor's status change. It reports false when the
// item is missing or user is not its donor. Unsupported target statuses and
// changes to unapproved items are ignored but still report true.
func UpdateItemStatus(ctx context.Context, db *sqlx.DB, id int64, status, user string) (bool, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var row struct {
		Donor    string `db:"donor"`
		Approved bool   `db:"approved"`
	}
	err = tx.GetContext(ctx, &row, `SELECT donor, approved FROM items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading item: %w", err)
	}
	if row.Donor != user {
		return false, nil
	}
	if !row.Approved {
		return true, nil
	}

	switch status {
	case model.StatusTaken:
		_, err = tx.ExecContext(ctx,
			`UPDATE items SET status = ?,
			     claimed_by = CASE WHEN reserved_by <> '' THEN reserved_by ELSE claimed_by END,
			     reserved_by = '', updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND status <> ?`,
			model.StatusTaken, id, model.StatusTaken,
		)
	case model.StatusAvailable:
		_, err = tx.ExecContext(ctx,
			`UPDATE items SET status = ?, reserved_by = '', claimed_by = '', updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			model.StatusAvailable, id,
		)
	default:
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("updating item status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing status update: %w", err)
	}
	return true, nil
}

// DeleteItem removes an item and its image rows. Reports whether it existed.
func DeleteItem(ctx context.Context, db sqlx.ExecerContext, id int64) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	return affected(result)
}

// RejectItem deletes an item and appends a rejection notification to its
// donor in one transaction. Returns the removed item, or nil if none existed.
func RejectItem(ctx context.Context, db *sqlx.DB, id int64, reason string) (*model.Item, *model.Notification, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := GetItem(ctx, tx, id)
	if err != nil || item == nil {
		return nil, nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return nil, nil, fmt.Errorf("deleting rejected item: %w", err)
	}

	message := fmt.Sprintf("Your item %q was rejected by an administrator.", item.Title)
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("Your item %q was rejected by an administrator: %s", item.Title, reason)
	}
	n := &model.Notification{
		UserEmail: item.Donor,
		Type:      model.NotificationItemRejected,
		ItemID:    item.ID,
		ItemName:  item.Title,
		Message:   message,
	}
	if err := AddNotification(ctx, tx, n); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing rejection: %w", err)
	}
	return item, n, nil
}

// ImportItem inserts or replaces an item with an explicit ID, including its images.
func ImportItem(ctx context.Context, db *sqlx.DB, item *model.Item) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (id, title, description, category, condition, status, donor, reserved_by, claimed_by, approved)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     title = excluded.title, description = excluded.description,
		     category = excluded.category, condition = excluded.condition,
		     status = excluded.status, donor = excluded.donor,
		     reserved_by = excluded.reserved_by, claimed_by = excluded.claimed_by,
		     approved = excluded.approved, updated_at = CURRENT_TIMESTAMP`,
		item.ID, item.Title, item.Description, item.Category, item.Condition,
		item.Status, item.Donor, item.ReservedBy, item.ClaimedBy, item.Approved,
	)
	if err != nil {
		return fmt.Errorf("importing item %d: %w", item.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_images WHERE item_id = ?`, item.ID); err != nil {
		return fmt.Errorf("clearing item images: %w", err)
	}
	if err := setItemImages(ctx, tx, item.ID, item.Images); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing import of item %d: %w", item.ID, err)
	}
	return nil
}

func setItemImages(ctx context.Context, tx *sqlx.Tx, id int64, images []string) error {
	for pos, name := range images {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO item_images (item_id, position, filename) VALUES (?, ?, ?)`,
			id, pos, name,
		); err != nil {
			return fmt.Errorf("storing item image: %w", err)
		}
	}
	return nil
}

func itemImages(ctx context.Context, q sqlx.QueryerContext, ids []int64) (map[int64][]string, error) {
	query, args, err := sqlx.In(
		`SELECT item_id, filename FROM item_images WHERE item_id IN (?) ORDER BY item_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("building image query: %w", err)
	}

	var rows []struct {
		ItemID   int64  `db:"item_id"`
		Filename string `db:"filename"`
	}
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing item images: %w", err)
	}

	images := make(map[int64][]string, len(ids))
	for _, r := range rows {
		images[r.ItemID] = append(images[r.ItemID], r.Filename)
	}
	return images, nil
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}
	return n > 0, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
