// Package sheet reads and writes the items spreadsheet (.xlsx).
package sheet

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/swapshop/swapshop/internal/model"
)

// SheetName is the worksheet holding item rows.
const SheetName = "Items"

// Columns is the header row, in export order.
var Columns = []string{
	"ID", "Title", "Description", "Category", "Condition", "Status",
	"Donor", "ReservedBy", "ClaimedBy", "Images", "ImageFolder", "Approved",
}

// Write encodes items as a workbook with a single Items sheet.
func Write(w io.Writer, items []model.Item) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i := range items {
		it := &items[i]
		row := []any{
			it.ID, it.Title, it.Description, it.Category, it.Condition, it.Status,
			it.Donor, it.ReservedBy, it.ClaimedBy, strings.Join(it.Images, ","),
			it.ImageFolder(), it.Approved,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("writing item %d: %w", it.ID, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// Read decodes the first worksheet of a workbook into items. Columns are
// matched by header name. Rows are repaired so every item satisfies the
// status rules: unapproved items are pending, only reserved items carry a
// reserver.
func Read(r io.Reader) ([]model.Item, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	name := SheetName
	if idx, _ := f.GetSheetIndex(name); idx < 0 {
		name = f.GetSheetName(0)
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", name, err)
	}
	if len(rows) == 0 {
		return []model.Item{}, nil
	}

	col := map[string]int{}
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["id"]; !ok {
		return nil, fmt.Errorf("sheet %q has no ID column", name)
	}

	get := func(row []string, key string) string {
		i, ok := col[strings.ToLower(key)]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	items := make([]model.Item, 0, len(rows)-1)
	seen := map[int64]bool{}
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		id, err := strconv.ParseInt(get(row, "ID"), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("row %d: invalid ID %q", n+2, get(row, "ID"))
		}
		if seen[id] {
			return nil, fmt.Errorf("row %d: duplicate ID %d", n+2, id)
		}
		seen[id] = true

		it := model.Item{
			ID:          id,
			Title:       get(row, "Title"),
			Description: get(row, "Description"),
			Category:    get(row, "Category"),
			Condition:   get(row, "Condition"),
			Status:      get(row, "Status"),
			Donor:       model.NormalizeEmail(get(row, "Donor")),
			ReservedBy:  model.NormalizeEmail(get(row, "ReservedBy")),
			ClaimedBy:   model.NormalizeEmail(get(row, "ClaimedBy")),
			Approved:    parseBool(get(row, "Approved")),
			Images:      splitImages(get(row, "Images")),
		}
		repair(&it)
		items = append(items, it)
	}
	return items, nil
}

// repair maps legacy statuses and restores the reservation rules.
func repair(it *model.Item) {
	status, ok := model.NormalizeStatus(it.Status)
	if !ok {
		status = model.StatusAvailable
	}
	// Legacy "approved" status rows were published even without the flag.
	if it.Status == "approved" {
		it.Approved = true
	}

	switch {
	case !it.Approved:
		status = model.StatusPendingApproval
	case status == model.StatusPendingApproval:
		status = model.StatusAvailable
	}

	switch status {
	case model.StatusReserved:
		if it.ReservedBy == "" {
			status = model.StatusAvailable
		}
	case model.StatusTaken:
		if it.ClaimedBy == "" {
			it.ClaimedBy = it.ReservedBy
		}
		it.ReservedBy = ""
	default:
		it.ReservedBy = ""
	}
	it.Status = status
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

func splitImages(s string) []string {
	images := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			images = append(images, p)
		}
	}
	return images
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
