package sheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/swapshop/swapshop/internal/model"
)

func TestWriteReadRoundTrip(t *testing.T) {
	items := []model.Item{
		{
			ID: 1, Title: "Calculus Textbook", Description: "Stewart", Category: "Books",
			Condition: "Good", Status: model.StatusReserved, Donor: "alice@lsu.edu",
			ReservedBy: "carlos@lsu.edu", Approved: true, Images: []string{"photo-1.jpg", "photo-2.jpg"},
		},
		{
			ID: 2, Title: "Mini Fridge", Description: "Works", Category: "Appliances",
			Condition: "Fair", Status: model.StatusPendingApproval, Donor: "sarah@lsu.edu",
			Images: []string{},
		},
		{
			ID: 5, Title: "Desk Chair", Description: "Comfortable", Category: "Furniture",
			Condition: "Good", Status: model.StatusTaken, Donor: "james@lsu.edu",
			ClaimedBy: "alice@lsu.edu", Approved: true, Images: []string{"photo-3.jpg"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, items))

	got, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(items))
	for i := range items {
		assert.Equal(t, items[i].ID, got[i].ID)
		assert.Equal(t, items[i].Title, got[i].Title)
		assert.Equal(t, items[i].Donor, got[i].Donor)
		assert.Equal(t, items[i].Status, got[i].Status)
		assert.Equal(t, items[i].Category, got[i].Category)
		assert.Equal(t, items[i].ReservedBy, got[i].ReservedBy)
		assert.Equal(t, items[i].ClaimedBy, got[i].ClaimedBy)
		assert.Equal(t, items[i].Approved, got[i].Approved)
		assert.Equal(t, items[i].Images, got[i].Images)
	}
}

func TestWriteUsesItemsSheetAndHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Columns, rows[0])
}

// legacyWorkbook builds a sheet the way the old spreadsheet stored items:
// booleans as TRUE/FALSE, legacy status spellings and stray reservers.
func legacyWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	header := []any{"ID", "Title", "Description", "Category", "Condition", "Status", "Donor", "ReservedBy", "Images", "ImageFolder", "Approved"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

func TestReadRepairsLegacyRows(t *testing.T) {
	buf := legacyWorkbook(t, [][]any{
		{1, "Lamp", "Desk lamp", "Furniture", "Good", "Pending Aproval", "alice@lsu.edu", "", "default.jpg", "1", false},
		{2, "Book", "Novel", "Books", "Good", "approved", "james@lsu.edu", "", "", "2", true},
		{3, "Fan", "Box fan", "Appliances", "Fair", "Available", "sarah@lsu.edu", "", "", "3", false},
		{4, "Mug", "Blue", "Kitchen", "New", "Reserved", "carlos@lsu.edu", "", "", "4", true},
		{5, "Rug", "Small", "Furniture", "Used", "Taken", "carlos@lsu.edu", "alice@lsu.edu", "a.jpg, b.jpg", "5", true},
		{6, "Pan", "Steel", "Kitchen", "Good", "Available", "alice@lsu.edu", "james@lsu.edu", "", "6", true},
		{},
	})

	items, err := Read(buf)
	require.NoError(t, err)
	require.Len(t, items, 6)

	assert.Equal(t, model.StatusPendingApproval, items[0].Status)
	assert.False(t, items[0].Approved)
	assert.Equal(t, []string{"default.jpg"}, items[0].Images)

	assert.Equal(t, model.StatusAvailable, items[1].Status)
	assert.True(t, items[1].Approved)

	// Unapproved rows are pending whatever their status said.
	assert.Equal(t, model.StatusPendingApproval, items[2].Status)

	// Reserved without a reserver becomes available again.
	assert.Equal(t, model.StatusAvailable, items[3].Status)
	assert.Empty(t, items[3].ReservedBy)

	assert.Equal(t, model.StatusTaken, items[4].Status)
	assert.Equal(t, "alice@lsu.edu", items[4].ClaimedBy)
	assert.Empty(t, items[4].ReservedBy)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, items[4].Images)

	assert.Equal(t, model.StatusAvailable, items[5].Status)
	assert.Empty(t, items[5].ReservedBy)
}

func TestReadRejectsBadIDs(t *testing.T) {
	_, err := Read(legacyWorkbook(t, [][]any{
		{"abc", "Lamp", "Desk lamp", "Furniture", "Good", "pending", "alice@lsu.edu"},
	}))
	assert.Error(t, err)

	_, err = Read(legacyWorkbook(t, [][]any{
		{1, "Lamp", "Desk lamp", "Furniture", "Good", "pending", "alice@lsu.edu"},
		{1, "Lamp", "Desk lamp", "Furniture", "Good", "pending", "alice@lsu.edu"},
	}))
	assert.Error(t, err)
}

func TestReadRejectsNonWorkbook(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("ID,Title\n1,Lamp\n")))
	assert.Error(t, err)
}
