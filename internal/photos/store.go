package photos

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultMaxPhotos is the number of photos accepted per donation.
const DefaultMaxPhotos = 5

var (
	// ErrUnsupportedFormat is returned for uploads that are not JPEG or PNG.
	ErrUnsupportedFormat = errors.New("unsupported photo format (only JPEG and PNG accepted)")
	// ErrTooManyPhotos is returned when a donation carries more than MaxPhotos uploads.
	ErrTooManyPhotos = errors.New("too many photos")
)

const stagingDir = ".staging"

// Store keeps item photos on disk under Dir/<item id>/.
type Store struct {
	Dir       string
	MaxPhotos int
}

// NewStore creates the upload directory if needed.
func NewStore(dir string, maxPhotos int) (*Store, error) {
	if maxPhotos <= 0 {
		maxPhotos = DefaultMaxPhotos
	}
	if err := os.MkdirAll(filepath.Join(dir, stagingDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Store{Dir: dir, MaxPhotos: maxPhotos}, nil
}

// Staged is a set of processed photos waiting for their item ID.
type Staged struct {
	store *Store
	dir   string
	Names []string
}

// Stage normalizes and writes uploads into a private staging folder. Nothing
// is visible under an item folder until Commit.
func (s *Store) Stage(uploads []io.Reader) (*Staged, error) {
	if len(uploads) > s.MaxPhotos {
		return nil, fmt.Errorf("%w: %d given, at most %d", ErrTooManyPhotos, len(uploads), s.MaxPhotos)
	}

	dir, err := os.MkdirTemp(filepath.Join(s.Dir, stagingDir), "upload-")
	if err != nil {
		return nil, fmt.Errorf("creating staging folder: %w", err)
	}
	staged := &Staged{store: s, dir: dir, Names: []string{}}

	for i, r := range uploads {
		data, err := Normalize(r)
		if err != nil {
			staged.Discard()
			return nil, fmt.Errorf("photo %d: %w", i+1, err)
		}
		name := fmt.Sprintf("photo-%d-%d.jpg", time.Now().UnixMilli(), rand.Int64N(1_000_000_000))
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			staged.Discard()
			return nil, fmt.Errorf("writing photo: %w", err)
		}
		staged.Names = append(staged.Names, name)
	}
	return staged, nil
}

// Commit moves the staged photos into the item's folder.
func (st *Staged) Commit(id int64) error {
	final := st.store.ItemDir(id)
	if err := os.RemoveAll(final); err != nil {
		return fmt.Errorf("clearing photo folder: %w", err)
	}
	if err := os.Rename(st.dir, final); err != nil {
		return fmt.Errorf("moving photos into place: %w", err)
	}
	return nil
}

// Discard deletes the staging folder.
func (st *Staged) Discard() {
	os.RemoveAll(st.dir)
}

// ItemDir returns the folder holding an item's photos.
func (s *Store) ItemDir(id int64) string {
	return filepath.Join(s.Dir, strconv.FormatInt(id, 10))
}

// RemoveItem deletes an item's photo folder. A missing folder is not an error.
func (s *Store) RemoveItem(id int64) error {
	if err := os.RemoveAll(s.ItemDir(id)); err != nil {
		return fmt.Errorf("removing photo folder: %w", err)
	}
	return nil
}

// CleanStaging removes uploads left behind by an interrupted donation.
func (s *Store) CleanStaging() error {
	root := filepath.Join(s.Dir, stagingDir)
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("cleaning staging folder: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating staging folder: %w", err)
	}
	return nil
}

// EnsureItemDir creates an item's photo folder if it is missing.
func (s *Store) EnsureItemDir(id int64) error {
	if err := os.MkdirAll(s.ItemDir(id), 0o755); err != nil {
		return fmt.Errorf("creating photo folder: %w", err)
	}
	return nil
}
