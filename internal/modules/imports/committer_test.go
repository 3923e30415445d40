package imports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// fakeCommitStore keeps the import lifecycle in memory.
type fakeCommitStore struct {
	mu       sync.Mutex
	status   string
	rows     []ImportRow
	progress []int
	finished string
	summary  string
}

func (f *fakeCommitStore) Transition(_ uuid.UUID, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != from {
		return false, nil
	}
	f.status = to
	return true, nil
}

func (f *fakeCommitStore) CurrentStatus(uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakeCommitStore) ValidRowsPage(_ uuid.UUID, afterIndex, limit int) ([]ImportRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var page []ImportRow
	for _, r := range f.rows {
		if r.RowIndex > afterIndex && r.Valid() {
			page = append(page, r)
			if len(page) == limit {
				break
			}
		}
	}
	return page, nil
}

func (f *fakeCommitStore) SetProgress(_ uuid.UUID, progress int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, progress)
	return nil
}

func (f *fakeCommitStore) Finish(_ uuid.UUID, status, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != StatusProcessing {
		return nil
	}
	f.status = status
	f.finished = status
	f.summary = summary
	return nil
}

func (f *fakeCommitStore) cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = StatusCancelled
}

// fakeCreator records created rows and can fail selected indexes or run a
// hook after each creation.
type fakeCreator struct {
	mu      sync.Mutex
	created []int
	failAt  map[int]error
	after   func(created int)
}

func (f *fakeCreator) Create(_ *Import, row *ImportRow) error {
	f.mu.Lock()
	if err, ok := f.failAt[row.RowIndex]; ok {
		f.mu.Unlock()
		return err
	}
	f.created = append(f.created, row.RowIndex)
	n := len(f.created)
	f.mu.Unlock()
	if f.after != nil {
		f.after(n)
	}
	return nil
}

func validatedImport(n int) (*Import, *fakeCommitStore) {
	store := &fakeCommitStore{status: StatusValidated}
	for i := 0; i < n; i++ {
		store.rows = append(store.rows, ImportRow{
			ID:       uuid.New(),
			RowIndex: i,
			Name:     fmt.Sprintf("Row %d", i),
			Phone:    fmt.Sprintf("52155000000%02d", i),
		})
	}
	return &Import{ID: uuid.New(), ClientID: uuid.New(), Type: TypeUser, ValidRows: n}, store
}

func TestCommitterHappyPath(t *testing.T) {
	t.Parallel()

	imp, store := validatedImport(5)
	creator := &fakeCreator{}
	c := NewCommitter(store, creator, 2)

	if err := c.Run(context.Background(), imp); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if store.finished != StatusCompleted {
		t.Errorf("status = %q, want completed", store.finished)
	}
	if len(creator.created) != 5 {
		t.Errorf("created %d rows, want 5", len(creator.created))
	}
	for i, idx := range creator.created {
		if idx != i {
			t.Errorf("creation order broken at %d: got row %d", i, idx)
		}
	}
	if last := store.progress[len(store.progress)-1]; last != 100 {
		t.Errorf("final progress = %d, want 100", last)
	}
}

func TestCommitterDoubleCommitGuard(t *testing.T) {
	t.Parallel()

	imp, store := validatedImport(3)
	c := NewCommitter(store, &fakeCreator{}, 2)

	if err := c.Run(context.Background(), imp); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	err := c.Run(context.Background(), imp)
	if !errors.Is(err, ErrNotValidated) {
		t.Fatalf("second Run = %v, want ErrNotValidated", err)
	}
}

func TestCommitterSkipsInvalidRows(t *testing.T) {
	t.Parallel()

	imp, store := validatedImport(4)
	store.rows[1].ErrorMessage = errPhoneInvalid
	imp.ValidRows = 3
	creator := &fakeCreator{}
	c := NewCommitter(store, creator, 10)

	if err := c.Run(context.Background(), imp); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(creator.created) != 3 {
		t.Errorf("created %d rows, want 3", len(creator.created))
	}
	for _, idx := range creator.created {
		if idx == 1 {
			t.Errorf("invalid row 1 was committed")
		}
	}
}

func TestCommitterRowFailuresRecorded(t *testing.T) {
	t.Parallel()

	imp, store := validatedImport(4)
	creator := &fakeCreator{failAt: map[int]error{2: errors.New("email already registered")}}
	c := NewCommitter(store, creator, 2)

	if err := c.Run(context.Background(), imp); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if store.finished != StatusError {
		t.Errorf("status = %q, want error", store.finished)
	}
	if len(creator.created) != 3 {
		t.Errorf("created %d rows, want 3 (batch continues past a failure)", len(creator.created))
	}
	if !strings.Contains(store.summary, "row 3") {
		t.Errorf("summary %q should name the failed row", store.summary)
	}
}

func TestCommitterCancelMidway(t *testing.T) {
	t.Parallel()

	imp, store := validatedImport(10)
	creator := &fakeCreator{}
	creator.after = func(created int) {
		if created == 3 {
			store.cancel()
		}
	}
	c := NewCommitter(store, creator, 1)

	if err := c.Run(context.Background(), imp); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(creator.created) != 3 {
		t.Errorf("created %d rows after cancel at 3, want exactly 3", len(creator.created))
	}
	if got, _ := store.CurrentStatus(imp.ID); got != StatusCancelled {
		t.Errorf("status = %q, want cancelled (finish must not overwrite)", got)
	}
}

func TestCommitterCancelWithinChunk(t *testing.T) {
	t.Parallel()

	// The cancel flag is read before every row, so a cancel landing in
	// the middle of a page stops the batch without draining the page.
	imp, store := validatedImport(10)
	creator := &fakeCreator{}
	creator.after = func(created int) {
		if created == 2 {
			store.cancel()
		}
	}
	c := NewCommitter(store, creator, 5)

	if err := c.Run(context.Background(), imp); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(creator.created) != 2 {
		t.Errorf("created %d rows after cancel at 2, want exactly 2", len(creator.created))
	}
	if got, _ := store.CurrentStatus(imp.ID); got != StatusCancelled {
		t.Errorf("status = %q, want cancelled", got)
	}
}

func TestCommitterEmptyImport(t *testing.T) {
	t.Parallel()

	imp, store := validatedImport(0)
	c := NewCommitter(store, &fakeCreator{}, 5)
	if err := c.Run(context.Background(), imp); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if store.finished != StatusCompleted {
		t.Errorf("status = %q, want completed", store.finished)
	}
}
