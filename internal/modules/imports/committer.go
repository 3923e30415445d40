package imports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wappdesk/backend/internal/models"
	"github.com/wappdesk/backend/internal/services"
)

var (
	ErrNotValidated = errors.New("import is not in validated state")
)

// maxStoredFailures bounds the failure list kept on the import so a
// pathological file cannot balloon the error summary column.
const maxStoredFailures = 20

// maxReasonLen truncates individual failure reasons in the summary.
const maxReasonLen = 120

// RecordCreator turns one validated staging row into a persisted record.
type RecordCreator interface {
	Create(imp *Import, row *ImportRow) error
}

// CommitStore is the persistence surface the committer drives. Separated
// out so commit semantics are testable without a database.
type CommitStore interface {
	// Transition atomically moves the import between statuses; it reports
	// false when the import was not in the expected state.
	Transition(importID uuid.UUID, from, to string) (bool, error)
	CurrentStatus(importID uuid.UUID) (string, error)
	// ValidRowsPage returns up to limit valid rows with row_index greater
	// than afterIndex, ordered by row_index.
	ValidRowsPage(importID uuid.UUID, afterIndex, limit int) ([]ImportRow, error)
	SetProgress(importID uuid.UUID, progress int) error
	Finish(importID uuid.UUID, status, summary string) error
}

// Committer walks an import's valid rows in order and creates the final
// records. Failures on individual rows are recorded and do not stop the
// batch; a cancel requested mid-commit is honored between rows.
type Committer struct {
	store     CommitStore
	creator   RecordCreator
	chunkSize int
}

func NewCommitter(store CommitStore, creator RecordCreator, chunkSize int) *Committer {
	if chunkSize <= 0 {
		chunkSize = 200
	}
	return &Committer{store: store, creator: creator, chunkSize: chunkSize}
}

// Run commits the import. The guard transition from validated to
// processing makes concurrent double-commits resolve to a single winner.
func (c *Committer) Run(ctx context.Context, imp *Import) error {
	ok, err := c.store.Transition(imp.ID, StatusValidated, StatusProcessing)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotValidated
	}

	total := imp.ValidRows
	processed := 0
	failed := 0
	var failures []string
	afterIndex := -1

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := c.store.ValidRowsPage(imp.ID, afterIndex, c.chunkSize)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			break
		}

		for i := range rows {
			status, err := c.store.CurrentStatus(imp.ID)
			if err != nil {
				return err
			}
			if status == StatusCancelled {
				return nil
			}
			row := &rows[i]
			if err := c.creator.Create(imp, row); err != nil {
				failed++
				if len(failures) < maxStoredFailures {
					failures = append(failures,
						fmt.Sprintf("row %d: %s", row.RowIndex+1, truncateReason(err.Error())))
				}
			}
			processed++
			afterIndex = row.RowIndex
		}

		progress := 100
		if total > 0 {
			progress = processed * 100 / total
		}
		if err := c.store.SetProgress(imp.ID, progress); err != nil {
			return err
		}
	}

	summary := strings.Join(failures, "; ")
	if failed > maxStoredFailures {
		summary += fmt.Sprintf("; and %d more", failed-maxStoredFailures)
	}
	if failed > 0 {
		return c.store.Finish(imp.ID, StatusError,
			fmt.Sprintf("%d of %d rows failed: %s", failed, processed, summary))
	}
	return c.store.Finish(imp.ID, StatusCompleted, "")
}

func truncateReason(reason string) string {
	if len(reason) > maxReasonLen {
		return reason[:maxReasonLen-3] + "..."
	}
	return reason
}

// gormCommitStore is the database-backed CommitStore.
type gormCommitStore struct {
	db *gorm.DB
}

func (s *gormCommitStore) Transition(importID uuid.UUID, from, to string) (bool, error) {
	res := s.db.Model(&Import{}).
		Where("id = ? AND status = ?", importID, from).
		Update("status", to)
	return res.RowsAffected > 0, res.Error
}

func (s *gormCommitStore) CurrentStatus(importID uuid.UUID) (string, error) {
	var imp Import
	if err := s.db.Select("status").First(&imp, "id = ?", importID).Error; err != nil {
		return "", err
	}
	return imp.Status, nil
}

func (s *gormCommitStore) ValidRowsPage(importID uuid.UUID, afterIndex, limit int) ([]ImportRow, error) {
	var rows []ImportRow
	err := s.db.
		Where("import_id = ? AND row_index > ? AND error_message = ''", importID, afterIndex).
		Order("row_index ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (s *gormCommitStore) SetProgress(importID uuid.UUID, progress int) error {
	return s.db.Model(&Import{}).Where("id = ?", importID).
		Update("progress", progress).Error
}

func (s *gormCommitStore) Finish(importID uuid.UUID, status, summary string) error {
	return s.db.Model(&Import{}).
		Where("id = ? AND status = ?", importID, StatusProcessing).
		Updates(map[string]interface{}{
			"status":        status,
			"progress":      100,
			"error_summary": summary,
		}).Error
}

// userCreator persists user and front-of-house rows through the user
// service so commit-time creation enforces the same rules as the API.
type userCreator struct {
	users *services.UserService
}

func (c *userCreator) Create(imp *Import, row *ImportRow) error {
	name := row.Name
	if name == "" && imp.Type == TypeFoh {
		// Front-of-house accounts are phone-identified; give them a
		// recognizable placeholder name.
		suffix := row.Phone
		if len(suffix) > 4 {
			suffix = suffix[len(suffix)-4:]
		}
		name = "FOH " + suffix
	}
	_, err := c.users.Create(imp.ClientID, &services.CreateUserRequest{
		Code:         row.Code,
		Name:         name,
		Email:        row.Email,
		Phone:        row.Phone,
		PhoneCountry: row.PhoneCountry,
		Role:         row.Role,
		ManagerEmail: row.ManagerEmail,
	})
	return err
}

// prospectCreator persists prospect rows directly.
type prospectCreator struct {
	db *gorm.DB
}

func (c *prospectCreator) Create(imp *Import, row *ImportRow) error {
	crm := row.CrmFields
	if len(crm) == 0 {
		crm = datatypes.JSON([]byte("{}"))
	}
	return c.db.Create(&models.Prospect{
		ID:           uuid.New(),
		ClientID:     imp.ClientID,
		Name:         row.Name,
		Phone:        row.Phone,
		PhoneCountry: row.PhoneCountry,
		Email:        row.Email,
		Source:       "import",
		CrmFields:    crm,
	}).Error
}
