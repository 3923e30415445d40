package imports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wappdesk/backend/internal/config"
	"github.com/wappdesk/backend/internal/services"
	"github.com/wappdesk/backend/internal/storage"
	"github.com/wappdesk/backend/internal/tenant"
)

var (
	ErrImportNotFound = errors.New("import not found")
	ErrRowNotFound    = errors.New("import row not found")
	ErrInvalidType    = errors.New("import type must be user, prospect or foh")
	ErrFileTooLarge   = errors.New("file exceeds the size limit")
	ErrBadStatus      = errors.New("operation not allowed in the import's current status")
	ErrMappingPhone   = errors.New("mapping must assign a phone column")
	ErrMappingName    = errors.New("mapping must assign a name column")
	ErrAlreadyDone    = errors.New("import already finished")
)

// FileStore is the slice of object storage the import pipeline needs.
type FileStore interface {
	Put(ctx context.Context, clientID uuid.UUID, folder, filename string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, objectKey string) ([]byte, error)
	Delete(ctx context.Context, objectKey string) error
}

type Service struct {
	db          *gorm.DB
	cfg         *config.Config
	files       FileStore
	templates   *TemplateStore
	revalidator *Revalidator
	clients     *services.ClientService
	users       *services.UserService
}

func NewService(db *gorm.DB, cfg *config.Config, files *storage.Storage, clients *services.ClientService, users *services.UserService) *Service {
	return &Service{
		db:          db,
		cfg:         cfg,
		files:       files,
		templates:   NewTemplateStore(db),
		revalidator: NewRevalidator(db),
		clients:     clients,
		users:       users,
	}
}

func (s *Service) Templates() *TemplateStore {
	return s.templates
}

// UploadResult is what the client gets back right after an upload: the new
// import, a sniffed mapping proposal, and a saved template whose headers
// match the file, if any.
type UploadResult struct {
	Import   *Import          `json:"import"`
	Sniffed  SniffResult      `json:"sniffed"`
	Template *MappingTemplate `json:"template,omitempty"`
}

// Upload stores the raw file, parses the header row and creates the import
// in mapping state.
func (s *Service) Upload(ctx context.Context, clientID, userID uuid.UUID, importType, fileName string, data []byte) (*UploadResult, error) {
	switch importType {
	case TypeUser, TypeProspect, TypeFoh:
	default:
		return nil, ErrInvalidType
	}
	if int64(len(data)) > s.cfg.ImportMaxFileBytes {
		return nil, ErrFileTooLarge
	}

	headers, _, err := ParseCSV(data)
	if err != nil {
		return nil, err
	}

	objectKey, err := s.files.Put(ctx, clientID, "imports", fmt.Sprintf("%s_%s", uuid.NewString(), fileName), data, "text/csv")
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	hdrJSON, err := json.Marshal(headers)
	if err != nil {
		return nil, err
	}
	imp := &Import{
		ID:         uuid.New(),
		ClientID:   clientID,
		UploadedBy: userID,
		Type:       importType,
		Status:     StatusMapping,
		FileName:   fileName,
		ObjectKey:  objectKey,
		Headers:    datatypes.JSON(hdrJSON),
	}
	if err := s.db.Create(imp).Error; err != nil {
		return nil, err
	}

	isFoh := importType == TypeFoh
	res := &UploadResult{Import: imp, Sniffed: SniffHeaders(headers, isFoh)}
	tpl, err := s.templates.FindMatching(clientID, headers, isFoh)
	if err != nil {
		slog.Warn("template match failed", "error", err, "import_id", imp.ID)
	} else {
		res.Template = tpl
	}
	return res, nil
}

// ApplyMapping stages the file's data rows under the given column mapping
// and runs batch validation over them. Re-applying a mapping replaces the
// previous staging rows.
func (s *Service) ApplyMapping(ctx context.Context, clientID, importID uuid.UUID, mapping map[string]string) (*Import, error) {
	imp, err := s.Get(clientID, importID)
	if err != nil {
		return nil, err
	}
	switch imp.Status {
	case StatusMapping, StatusValidating, StatusValidated:
	default:
		return nil, ErrBadStatus
	}

	fieldFor := make(map[string]string, len(mapping))
	hasPhone, hasName := false, false
	for header, field := range mapping {
		fieldFor[header] = field
		switch field {
		case FieldPhone:
			hasPhone = true
		case FieldName:
			hasName = true
		}
	}
	if !hasPhone {
		return nil, ErrMappingPhone
	}
	if !hasName && imp.Type != TypeFoh {
		return nil, ErrMappingName
	}

	data, err := s.files.Get(ctx, imp.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("load upload: %w", err)
	}
	headers, records, err := ParseCSV(data)
	if err != nil {
		return nil, err
	}

	rows := make([]ImportRow, 0, len(records))
	for i, rec := range records {
		row := ImportRow{ID: uuid.New(), ImportID: imp.ID, RowIndex: i}
		custom := make(map[string]string)
		for col, header := range headers {
			value := rec[col]
			switch fieldFor[header] {
			case FieldCode:
				row.Code = value
			case FieldName:
				row.Name = value
			case FieldEmail:
				row.Email = value
			case FieldPhone:
				row.Phone = value
			case FieldPhoneCountry:
				row.PhoneCountry = value
			case FieldManagerEmail:
				row.ManagerEmail = value
			case FieldRole:
				row.Role = value
			case FieldSource:
				custom["source"] = value
			default:
				if value != "" {
					custom[header] = value
				}
			}
		}
		if len(custom) > 0 {
			if crmJSON, err := json.Marshal(custom); err == nil {
				row.CrmFields = datatypes.JSON(crmJSON)
			}
		}
		NormalizeRow(&row)
		rows = append(rows, row)
	}

	valid, invalid, err := ValidateBatch(imp.Type, rows,
		&dbExistingChecker{db: s.db, clientID: clientID, importType: imp.Type})
	if err != nil {
		return nil, err
	}

	mapJSON, err := json.Marshal(mapping)
	if err != nil {
		return nil, err
	}
	status := StatusValidating
	if invalid == 0 && valid > 0 {
		status = StatusValidated
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("import_id = ?", imp.ID).Delete(&ImportRow{}).Error; err != nil {
			return err
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return err
		}
		return tx.Model(&Import{}).Where("id = ?", imp.ID).Updates(map[string]interface{}{
			"mapping":      datatypes.JSON(mapJSON),
			"status":       status,
			"total_rows":   len(rows),
			"valid_rows":   valid,
			"invalid_rows": invalid,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(clientID, importID)
}

type ListResponse struct {
	Imports    []Import `json:"imports"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalPages int      `json:"total_pages"`
}

func (s *Service) List(clientID uuid.UUID, page, limit int) (*ListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var total int64
	if err := s.db.Model(&Import{}).Scopes(tenant.ForTenant(clientID)).Count(&total).Error; err != nil {
		return nil, err
	}
	var imports []Import
	err := s.db.Scopes(tenant.ForTenant(clientID)).
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&imports).Error
	if err != nil {
		return nil, err
	}
	return &ListResponse{
		Imports:    imports,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func (s *Service) Get(clientID, importID uuid.UUID) (*Import, error) {
	var imp Import
	err := s.db.Scopes(tenant.ForTenant(clientID)).First(&imp, "id = ?", importID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrImportNotFound
	}
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

// Delete removes an import, its staging rows and the stored file. A commit
// in flight cannot be deleted; cancel it first.
func (s *Service) Delete(ctx context.Context, clientID, importID uuid.UUID) error {
	imp, err := s.Get(clientID, importID)
	if err != nil {
		return err
	}
	if imp.Status == StatusProcessing {
		return ErrBadStatus
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("import_id = ?", imp.ID).Delete(&ImportRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Import{}, "id = ?", imp.ID).Error
	})
	if err != nil {
		return err
	}
	if imp.ObjectKey != "" {
		if err := s.files.Delete(ctx, imp.ObjectKey); err != nil {
			slog.Warn("delete import file failed", "error", err, "object_key", imp.ObjectKey)
		}
	}
	return nil
}

// File returns the original uploaded payload.
func (s *Service) File(ctx context.Context, clientID, importID uuid.UUID) ([]byte, string, error) {
	imp, err := s.Get(clientID, importID)
	if err != nil {
		return nil, "", err
	}
	data, err := s.files.Get(ctx, imp.ObjectKey)
	if err != nil {
		return nil, "", err
	}
	return data, imp.FileName, nil
}

type RowsResponse struct {
	Rows       []ImportRow `json:"rows"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

func (s *Service) Rows(clientID, importID uuid.UUID, page, limit int, onlyErrors bool) (*RowsResponse, error) {
	if _, err := s.Get(clientID, importID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	q := s.db.Model(&ImportRow{}).Where("import_id = ?", importID)
	if onlyErrors {
		q = q.Where("error_message <> ''")
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	var rows []ImportRow
	err := q.Order("row_index ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return &RowsResponse{
		Rows:       rows,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// UpdateRowRequest carries in-place edits to a staging row. Nil fields are
// left untouched.
type UpdateRowRequest struct {
	Code         *string `json:"code"`
	Name         *string `json:"name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	PhoneCountry *string `json:"phone_country"`
	ManagerEmail *string `json:"manager_email"`
	Role         *string `json:"role"`
}

// UpdateRow edits a staging row and revalidates every row the change could
// affect, including rows elsewhere in the file that referenced the old or
// new phone/email values.
func (s *Service) UpdateRow(clientID, importID, rowID uuid.UUID, req *UpdateRowRequest) (*Import, error) {
	imp, err := s.Get(clientID, importID)
	if err != nil {
		return nil, err
	}
	switch imp.Status {
	case StatusValidating, StatusValidated:
	default:
		return nil, ErrBadStatus
	}

	var row ImportRow
	err = s.db.First(&row, "id = ? AND import_id = ?", rowID, importID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRowNotFound
	}
	if err != nil {
		return nil, err
	}

	oldPhone, oldEmail := row.Phone, row.Email
	if req.Code != nil {
		row.Code = *req.Code
	}
	if req.Name != nil {
		row.Name = *req.Name
	}
	if req.Email != nil {
		row.Email = *req.Email
	}
	if req.Phone != nil {
		row.Phone = *req.Phone
	}
	if req.PhoneCountry != nil {
		row.PhoneCountry = strings.TrimSpace(*req.PhoneCountry)
	}
	if req.ManagerEmail != nil {
		row.ManagerEmail = *req.ManagerEmail
	}
	if req.Role != nil {
		row.Role = *req.Role
	}
	NormalizeRow(&row)

	if err := s.db.Save(&row).Error; err != nil {
		return nil, err
	}
	if err := s.revalidator.Revalidate(imp, oldPhone, row.Phone, oldEmail, row.Email); err != nil {
		return nil, err
	}
	return s.Get(clientID, importID)
}

// DeleteRow removes a staging row and revalidates rows that may have been
// duplicates of it.
func (s *Service) DeleteRow(clientID, importID, rowID uuid.UUID) (*Import, error) {
	imp, err := s.Get(clientID, importID)
	if err != nil {
		return nil, err
	}
	switch imp.Status {
	case StatusValidating, StatusValidated:
	default:
		return nil, ErrBadStatus
	}

	var row ImportRow
	err = s.db.First(&row, "id = ? AND import_id = ?", rowID, importID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRowNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.db.Delete(&ImportRow{}, "id = ?", row.ID).Error; err != nil {
		return nil, err
	}
	if err := s.revalidator.Revalidate(imp, row.Phone, "", row.Email, ""); err != nil {
		return nil, err
	}
	return s.Get(clientID, importID)
}

// Commit finalizes a validated import. The heavy lifting runs in the
// background; callers poll the import for progress. For user-type imports
// the tenant's seat limit is checked up front against the valid row count.
func (s *Service) Commit(clientID, importID uuid.UUID) (*Import, error) {
	imp, err := s.Get(clientID, importID)
	if err != nil {
		return nil, err
	}
	if imp.Status != StatusValidated {
		return nil, ErrBadStatus
	}
	if imp.Type != TypeProspect {
		if err := s.clients.CheckSeats(clientID, int64(imp.ValidRows)); err != nil {
			return nil, err
		}
	}

	var creator RecordCreator
	if imp.Type == TypeProspect {
		creator = &prospectCreator{db: s.db}
	} else {
		creator = &userCreator{users: s.users}
	}
	committer := NewCommitter(&gormCommitStore{db: s.db}, creator, s.cfg.ImportCommitChunk)

	go func() {
		if err := committer.Run(context.Background(), imp); err != nil {
			slog.Error("import commit failed",
				"import_id", imp.ID, "client_id", imp.ClientID, "error", err)
		}
	}()
	return imp, nil
}

// Cancel stops an import from any non-terminal state. A commit in flight
// notices the status change between rows and stops creating records.
func (s *Service) Cancel(clientID, importID uuid.UUID) (*Import, error) {
	imp, err := s.Get(clientID, importID)
	if err != nil {
		return nil, err
	}
	switch imp.Status {
	case StatusCompleted, StatusError, StatusCancelled:
		return nil, ErrAlreadyDone
	}
	err = s.db.Model(&Import{}).
		Where("id = ? AND status NOT IN ?", importID,
			[]string{StatusCompleted, StatusError, StatusCancelled}).
		Update("status", StatusCancelled).Error
	if err != nil {
		return nil, err
	}
	return s.Get(clientID, importID)
}
