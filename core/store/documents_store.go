package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Document is the archive metadata row. IssuingDepartment is a department
// name, not a foreign key; the client-side scoping rules compare it to the
// acting profile's department verbatim.
type Document struct {
	ID                   int64      `json:"id"`
	Title                string     `json:"title"`
	ReferenceNumber      string     `json:"reference_number"`
	DocumentDate         *time.Time `json:"document_date,omitempty"`
	DocumentType         string     `json:"document_type"`
	CategoryID           int64      `json:"category_id"`
	FilePath             string     `json:"file_path"`
	FileType             string     `json:"file_type"`
	FileSize             int64      `json:"file_size"`
	OriginalFilename     string     `json:"original_filename"`
	IssuingDepartment    string     `json:"issuing_department"`
	Description          string     `json:"description"`
	BudgetYear           string     `json:"budget_year"`
	BudgetProgram        string     `json:"budget_program"`
	MarketType           string     `json:"market_type"`
	ConfidentialityLevel string     `json:"confidentiality_level"`
	Status               string     `json:"status"`
	ArchiveZone          string     `json:"archive_zone"`
	ArchiveRoom          string     `json:"archive_room"`
	ArchiveCabinet       string     `json:"archive_cabinet"`
	ArchiveShelf         string     `json:"archive_shelf"`
	ArchiveBox           string     `json:"archive_box"`
	ArchiveFolder        string     `json:"archive_folder"`
	ArchiveCode          string     `json:"archive_code"`
	UploadDate           time.Time  `json:"upload_date"`
	UploadedBy           int64      `json:"uploaded_by"`
	LastModified         *time.Time `json:"last_modified,omitempty"`
	ModifiedBy           *int64     `json:"modified_by,omitempty"`
}

const (
	DocStatusActive   = "actif"
	DocStatusArchived = "archivé"
)

// MarketTypes and ConfidentialityLevels are the closed enums accepted on
// create/update.
var (
	MarketTypes           = []string{"DC", "DRPR", "DRPO", "AAO"}
	ConfidentialityLevels = []string{"C0", "C1", "C2", "C3"}
)

func ValidMarketType(v string) bool {
	if v == "" {
		return true
	}
	for _, m := range MarketTypes {
		if v == m {
			return true
		}
	}
	return false
}

func ValidConfidentiality(v string) bool {
	if v == "" {
		return true
	}
	for _, c := range ConfidentialityLevels {
		if v == c {
			return true
		}
	}
	return false
}

// DocumentUpdate is a partial update; nil fields are left untouched.
// IssuingDepartment is honored only when the caller passed the admin gate —
// the service strips it for scoped roles before the store ever sees it.
type DocumentUpdate struct {
	Title                *string    `json:"title,omitempty"`
	ReferenceNumber      *string    `json:"reference_number,omitempty"`
	DocumentDate         *time.Time `json:"document_date,omitempty"`
	DocumentType         *string    `json:"document_type,omitempty"`
	CategoryID           *int64     `json:"category_id,omitempty"`
	IssuingDepartment    *string    `json:"issuing_department,omitempty"`
	Description          *string    `json:"description,omitempty"`
	BudgetYear           *string    `json:"budget_year,omitempty"`
	BudgetProgram        *string    `json:"budget_program,omitempty"`
	MarketType           *string    `json:"market_type,omitempty"`
	ConfidentialityLevel *string    `json:"confidentiality_level,omitempty"`
	Status               *string    `json:"status,omitempty"`
	ArchiveZone          *string    `json:"archive_zone,omitempty"`
	ArchiveRoom          *string    `json:"archive_room,omitempty"`
	ArchiveCabinet       *string    `json:"archive_cabinet,omitempty"`
	ArchiveShelf         *string    `json:"archive_shelf,omitempty"`
	ArchiveBox           *string    `json:"archive_box,omitempty"`
	ArchiveFolder        *string    `json:"archive_folder,omitempty"`
	ArchiveCode          *string    `json:"archive_code,omitempty"`
}

// DocumentFilter narrows List at the store level. Department "" means
// unscoped (admin); everything else matches issuing_department exactly.
type DocumentFilter struct {
	Department string
	CategoryID int64
	Status     string
	UploadedBy int64
}

type DocumentsStore interface {
	Create(ctx context.Context, d *Document) (int64, error)
	Update(ctx context.Context, id int64, upd *DocumentUpdate, modifiedBy int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*Document, error)
	List(ctx context.Context, filter DocumentFilter) ([]Document, error)
	ListFilePaths(ctx context.Context) ([]string, error)
	CountByDepartment(ctx context.Context) (map[string]int64, error)
}

type documentsStore struct {
	db *DB
}

func NewDocumentsStore(db *DB) DocumentsStore {
	return &documentsStore{db: db}
}

const documentColumns = `id, title, reference_number, document_date, document_type, category_id, file_path, file_type, file_size, original_filename, issuing_department, description, budget_year, budget_program, market_type, confidentiality_level, status, archive_zone, archive_room, archive_cabinet, archive_shelf, archive_box, archive_folder, archive_code, upload_date, uploaded_by, last_modified, modified_by`

func (s *documentsStore) Create(ctx context.Context, d *Document) (int64, error) {
	if d.Status == "" {
		d.Status = DocStatusActive
	}
	if d.ConfidentialityLevel == "" {
		d.ConfidentialityLevel = "C0"
	}
	if d.UploadDate.IsZero() {
		d.UploadDate = time.Now().UTC()
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents(title, reference_number, document_date, document_type, category_id, file_path, file_type, file_size, original_filename, issuing_department, description, budget_year, budget_program, market_type, confidentiality_level, status, archive_zone, archive_room, archive_cabinet, archive_shelf, archive_box, archive_folder, archive_code, upload_date, uploaded_by)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?) RETURNING id`,
		d.Title, d.ReferenceNumber, nullableTime(d.DocumentDate), d.DocumentType, d.CategoryID, d.FilePath, d.FileType, d.FileSize, d.OriginalFilename, d.IssuingDepartment, d.Description, d.BudgetYear, d.BudgetProgram, d.MarketType, d.ConfidentialityLevel, d.Status, d.ArchiveZone, d.ArchiveRoom, d.ArchiveCabinet, d.ArchiveShelf, d.ArchiveBox, d.ArchiveFolder, d.ArchiveCode, d.UploadDate, d.UploadedBy).Scan(&id)
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

func (s *documentsStore) Update(ctx context.Context, id int64, upd *DocumentUpdate, modifiedBy int64, at time.Time) error {
	sets := []string{"last_modified=?", "modified_by=?"}
	args := []any{at.UTC(), modifiedBy}
	add := func(col string, v any) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.ReferenceNumber != nil {
		add("reference_number", *upd.ReferenceNumber)
	}
	if upd.DocumentDate != nil {
		add("document_date", upd.DocumentDate.UTC())
	}
	if upd.DocumentType != nil {
		add("document_type", *upd.DocumentType)
	}
	if upd.CategoryID != nil {
		add("category_id", *upd.CategoryID)
	}
	if upd.IssuingDepartment != nil {
		add("issuing_department", *upd.IssuingDepartment)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.BudgetYear != nil {
		add("budget_year", *upd.BudgetYear)
	}
	if upd.BudgetProgram != nil {
		add("budget_program", *upd.BudgetProgram)
	}
	if upd.MarketType != nil {
		add("market_type", *upd.MarketType)
	}
	if upd.ConfidentialityLevel != nil {
		add("confidentiality_level", *upd.ConfidentialityLevel)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.ArchiveZone != nil {
		add("archive_zone", *upd.ArchiveZone)
	}
	if upd.ArchiveRoom != nil {
		add("archive_room", *upd.ArchiveRoom)
	}
	if upd.ArchiveCabinet != nil {
		add("archive_cabinet", *upd.ArchiveCabinet)
	}
	if upd.ArchiveShelf != nil {
		add("archive_shelf", *upd.ArchiveShelf)
	}
	if upd.ArchiveBox != nil {
		add("archive_box", *upd.ArchiveBox)
	}
	if upd.ArchiveFolder != nil {
		add("archive_folder", *upd.ArchiveFolder)
	}
	if upd.ArchiveCode != nil {
		add("archive_code", *upd.ArchiveCode)
	}
	args = append(args, id)
	_, err := s.db.ExecContext(ctx, `UPDATE documents SET `+strings.Join(sets, ", ")+` WHERE id=?`, args...)
	return err
}

func (s *documentsStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=?`, id)
	return err
}

func (s *documentsStore) Get(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=?`, id)
	return scanDocument(row)
}

func (s *documentsStore) List(ctx context.Context, filter DocumentFilter) ([]Document, error) {
	var clauses []string
	var args []any
	if filter.Department != "" {
		clauses = append(clauses, "issuing_department=?")
		args = append(args, filter.Department)
	}
	if filter.CategoryID > 0 {
		clauses = append(clauses, "category_id=?")
		args = append(args, filter.CategoryID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	if filter.UploadedBy > 0 {
		clauses = append(clauses, "uploaded_by=?")
		args = append(args, filter.UploadedBy)
	}
	query := `SELECT ` + documentColumns + ` FROM documents`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY upload_date DESC, id DESC"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Document
	for rows.Next() {
		d, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (s *documentsStore) ListFilePaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_path FROM documents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (s *documentsStore) CountByDepartment(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT issuing_department, COUNT(*) FROM documents GROUP BY issuing_department`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int64{}
	for rows.Next() {
		var dept string
		var n int64
		if err := rows.Scan(&dept, &n); err != nil {
			return nil, err
		}
		res[dept] = n
	}
	return res, rows.Err()
}

func scanDocument(row *sql.Row) (*Document, error) {
	var d Document
	var docDate, lastMod sql.NullTime
	var modBy sql.NullInt64
	if err := row.Scan(&d.ID, &d.Title, &d.ReferenceNumber, &docDate, &d.DocumentType, &d.CategoryID, &d.FilePath, &d.FileType, &d.FileSize, &d.OriginalFilename, &d.IssuingDepartment, &d.Description, &d.BudgetYear, &d.BudgetProgram, &d.MarketType, &d.ConfidentialityLevel, &d.Status, &d.ArchiveZone, &d.ArchiveRoom, &d.ArchiveCabinet, &d.ArchiveShelf, &d.ArchiveBox, &d.ArchiveFolder, &d.ArchiveCode, &d.UploadDate, &d.UploadedBy, &lastMod, &modBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	applyNullables(&d, docDate, lastMod, modBy)
	return &d, nil
}

func scanDocumentRow(rows *sql.Rows) (Document, error) {
	var d Document
	var docDate, lastMod sql.NullTime
	var modBy sql.NullInt64
	if err := rows.Scan(&d.ID, &d.Title, &d.ReferenceNumber, &docDate, &d.DocumentType, &d.CategoryID, &d.FilePath, &d.FileType, &d.FileSize, &d.OriginalFilename, &d.IssuingDepartment, &d.Description, &d.BudgetYear, &d.BudgetProgram, &d.MarketType, &d.ConfidentialityLevel, &d.Status, &d.ArchiveZone, &d.ArchiveRoom, &d.ArchiveCabinet, &d.ArchiveShelf, &d.ArchiveBox, &d.ArchiveFolder, &d.ArchiveCode, &d.UploadDate, &d.UploadedBy, &lastMod, &modBy); err != nil {
		return d, err
	}
	applyNullables(&d, docDate, lastMod, modBy)
	return d, nil
}

func applyNullables(d *Document, docDate, lastMod sql.NullTime, modBy sql.NullInt64) {
	if docDate.Valid {
		d.DocumentDate = &docDate.Time
	}
	if lastMod.Valid {
		d.LastModified = &lastMod.Time
	}
	if modBy.Valid {
		d.ModifiedBy = &modBy.Int64
	}
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
