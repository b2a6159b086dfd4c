package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/invoice-readiness/internal/common"
	"github.com/Veraticus/invoice-readiness/internal/model"
)

type uploadRow struct {
	CreatedAt  time.Time `db:"created_at"`
	ID         string    `db:"id"`
	Country    string    `db:"country"`
	ERP        string    `db:"erp"`
	Data       string    `db:"data"`
	RowsParsed int       `db:"rows_parsed"`
}

// SaveUpload stores a parsed upload, assigning its ID and creation time.
func (s *Storage) SaveUpload(ctx context.Context, upload *model.Upload) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateUpload(upload); err != nil {
		return err
	}

	records := upload.Records
	if records == nil {
		records = []model.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode upload data: %w", err)
	}

	id := "u_" + uuid.New().String()
	createdAt := s.utcNow()

	query := s.db.Rebind(`INSERT INTO uploads (id, created_at, country, erp, rows_parsed, data)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, id, createdAt, upload.Country, upload.ERP, upload.RowsParsed, string(data)); err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}

	upload.ID = id
	upload.CreatedAt = createdAt
	return nil
}

// GetUpload retrieves an upload by ID. A missing upload wraps common.ErrNotFound.
func (s *Storage) GetUpload(ctx context.Context, uploadID string) (*model.Upload, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(uploadID, "uploadID"); err != nil {
		return nil, err
	}

	var row uploadRow
	query := s.db.Rebind(`SELECT id, created_at, country, erp, rows_parsed, data FROM uploads WHERE id = ?`)
	err := s.db.GetContext(ctx, &row, query, uploadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("upload %s: %w", uploadID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}

	upload := &model.Upload{
		ID:         row.ID,
		CreatedAt:  row.CreatedAt,
		Country:    row.Country,
		ERP:        row.ERP,
		RowsParsed: row.RowsParsed,
	}
	if err := json.Unmarshal([]byte(row.Data), &upload.Records); err != nil {
		return nil, fmt.Errorf("failed to decode upload %s: %w", uploadID, err)
	}

	return upload, nil
}
