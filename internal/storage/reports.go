package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Veraticus/invoice-readiness/internal/analysis"
	"github.com/Veraticus/invoice-readiness/internal/common"
	"github.com/Veraticus/invoice-readiness/internal/model"
)

// DefaultRecentLimit is used by RecentReports when no limit is given.
const DefaultRecentLimit = 10

// SaveReport stores a report and sets its ReportID. The report expires after
// the configured TTL.
func (s *Storage) SaveReport(ctx context.Context, report *analysis.Report) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReport(report); err != nil {
		return err
	}

	id := "r_" + uuid.New().String()
	previous := report.ReportID
	report.ReportID = id

	data, err := json.Marshal(report)
	if err != nil {
		report.ReportID = previous
		return fmt.Errorf("failed to encode report: %w", err)
	}

	var uploadID sql.NullString
	if report.UploadID != "" {
		uploadID = sql.NullString{String: report.UploadID, Valid: true}
	}

	createdAt := s.utcNow()
	query := s.db.Rebind(`INSERT INTO reports (id, upload_id, created_at, scores_overall, report_json, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		id, uploadID, createdAt, report.Scores.Overall, string(data), createdAt.Add(s.reportTTL))
	if err != nil {
		report.ReportID = previous
		return fmt.Errorf("failed to save report: %w", err)
	}

	slog.Debug("Saved report", "report_id", id, "upload_id", report.UploadID)
	return nil
}

// GetReport retrieves a report by ID. Missing and expired reports wrap
// common.ErrNotFound.
func (s *Storage) GetReport(ctx context.Context, reportID string) (*analysis.Report, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(reportID, "reportID"); err != nil {
		return nil, err
	}

	var data string
	query := s.db.Rebind(`SELECT report_json FROM reports WHERE id = ? AND expires_at > ?`)
	err := s.db.GetContext(ctx, &data, query, reportID, s.utcNow())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", reportID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report analysis.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", reportID, err)
	}
	report.ReportID = reportID

	return &report, nil
}

// RecentReports lists unexpired reports, newest first. A zero limit means
// DefaultRecentLimit.
func (s *Storage) RecentReports(ctx context.Context, limit int) ([]model.ReportSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = DefaultRecentLimit
	}

	summaries := []model.ReportSummary{}
	query := s.db.Rebind(`SELECT id, created_at, scores_overall FROM reports
		WHERE expires_at > ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`)
	if err := s.db.SelectContext(ctx, &summaries, query, s.utcNow(), limit); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	return summaries, nil
}

// PurgeExpired deletes reports past their expiry and returns how many were removed.
func (s *Storage) PurgeExpired(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	query := s.db.Rebind(`DELETE FROM reports WHERE expires_at <= ?`)
	result, err := s.db.ExecContext(ctx, query, s.utcNow())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired reports: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged reports: %w", err)
	}

	if purged > 0 {
		slog.Info("Purged expired reports", "count", purged)
	}
	return purged, nil
}
