package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type dbQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ReportType string

const (
	ReportTypeDaily         ReportType = "daily"
	ReportTypeWeekly        ReportType = "weekly"
	ReportTypeWeeklyLimited ReportType = "weekly_limited"
)

// Report is a stored analysis. Type is fixed at write time so readers
// never have to sniff the content payload.
type Report struct {
	ID            string
	UserID        string
	EntryID       *string
	Type          ReportType
	ReportDate    time.Time
	ReportEndDate *time.Time
	Content       map[string]any
	CreatedAt     time.Time
}

// ReportStore persists generated reports per user.
type ReportStore interface {
	Insert(ctx context.Context, report *Report) error
	FindAllByUser(ctx context.Context, userID string) ([]Report, error)
	FindDailyByDate(ctx context.Context, userID string, date time.Time) (*Report, error)
	FindWeeklyByRange(ctx context.Context, userID string, start, end time.Time) (*Report, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
}

type pgReportStore struct {
	db dbQuerier
}

func NewPGReportStore(db dbQuerier) ReportStore {
	return &pgReportStore{db: db}
}

const reportColumns = `id, "userId", "entryId", "reportType", "reportDate", "reportEndDate", content, "createdAt"`

func (s *pgReportStore) Insert(ctx context.Context, report *Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	content, err := json.Marshal(report.Content)
	if err != nil {
		return fmt.Errorf("marshal report content: %w", err)
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO "AiReport" (id, "userId", "entryId", "reportType", "reportDate", "reportEndDate", content)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING "createdAt"
	`, report.ID, report.UserID, report.EntryID, string(report.Type), report.ReportDate, report.ReportEndDate, content).Scan(&report.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *pgReportStore) FindAllByUser(ctx context.Context, userID string) ([]Report, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+reportColumns+`
		FROM "AiReport"
		WHERE "userId" = $1
		ORDER BY "createdAt" DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func (s *pgReportStore) FindDailyByDate(ctx context.Context, userID string, date time.Time) (*Report, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM "AiReport"
		WHERE "userId" = $1 AND "reportType" = 'daily' AND "reportDate" = $2
		LIMIT 1
	`, userID, date)

	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *pgReportStore) FindWeeklyByRange(ctx context.Context, userID string, start, end time.Time) (*Report, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM "AiReport"
		WHERE "userId" = $1
		  AND "reportType" IN ('weekly', 'weekly_limited')
		  AND "reportDate" = $2
		  AND "reportEndDate" = $3
		LIMIT 1
	`, userID, start, end)

	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *pgReportStore) Delete(ctx context.Context, id, userID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM "AiReport"
		WHERE id = $1 AND "userId" = $2
	`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete report: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanReport(row pgx.Row) (Report, error) {
	var (
		report     Report
		reportType string
		rawContent []byte
	)
	err := row.Scan(
		&report.ID,
		&report.UserID,
		&report.EntryID,
		&reportType,
		&report.ReportDate,
		&report.ReportEndDate,
		&rawContent,
		&report.CreatedAt,
	)
	if err != nil {
		return Report{}, err
	}
	report.Type = ReportType(reportType)

	if len(rawContent) > 0 {
		if err := json.Unmarshal(rawContent, &report.Content); err != nil {
			return Report{}, fmt.Errorf("decode report content: %w", err)
		}
	}
	return report, nil
}
