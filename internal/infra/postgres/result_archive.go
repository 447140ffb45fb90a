package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"elsa-quiz-room/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// OpenDB opens a bun handle on dsn.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

type resultRow struct {
	bun.BaseModel `bun:"table:quiz_results,alias:qr"`

	ID          int64              `bun:"id,pk,autoincrement"`
	RoomCode    string             `bun:"room_code,notnull"`
	QuizID      string             `bun:"quiz_id,nullzero"`
	Title       string             `bun:"title,nullzero"`
	PlayerCount int                `bun:"player_count,notnull"`
	Winner      string             `bun:"winner,nullzero"`
	Report      domain.FinalReport `bun:"report,type:jsonb,notnull"`
	FinishedAt  time.Time          `bun:"finished_at,notnull"`
}

// ResultArchive stores the final report of every finished room.
type ResultArchive struct {
	db *bun.DB
}

func NewResultArchive(db *bun.DB) *ResultArchive {
	return &ResultArchive{db: db}
}

func (a *ResultArchive) SaveResults(ctx context.Context, report domain.FinalReport) error {
	row := resultRow{
		RoomCode:    report.RoomCode,
		QuizID:      report.QuizID,
		Title:       report.Title,
		PlayerCount: len(report.Results),
		Report:      report,
		FinishedAt:  time.UnixMilli(report.FinishedAt).UTC(),
	}
	if len(report.Results) > 0 {
		row.Winner = report.Results[0].Name
	}
	if _, err := a.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("archive results for room %s: %w", report.RoomCode, err)
	}
	return nil
}

// RecentResults returns up to limit archived reports of a quiz, newest first.
func (a *ResultArchive) RecentResults(ctx context.Context, quizID string, limit int) ([]domain.FinalReport, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []resultRow
	err := a.db.NewSelect().
		Model(&rows).
		Where("quiz_id = ?", quizID).
		Order("finished_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results for quiz %s: %w", quizID, err)
	}
	reports := make([]domain.FinalReport, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, row.Report)
	}
	return reports, nil
}

// Ping reports whether the database is reachable.
func (a *ResultArchive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}
