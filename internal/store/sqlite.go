// 包 store 提供运行结果的存储实现（SQLite），包含表迁移/写入/查询/清理等操作。
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"hbcai/internal/model"
)

// NewRunID 生成一轮运行的唯一标识。
func NewRunID() string { return uuid.NewString() }

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现）。
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 打开 SQLite 数据库并执行自动迁移。
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Reset 清空全部结果与运行记录（不删除数据库文件）。
func (s *SQLite) Reset(ctx context.Context) error {
	for _, table := range []string{"page_results", "runs"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// migrate 执行建表语句，保持幂等。
func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS page_results (
            origin TEXT UNIQUE,
            run_id TEXT,
            target TEXT,
            threads INTEGER,
            status TEXT,
            error TEXT,
            template_fallback INTEGER,
            updated_at TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_page_results_run ON page_results(run_id);`,
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            site TEXT,
            dry_run INTEGER,
            started_at TIMESTAMP,
            finished_at TIMESTAMP,
            pages_total INTEGER,
            pages_saved INTEGER,
            pages_unchanged INTEGER,
            pages_failed INTEGER,
            threads_total INTEGER
        );`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// UpsertResult 写入来源页的最新结果（origin 唯一）。
func (s *SQLite) UpsertResult(ctx context.Context, r model.PageResult) error {
	if r.Origin == "" {
		return errors.New("result.origin required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO page_results(origin, run_id, target, threads, status, error, template_fallback, updated_at)
        VALUES(?,?,?,?,?,?,?,?)
        ON CONFLICT(origin) DO UPDATE SET run_id=excluded.run_id, target=excluded.target, threads=excluded.threads,
            status=excluded.status, error=excluded.error, template_fallback=excluded.template_fallback, updated_at=excluded.updated_at`,
		r.Origin, r.RunID, r.Target, r.Threads, string(r.Status), r.Error, r.TemplateFallback, nowOr(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert result %s: %w", r.Origin, err)
	}
	return nil
}

// ListResults 返回结果，按来源页排序；runID 非空时仅返回该轮的结果。
func (s *SQLite) ListResults(ctx context.Context, runID string) ([]model.PageResult, error) {
	q := `SELECT origin, run_id, COALESCE(target,''), threads, status, COALESCE(error,''), template_fallback, updated_at FROM page_results`
	var args []any
	if runID != "" {
		q += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	q += ` ORDER BY origin`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()
	var out []model.PageResult
	for rows.Next() {
		var r model.PageResult
		var status string
		var updated sql.NullTime
		if err := rows.Scan(&r.Origin, &r.RunID, &r.Target, &r.Threads, &status, &r.Error, &r.TemplateFallback, &updated); err != nil {
			return nil, fmt.Errorf("scan results: %w", err)
		}
		r.Status = model.PageStatus(status)
		if updated.Valid {
			r.UpdatedAt = updated.Time
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}

// Stats 基于每个来源页的最新结果计算汇总。
func (s *SQLite) Stats(ctx context.Context) (model.Stats, error) {
	results, err := s.ListResults(ctx, "")
	if err != nil {
		return model.Stats{}, err
	}
	return model.Summarize(results), nil
}

// RecordRun 写入一轮运行的汇总。
func (s *SQLite) RecordRun(ctx context.Context, run model.Run) error {
	st := run.Stats
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs(id, site, dry_run, started_at, finished_at, pages_total, pages_saved, pages_unchanged, pages_failed, threads_total)
        VALUES(?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET finished_at=excluded.finished_at, pages_total=excluded.pages_total, pages_saved=excluded.pages_saved,
            pages_unchanged=excluded.pages_unchanged, pages_failed=excluded.pages_failed, threads_total=excluded.threads_total`,
		run.ID, run.Site, run.DryRun, nowOr(run.StartedAt), nowOr(run.FinishedAt),
		st.PagesTotal, st.PagesSaved, st.PagesUnchanged, st.PagesFailed, st.ThreadsTotal)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns 返回最近 limit 轮运行，按开始时间倒序；limit<=0 表示不限制。
func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	q := `SELECT id, COALESCE(site,''), dry_run, started_at, finished_at, pages_total, pages_saved, pages_unchanged, pages_failed, threads_total
        FROM runs ORDER BY started_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var out []model.Run
	for rows.Next() {
		var r model.Run
		var started, finished sql.NullTime
		st := &r.Stats
		if err := rows.Scan(&r.ID, &r.Site, &r.DryRun, &started, &finished,
			&st.PagesTotal, &st.PagesSaved, &st.PagesUnchanged, &st.PagesFailed, &st.ThreadsTotal); err != nil {
			return nil, fmt.Errorf("scan runs: %w", err)
		}
		r.StartedAt, r.FinishedAt = started.Time, finished.Time
		st.UpdatedAt = r.FinishedAt
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// CleanOld 删除 days 天内未再更新的结果与运行记录。
func (s *SQLite) CleanOld(ctx context.Context, days int) error {
	if days <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM page_results WHERE updated_at < ?`, cutoff); err != nil {
		return fmt.Errorf("clean old results: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff); err != nil {
		return fmt.Errorf("clean old runs: %w", err)
	}
	return nil
}

// nowOr 统一以 UTC 存储，保证时间列按字典序可比。
func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
