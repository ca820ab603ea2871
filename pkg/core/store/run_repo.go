package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"secfilings/pkg/core/facts"
	"secfilings/pkg/core/pipeline"
)

// RunRepo records pipeline runs and the statement rows they produced.
//
// Schema:
//
//	CREATE TABLE extraction_runs (
//	    run_id       TEXT PRIMARY KEY,
//	    cik          TEXT NOT NULL,
//	    ticker       TEXT NOT NULL,
//	    company_name TEXT,
//	    filing_count INT,
//	    errors       JSONB,
//	    started_at   TIMESTAMPTZ,
//	    finished_at  TIMESTAMPTZ,
//	    created_at   TIMESTAMPTZ DEFAULT NOW()
//	);
//	CREATE TABLE statement_rows (
//	    run_id     TEXT REFERENCES extraction_runs(run_id),
//	    cik        TEXT NOT NULL,
//	    statement  TEXT NOT NULL,
//	    period_end DATE NOT NULL,
//	    concept    TEXT NOT NULL,
//	    value      DOUBLE PRECISION NOT NULL,
//	    PRIMARY KEY (run_id, statement, period_end, concept)
//	);
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo creates a repository on the given pool. A nil pool turns every
// operation into a logged no-op so the pipeline works without a database.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// SaveRun records one run's header and its statement rows in a single
// transaction.
func (r *RunRepo) SaveRun(ctx context.Context, result *pipeline.Result) error {
	if r.pool == nil {
		log.Printf("[Store] no database configured, skipping run %s", result.RunID)
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	errorsJSON, err := json.Marshal(result.Errors)
	if err != nil {
		return fmt.Errorf("encoding run errors: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO extraction_runs (
			run_id, cik, ticker, company_name, filing_count,
			errors, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, result.RunID, result.Company.CIK, result.Company.Ticker,
		result.Company.Name, len(result.Filings),
		errorsJSON, result.StartedAt, result.FinishedAt)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", result.RunID, err)
	}

	for code, statement := range map[string]*facts.Statement{
		"IS": result.Statements.IncomeStatement,
		"BS": result.Statements.BalanceSheet,
		"CF": result.Statements.CashFlow,
	} {
		if statement == nil {
			continue
		}
		if err := r.insertStatement(ctx, tx, result, code, statement); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing run %s: %w", result.RunID, err)
	}
	log.Printf("[Store] saved run %s for %s", result.RunID, result.Company.Ticker)
	return nil
}

func (r *RunRepo) insertStatement(ctx context.Context, tx pgx.Tx, result *pipeline.Result, code string, statement *facts.Statement) error {
	for _, row := range statement.Rows {
		for concept, value := range row.Values {
			_, err := tx.Exec(ctx, `
				INSERT INTO statement_rows (run_id, cik, statement, period_end, concept, value)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (run_id, statement, period_end, concept) DO UPDATE SET value = EXCLUDED.value
			`, result.RunID, result.Company.CIK, code, row.PeriodEnd, concept, value)
			if err != nil {
				return fmt.Errorf("inserting %s row %s/%s: %w", code, row.PeriodEnd, concept, err)
			}
		}
	}
	return nil
}

// LatestStatementRows loads the most recent run's rows for one statement,
// ordered by period end then concept.
func (r *RunRepo) LatestStatementRows(ctx context.Context, cik, statement string) ([]facts.StatementRow, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("no database configured")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT sr.period_end::text, sr.concept, sr.value
		FROM statement_rows sr
		JOIN extraction_runs er ON er.run_id = sr.run_id
		WHERE sr.cik = $1 AND sr.statement = $2
		  AND er.created_at = (
			SELECT MAX(created_at) FROM extraction_runs WHERE cik = $1
		  )
		ORDER BY sr.period_end, sr.concept
	`, cik, statement)
	if err != nil {
		return nil, fmt.Errorf("querying statement rows: %w", err)
	}
	defer rows.Close()

	byPeriod := make(map[string]map[string]float64)
	var order []string
	for rows.Next() {
		var periodEnd, concept string
		var value float64
		if err := rows.Scan(&periodEnd, &concept, &value); err != nil {
			return nil, fmt.Errorf("scanning statement row: %w", err)
		}
		if byPeriod[periodEnd] == nil {
			byPeriod[periodEnd] = make(map[string]float64)
			order = append(order, periodEnd)
		}
		byPeriod[periodEnd][concept] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]facts.StatementRow, 0, len(order))
	for _, periodEnd := range order {
		result = append(result, facts.StatementRow{PeriodEnd: periodEnd, Values: byPeriod[periodEnd]})
	}
	return result, nil
}
