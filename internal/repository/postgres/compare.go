package postgres

import (
	"compare-app/internal/logger"
	"compare-app/internal/repository/db"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// CreateCompareRun persists a run and one pending result row per requested
// model in a single transaction, so a failed insert leaves no partial rows.
func (p *PostgresDB) CreateCompareRun(run *db.CompareRun) error {
	tx, err := p.conn.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	var createdAt time.Time
	query := `
	INSERT INTO compare_runs (id, chat_id, user_id, prompt, model_ids, status)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING created_at
	`
	err = tx.QueryRow(query, run.ID, run.ChatID, run.UserID, run.Prompt, pq.Array(run.ModelIDs), run.Status).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("error creating compare run: %w", err)
	}
	run.CreatedAt = createdAt

	resultQuery := `
	INSERT INTO compare_results (run_id, model_id, status)
	VALUES ($1, $2, $3)
	`
	for _, modelID := range run.ModelIDs {
		if _, err := tx.Exec(resultQuery, run.ID, modelID, db.ResultStatusPending); err != nil {
			return fmt.Errorf("error creating compare result for %s: %w", modelID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing compare run: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"run_id": run.ID, "chat_id": run.ChatID, "models": run.ModelIDs}).Info("Created compare run")
	return nil
}

// GetCompareRun retrieves a specific compare run
func (p *PostgresDB) GetCompareRun(id string) (*db.CompareRun, error) {
	var run db.CompareRun
	query := `SELECT id, chat_id, user_id, prompt, model_ids, status, created_at FROM compare_runs WHERE id = $1`

	err := p.conn.QueryRow(query, id).Scan(&run.ID, &run.ChatID, &run.UserID, &run.Prompt, pq.Array(&run.ModelIDs), &run.Status, &run.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("compare run not found")
		}
		return nil, fmt.Errorf("error retrieving compare run: %w", err)
	}

	return &run, nil
}

// UpdateRunStatus moves a run to a terminal status. Guarded so a terminal
// status never reverts to running.
func (p *PostgresDB) UpdateRunStatus(runID, status string) error {
	query := `UPDATE compare_runs SET status = $2 WHERE id = $1 AND status = $3`
	if _, err := p.conn.Exec(query, runID, status, db.RunStatusRunning); err != nil {
		return fmt.Errorf("error updating run status: %w", err)
	}
	return nil
}

// ListCompareRuns returns one page of a chat's runs, newest first. The cursor
// is the created_at of the last item of the previous page, RFC3339Nano.
func (p *PostgresDB) ListCompareRuns(chatID string, limit int, cursor string) (*db.RunPage, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
	SELECT id, chat_id, user_id, prompt, model_ids, status, created_at
	FROM compare_runs
	WHERE chat_id = $1
	`
	args := []interface{}{chatID}

	if cursor != "" {
		before, err := time.Parse(time.RFC3339Nano, cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		query += ` AND created_at < $2`
		args = append(args, before)
	}
	// Fetch one extra row to detect whether another page exists
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit+1)

	rows, err := p.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying compare runs: %w", err)
	}
	defer rows.Close()

	var runs []db.CompareRun
	for rows.Next() {
		var run db.CompareRun
		if err := rows.Scan(&run.ID, &run.ChatID, &run.UserID, &run.Prompt, pq.Array(&run.ModelIDs), &run.Status, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning compare run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating compare runs: %w", err)
	}

	page := &db.RunPage{Items: runs}
	if len(runs) > limit {
		page.Items = runs[:limit]
		page.HasMore = true
		page.NextCursor = page.Items[limit-1].CreatedAt.Format(time.RFC3339Nano)
	}

	return page, nil
}

// StartResult moves a result from pending to running and records the server
// start timestamp.
func (p *PostgresDB) StartResult(runID, modelID string, startedAt time.Time) error {
	query := `
	UPDATE compare_results
	SET status = $3, started_at = $4
	WHERE run_id = $1 AND model_id = $2 AND status = $5
	`
	if _, err := p.conn.Exec(query, runID, modelID, db.ResultStatusRunning, startedAt, db.ResultStatusPending); err != nil {
		return fmt.Errorf("error starting result: %w", err)
	}
	return nil
}

// CompleteResult writes the full accumulated content, usage and timing in one
// terminal write per model per run.
func (p *PostgresDB) CompleteResult(runID, modelID, content, reasoning string, usage *db.ResultUsage, startedAt, completedAt time.Time) error {
	inferenceMs := completedAt.Sub(startedAt).Milliseconds()

	var promptTokens, completionTokens, totalTokens *int
	if usage != nil {
		promptTokens = &usage.PromptTokens
		completionTokens = &usage.CompletionTokens
		totalTokens = &usage.TotalTokens
	}

	query := `
	UPDATE compare_results
	SET status = $3, content = $4, reasoning = $5,
	    prompt_tokens = $6, completion_tokens = $7, total_tokens = $8,
	    started_at = $9, completed_at = $10, inference_time_ms = $11
	WHERE run_id = $1 AND model_id = $2 AND status IN ($12, $13)
	`
	_, err := p.conn.Exec(query, runID, modelID, db.ResultStatusCompleted, content, reasoning,
		promptTokens, completionTokens, totalTokens, startedAt, completedAt, inferenceMs,
		db.ResultStatusPending, db.ResultStatusRunning)
	if err != nil {
		return fmt.Errorf("error completing result: %w", err)
	}
	return nil
}

// FailResult records a terminal provider failure for one model
func (p *PostgresDB) FailResult(runID, modelID, errorMessage string) error {
	query := `
	UPDATE compare_results
	SET status = $3, error_message = $4, completed_at = CURRENT_TIMESTAMP
	WHERE run_id = $1 AND model_id = $2 AND status IN ($5, $6)
	`
	if _, err := p.conn.Exec(query, runID, modelID, db.ResultStatusFailed, errorMessage,
		db.ResultStatusPending, db.ResultStatusRunning); err != nil {
		return fmt.Errorf("error failing result: %w", err)
	}
	return nil
}

// CancelResult marks a non-terminal result canceled; a no-op on terminal rows
func (p *PostgresDB) CancelResult(runID, modelID string) error {
	query := `
	UPDATE compare_results
	SET status = $3, completed_at = CURRENT_TIMESTAMP
	WHERE run_id = $1 AND model_id = $2 AND status IN ($4, $5)
	`
	if _, err := p.conn.Exec(query, runID, modelID, db.ResultStatusCanceled,
		db.ResultStatusPending, db.ResultStatusRunning); err != nil {
		return fmt.Errorf("error canceling result: %w", err)
	}
	return nil
}

// GetRunResults returns all results of a run in the run's model order
func (p *PostgresDB) GetRunResults(runID string) ([]db.CompareResult, error) {
	query := `
	SELECT r.run_id, r.model_id, r.status,
	       COALESCE(r.content, ''), COALESCE(r.reasoning, ''), COALESCE(r.error_message, ''),
	       r.prompt_tokens, r.completion_tokens, r.total_tokens,
	       r.started_at, r.completed_at, r.inference_time_ms
	FROM compare_results r
	JOIN compare_runs run ON run.id = r.run_id
	WHERE r.run_id = $1
	ORDER BY array_position(run.model_ids, r.model_id)
	`

	rows, err := p.conn.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("error querying compare results: %w", err)
	}
	defer rows.Close()

	var results []db.CompareResult
	for rows.Next() {
		var res db.CompareResult
		if err := rows.Scan(&res.RunID, &res.ModelID, &res.Status,
			&res.Content, &res.Reasoning, &res.ErrorMessage,
			&res.PromptTokens, &res.CompletionTokens, &res.TotalTokens,
			&res.StartedAt, &res.CompletedAt, &res.InferenceTimeMs); err != nil {
			return nil, fmt.Errorf("error scanning compare result: %w", err)
		}
		results = append(results, res)
	}

	return results, rows.Err()
}
