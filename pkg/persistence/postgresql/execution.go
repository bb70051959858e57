package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/stockflow/pkg/models"
	"github.com/dukex/stockflow/pkg/persistence"
)

const executionColumns = `
			id
		  , flow_id
		  , status
		  , trigger_type
		  , trigger_data
		  , execution_log
		  , error
		  , started_at
		  , completed_at
		  , duration_ms`

// ExecutionRepository handles flow execution database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Save upserts an execution. Completed rows are never updated.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.FlowExecution) error {
	triggerDataJSON, err := json.Marshal(execution.TriggerData)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	logJSON, err := json.Marshal(nonNil(execution.ExecutionLog))
	if err != nil {
		return fmt.Errorf("failed to marshal execution log: %w", err)
	}

	query := `
		INSERT INTO flow_executions (id, flow_id, status, trigger_type, trigger_data, execution_log, error, started_at, completed_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			trigger_data = EXCLUDED.trigger_data,
			execution_log = EXCLUDED.execution_log,
			error = EXCLUDED.error,
			completed_at = EXCLUDED.completed_at,
			duration_ms = EXCLUDED.duration_ms
		WHERE flow_executions.completed_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.FlowID,
		string(execution.Status),
		execution.TriggerType,
		triggerDataJSON,
		logJSON,
		nullString(execution.Error),
		execution.StartedAt,
		execution.CompletedAt,
		execution.DurationMs,
	)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewExecutionError("Save", execution.ID, persistence.ErrExecutionCompleted)
	}

	return nil
}

// GetByID returns an execution by its ID.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.FlowExecution, error) {
	query := `SELECT` + executionColumns + `
		FROM flow_executions
		WHERE id = $1
	`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// executionFilter renders the WHERE clause of opts with positional arguments.
func executionFilter(opts persistence.ListExecutionsOptions) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if opts.FlowID != "" {
		add("flow_id = $%d", opts.FlowID)
	}

	if opts.Status != "" {
		add("status = $%d", string(opts.Status))
	}

	if opts.TriggerType != "" {
		add("trigger_type = $%d", opts.TriggerType)
	}

	if opts.From != nil {
		add("started_at >= $%d", *opts.From)
	}

	if opts.To != nil {
		add("started_at <= $%d", *opts.To)
	}

	if len(clauses) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns one page of executions, most recent first.
func (r *ExecutionRepository) List(ctx context.Context, opts persistence.ListExecutionsOptions) (*persistence.ExecutionPage, error) {
	opts = opts.Normalized()
	where, args := executionFilter(opts)

	var total int

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM flow_executions"+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count executions: %w", err)
	}

	query := fmt.Sprintf(`SELECT%s
		FROM flow_executions%s
		ORDER BY started_at DESC
		LIMIT $%d OFFSET $%d`, executionColumns, where, len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	executions := make([]*models.FlowExecution, 0, opts.Limit)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return &persistence.ExecutionPage{
		Executions:  executions,
		TotalCount:  total,
		HasNextPage: opts.Offset+len(executions) < total,
	}, nil
}

// Stats aggregates the executions of one flow.
func (r *ExecutionRepository) Stats(ctx context.Context, flowID string) (*models.ExecutionStats, error) {
	stats := models.NewExecutionStats(flowID)

	byStatus, err := r.countBy(ctx, "status", flowID)
	if err != nil {
		return nil, err
	}

	for status, count := range byStatus {
		stats.ByStatus[models.ExecutionStatus(status)] = count
		stats.Total += count
	}

	stats.ByTriggerType, err = r.countBy(ctx, "trigger_type", flowID)
	if err != nil {
		return nil, err
	}

	var avg sql.NullFloat64

	err = r.db.QueryRowContext(ctx,
		`SELECT AVG(duration_ms) FROM flow_executions WHERE flow_id = $1 AND completed_at IS NOT NULL`,
		flowID,
	).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("failed to compute average duration: %w", err)
	}

	if avg.Valid {
		stats.AverageDurationMs = &avg.Float64
	}

	query := `SELECT` + executionColumns + `
		FROM flow_executions
		WHERE flow_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`

	last, err := scanExecution(r.db.QueryRowContext(ctx, query, flowID))

	switch {
	case err == nil:
		stats.LastExecution = last
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to fetch last execution: %w", err)
	}

	return stats, nil
}

// countBy groups the executions of a flow by column. column is never user input.
func (r *ExecutionRepository) countBy(ctx context.Context, column, flowID string) (map[string]int, error) {
	query := fmt.Sprintf(`SELECT %[1]s, COUNT(*) FROM flow_executions WHERE flow_id = $1 GROUP BY %[1]s`, column)

	rows, err := r.db.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to count executions by %s: %w", column, err)
	}

	defer closeRows(ctx, r.logger, rows)

	counts := make(map[string]int)

	for rows.Next() {
		var (
			key   string
			count int
		)

		err := rows.Scan(&key, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s count: %w", column, err)
		}

		counts[key] = count
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating %s counts: %w", column, err)
	}

	return counts, nil
}

func scanExecution(row scanner) (*models.FlowExecution, error) {
	var (
		execution       models.FlowExecution
		status          string
		triggerDataJSON []byte
		logJSON         []byte
		errMsg          sql.NullString
		durationMs      sql.NullInt64
	)

	err := row.Scan(
		&execution.ID,
		&execution.FlowID,
		&status,
		&execution.TriggerType,
		&triggerDataJSON,
		&logJSON,
		&errMsg,
		&execution.StartedAt,
		&execution.CompletedAt,
		&durationMs,
	)
	if err != nil {
		return nil, err
	}

	execution.Status = models.ExecutionStatus(status)
	execution.Error = errMsg.String

	if durationMs.Valid {
		execution.DurationMs = &durationMs.Int64
	}

	if len(triggerDataJSON) > 0 {
		err = json.Unmarshal(triggerDataJSON, &execution.TriggerData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
		}
	}

	err = json.Unmarshal(logJSON, &execution.ExecutionLog)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution log: %w", err)
	}

	return &execution, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
