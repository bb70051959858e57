package postgresql

import (
	"database/sql"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/stockflow/pkg/models"
	"github.com/dukex/stockflow/pkg/persistence"
)

func newMockRepository(t *testing.T) (*ExecutionRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return NewExecutionRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil))), mock
}

var executionRowColumns = []string{
	"id", "flow_id", "status", "trigger_type", "trigger_data", "execution_log",
	"error", "started_at", "completed_at", "duration_ms",
}

func TestExecutionRepository_Save(t *testing.T) {
	repo, mock := newMockRepository(t)
	start := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	execution := &models.FlowExecution{
		ID:          "e1",
		FlowID:      "f1",
		Status:      models.ExecutionStatusRunning,
		TriggerType: "stock_change",
		StartedAt:   start,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO flow_executions")).
		WithArgs("e1", "f1", "RUNNING", "stock_change", []byte("null"), []byte("[]"),
			sqlmock.AnyArg(), start, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(t.Context(), execution))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionRepository_SaveCompletedRejected(t *testing.T) {
	repo, mock := newMockRepository(t)
	execution := &models.FlowExecution{ID: "e1", FlowID: "f1", Status: models.ExecutionStatusRunning, StartedAt: time.Now()}
	execution.Complete(models.ExecutionStatusSuccess, "", time.Now())

	mock.ExpectExec(regexp.QuoteMeta("WHERE flow_executions.completed_at IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Save(t.Context(), execution)

	require.ErrorIs(t, err, persistence.ErrExecutionCompleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionRepository_GetByID(t *testing.T) {
	repo, mock := newMockRepository(t)
	start := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	completed := start.Add(2 * time.Second)

	mock.ExpectQuery(regexp.QuoteMeta("FROM flow_executions")).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(executionRowColumns).AddRow(
			"e1", "f1", "FAILED", "movement_created",
			[]byte(`{"productId":"p1"}`),
			[]byte(`[{"nodeId":"t1","nodeType":"TRIGGER","status":"success","timestamp":"2024-02-01T08:00:00Z"}]`),
			"boom", start, completed, int64(2000),
		))

	execution, err := repo.GetByID(t.Context(), "e1")

	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, "boom", execution.Error)
	assert.Equal(t, "p1", execution.TriggerData["productId"])
	require.Len(t, execution.ExecutionLog, 1)
	assert.Equal(t, models.LogStatusSuccess, execution.ExecutionLog[0].Status)
	require.NotNil(t, execution.DurationMs)
	assert.Equal(t, int64(2000), *execution.DurationMs)
	require.NotNil(t, execution.CompletedAt)
	assert.True(t, execution.CompletedAt.Equal(completed))
}

func TestExecutionRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM flow_executions")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(t.Context(), "missing")

	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionRepository_List(t *testing.T) {
	repo, mock := newMockRepository(t)
	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	start := from.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM flow_executions WHERE flow_id = $1 AND status = $2 AND started_at >= $3")).
		WithArgs("f1", "SUCCESS", from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY started_at DESC\n\t\tLIMIT $4 OFFSET $5")).
		WithArgs("f1", "SUCCESS", from, 2, 0).
		WillReturnRows(sqlmock.NewRows(executionRowColumns).
			AddRow("e3", "f1", "SUCCESS", "stock_change", nil, []byte(`[]`), nil, start, start, int64(5)).
			AddRow("e2", "f1", "SUCCESS", "stock_change", nil, []byte(`[]`), nil, start, start, int64(5)))

	page, err := repo.List(t.Context(), persistence.ListExecutionsOptions{
		FlowID: "f1",
		Status: models.ExecutionStatusSuccess,
		From:   &from,
		Limit:  2,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
	assert.True(t, page.HasNextPage)
	require.Len(t, page.Executions, 2)
	assert.Equal(t, "e3", page.Executions[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionRepository_Stats(t *testing.T) {
	repo, mock := newMockRepository(t)
	start := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) FROM flow_executions WHERE flow_id = $1 GROUP BY status")).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("SUCCESS", 4).AddRow("FAILED", 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT trigger_type, COUNT(*) FROM flow_executions WHERE flow_id = $1 GROUP BY trigger_type")).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"trigger_type", "count"}).AddRow("stock_below_min", 5))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT AVG(duration_ms)")).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(125.5))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT 1")).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows(executionRowColumns).
			AddRow("e5", "f1", "SUCCESS", "stock_below_min", nil, []byte(`[]`), nil, start, start, int64(100)))

	stats, err := repo.Stats(t.Context(), "f1")

	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 4, stats.ByStatus[models.ExecutionStatusSuccess])
	assert.Equal(t, 1, stats.ByStatus[models.ExecutionStatusFailed])
	assert.Equal(t, 5, stats.ByTriggerType["stock_below_min"])
	require.NotNil(t, stats.AverageDurationMs)
	assert.InDelta(t, 125.5, *stats.AverageDurationMs, 0.001)
	require.NotNil(t, stats.LastExecution)
	assert.Equal(t, "e5", stats.LastExecution.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionRepository_StatsNoRuns(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY trigger_type")).
		WillReturnRows(sqlmock.NewRows([]string{"trigger_type", "count"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT AVG(duration_ms)")).
		WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(nil))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT 1")).
		WillReturnError(sql.ErrNoRows)

	stats, err := repo.Stats(t.Context(), "f1")

	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Nil(t, stats.AverageDurationMs)
	assert.Nil(t, stats.LastExecution)
}
