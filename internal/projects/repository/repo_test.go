package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicoe-genesis/genesis-backend/internal/projects/domain"
)

func setupProjectRepo(t *testing.T) (*ProjectRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewProjectRepository(db), mock
}

func TestProjectRepository_CreateProject(t *testing.T) {
	repo, mock := setupProjectRepo(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO projects`).
		WithArgs(sqlmock.AnyArg(), "T", "d", "text", domain.StatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	p, err := repo.CreateProject(ctx, domain.CreateProjectRequest{Name: "T", Description: "d", Mode: "text"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "T", p.Name)
	assert.Equal(t, domain.StatusActive, p.Status)
	assert.Equal(t, now, p.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_GetProject(t *testing.T) {
	repo, mock := setupProjectRepo(t)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery(`SELECT id, name, description, mode, status, created_at, updated_at`).
			WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "mode", "status", "created_at", "updated_at"}).
				AddRow("p1", "T", "d", "voice", "active", now, now))

		p, err := repo.GetProject(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "voice", p.Mode)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, name, description, mode, status, created_at, updated_at`).
			WithArgs("nope").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetProject(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProjectRepository_ListArtifacts(t *testing.T) {
	repo, mock := setupProjectRepo(t)
	ctx := context.Background()

	t.Run("returns history in creation order", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery(`SELECT EXISTS`).WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery(`FROM artifacts`).WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "artifact_type", "content", "created_at"}).
				AddRow("a1", "p1", "vision", "# Vision", now).
				AddRow("a2", "p1", "usecases", "# Use cases", now))

		items, err := repo.ListArtifacts(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "vision", items[0].ArtifactType)
		assert.Equal(t, "usecases", items[1].ArtifactType)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty project yields empty slice", func(t *testing.T) {
		mock.ExpectQuery(`SELECT EXISTS`).WithArgs("p2").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery(`FROM artifacts`).WithArgs("p2").
			WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "artifact_type", "content", "created_at"}))

		items, err := repo.ListArtifacts(ctx, "p2")
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown project", func(t *testing.T) {
		mock.ExpectQuery(`SELECT EXISTS`).WithArgs("nope").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := repo.ListArtifacts(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProjectRepository_SaveArtifact(t *testing.T) {
	repo, mock := setupProjectRepo(t)
	ctx := context.Background()

	t.Run("inserts", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO artifacts`).
			WithArgs(sqlmock.AnyArg(), "p1", "prototype", "function App() {}").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

		a, err := repo.SaveArtifact(ctx, "p1", "prototype", "function App() {}")
		require.NoError(t, err)
		assert.NotEmpty(t, a.ID)
		assert.Equal(t, "function App() {}", a.Content)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("foreign key violation maps to not found", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO artifacts`).
			WithArgs(sqlmock.AnyArg(), "nope", "vision", "x").
			WillReturnError(&pq.Error{Code: "23503"})

		_, err := repo.SaveArtifact(ctx, "nope", "vision", "x")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProjectRepository_SaveMessage(t *testing.T) {
	repo, mock := setupProjectRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO agent_messages`).
		WithArgs(sqlmock.AnyArg(), "p1", "pm", "Alex (Project Manager)", "plan", "text").
		WillReturnRows(sqlmock.NewRows([]string{"timestamp"}).AddRow(time.Now()))

	m, err := repo.SaveMessage(ctx, domain.SaveMessageRequest{
		ProjectID:   "p1",
		AgentRole:   "pm",
		AgentName:   "Alex (Project Manager)",
		Message:     "plan",
		MessageType: "text",
	})
	require.NoError(t, err)
	assert.Equal(t, "plan", m.Message)
	assert.False(t, m.Timestamp.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_SetProjectStatus(t *testing.T) {
	repo, mock := setupProjectRepo(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE projects`).WithArgs("p1", "completed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetProjectStatus(ctx, "p1", "completed"))

	mock.ExpectExec(`UPDATE projects`).WithArgs("nope", "completed").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SetProjectStatus(ctx, "nope", "completed"), domain.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryRepository_RoundTrip(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	p, err := repo.CreateProject(ctx, domain.CreateProjectRequest{Name: "T", Description: "d", Mode: "text"})
	require.NoError(t, err)

	content := "line one\r\n\tline two — ünïcödé\x00"
	_, err = repo.SaveArtifact(ctx, p.ID, domain.ArtifactVision, "old")
	require.NoError(t, err)
	_, err = repo.SaveArtifact(ctx, p.ID, domain.ArtifactUseCases, "uc")
	require.NoError(t, err)
	saved, err := repo.SaveArtifact(ctx, p.ID, domain.ArtifactVision, content)
	require.NoError(t, err)

	all, err := repo.ListArtifacts(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, content, all[2].Content)

	latest, err := repo.LatestArtifacts(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, domain.ArtifactUseCases, latest[0].ArtifactType)
	assert.Equal(t, saved.ID, latest[1].ID)

	_, err = repo.SaveMessage(ctx, domain.SaveMessageRequest{ProjectID: "nope", AgentRole: "pm", Message: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
