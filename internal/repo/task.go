package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
)

const taskColumns = `id::text, title, description, priority, status, created_at, updated_at`

type TaskRepo struct { // Репозиторий для работы непосредственно с БД
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo { // Конструктор
	return &TaskRepo{
		pool: pool,
	}
}

func (r *TaskRepo) Create(ctx context.Context, f model.TaskFields) (model.Task, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (title, description, priority, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+taskColumns,
		f.Title, f.Description, string(f.Priority), string(f.Status),
	)
	t, err := scanTask(row)
	return t, r.mapError(err)
}

func (r *TaskRepo) Get(ctx context.Context, id string) (model.Task, error) {
	if !validID(id) {
		return model.Task{}, ErrorNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrorNotFound
	}
	return t, err
}

// List возвращает все задачи в порядке вставки, без пагинации
func (r *TaskRepo) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at, id
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Update перезаписывает только переданные поля. Проверки версии нет:
// побеждает последняя запись.
func (r *TaskRepo) Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	if !validID(id) {
		return model.Task{}, ErrorNotFound
	}
	var priority, status *string
	if patch.Priority != nil {
		p := string(*patch.Priority)
		priority = &p
	}
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET title = COALESCE($2, title),
		    description = COALESCE($3, description),
		    priority = COALESCE($4, priority),
		    status = COALESCE($5, status),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+taskColumns,
		id, patch.Title, patch.Description, priority, status,
	)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrorNotFound
	}
	return t, r.mapError(err)
}

func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrorNotFound
	}
	cmd, err := r.pool.Exec(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrorNotFound
	}
	return nil
}

func (r *TaskRepo) CreateOnce(ctx context.Context, key string, f model.TaskFields) (model.Task, bool, error) {
	var (
		task    model.Task
		created bool
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// Запросы с одним ключом выстраиваются в очередь до конца транзакции
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return err
		}

		var existingID string
		err := tx.QueryRow(ctx, `SELECT resource_id::text FROM idempotency_keys WHERE key = $1`, key).Scan(&existingID)
		if err == nil {
			task, err = scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, existingID))
			return err
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		task, err = scanTask(tx.QueryRow(ctx, `
			INSERT INTO tasks (title, description, priority, status)
			VALUES ($1, $2, $3, $4)
			RETURNING `+taskColumns,
			f.Title, f.Description, string(f.Priority), string(f.Status),
		))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO idempotency_keys (key, resource_id) VALUES ($1, $2)
		`, key, task.ID); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return model.Task{}, false, r.mapError(err)
	}
	return task, created, nil
}

func (r *TaskRepo) GetStats(ctx context.Context) (Stats, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	stats := newStats()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		stats.ByStatus[model.Status(status)] = count
		stats.TotalTasks += count
	}
	return stats, rows.Err()
}

func (r *TaskRepo) mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return ErrorConflict
		case "22P02": // invalid_text_representation
			return ErrorNotFound
		}
	}
	return err
}

func scanTask(row pgx.Row) (model.Task, error) {
	var (
		t                model.Task
		priority, status string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &priority, &status, &t.CreatedAt, &t.UpdatedAt)
	t.Priority = model.Priority(priority)
	t.Status = model.Status(status)
	return t, err
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
