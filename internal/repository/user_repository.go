package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/user-access-service/internal/domain"
)

// ErrDuplicateEmail is returned when the email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// UserRepository defines persistence access for accounts.
// Lookups return pgx.ErrNoRows when nothing matches.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, int, error)
}

// UserFilter defines paging and ordering for user listing.
type UserFilter struct {
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// sortColumns maps public sort keys to columns. Anything else is rejected.
var sortColumns = map[string]string{
	"id":         "id",
	"surname":    "surname",
	"name":       "name",
	"fathername": "fathername",
	"email":      "email",
	"birthDate":  "birth_date",
	"role":       "role",
	"status":     "status",
	"createdAt":  "created_at",
}

// SortColumn reports the column for a public sort key.
func SortColumn(key string) (string, bool) {
	col, ok := sortColumns[key]
	return col, ok
}

const userColumns = `id, surname, name, fathername, birth_date, email, password_hash, role, status, created_at, updated_at`

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (surname, name, fathername, birth_date, email, password_hash, role, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Surname,
		user.Name,
		user.Fathername,
		user.BirthDate,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return mapWriteError(err)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET surname=$1, name=$2, fathername=$3, birth_date=$4, email=$5,
            password_hash=$6, role=$7, status=$8, updated_at=NOW()
        WHERE id=$9`

	cmd, err := r.pool.Exec(ctx, query,
		user.Surname,
		user.Name,
		user.Fathername,
		user.BirthDate,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.ID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation {
		// not a uuid, so no such row
		return nil, pgx.ErrNoRows
	}
	return user, err
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email)=lower($1)`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, int, error) {
	col, ok := SortColumn(filter.OrderBy)
	if !ok {
		return nil, 0, fmt.Errorf("unsupported sort key %q", filter.OrderBy)
	}
	dir := "ASC"
	if filter.Desc {
		dir = "DESC"
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	// col comes from the whitelist above, never from input.
	query := fmt.Sprintf(`SELECT %s FROM users ORDER BY %s %s, id ASC LIMIT $1 OFFSET $2`, userColumns, col, dir)
	rows, err := r.pool.Query(ctx, query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Surname,
		&user.Name,
		&user.Fathername,
		&user.BirthDate,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}
