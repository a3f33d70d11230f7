package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arseniyrs/userhub/internal/domain/user"
	"github.com/arseniyrs/userhub/internal/observability"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

// NewUsersRepo wires the directory to the pool; prom may be nil in tests.
func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom == nil {
		return fn()
	}

	return r.prom.ObserveDB(op, fn)
}

const userColumns = `id, username, email, password_hash, bio, image, created_at, updated_at`

func (r *UsersRepo) Create(ctx context.Context, p user.CreateParams) (user.User, error) {
	var u user.User

	err := r.observe("users.create", func() error {
		return r.pool.QueryRow(
			ctx,
			`INSERT INTO users (username, email, password_hash)
			 VALUES ($1, $2, $3)
			 RETURNING `+userColumns,
			p.Username,
			p.Email,
			p.PasswordHash,
		).Scan(
			&u.ID,
			&u.Username,
			&u.Email,
			&u.PasswordHash,
			&u.Bio,
			&u.Image,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
	})

	if err != nil {
		return user.User{}, classifyUniqueViolation(err)
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.get(ctx, "users.get_by_email", `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.get(ctx, "users.get_by_id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UsersRepo) get(ctx context.Context, op, query, arg string) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx, query, arg).Scan(
			&u.ID,
			&u.Username,
			&u.Email,
			&u.PasswordHash,
			&u.Bio,
			&u.Image,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}

	return u, nil
}

// Update reads the current row, merges the partial params in Go and writes
// every column back, mirroring the merge the memory repo does.
func (r *UsersRepo) Update(ctx context.Context, id string, p user.UpdateParams) (user.User, error) {
	u, err := r.GetByID(ctx, id)

	if err != nil {
		return user.User{}, err
	}

	u.Apply(p)

	var out user.User

	err = r.observe("users.update", func() error {
		return r.pool.QueryRow(
			ctx,
			`UPDATE users
				SET username = $2,
						email = $3,
						password_hash = $4,
						bio = $5,
						image = $6,
						updated_at = NOW()
			WHERE id = $1
			RETURNING `+userColumns,
			id,
			u.Username,
			u.Email,
			u.PasswordHash,
			u.Bio,
			u.Image,
		).Scan(
			&out.ID,
			&out.Username,
			&out.Email,
			&out.PasswordHash,
			&out.Bio,
			&out.Image,
			&out.CreatedAt,
			&out.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, classifyUniqueViolation(err)
	}

	return out, nil
}

func classifyUniqueViolation(err error) error {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "users_email_key", "users_email_lower_idx":
			return user.ErrEmailTaken
		case "users_username_key":
			return user.ErrUsernameTaken
		}
	}

	return err
}
