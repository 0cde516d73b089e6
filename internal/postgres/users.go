package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hpcadmin/server/internal/models"
)

const userColumns = `id, username, firstname, lastname, email, is_pi, sponsor_id, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Firstname, &u.Lastname, &u.Email, &u.IsPI, &u.SponsorID, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *txStore) getUser(ctx context.Context, q string, arg any) (*models.User, error) {
	u, err := scanUser(s.tx.QueryRow(ctx, q, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (s *txStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *txStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (s *txStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.tx.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

func (s *txStore) UserSignatures(ctx context.Context, ids []int64) ([]models.UserSignature, error) {
	if len(ids) == 0 {
		return []models.UserSignature{}, nil
	}
	rows, err := s.tx.Query(ctx, `SELECT id, username FROM users WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("user signatures: %w", err)
	}
	sigs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.UserSignature, error) {
		var sig models.UserSignature
		err := row.Scan(&sig.ID, &sig.Username)
		return sig, err
	})
	if err != nil {
		return nil, fmt.Errorf("user signatures: %w", err)
	}
	if sigs == nil {
		sigs = []models.UserSignature{}
	}
	return sigs, nil
}

func (s *txStore) UserPirgs(ctx context.Context, userID int64) ([]models.PirgSignature, error) {
	const q = `SELECT p.id, p.name FROM pirgs p
		INNER JOIN pirg_users pu ON pu.pirg_id = p.id
		WHERE pu.user_id = $1
		ORDER BY p.id`
	rows, err := s.tx.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("pirgs of user %d: %w", userID, err)
	}
	sigs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.PirgSignature, error) {
		var sig models.PirgSignature
		err := row.Scan(&sig.ID, &sig.Name)
		return sig, err
	})
	if err != nil {
		return nil, fmt.Errorf("pirgs of user %d: %w", userID, err)
	}
	if sigs == nil {
		sigs = []models.PirgSignature{}
	}
	return sigs, nil
}

func (s *txStore) UserGroups(ctx context.Context, userID int64) ([]models.GroupSignature, error) {
	const q = `SELECT g.id, g.name FROM groups g
		INNER JOIN group_users gu ON gu.group_id = g.id
		WHERE gu.user_id = $1
		ORDER BY g.id`
	rows, err := s.tx.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("groups of user %d: %w", userID, err)
	}
	sigs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.GroupSignature, error) {
		var sig models.GroupSignature
		err := row.Scan(&sig.ID, &sig.Name)
		return sig, err
	})
	if err != nil {
		return nil, fmt.Errorf("groups of user %d: %w", userID, err)
	}
	if sigs == nil {
		sigs = []models.GroupSignature{}
	}
	return sigs, nil
}

// InsertUser inserts user and fills ID and timestamps.
func (s *txStore) InsertUser(ctx context.Context, user *models.User) error {
	const q = `INSERT INTO users (username, firstname, lastname, email, is_pi, sponsor_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	err := s.tx.QueryRow(ctx, q, user.Username, user.Firstname, user.Lastname, user.Email, user.IsPI, user.SponsorID).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", mapError(err))
	}
	return nil
}
