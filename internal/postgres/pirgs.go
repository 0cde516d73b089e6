package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hpcadmin/server/internal/directory"
	"github.com/hpcadmin/server/internal/models"
)

const pirgColumns = `id, name, owner_id, created_at, updated_at`

func scanPirg(row pgx.Row) (models.Pirg, error) {
	var p models.Pirg
	err := row.Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// memberTable maps a role to its association table.
func memberTable(role models.PirgRole) string {
	if role == models.PirgRoleAdmin {
		return "pirg_admins"
	}
	return "pirg_users"
}

// fillPirg loads the id sets of p.
func (s *txStore) fillPirg(ctx context.Context, p *models.Pirg) error {
	var err error
	if p.AdminIDs, err = collectIDs(s.tx.Query(ctx, `SELECT user_id FROM pirg_admins WHERE pirg_id = $1 ORDER BY user_id`, p.ID)); err != nil {
		return fmt.Errorf("admins of pirg %d: %w", p.ID, err)
	}
	if p.UserIDs, err = collectIDs(s.tx.Query(ctx, `SELECT user_id FROM pirg_users WHERE pirg_id = $1 ORDER BY user_id`, p.ID)); err != nil {
		return fmt.Errorf("users of pirg %d: %w", p.ID, err)
	}
	if p.GroupIDs, err = collectIDs(s.tx.Query(ctx, `SELECT id FROM groups WHERE pirg_id = $1 ORDER BY id`, p.ID)); err != nil {
		return fmt.Errorf("groups of pirg %d: %w", p.ID, err)
	}
	return nil
}

func (s *txStore) getPirg(ctx context.Context, q string, arg any) (*models.Pirg, error) {
	p, err := scanPirg(s.tx.QueryRow(ctx, q, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select pirg: %w", err)
	}
	if err := s.fillPirg(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *txStore) GetPirgByID(ctx context.Context, id int64) (*models.Pirg, error) {
	return s.getPirg(ctx, `SELECT `+pirgColumns+` FROM pirgs WHERE id = $1`, id)
}

func (s *txStore) GetPirgByName(ctx context.Context, name string) (*models.Pirg, error) {
	return s.getPirg(ctx, `SELECT `+pirgColumns+` FROM pirgs WHERE name = $1`, name)
}

func (s *txStore) ListPirgs(ctx context.Context) ([]models.Pirg, error) {
	rows, err := s.tx.Query(ctx, `SELECT `+pirgColumns+` FROM pirgs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list pirgs: %w", err)
	}
	pirgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Pirg, error) {
		return scanPirg(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list pirgs: %w", err)
	}
	for i := range pirgs {
		if err := s.fillPirg(ctx, &pirgs[i]); err != nil {
			return nil, err
		}
	}
	if pirgs == nil {
		pirgs = []models.Pirg{}
	}
	return pirgs, nil
}

// InsertPirg inserts pirg with its admin and user sets and reloads it.
func (s *txStore) InsertPirg(ctx context.Context, pirg *models.Pirg) error {
	const q = `INSERT INTO pirgs (name, owner_id) VALUES ($1, $2) RETURNING id`
	if err := s.tx.QueryRow(ctx, q, pirg.Name, pirg.OwnerID).Scan(&pirg.ID); err != nil {
		return fmt.Errorf("insert pirg: %w", mapError(err))
	}
	for _, role := range []models.PirgRole{models.PirgRoleAdmin, models.PirgRoleUser} {
		ids := pirg.UserIDs
		if role == models.PirgRoleAdmin {
			ids = pirg.AdminIDs
		}
		if len(ids) == 0 {
			continue
		}
		q := `INSERT INTO ` + memberTable(role) + ` (pirg_id, user_id)
			SELECT $1, unnest($2::bigint[])
			ON CONFLICT DO NOTHING`
		if _, err := s.tx.Exec(ctx, q, pirg.ID, ids); err != nil {
			return fmt.Errorf("insert pirg %ss: %w", role, mapError(err))
		}
	}
	stored, err := s.GetPirgByID(ctx, pirg.ID)
	if err != nil {
		return err
	}
	*pirg = *stored
	return nil
}

func (s *txStore) touchPirg(ctx context.Context, id int64) error {
	if _, err := s.tx.Exec(ctx, `UPDATE pirgs SET updated_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("touch pirg %d: %w", id, err)
	}
	return nil
}

func (s *txStore) AddPirgMember(ctx context.Context, pirgID, userID int64, role models.PirgRole) (bool, error) {
	q := `INSERT INTO ` + memberTable(role) + ` (pirg_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	tag, err := s.tx.Exec(ctx, q, pirgID, userID)
	if err != nil {
		return false, fmt.Errorf("add pirg %s: %w", role, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	return true, s.touchPirg(ctx, pirgID)
}

func (s *txStore) RemovePirgMember(ctx context.Context, pirgID, userID int64, role models.PirgRole) (bool, error) {
	q := `DELETE FROM ` + memberTable(role) + ` WHERE pirg_id = $1 AND user_id = $2`
	tag, err := s.tx.Exec(ctx, q, pirgID, userID)
	if err != nil {
		return false, fmt.Errorf("remove pirg %s: %w", role, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	return true, s.touchPirg(ctx, pirgID)
}

// pirgExists is used where a missing parent must be told apart from a
// missing member.
func (s *txStore) pirgExists(ctx context.Context, id int64) error {
	var at time.Time
	err := s.tx.QueryRow(ctx, `SELECT created_at FROM pirgs WHERE id = $1`, id).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return &directory.NotFoundError{Kind: directory.KindPirg, Key: fmt.Sprint(id)}
	}
	return err
}
