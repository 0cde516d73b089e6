package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hpcadmin/server/internal/directory"
	"github.com/hpcadmin/server/internal/models"
)

const groupColumns = `id, name, pirg_id, created_at, updated_at`

func scanGroup(row pgx.Row) (models.Group, error) {
	var g models.Group
	err := row.Scan(&g.ID, &g.Name, &g.PirgID, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func (s *txStore) fillGroup(ctx context.Context, g *models.Group) error {
	var err error
	g.UserIDs, err = collectIDs(s.tx.Query(ctx, `SELECT user_id FROM group_users WHERE group_id = $1 ORDER BY user_id`, g.ID))
	if err != nil {
		return fmt.Errorf("users of group %d: %w", g.ID, err)
	}
	return nil
}

func (s *txStore) getGroup(ctx context.Context, q string, args ...any) (*models.Group, error) {
	g, err := scanGroup(s.tx.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select group: %w", err)
	}
	if err := s.fillGroup(ctx, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *txStore) GetGroupByID(ctx context.Context, id int64) (*models.Group, error) {
	return s.getGroup(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id)
}

func (s *txStore) GetGroupByName(ctx context.Context, pirgID int64, name string) (*models.Group, error) {
	return s.getGroup(ctx, `SELECT `+groupColumns+` FROM groups WHERE pirg_id = $1 AND name = $2`, pirgID, name)
}

func (s *txStore) listGroups(ctx context.Context, q string, args ...any) ([]models.Group, error) {
	rows, err := s.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	groups, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Group, error) {
		return scanGroup(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	for i := range groups {
		if err := s.fillGroup(ctx, &groups[i]); err != nil {
			return nil, err
		}
	}
	if groups == nil {
		groups = []models.Group{}
	}
	return groups, nil
}

func (s *txStore) ListGroups(ctx context.Context) ([]models.Group, error) {
	return s.listGroups(ctx, `SELECT `+groupColumns+` FROM groups ORDER BY id`)
}

func (s *txStore) ListPirgGroups(ctx context.Context, pirgID int64) ([]models.Group, error) {
	return s.listGroups(ctx, `SELECT `+groupColumns+` FROM groups WHERE pirg_id = $1 ORDER BY id`, pirgID)
}

// InsertGroup inserts group with its users, refreshes the parent pirg and
// reloads the group.
func (s *txStore) InsertGroup(ctx context.Context, group *models.Group) error {
	if err := s.pirgExists(ctx, group.PirgID); err != nil {
		return err
	}
	const q = `INSERT INTO groups (name, pirg_id) VALUES ($1, $2) RETURNING id`
	if err := s.tx.QueryRow(ctx, q, group.Name, group.PirgID).Scan(&group.ID); err != nil {
		return fmt.Errorf("insert group: %w", mapError(err))
	}
	if len(group.UserIDs) > 0 {
		const qu = `INSERT INTO group_users (group_id, user_id)
			SELECT $1, unnest($2::bigint[])
			ON CONFLICT DO NOTHING`
		if _, err := s.tx.Exec(ctx, qu, group.ID, group.UserIDs); err != nil {
			return fmt.Errorf("insert group users: %w", mapError(err))
		}
	}
	if err := s.touchPirg(ctx, group.PirgID); err != nil {
		return err
	}
	stored, err := s.GetGroupByID(ctx, group.ID)
	if err != nil {
		return err
	}
	*group = *stored
	return nil
}

// DeleteGroup removes the group; group_users rows go with it.
func (s *txStore) DeleteGroup(ctx context.Context, id int64) error {
	var pirgID int64
	err := s.tx.QueryRow(ctx, `DELETE FROM groups WHERE id = $1 RETURNING pirg_id`, id).Scan(&pirgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return &directory.NotFoundError{Kind: directory.KindGroup, Key: fmt.Sprint(id)}
	}
	if err != nil {
		return fmt.Errorf("delete group %d: %w", id, err)
	}
	return s.touchPirg(ctx, pirgID)
}

func (s *txStore) touchGroup(ctx context.Context, id int64) error {
	if _, err := s.tx.Exec(ctx, `UPDATE groups SET updated_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("touch group %d: %w", id, err)
	}
	return nil
}

func (s *txStore) AddGroupMember(ctx context.Context, groupID, userID int64) (bool, error) {
	tag, err := s.tx.Exec(ctx, `INSERT INTO group_users (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("add group user: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	return true, s.touchGroup(ctx, groupID)
}

func (s *txStore) RemoveGroupMember(ctx context.Context, groupID, userID int64) (bool, error) {
	tag, err := s.tx.Exec(ctx, `DELETE FROM group_users WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("remove group user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	return true, s.touchGroup(ctx, groupID)
}
