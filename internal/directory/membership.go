package directory

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/hpcadmin/server/internal/models"
)

// AddUserToPirg adds user to the members of pirg. The owner and existing
// members are left as they are.
func (s *Service) AddUserToPirg(ctx context.Context, pirg *models.Pirg, user *models.User) (*models.PirgDetail, error) {
	return s.changePirg(ctx, pirg, user, models.PirgRoleUser, true)
}

// RemoveUserFromPirg removes user from the members of pirg; absent users are
// a no-op.
func (s *Service) RemoveUserFromPirg(ctx context.Context, pirg *models.Pirg, user *models.User) (*models.PirgDetail, error) {
	return s.changePirg(ctx, pirg, user, models.PirgRoleUser, false)
}

// AddAdminToPirg is AddUserToPirg for the admins set.
func (s *Service) AddAdminToPirg(ctx context.Context, pirg *models.Pirg, user *models.User) (*models.PirgDetail, error) {
	return s.changePirg(ctx, pirg, user, models.PirgRoleAdmin, true)
}

// RemoveAdminFromPirg is RemoveUserFromPirg for the admins set.
func (s *Service) RemoveAdminFromPirg(ctx context.Context, pirg *models.Pirg, user *models.User) (*models.PirgDetail, error) {
	return s.changePirg(ctx, pirg, user, models.PirgRoleAdmin, false)
}

func (s *Service) changePirg(ctx context.Context, pirg *models.Pirg, user *models.User, role models.PirgRole, add bool) (*models.PirgDetail, error) {
	var (
		detail  *models.PirgDetail
		changed bool
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.GetPirgByID(ctx, pirg.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return &NotFoundError{Kind: KindPirg, Key: pirg.Name}
		}
		if current.OwnerID != user.ID && current.HasMember(role, user.ID) != add {
			if add {
				changed, err = tx.AddPirgMember(ctx, current.ID, user.ID, role)
			} else {
				changed, err = tx.RemovePirgMember(ctx, current.ID, user.ID, role)
			}
			if err != nil {
				return err
			}
			if changed {
				if current, err = tx.GetPirgByID(ctx, pirg.ID); err != nil {
					return err
				}
			}
		}
		detail, err = pirgDetail(ctx, tx, current)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update %s set of pirg %q: %w", role, pirg.Name, err)
	}
	if changed {
		ev := pirgEvent(role, add)
		s.logger.Info("pirg membership changed",
			zap.String("event", string(ev)),
			zap.String("pirg", pirg.Name),
			zap.String("username", user.Username),
		)
		s.notify(ctx, Event{Type: ev, PirgID: pirg.ID, UserID: user.ID})
	}
	return detail, nil
}

func pirgEvent(role models.PirgRole, add bool) EventType {
	switch {
	case role == models.PirgRoleAdmin && add:
		return EventPirgAdminAdded
	case role == models.PirgRoleAdmin:
		return EventPirgAdminRemoved
	case add:
		return EventPirgUserAdded
	default:
		return EventPirgUserRemoved
	}
}

// AddUserToPirgGroup adds user to group. Adding an existing member is a
// no-op.
func (s *Service) AddUserToPirgGroup(ctx context.Context, group *models.Group, user *models.User) (*models.GroupDetail, error) {
	return s.changeGroup(ctx, group, user, true)
}

// RemoveUserFromPirgGroup removes user from group if present.
func (s *Service) RemoveUserFromPirgGroup(ctx context.Context, group *models.Group, user *models.User) (*models.GroupDetail, error) {
	return s.changeGroup(ctx, group, user, false)
}

func (s *Service) changeGroup(ctx context.Context, group *models.Group, user *models.User, add bool) (*models.GroupDetail, error) {
	var (
		detail  *models.GroupDetail
		changed bool
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.GetGroupByID(ctx, group.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return &NotFoundError{Kind: KindGroup, Key: strconv.FormatInt(group.ID, 10)}
		}
		if current.HasMember(user.ID) != add {
			if add {
				changed, err = tx.AddGroupMember(ctx, group.ID, user.ID)
			} else {
				changed, err = tx.RemoveGroupMember(ctx, group.ID, user.ID)
			}
			if err != nil {
				return err
			}
			if changed {
				if current, err = tx.GetGroupByID(ctx, group.ID); err != nil {
					return err
				}
			}
		}
		detail, err = groupDetail(ctx, tx, current)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update users of group %d: %w", group.ID, err)
	}
	if changed {
		ev := EventGroupUserRemoved
		if add {
			ev = EventGroupUserAdded
		}
		s.logger.Info("group membership changed",
			zap.String("event", string(ev)),
			zap.Int64("group_id", group.ID),
			zap.String("username", user.Username),
		)
		s.notify(ctx, Event{Type: ev, PirgID: group.PirgID, GroupID: group.ID, UserID: user.ID})
	}
	return detail, nil
}

// DeletePirgGroup deletes group and its memberships. The users remain.
func (s *Service) DeletePirgGroup(ctx context.Context, group *models.Group) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.DeleteGroup(ctx, group.ID)
	})
	if err != nil {
		return fmt.Errorf("delete group %d: %w", group.ID, err)
	}
	s.logger.Info("group deleted", zap.Int64("group_id", group.ID), zap.String("name", group.Name))
	s.notify(ctx, Event{Type: EventGroupDeleted, PirgID: group.PirgID, GroupID: group.ID})
	return nil
}
