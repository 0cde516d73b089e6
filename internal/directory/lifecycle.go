package directory

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hpcadmin/server/internal/models"
)

// NewUser holds the fields of a user to create.
type NewUser struct {
	Username  string
	Firstname string
	Lastname  string
	Email     string
	IsPI      bool
	SponsorID *int64
}

// NewPirg holds the fields of a pirg to create.
type NewPirg struct {
	Name     string
	OwnerID  int64
	AdminIDs []int64
	UserIDs  []int64
}

// NewGroup holds the fields of a group to create inside PirgID.
type NewGroup struct {
	Name    string
	PirgID  int64
	UserIDs []int64
}

// required rejects blank values. The value itself is stored as given.
func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// CreateUser validates and stores a new user.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*models.UserDetail, error) {
	for _, f := range []struct{ field, value string }{
		{"username", in.Username},
		{"firstname", in.Firstname},
		{"lastname", in.Lastname},
		{"email", in.Email},
	} {
		if err := required(f.field, f.value); err != nil {
			return nil, err
		}
	}
	user := &models.User{
		Username:  in.Username,
		Firstname: in.Firstname,
		Lastname:  in.Lastname,
		Email:     in.Email,
		IsPI:      in.IsPI,
		SponsorID: in.SponsorID,
	}

	var detail *models.UserDetail
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		existing, err := tx.GetUserByUsername(ctx, user.Username)
		if err != nil {
			return err
		}
		if existing != nil {
			return &AlreadyExistsError{Kind: KindUser, Field: "username", Value: user.Username}
		}
		if s.validateSponsor && user.SponsorID != nil {
			sponsor, err := tx.GetUserByID(ctx, *user.SponsorID)
			if err != nil {
				return err
			}
			if sponsor == nil {
				return &InvalidReferenceError{Kind: KindUser, Field: "sponsor_id", ID: *user.SponsorID}
			}
		}
		if err := tx.InsertUser(ctx, user); err != nil {
			return err
		}
		detail, err = userDetail(ctx, tx, user)
		return err
	})
	if err != nil {
		err = alreadyExists(err, map[string]string{
			ConstraintUsername: user.Username,
			ConstraintEmail:    user.Email,
		})
		s.logger.Error("create user failed", zap.String("username", user.Username), zap.Error(err))
		return nil, err
	}
	s.logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	s.notify(ctx, Event{Type: EventUserCreated, UserID: user.ID})
	return detail, nil
}

// CreatePirg validates the owner and every member id, then stores the pirg
// with its admins and users in one transaction. The owner is dropped from
// both sets.
func (s *Service) CreatePirg(ctx context.Context, in NewPirg) (*models.PirgDetail, error) {
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	name := in.Name
	pirg := &models.Pirg{Name: name, OwnerID: in.OwnerID}

	var detail *models.PirgDetail
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		existing, err := tx.GetPirgByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return &AlreadyExistsError{Kind: KindPirg, Field: "name", Value: name}
		}
		owner, err := tx.GetUserByID(ctx, in.OwnerID)
		if err != nil {
			return err
		}
		if owner == nil {
			return &NotFoundError{Kind: KindUser, Key: strconv.FormatInt(in.OwnerID, 10)}
		}
		if err := checkUsers(ctx, tx, "admin_ids", in.AdminIDs); err != nil {
			return err
		}
		if err := checkUsers(ctx, tx, "user_ids", in.UserIDs); err != nil {
			return err
		}
		pirg.AdminIDs = memberSet(in.AdminIDs, in.OwnerID)
		pirg.UserIDs = memberSet(in.UserIDs, in.OwnerID)
		if err := tx.InsertPirg(ctx, pirg); err != nil {
			return err
		}
		detail, err = pirgDetail(ctx, tx, pirg)
		return err
	})
	if err != nil {
		err = alreadyExists(err, map[string]string{ConstraintPirgName: name})
		s.logger.Error("create pirg failed", zap.String("name", name), zap.Error(err))
		return nil, err
	}
	s.logger.Info("pirg created",
		zap.Int64("pirg_id", pirg.ID),
		zap.String("name", name),
		zap.Int("admins", len(pirg.AdminIDs)),
		zap.Int("users", len(pirg.UserIDs)),
	)
	s.notify(ctx, Event{Type: EventPirgCreated, PirgID: pirg.ID, UserID: pirg.OwnerID})
	return detail, nil
}

// CreatePirgGroup stores a group inside an existing pirg with its initial
// users.
func (s *Service) CreatePirgGroup(ctx context.Context, in NewGroup) (*models.GroupDetail, error) {
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	name := in.Name
	group := &models.Group{Name: name, PirgID: in.PirgID}

	var detail *models.GroupDetail
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		pirg, err := tx.GetPirgByID(ctx, in.PirgID)
		if err != nil {
			return err
		}
		if pirg == nil {
			return &NotFoundError{Kind: KindPirg, Key: strconv.FormatInt(in.PirgID, 10)}
		}
		existing, err := tx.GetGroupByName(ctx, pirg.ID, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return &AlreadyExistsError{Kind: KindGroup, Field: "name", Value: name}
		}
		if err := checkUsers(ctx, tx, "user_ids", in.UserIDs); err != nil {
			return err
		}
		group.UserIDs = memberSet(in.UserIDs, 0)
		if err := tx.InsertGroup(ctx, group); err != nil {
			return err
		}
		detail, err = groupDetail(ctx, tx, group)
		return err
	})
	if err != nil {
		err = alreadyExists(err, map[string]string{ConstraintGroupName: name})
		s.logger.Error("create group failed", zap.String("name", name), zap.Int64("pirg_id", in.PirgID), zap.Error(err))
		return nil, err
	}
	s.logger.Info("group created", zap.Int64("group_id", group.ID), zap.String("name", name), zap.Int64("pirg_id", group.PirgID))
	s.notify(ctx, Event{Type: EventGroupCreated, PirgID: group.PirgID, GroupID: group.ID})
	return detail, nil
}

// checkUsers fails on the first id, in order, that names no user.
func checkUsers(ctx context.Context, r Reader, field string, ids []int64) error {
	for _, id := range ids {
		u, err := r.GetUserByID(ctx, id)
		if err != nil {
			return err
		}
		if u == nil {
			return &InvalidReferenceError{Kind: KindUser, Field: field, ID: id}
		}
	}
	return nil
}

// memberSet dedupes ids keeping first-seen order and drops exclude.
func memberSet(ids []int64, exclude int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var constraintFields = map[string]struct {
	kind  Kind
	field string
}{
	ConstraintUsername:  {KindUser, "username"},
	ConstraintEmail:     {KindUser, "email"},
	ConstraintPirgName:  {KindPirg, "name"},
	ConstraintGroupName: {KindGroup, "name"},
}

// alreadyExists turns a unique violation raised by the store into the
// AlreadyExistsError for the offending field. values maps constraint names to
// the rejected value.
func alreadyExists(err error, values map[string]string) error {
	var ce *ConstraintError
	if !errors.As(err, &ce) {
		return err
	}
	f, ok := constraintFields[ce.Constraint]
	if !ok {
		return err
	}
	return &AlreadyExistsError{Kind: f.kind, Field: f.field, Value: values[ce.Constraint]}
}
