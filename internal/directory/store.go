package directory

import (
	"context"

	"github.com/hpcadmin/server/internal/models"
)

// Reader is the read side of a store transaction. Lookups return nil and no
// error when the entity does not exist. Every list is ordered by id.
type Reader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UserSignatures(ctx context.Context, ids []int64) ([]models.UserSignature, error)
	UserPirgs(ctx context.Context, userID int64) ([]models.PirgSignature, error)
	UserGroups(ctx context.Context, userID int64) ([]models.GroupSignature, error)

	GetPirgByID(ctx context.Context, id int64) (*models.Pirg, error)
	GetPirgByName(ctx context.Context, name string) (*models.Pirg, error)
	ListPirgs(ctx context.Context) ([]models.Pirg, error)

	GetGroupByID(ctx context.Context, id int64) (*models.Group, error)
	GetGroupByName(ctx context.Context, pirgID int64, name string) (*models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	ListPirgGroups(ctx context.Context, pirgID int64) ([]models.Group, error)
}

// Tx is a read-write store transaction.
//
// Insert methods assign ID, CreatedAt and UpdatedAt on the passed entity and
// return a *ConstraintError on a unique violation. Membership methods report
// whether the set changed; the parent's UpdatedAt is refreshed only then.
type Tx interface {
	Reader

	InsertUser(ctx context.Context, user *models.User) error
	InsertPirg(ctx context.Context, pirg *models.Pirg) error
	InsertGroup(ctx context.Context, group *models.Group) error
	DeleteGroup(ctx context.Context, id int64) error

	AddPirgMember(ctx context.Context, pirgID, userID int64, role models.PirgRole) (bool, error)
	RemovePirgMember(ctx context.Context, pirgID, userID int64, role models.PirgRole) (bool, error)
	AddGroupMember(ctx context.Context, groupID, userID int64) (bool, error)
	RemoveGroupMember(ctx context.Context, groupID, userID int64) (bool, error)
}

// Store is the transactional entity store. WithTx commits when fn returns nil
// and rolls back otherwise; View runs fn against a read-only snapshot.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, r Reader) error) error
}
