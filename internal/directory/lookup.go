package directory

import (
	"context"
	"fmt"

	"github.com/hpcadmin/server/internal/models"
)

// GetUserByID returns the user with id, or nil when there is none.
func (s *Service) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u *models.User
	err := s.store.View(ctx, func(ctx context.Context, r Reader) error {
		var err error
		u, err = r.GetUserByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername matches username exactly.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u *models.User
	err := s.store.View(ctx, func(ctx context.Context, r Reader) error {
		var err error
		u, err = r.GetUserByUsername(ctx, username)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return u, nil
}

func (s *Service) GetPirgByID(ctx context.Context, id int64) (*models.Pirg, error) {
	var p *models.Pirg
	err := s.store.View(ctx, func(ctx context.Context, r Reader) error {
		var err error
		p, err = r.GetPirgByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get pirg %d: %w", id, err)
	}
	return p, nil
}

func (s *Service) GetPirgByName(ctx context.Context, name string) (*models.Pirg, error) {
	var p *models.Pirg
	err := s.store.View(ctx, func(ctx context.Context, r Reader) error {
		var err error
		p, err = r.GetPirgByName(ctx, name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get pirg %q: %w", name, err)
	}
	return p, nil
}

func (s *Service) GetGroupByID(ctx context.Context, id int64) (*models.Group, error) {
	var g *models.Group
	err := s.store.View(ctx, func(ctx context.Context, r Reader) error {
		var err error
		g, err = r.GetGroupByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get group %d: %w", id, err)
	}
	return g, nil
}

// GetGroupByName looks name up among the groups of pirg only.
func (s *Service) GetGroupByName(ctx context.Context, pirg *models.Pirg, name string) (*models.Group, error) {
	var g *models.Group
	err := s.store.View(ctx, func(ctx context.Context, r Reader) error {
		var err error
		g, err = r.GetGroupByName(ctx, pirg.ID, name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get group %q in pirg %q: %w", name, pirg.Name, err)
	}
	return g, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := s.store.View(ctx, func(ctx context.Context, r Reader) error {
		var err error
		out, err = r.ListUsers(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func (s *Service) ListPirgs(ctx context.Context) ([]models.Pirg, error) {
	var out []models.Pirg
	err := s.store.View(ctx, func(ctx context.Context, r Reader) error {
		var err error
		out, err = r.ListPirgs(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list pirgs: %w", err)
	}
	return out, nil
}

func (s *Service) ListGroups(ctx context.Context) ([]models.Group, error) {
	var out []models.Group
	err := s.store.View(ctx, func(ctx context.Context, r Reader) error {
		var err error
		out, err = r.ListGroups(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return out, nil
}

func (s *Service) ListPirgGroups(ctx context.Context, pirg *models.Pirg) ([]models.Group, error) {
	var out []models.Group
	err := s.store.View(ctx, func(ctx context.Context, r Reader) error {
		var err error
		out, err = r.ListPirgGroups(ctx, pirg.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list groups of pirg %q: %w", pirg.Name, err)
	}
	return out, nil
}

// ResolveUser builds the payload view of u.
func (s *Service) ResolveUser(ctx context.Context, u *models.User) (*models.UserDetail, error) {
	var d *models.UserDetail
	err := s.store.View(ctx, func(ctx context.Context, r Reader) error {
		var err error
		d, err = userDetail(ctx, r, u)
		return err
	})
	return d, err
}

// ResolvePirg builds the payload view of p.
func (s *Service) ResolvePirg(ctx context.Context, p *models.Pirg) (*models.PirgDetail, error) {
	var d *models.PirgDetail
	err := s.store.View(ctx, func(ctx context.Context, r Reader) error {
		var err error
		d, err = pirgDetail(ctx, r, p)
		return err
	})
	return d, err
}

// ResolveGroup builds the payload view of g.
func (s *Service) ResolveGroup(ctx context.Context, g *models.Group) (*models.GroupDetail, error) {
	var d *models.GroupDetail
	err := s.store.View(ctx, func(ctx context.Context, r Reader) error {
		var err error
		d, err = groupDetail(ctx, r, g)
		return err
	})
	return d, err
}

// ListUserDetails resolves every user in one read transaction.
func (s *Service) ListUserDetails(ctx context.Context) ([]models.UserDetail, error) {
	var out []models.UserDetail
	err := s.store.View(ctx, func(ctx context.Context, r Reader) (err error) {
		out, err = userDetails(ctx, r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func (s *Service) ListPirgDetails(ctx context.Context) ([]models.PirgDetail, error) {
	var out []models.PirgDetail
	err := s.store.View(ctx, func(ctx context.Context, r Reader) (err error) {
		out, err = pirgDetails(ctx, r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list pirgs: %w", err)
	}
	return out, nil
}

func (s *Service) ListGroupDetails(ctx context.Context) ([]models.GroupDetail, error) {
	out := []models.GroupDetail{}
	err := s.store.View(ctx, func(ctx context.Context, r Reader) error {
		groups, err := r.ListGroups(ctx)
		if err != nil {
			return err
		}
		return appendGroupDetails(ctx, r, groups, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return out, nil
}

func (s *Service) ListPirgGroupDetails(ctx context.Context, pirg *models.Pirg) ([]models.GroupDetail, error) {
	out := []models.GroupDetail{}
	err := s.store.View(ctx, func(ctx context.Context, r Reader) error {
		groups, err := r.ListPirgGroups(ctx, pirg.ID)
		if err != nil {
			return err
		}
		return appendGroupDetails(ctx, r, groups, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("list groups of pirg %q: %w", pirg.Name, err)
	}
	return out, nil
}

// Listing is the whole directory as seen by one read transaction.
type Listing struct {
	Users  []models.UserDetail
	Pirgs  []models.PirgDetail
	Groups []models.GroupDetail
}

// ListAll resolves every user, pirg and group in a single read transaction,
// so the three lists describe the same state.
func (s *Service) ListAll(ctx context.Context) (*Listing, error) {
	l := &Listing{Groups: []models.GroupDetail{}}
	err := s.store.View(ctx, func(ctx context.Context, r Reader) error {
		var err error
		if l.Users, err = userDetails(ctx, r); err != nil {
			return fmt.Errorf("users: %w", err)
		}
		if l.Pirgs, err = pirgDetails(ctx, r); err != nil {
			return fmt.Errorf("pirgs: %w", err)
		}
		groups, err := r.ListGroups(ctx)
		if err != nil {
			return fmt.Errorf("groups: %w", err)
		}
		return appendGroupDetails(ctx, r, groups, &l.Groups)
	})
	if err != nil {
		return nil, fmt.Errorf("list directory: %w", err)
	}
	return l, nil
}

func userDetails(ctx context.Context, r Reader) ([]models.UserDetail, error) {
	users, err := r.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserDetail, 0, len(users))
	for i := range users {
		d, err := userDetail(ctx, r, &users[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

func pirgDetails(ctx context.Context, r Reader) ([]models.PirgDetail, error) {
	pirgs, err := r.ListPirgs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.PirgDetail, 0, len(pirgs))
	for i := range pirgs {
		d, err := pirgDetail(ctx, r, &pirgs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

func appendGroupDetails(ctx context.Context, r Reader, groups []models.Group, out *[]models.GroupDetail) error {
	for i := range groups {
		d, err := groupDetail(ctx, r, &groups[i])
		if err != nil {
			return err
		}
		*out = append(*out, *d)
	}
	return nil
}

func userDetail(ctx context.Context, r Reader, u *models.User) (*models.UserDetail, error) {
	d := &models.UserDetail{
		ID:        u.ID,
		Username:  u.Username,
		Firstname: u.Firstname,
		Lastname:  u.Lastname,
		Email:     u.Email,
		IsPI:      u.IsPI,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	// a sponsor id that no longer resolves renders as null
	if u.SponsorID != nil {
		sponsor, err := r.GetUserByID(ctx, *u.SponsorID)
		if err != nil {
			return nil, err
		}
		if sponsor != nil {
			sig := sponsor.Signature()
			d.Sponsor = &sig
		}
	}
	var err error
	if d.Pirgs, err = r.UserPirgs(ctx, u.ID); err != nil {
		return nil, err
	}
	if d.Groups, err = r.UserGroups(ctx, u.ID); err != nil {
		return nil, err
	}
	return d, nil
}

func pirgDetail(ctx context.Context, r Reader, p *models.Pirg) (*models.PirgDetail, error) {
	d := &models.PirgDetail{
		ID:        p.ID,
		Name:      p.Name,
		Owner:     models.UserSignature{ID: p.OwnerID},
		Groups:    []models.GroupSignature{},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	owner, err := r.GetUserByID(ctx, p.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner != nil {
		d.Owner = owner.Signature()
	}
	if d.Admins, err = r.UserSignatures(ctx, p.AdminIDs); err != nil {
		return nil, err
	}
	if d.Users, err = r.UserSignatures(ctx, p.UserIDs); err != nil {
		return nil, err
	}
	groups, err := r.ListPirgGroups(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		d.Groups = append(d.Groups, groups[i].Signature())
	}
	return d, nil
}

func groupDetail(ctx context.Context, r Reader, g *models.Group) (*models.GroupDetail, error) {
	d := &models.GroupDetail{
		ID:        g.ID,
		Name:      g.Name,
		Pirg:      models.PirgSignature{ID: g.PirgID},
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
	pirg, err := r.GetPirgByID(ctx, g.PirgID)
	if err != nil {
		return nil, err
	}
	if pirg != nil {
		d.Pirg = pirg.Signature()
	}
	if d.Users, err = r.UserSignatures(ctx, g.UserIDs); err != nil {
		return nil, err
	}
	return d, nil
}
