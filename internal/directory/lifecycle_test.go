package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	svc, n := newTestService(t)

	d, err := svc.CreateUser(ctx, NewUser{
		Username:  "alice",
		Firstname: "Alice",
		Lastname:  "Liddell",
		Email:     "alice@example.edu",
		IsPI:      true,
	})
	require.NoError(t, err)
	assert.NotZero(t, d.ID)
	assert.Equal(t, "alice", d.Username)
	assert.True(t, d.IsPI)
	assert.Nil(t, d.Sponsor)
	assert.Empty(t, d.Pirgs)
	assert.Empty(t, d.Groups)
	assert.Equal(t, d.CreatedAt, d.UpdatedAt)

	got, err := svc.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, "alice@example.edu", got.Email)

	missing, err := svc.GetUserByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Equal(t, []EventType{EventUserCreated}, n.types())
}

func TestCreateUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	pi := mustUser(t, svc, "pi")

	in := NewUser{
		Username:  " dana ",
		Firstname: "Dana ",
		Lastname:  " Scully",
		Email:     "dana@example.edu\t",
		IsPI:      true,
		SponsorID: &pi.ID,
	}
	d, err := svc.CreateUser(ctx, in)
	require.NoError(t, err)

	got, err := svc.GetUserByUsername(ctx, in.Username)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, in.Username, got.Username)
	assert.Equal(t, in.Firstname, got.Firstname)
	assert.Equal(t, in.Lastname, got.Lastname)
	assert.Equal(t, in.Email, got.Email)
	assert.Equal(t, in.IsPI, got.IsPI)
	require.NotNil(t, got.SponsorID)
	assert.Equal(t, pi.ID, *got.SponsorID)
}

func TestCreateUserWhitespaceIsSignificant(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.CreateUser(ctx, NewUser{Username: "alice ", Firstname: "A", Lastname: "L", Email: "a@x"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, NewUser{Username: "alice", Firstname: "A", Lastname: "L", Email: "b@x"})
	require.NoError(t, err)

	for _, name := range []string{"alice ", "alice"} {
		u, err := svc.GetUserByUsername(ctx, name)
		require.NoError(t, err)
		require.NotNil(t, u, name)
		assert.Equal(t, name, u.Username)
	}
}

func TestCreatePirgKeepsName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner := mustUser(t, svc, "owner")

	d, err := svc.CreatePirg(ctx, NewPirg{Name: " lab", OwnerID: owner.ID})
	require.NoError(t, err)
	assert.Equal(t, " lab", d.Name)

	p, err := svc.GetPirgByName(ctx, "lab")
	require.NoError(t, err)
	assert.Nil(t, p)

	g, err := svc.CreatePirgGroup(ctx, NewGroup{Name: "gpu ", PirgID: d.ID})
	require.NoError(t, err)
	assert.Equal(t, "gpu ", g.Name)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustUser(t, svc, "bob")

	_, err := svc.CreateUser(ctx, NewUser{Username: "bob", Firstname: "B", Lastname: "B", Email: "other@example.edu"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyExists))
	var ae *AlreadyExistsError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "username", ae.Field)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, n := newTestService(t)
	mustUser(t, svc, "carol")

	_, err := svc.CreateUser(ctx, NewUser{Username: "carol2", Firstname: "C", Lastname: "C", Email: "carol@example.edu"})
	var ae *AlreadyExistsError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, KindUser, ae.Kind)
	assert.Equal(t, "email", ae.Field)
	assert.Equal(t, "carol@example.edu", ae.Value)
	assert.Len(t, n.types(), 1)
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newTestService(t)
	cases := []struct {
		name  string
		in    NewUser
		field string
	}{
		{"blank username", NewUser{Username: " ", Firstname: "a", Lastname: "b", Email: "e@x"}, "username"},
		{"blank firstname", NewUser{Username: "u", Lastname: "b", Email: "e@x"}, "firstname"},
		{"blank lastname", NewUser{Username: "u", Firstname: "a", Email: "e@x"}, "lastname"},
		{"blank email", NewUser{Username: "u", Firstname: "a", Lastname: "b"}, "email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateUser(context.Background(), tc.in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func TestCreateUserSponsor(t *testing.T) {
	ctx := context.Background()
	missing := int64(999)

	t.Run("unchecked by default", func(t *testing.T) {
		svc, _ := newTestService(t)
		d, err := svc.CreateUser(ctx, NewUser{Username: "s", Firstname: "a", Lastname: "b", Email: "s@x", SponsorID: &missing})
		require.NoError(t, err)
		assert.Nil(t, d.Sponsor)
		u, err := svc.GetUserByID(ctx, d.ID)
		require.NoError(t, err)
		require.NotNil(t, u.SponsorID)
		assert.Equal(t, missing, *u.SponsorID)
	})

	t.Run("validated when enabled", func(t *testing.T) {
		svc, _ := newTestService(t, WithSponsorValidation(true))
		_, err := svc.CreateUser(ctx, NewUser{Username: "s", Firstname: "a", Lastname: "b", Email: "s@x", SponsorID: &missing})
		var ie *InvalidReferenceError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "sponsor_id", ie.Field)

		pi := mustUser(t, svc, "pi")
		d, err := svc.CreateUser(ctx, NewUser{Username: "s", Firstname: "a", Lastname: "b", Email: "s@x", SponsorID: &pi.ID})
		require.NoError(t, err)
		require.NotNil(t, d.Sponsor)
		assert.Equal(t, "pi", d.Sponsor.Username)
	})
}

func TestCreatePirgExcludesOwner(t *testing.T) {
	ctx := context.Background()
	svc, n := newTestService(t)
	owner := mustUser(t, svc, "owner")
	a := mustUser(t, svc, "a")
	b := mustUser(t, svc, "b")

	d, err := svc.CreatePirg(ctx, NewPirg{
		Name:     "smithlab",
		OwnerID:  owner.ID,
		AdminIDs: []int64{owner.ID, a.ID, a.ID},
		UserIDs:  []int64{b.ID, owner.ID, a.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "owner", d.Owner.Username)
	require.Len(t, d.Admins, 1)
	assert.Equal(t, a.ID, d.Admins[0].ID)
	require.Len(t, d.Users, 2)
	assert.Equal(t, a.ID, d.Users[0].ID)
	assert.Equal(t, b.ID, d.Users[1].ID)
	assert.Empty(t, d.Groups)

	p, err := svc.GetPirgByName(ctx, "smithlab")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.False(t, p.HasMember("admin", owner.ID))
	assert.False(t, p.HasMember("user", owner.ID))

	ud, err := svc.ResolveUser(ctx, b)
	require.NoError(t, err)
	require.Len(t, ud.Pirgs, 1)
	assert.Equal(t, "smithlab", ud.Pirgs[0].Name)

	assert.Contains(t, n.types(), EventPirgCreated)
}

func TestCreatePirgErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner := mustUser(t, svc, "owner")
	mustPirg(t, svc, "taken", owner, nil, nil)

	t.Run("name taken", func(t *testing.T) {
		_, err := svc.CreatePirg(ctx, NewPirg{Name: "taken", OwnerID: 12345})
		var ae *AlreadyExistsError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, KindPirg, ae.Kind)
	})

	t.Run("unknown owner persists nothing", func(t *testing.T) {
		_, err := svc.CreatePirg(ctx, NewPirg{Name: "ghost", OwnerID: 12345})
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, KindUser, nf.Kind)
		p, err := svc.GetPirgByName(ctx, "ghost")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("admins checked before users", func(t *testing.T) {
		_, err := svc.CreatePirg(ctx, NewPirg{Name: "lab", OwnerID: owner.ID, AdminIDs: []int64{77}, UserIDs: []int64{66}})
		var ie *InvalidReferenceError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "admin_ids", ie.Field)
		assert.Equal(t, int64(77), ie.ID)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("unknown user persists nothing", func(t *testing.T) {
		_, err := svc.CreatePirg(ctx, NewPirg{Name: "lab", OwnerID: owner.ID, UserIDs: []int64{owner.ID, 66}})
		var ie *InvalidReferenceError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, int64(66), ie.ID)
		pirgs, err := svc.ListPirgs(ctx)
		require.NoError(t, err)
		assert.Len(t, pirgs, 1)
	})

	t.Run("blank name", func(t *testing.T) {
		_, err := svc.CreatePirg(ctx, NewPirg{Name: "\t", OwnerID: owner.ID})
		assert.True(t, errors.Is(err, ErrValidation))
	})
}

func TestCreatePirgGroup(t *testing.T) {
	ctx := context.Background()
	svc, n := newTestService(t)
	owner := mustUser(t, svc, "owner")
	u := mustUser(t, svc, "u")
	pirg := mustPirg(t, svc, "lab", owner, nil, []int64{u.ID})

	d, err := svc.CreatePirgGroup(ctx, NewGroup{Name: "gpu", PirgID: pirg.ID, UserIDs: []int64{u.ID, u.ID}})
	require.NoError(t, err)
	assert.Equal(t, "gpu", d.Name)
	assert.Equal(t, "lab", d.Pirg.Name)
	require.Len(t, d.Users, 1)
	assert.Equal(t, "u", d.Users[0].Username)

	pd, err := svc.ResolvePirg(ctx, mustPirgByName(t, svc, "lab"))
	require.NoError(t, err)
	require.Len(t, pd.Groups, 1)
	assert.Equal(t, d.ID, pd.Groups[0].ID)

	// same name is allowed in another pirg
	other := mustPirg(t, svc, "other", owner, nil, nil)
	_, err = svc.CreatePirgGroup(ctx, NewGroup{Name: "gpu", PirgID: other.ID})
	require.NoError(t, err)

	_, err = svc.CreatePirgGroup(ctx, NewGroup{Name: "gpu", PirgID: pirg.ID})
	var ae *AlreadyExistsError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, KindGroup, ae.Kind)

	assert.Contains(t, n.types(), EventGroupCreated)
}

func TestCreatePirgGroupErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner := mustUser(t, svc, "owner")
	pirg := mustPirg(t, svc, "lab", owner, nil, nil)

	_, err := svc.CreatePirgGroup(ctx, NewGroup{Name: "g", PirgID: 404})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, KindPirg, nf.Kind)

	_, err = svc.CreatePirgGroup(ctx, NewGroup{Name: "g", PirgID: pirg.ID, UserIDs: []int64{owner.ID, 500}})
	var ie *InvalidReferenceError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, int64(500), ie.ID)

	g, err := svc.GetGroupByName(ctx, pirg, "g")
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestAlreadyExistsFromConstraint(t *testing.T) {
	err := alreadyExists(NewDuplicateKey(ConstraintPirgName), map[string]string{ConstraintPirgName: "lab"})
	var ae *AlreadyExistsError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, &AlreadyExistsError{Kind: KindPirg, Field: "name", Value: "lab"}, ae)

	other := errors.New("boom")
	assert.Same(t, other, alreadyExists(other, nil))
}

func TestMemberSet(t *testing.T) {
	assert.Equal(t, []int64{3, 1}, memberSet([]int64{3, 7, 1, 3, 7}, 7))
	assert.Empty(t, memberSet(nil, 1))
}
