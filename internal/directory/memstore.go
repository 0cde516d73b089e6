package directory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/hpcadmin/server/internal/models"
)

// MemStore is an in-memory Store keyed by id. Each WithTx works on a private
// copy of the state which replaces the shared state only when fn succeeds, so
// a failed or panicking transaction leaves nothing behind. Writers are
// serialized.
type MemStore struct {
	mu    sync.RWMutex
	state memState
	nowFn func() time.Time
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{state: newMemState(), nowFn: time.Now}
}

// SetNowFunc overrides the clock used for timestamps.
func (s *MemStore) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// WithTx implements Store.
func (s *MemStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{state: s.state.clone(), now: s.nowFn().UTC()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// View implements Store.
func (s *MemStore) View(ctx context.Context, fn func(ctx context.Context, r Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &memTx{state: s.state})
}

type pair struct {
	parent int64
	user   int64
}

type memPirg struct {
	id        int64
	name      string
	ownerID   int64
	createdAt time.Time
	updatedAt time.Time
}

type memGroup struct {
	id        int64
	name      string
	pirgID    int64
	createdAt time.Time
	updatedAt time.Time
}

type memState struct {
	users      map[int64]models.User
	pirgs      map[int64]memPirg
	groups     map[int64]memGroup
	pirgUsers  map[pair]struct{}
	pirgAdmins map[pair]struct{}
	groupUsers map[pair]struct{}
	lastUser   int64
	lastPirg   int64
	lastGroup  int64
}

func newMemState() memState {
	return memState{
		users:      map[int64]models.User{},
		pirgs:      map[int64]memPirg{},
		groups:     map[int64]memGroup{},
		pirgUsers:  map[pair]struct{}{},
		pirgAdmins: map[pair]struct{}{},
		groupUsers: map[pair]struct{}{},
	}
}

func (s memState) clone() memState {
	c := newMemState()
	for k, v := range s.users {
		c.users[k] = cloneUser(v)
	}
	for k, v := range s.pirgs {
		c.pirgs[k] = v
	}
	for k, v := range s.groups {
		c.groups[k] = v
	}
	for k := range s.pirgUsers {
		c.pirgUsers[k] = struct{}{}
	}
	for k := range s.pirgAdmins {
		c.pirgAdmins[k] = struct{}{}
	}
	for k := range s.groupUsers {
		c.groupUsers[k] = struct{}{}
	}
	c.lastUser, c.lastPirg, c.lastGroup = s.lastUser, s.lastPirg, s.lastGroup
	return c
}

func cloneUser(u models.User) models.User {
	if u.SponsorID != nil {
		id := *u.SponsorID
		u.SponsorID = &id
	}
	return u
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func membersOf(set map[pair]struct{}, parent int64) []int64 {
	ids := []int64{}
	for p := range set {
		if p.parent == parent {
			ids = append(ids, p.user)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type memTx struct {
	state memState
	now   time.Time
}

func (tx *memTx) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := tx.state.users[id]
	if !ok {
		return nil, nil
	}
	u = cloneUser(u)
	return &u, nil
}

func (tx *memTx) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range tx.state.users {
		if u.Username == username {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, nil
}

func (tx *memTx) ListUsers(_ context.Context) ([]models.User, error) {
	out := []models.User{}
	for _, id := range sortedIDs(tx.state.users) {
		out = append(out, cloneUser(tx.state.users[id]))
	}
	return out, nil
}

func (tx *memTx) UserSignatures(_ context.Context, ids []int64) ([]models.UserSignature, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := []models.UserSignature{}
	var last int64
	for i, id := range sorted {
		if i > 0 && id == last {
			continue
		}
		last = id
		if u, ok := tx.state.users[id]; ok {
			out = append(out, u.Signature())
		}
	}
	return out, nil
}

func (tx *memTx) UserPirgs(_ context.Context, userID int64) ([]models.PirgSignature, error) {
	out := []models.PirgSignature{}
	for _, id := range sortedIDs(tx.state.pirgs) {
		if _, ok := tx.state.pirgUsers[pair{id, userID}]; ok {
			p := tx.state.pirgs[id]
			out = append(out, models.PirgSignature{ID: p.id, Name: p.name})
		}
	}
	return out, nil
}

func (tx *memTx) UserGroups(_ context.Context, userID int64) ([]models.GroupSignature, error) {
	out := []models.GroupSignature{}
	for _, id := range sortedIDs(tx.state.groups) {
		if _, ok := tx.state.groupUsers[pair{id, userID}]; ok {
			g := tx.state.groups[id]
			out = append(out, models.GroupSignature{ID: g.id, Name: g.name})
		}
	}
	return out, nil
}

func (tx *memTx) pirg(p memPirg) *models.Pirg {
	groupIDs := []int64{}
	for _, id := range sortedIDs(tx.state.groups) {
		if tx.state.groups[id].pirgID == p.id {
			groupIDs = append(groupIDs, id)
		}
	}
	return &models.Pirg{
		ID:        p.id,
		Name:      p.name,
		OwnerID:   p.ownerID,
		AdminIDs:  membersOf(tx.state.pirgAdmins, p.id),
		UserIDs:   membersOf(tx.state.pirgUsers, p.id),
		GroupIDs:  groupIDs,
		CreatedAt: p.createdAt,
		UpdatedAt: p.updatedAt,
	}
}

func (tx *memTx) GetPirgByID(_ context.Context, id int64) (*models.Pirg, error) {
	p, ok := tx.state.pirgs[id]
	if !ok {
		return nil, nil
	}
	return tx.pirg(p), nil
}

func (tx *memTx) GetPirgByName(_ context.Context, name string) (*models.Pirg, error) {
	for _, p := range tx.state.pirgs {
		if p.name == name {
			return tx.pirg(p), nil
		}
	}
	return nil, nil
}

func (tx *memTx) ListPirgs(_ context.Context) ([]models.Pirg, error) {
	out := []models.Pirg{}
	for _, id := range sortedIDs(tx.state.pirgs) {
		out = append(out, *tx.pirg(tx.state.pirgs[id]))
	}
	return out, nil
}

func (tx *memTx) group(g memGroup) *models.Group {
	return &models.Group{
		ID:        g.id,
		Name:      g.name,
		PirgID:    g.pirgID,
		UserIDs:   membersOf(tx.state.groupUsers, g.id),
		CreatedAt: g.createdAt,
		UpdatedAt: g.updatedAt,
	}
}

func (tx *memTx) GetGroupByID(_ context.Context, id int64) (*models.Group, error) {
	g, ok := tx.state.groups[id]
	if !ok {
		return nil, nil
	}
	return tx.group(g), nil
}

func (tx *memTx) GetGroupByName(_ context.Context, pirgID int64, name string) (*models.Group, error) {
	for _, g := range tx.state.groups {
		if g.pirgID == pirgID && g.name == name {
			return tx.group(g), nil
		}
	}
	return nil, nil
}

func (tx *memTx) ListGroups(_ context.Context) ([]models.Group, error) {
	out := []models.Group{}
	for _, id := range sortedIDs(tx.state.groups) {
		out = append(out, *tx.group(tx.state.groups[id]))
	}
	return out, nil
}

func (tx *memTx) ListPirgGroups(_ context.Context, pirgID int64) ([]models.Group, error) {
	out := []models.Group{}
	for _, id := range sortedIDs(tx.state.groups) {
		if g := tx.state.groups[id]; g.pirgID == pirgID {
			out = append(out, *tx.group(g))
		}
	}
	return out, nil
}

func (tx *memTx) requireUser(id int64) error {
	if _, ok := tx.state.users[id]; !ok {
		return &NotFoundError{Kind: KindUser, Key: strconv.FormatInt(id, 10)}
	}
	return nil
}

func (tx *memTx) requirePirg(id int64) error {
	if _, ok := tx.state.pirgs[id]; !ok {
		return &NotFoundError{Kind: KindPirg, Key: strconv.FormatInt(id, 10)}
	}
	return nil
}

func (tx *memTx) touchPirg(id int64) {
	p := tx.state.pirgs[id]
	p.updatedAt = tx.now
	tx.state.pirgs[id] = p
}

func (tx *memTx) touchGroup(id int64) {
	g := tx.state.groups[id]
	g.updatedAt = tx.now
	tx.state.groups[id] = g
}

func (tx *memTx) InsertUser(_ context.Context, user *models.User) error {
	for _, u := range tx.state.users {
		if u.Username == user.Username {
			return NewDuplicateKey(ConstraintUsername)
		}
		if u.Email == user.Email {
			return NewDuplicateKey(ConstraintEmail)
		}
	}
	tx.state.lastUser++
	user.ID = tx.state.lastUser
	user.CreatedAt, user.UpdatedAt = tx.now, tx.now
	tx.state.users[user.ID] = cloneUser(*user)
	return nil
}

func (tx *memTx) InsertPirg(_ context.Context, pirg *models.Pirg) error {
	for _, p := range tx.state.pirgs {
		if p.name == pirg.Name {
			return NewDuplicateKey(ConstraintPirgName)
		}
	}
	if err := tx.requireUser(pirg.OwnerID); err != nil {
		return err
	}
	for _, id := range append(append([]int64{}, pirg.AdminIDs...), pirg.UserIDs...) {
		if err := tx.requireUser(id); err != nil {
			return err
		}
	}
	tx.state.lastPirg++
	p := memPirg{id: tx.state.lastPirg, name: pirg.Name, ownerID: pirg.OwnerID, createdAt: tx.now, updatedAt: tx.now}
	tx.state.pirgs[p.id] = p
	for _, id := range pirg.AdminIDs {
		tx.state.pirgAdmins[pair{p.id, id}] = struct{}{}
	}
	for _, id := range pirg.UserIDs {
		tx.state.pirgUsers[pair{p.id, id}] = struct{}{}
	}
	*pirg = *tx.pirg(p)
	return nil
}

func (tx *memTx) InsertGroup(_ context.Context, group *models.Group) error {
	if err := tx.requirePirg(group.PirgID); err != nil {
		return err
	}
	for _, g := range tx.state.groups {
		if g.pirgID == group.PirgID && g.name == group.Name {
			return NewDuplicateKey(ConstraintGroupName)
		}
	}
	for _, id := range group.UserIDs {
		if err := tx.requireUser(id); err != nil {
			return err
		}
	}
	tx.state.lastGroup++
	g := memGroup{id: tx.state.lastGroup, name: group.Name, pirgID: group.PirgID, createdAt: tx.now, updatedAt: tx.now}
	tx.state.groups[g.id] = g
	for _, id := range group.UserIDs {
		tx.state.groupUsers[pair{g.id, id}] = struct{}{}
	}
	tx.touchPirg(g.pirgID)
	*group = *tx.group(g)
	return nil
}

func (tx *memTx) DeleteGroup(_ context.Context, id int64) error {
	g, ok := tx.state.groups[id]
	if !ok {
		return &NotFoundError{Kind: KindGroup, Key: strconv.FormatInt(id, 10)}
	}
	delete(tx.state.groups, id)
	for p := range tx.state.groupUsers {
		if p.parent == id {
			delete(tx.state.groupUsers, p)
		}
	}
	tx.touchPirg(g.pirgID)
	return nil
}

func (tx *memTx) pirgSet(role models.PirgRole) map[pair]struct{} {
	if role == models.PirgRoleAdmin {
		return tx.state.pirgAdmins
	}
	return tx.state.pirgUsers
}

func (tx *memTx) AddPirgMember(_ context.Context, pirgID, userID int64, role models.PirgRole) (bool, error) {
	if err := tx.requirePirg(pirgID); err != nil {
		return false, err
	}
	if err := tx.requireUser(userID); err != nil {
		return false, err
	}
	set := tx.pirgSet(role)
	if _, ok := set[pair{pirgID, userID}]; ok {
		return false, nil
	}
	set[pair{pirgID, userID}] = struct{}{}
	tx.touchPirg(pirgID)
	return true, nil
}

func (tx *memTx) RemovePirgMember(_ context.Context, pirgID, userID int64, role models.PirgRole) (bool, error) {
	set := tx.pirgSet(role)
	if _, ok := set[pair{pirgID, userID}]; !ok {
		return false, nil
	}
	delete(set, pair{pirgID, userID})
	tx.touchPirg(pirgID)
	return true, nil
}

func (tx *memTx) AddGroupMember(_ context.Context, groupID, userID int64) (bool, error) {
	if _, ok := tx.state.groups[groupID]; !ok {
		return false, &NotFoundError{Kind: KindGroup, Key: strconv.FormatInt(groupID, 10)}
	}
	if err := tx.requireUser(userID); err != nil {
		return false, err
	}
	if _, ok := tx.state.groupUsers[pair{groupID, userID}]; ok {
		return false, nil
	}
	tx.state.groupUsers[pair{groupID, userID}] = struct{}{}
	tx.touchGroup(groupID)
	return true, nil
}

func (tx *memTx) RemoveGroupMember(_ context.Context, groupID, userID int64) (bool, error) {
	if _, ok := tx.state.groupUsers[pair{groupID, userID}]; !ok {
		return false, nil
	}
	delete(tx.state.groupUsers, pair{groupID, userID})
	tx.touchGroup(groupID)
	return true, nil
}
