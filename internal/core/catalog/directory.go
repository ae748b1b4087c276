package catalog

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/store-sim/internal/core/chance"
	"github.com/rl1809/store-sim/internal/core/domain"
)

// Directory is the append-only user registry. Reads share an RWMutex;
// AddUser takes the write lock so identifier allocation is serialized.
type Directory struct {
	mu    sync.RWMutex
	users []domain.User
	byID  map[domain.UserID]int
	maxID domain.UserID
	rng   chance.Source
}

func NewDirectory(users []domain.User, rng chance.Source) (*Directory, error) {
	d := &Directory{
		byID: make(map[domain.UserID]int, len(users)),
		rng:  rng,
	}
	sorted := make([]domain.User, len(users))
	copy(sorted, users)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, u := range sorted {
		if _, dup := d.byID[u.ID]; dup {
			return nil, domain.Inconsistent("duplicate user id %d", u.ID)
		}
		d.byID[u.ID] = len(d.users)
		d.users = append(d.users, u)
		d.maxID = max(d.maxID, u.ID)
	}
	return d, nil
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

func (d *Directory) User(id domain.UserID) (domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.byID[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrUnknownUser)
	}
	return d.users[i], nil
}

func (d *Directory) Users() []domain.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.User, len(d.users))
	copy(out, d.users)
	return out
}

// RandomUser picks uniformly among all users.
func (d *Directory) RandomUser() (domain.UserID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.users) == 0 {
		return 0, fmt.Errorf("empty directory: %w", domain.ErrUnknownUser)
	}
	return chance.Pick(d.rng, d.users).ID, nil
}

// AddUser appends a user with ID max+1.
func (d *Directory) AddUser(name string, membership time.Time) domain.User {
	u, _ := d.Enroll(name, membership, nil)
	return u
}

// Enroll allocates ID max+1 and appends the user only once persist accepts
// it. The write lock is held across persist so allocation stays serialized;
// a rejected user leaves the directory unchanged.
func (d *Directory) Enroll(name string, membership time.Time, persist func(domain.User) error) (domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u := domain.User{
		ID:             d.maxID + 1,
		Name:           name,
		MembershipDate: domain.Date(membership),
	}
	if persist != nil {
		if err := persist(u); err != nil {
			return domain.User{}, err
		}
	}
	d.maxID = u.ID
	d.byID[u.ID] = len(d.users)
	d.users = append(d.users, u)
	return u, nil
}
