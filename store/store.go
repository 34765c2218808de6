// Package store keeps user profiles in memory: dashboards per user and
// the index from device token to the device it authenticates.
package store

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/ilievs/pinhub/config"
	"github.com/ilievs/pinhub/core"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDashboardNotFound = errors.New("dashboard not found")
	ErrDashboardExists   = errors.New("dashboard already exists")
	ErrTokenNotFound     = errors.New("device token not found")
	ErrTokenInUse        = errors.New("device token already in use")
)

// DeviceRef is what a device token resolves to.
type DeviceRef struct {
	User   core.UserKey
	Dash   *core.Dashboard
	Device *core.Device
}

type Store struct {
	mu     sync.RWMutex
	users  map[core.UserKey]map[int]*core.Dashboard
	tokens map[string]DeviceRef
}

func New() *Store {
	return &Store{
		users:  make(map[core.UserKey]map[int]*core.Dashboard),
		tokens: make(map[string]DeviceRef),
	}
}

// FromConfig builds a store from the users section of the config.
func FromConfig(users []config.UserConfig) (*Store, error) {
	s := New()
	for _, u := range users {
		s.AddUser(u.Key)
		for _, dc := range u.Dashboards {
			dash := core.NewDashboard(dc.ID, dc.Name)
			for _, w := range dc.Widgets {
				if err := dash.AddWidget(w); err != nil {
					return nil, fmt.Errorf("user %q dashboard %d: %w", u.Key, dc.ID, err)
				}
			}
			if dc.Active {
				dash.Activate()
			}
			if err := s.AddDashboard(u.Key, dash); err != nil {
				return nil, err
			}
			for _, d := range dc.Devices {
				dev := d
				if err := s.AddDevice(u.Key, dc.ID, &dev); err != nil {
					return nil, err
				}
			}
		}
	}
	return s, nil
}

// AddUser creates an empty profile. Adding an existing user is a no-op.
func (s *Store) AddUser(user core.UserKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user]; !ok {
		s.users[user] = make(map[int]*core.Dashboard)
	}
}

func (s *Store) AddDashboard(user core.UserKey, dash *core.Dashboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dashes, ok := s.users[user]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, user)
	}
	if _, ok := dashes[dash.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDashboardExists, dash.ID)
	}
	dashes[dash.ID] = dash
	return nil
}

// AddDevice attaches dev to a dashboard and indexes its token.
func (s *Store) AddDevice(user core.UserKey, dashID int, dev *core.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dash, err := s.dashboardLocked(user, dashID)
	if err != nil {
		return err
	}
	if _, ok := s.tokens[dev.Token]; ok {
		return fmt.Errorf("%w: device %d", ErrTokenInUse, dev.ID)
	}
	dash.AddDevice(dev)
	s.tokens[dev.Token] = DeviceRef{User: user, Dash: dash, Device: dev}
	return nil
}

// RemoveDevice detaches a device from its dashboard and forgets its
// token.
func (s *Store) RemoveDevice(user core.UserKey, dashID, deviceID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dash, err := s.dashboardLocked(user, dashID)
	if err != nil {
		return err
	}
	dev, ok := dash.Device(deviceID)
	if !ok {
		return fmt.Errorf("%w: %d", core.ErrDeviceNotFound, deviceID)
	}
	if err := dash.RemoveDevice(deviceID); err != nil {
		return err
	}
	delete(s.tokens, dev.Token)
	return nil
}

func (s *Store) ResolveDeviceToken(token string) (DeviceRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.tokens[token]
	if !ok {
		return DeviceRef{}, ErrTokenNotFound
	}
	return ref, nil
}

func (s *Store) Dashboard(user core.UserKey, dashID int) (*core.Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dashboardLocked(user, dashID)
}

func (s *Store) dashboardLocked(user core.UserKey, dashID int) (*core.Dashboard, error) {
	dashes, ok := s.users[user]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, user)
	}
	dash, ok := dashes[dashID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrDashboardNotFound, dashID)
	}
	return dash, nil
}

// Dashboards returns the user's dashboards ordered by id.
func (s *Store) Dashboards(user core.UserKey) ([]*core.Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dashes, ok := s.users[user]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, user)
	}
	return slices.SortedFunc(maps.Values(dashes), func(a, b *core.Dashboard) int {
		return cmp.Compare(a.ID, b.ID)
	}), nil
}

func (s *Store) HasUser(user core.UserKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[user]
	return ok
}

// Users returns every user key in sorted order.
func (s *Store) Users() []core.UserKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.users))
}
