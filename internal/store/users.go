// Package store persists per-user settings in a single flat JSON file keyed
// by user id. Every operation is a full load-mutate-save under one lock;
// an unreadable file degrades to an empty store and heals on the next save.
package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// User is one subscriber's profile and notification schedule.
type User struct {
	DefaultCity          string    `json:"default_city"`
	CityLat              *float64  `json:"city_latitude,omitempty"`
	CityLon              *float64  `json:"city_longitude,omitempty"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	NotificationTimes    []string  `json:"notification_times"`
	ForecastCount        int       `json:"forecast_count,omitempty"`
	Language             string    `json:"language"`
	LastActivity         time.Time `json:"last_activity"`
	CreatedAt            time.Time `json:"created_at"`
}

// HasCoordinates reports whether a resolved location is stored.
func (u *User) HasCoordinates() bool {
	return u.CityLat != nil && u.CityLon != nil
}

// Subscriber is a user with live notification triggers.
type Subscriber struct {
	ID    int64
	City  string
	Times []string
}

// Repo defines storage operations for user profiles and schedules.
type Repo interface {
	Get(id int64) (User, bool, error)
	Add(id int64, defaultCity string) error
	Upsert(id int64, u User) error
	SetCity(id int64, city string, lat, lon *float64) error
	SetNotifications(id int64, enabled bool, times []string) error
	SetForecastCount(id int64, count int) error
	Touch(id int64) error
	Delete(id int64) error
	Subscribers() ([]Subscriber, error)
	Schedule(id int64) (enabled bool, times []string, err error)
	SetSchedule(id int64, enabled bool, times []string) error
}

// FileRepo implements Repo on a flat JSON file.
type FileRepo struct {
	mu   sync.Mutex
	path string
	log  *zap.Logger
}

// NewFileRepo creates a repo backed by the JSON file at path.
func NewFileRepo(path string, log *zap.Logger) *FileRepo {
	return &FileRepo{path: path, log: log}
}

// Get returns a user's profile, if present.
func (r *FileRepo) Get(id int64) (User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.load()
	u, ok := users[key(id)]
	return u, ok, nil
}

// Add creates a profile with defaults. Adding an existing user is a no-op.
func (r *FileRepo) Add(id int64, defaultCity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.load()
	if _, exists := users[key(id)]; exists {
		return nil
	}
	now := time.Now().UTC()
	users[key(id)] = User{
		DefaultCity:          defaultCity,
		NotificationsEnabled: false,
		NotificationTimes:    []string{"08:00", "18:00"},
		Language:             "en",
		LastActivity:         now,
		CreatedAt:            now,
	}
	return r.save(users)
}

// Upsert replaces a user's whole profile.
func (r *FileRepo) Upsert(id int64, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.load()
	users[key(id)] = u
	return r.save(users)
}

// SetCity updates the default city, with resolved coordinates when known.
func (r *FileRepo) SetCity(id int64, city string, lat, lon *float64) error {
	return r.mutate(id, func(u *User) {
		u.DefaultCity = city
		u.CityLat = lat
		u.CityLon = lon
	})
}

// SetNotifications updates the notification schedule.
func (r *FileRepo) SetNotifications(id int64, enabled bool, times []string) error {
	return r.mutate(id, func(u *User) {
		u.NotificationsEnabled = enabled
		if times != nil {
			u.NotificationTimes = times
		}
	})
}

// SetForecastCount updates the preferred hourly-forecast length.
func (r *FileRepo) SetForecastCount(id int64, count int) error {
	return r.mutate(id, func(u *User) {
		u.ForecastCount = count
	})
}

// Touch refreshes the last-activity timestamp.
func (r *FileRepo) Touch(id int64) error {
	return r.mutate(id, func(u *User) {})
}

// Delete removes a user entirely.
func (r *FileRepo) Delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.load()
	if _, exists := users[key(id)]; !exists {
		return nil
	}
	delete(users, key(id))
	return r.save(users)
}

// Subscribers returns every user with notifications enabled.
func (r *FileRepo) Subscribers() ([]Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.load()
	var subs []Subscriber
	for k, u := range users {
		if !u.NotificationsEnabled {
			continue
		}
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			r.log.Warn("skipping malformed user key", zap.String("key", k))
			continue
		}
		subs = append(subs, Subscriber{
			ID:    id,
			City:  u.DefaultCity,
			Times: append([]string(nil), u.NotificationTimes...),
		})
	}
	return subs, nil
}

// Schedule returns one user's persisted schedule entry.
func (r *FileRepo) Schedule(id int64) (bool, []string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.load()
	u, ok := users[key(id)]
	if !ok {
		return false, nil, nil
	}
	return u.NotificationsEnabled, append([]string(nil), u.NotificationTimes...), nil
}

// SetSchedule persists one user's schedule entry, creating the profile with
// defaults when it does not exist yet.
func (r *FileRepo) SetSchedule(id int64, enabled bool, times []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.load()
	u, ok := users[key(id)]
	if !ok {
		now := time.Now().UTC()
		u = User{Language: "en", CreatedAt: now}
	}
	u.NotificationsEnabled = enabled
	if times != nil {
		u.NotificationTimes = times
	}
	u.LastActivity = time.Now().UTC()
	users[key(id)] = u
	return r.save(users)
}

func (r *FileRepo) mutate(id int64, fn func(*User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.load()
	u, ok := users[key(id)]
	if !ok {
		return ErrUnknownUser
	}
	fn(&u)
	u.LastActivity = time.Now().UTC()
	users[key(id)] = u
	return r.save(users)
}

// ErrUnknownUser is returned when mutating a user that was never added.
var ErrUnknownUser = errors.New("unknown user")

func key(id int64) string { return strconv.FormatInt(id, 10) }

func (r *FileRepo) load() map[string]User {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.log.Warn("user file read failed, treating as empty",
				zap.String("path", r.path), zap.Error(err))
		}
		return map[string]User{}
	}
	if len(data) == 0 {
		return map[string]User{}
	}

	var users map[string]User
	if err := json.Unmarshal(data, &users); err != nil {
		r.log.Warn("user file corrupt, treating as empty",
			zap.String("path", r.path), zap.Error(err))
		return map[string]User{}
	}
	if users == nil {
		users = map[string]User{}
	}
	return users
}

func (r *FileRepo) save(users map[string]User) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(r.path, data, 0o644)
}
