// Package store is the in-memory mirror over postbank's durable state.
//
// The Store is the only owner of collections, history, saved requests,
// environments, cookies and preferences. Every write goes to the durable
// layer first; on success the mirror is replaced with the authoritative
// list the write returned. Derived state (the cookies-by-domain index and
// the active environment) is recomputed from those lists, never patched.
// Accessors return deep copies.
package store

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/webmip/postbank/internal/errdef"
	"github.com/webmip/postbank/internal/logging"
	"github.com/webmip/postbank/internal/model"
	"github.com/webmip/postbank/internal/requestlog"
	"github.com/webmip/postbank/internal/resolver"
	"github.com/webmip/postbank/internal/storage"
)

// RecordStore is the durable record layer. Every mutating method returns the
// full list for its entity, read back in the same transaction as the write.
type RecordStore interface {
	LoadCollections() ([]model.Collection, error)
	SaveCollection(c model.Collection) ([]model.Collection, error)
	DeleteCollection(id string) ([]model.Collection, error)

	LoadHistory() ([]model.HistoryEntry, error)
	AddHistory(timestamp int64, req model.Request, resp model.Response) ([]model.HistoryEntry, error)
	ClearHistory() error

	LoadSavedRequests() ([]model.SavedRequest, error)
	SaveRequest(sr model.SavedRequest) ([]model.SavedRequest, error)
	DeleteSavedRequest(id string) ([]model.SavedRequest, error)

	LoadEnvironments() ([]model.Environment, error)
	SaveEnvironment(env model.Environment) ([]model.Environment, error)
	DeleteEnvironment(id string) ([]model.Environment, error)

	LoadCookies() ([]model.Cookie, error)
	UpsertCookie(c model.Cookie) ([]model.Cookie, error)
	DeleteCookie(domain, name string) ([]model.Cookie, error)

	ClearAll() error
}

// KVStore is the scalar key-value layer for process-wide settings.
type KVStore interface {
	Get(key string, dst any) (bool, error)
	Set(key string, value any) error
	Delete(keys ...string) error
	Reset() error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogCapacity sets the request log ring capacity.
func WithLogCapacity(n int) Option {
	return func(s *Store) { s.logs = requestlog.New(n) }
}

// Store holds the mirror and derived indices.
type Store struct {
	records RecordStore
	kv      KVStore
	logger  *slog.Logger
	now     func() time.Time
	logs    *requestlog.Ring

	mu            sync.RWMutex
	collections   []model.Collection
	history       []model.HistoryEntry
	saved         []model.SavedRequest
	environments  []model.Environment
	cookies       []model.Cookie
	cookieIndex   map[string][]model.Cookie
	activeEnvID   string
	prefs         model.Preferences
	activeRequest *model.Request
}

// New returns an empty Store. Call Load to populate it.
func New(records RecordStore, kv KVStore, opts ...Option) *Store {
	s := &Store{
		records: records,
		kv:      kv,
		logger:  logging.Nop(),
		now:     time.Now,
		logs:    requestlog.New(requestlog.Capacity),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resetLocked()
	return s
}

// resetLocked puts every in-memory field back to its empty/default value.
func (s *Store) resetLocked() {
	s.collections = []model.Collection{}
	s.history = []model.HistoryEntry{}
	s.saved = []model.SavedRequest{}
	s.environments = []model.Environment{}
	s.cookies = []model.Cookie{}
	s.cookieIndex = map[string][]model.Cookie{}
	s.activeEnvID = ""
	s.prefs = model.DefaultPreferences()
	s.activeRequest = nil
	s.logs.Clear()
}

// reindexLocked recomputes the derived state from the authoritative lists.
func (s *Store) reindexLocked() {
	index := make(map[string][]model.Cookie)
	for _, c := range s.cookies {
		if c.Domain == "" {
			continue
		}
		index[c.Domain] = append(index[c.Domain], c)
	}
	s.cookieIndex = index

	if s.activeEnvID != "" && s.findEnvironmentLocked(s.activeEnvID) < 0 {
		s.activeEnvID = ""
	}
}

// Load reads all durable state into memory. On any failure the Store is
// reset to its empty/default state and stays usable; the error is returned
// for reporting only.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		s.logger.Warn("failed to load stored data, starting empty", "error", err)
		s.resetLocked()
		return errdef.Storage("load", err)
	}
	s.reindexLocked()
	s.logger.Debug("store loaded",
		"collections", len(s.collections),
		"history", len(s.history),
		"environments", len(s.environments),
		"cookies", len(s.cookies))
	return nil
}

func (s *Store) loadLocked() error {
	collections, err := s.records.LoadCollections()
	if err != nil {
		return err
	}
	history, err := s.records.LoadHistory()
	if err != nil {
		return err
	}
	saved, err := s.records.LoadSavedRequests()
	if err != nil {
		return err
	}
	environments, err := s.records.LoadEnvironments()
	if err != nil {
		return err
	}
	cookies, err := s.records.LoadCookies()
	if err != nil {
		return err
	}

	var activeID string
	if _, err := s.kv.Get(storage.KeyActiveEnvironment, &activeID); err != nil {
		return err
	}
	prefs := model.DefaultPreferences()
	if _, err := s.kv.Get(storage.KeyPreferences, &prefs); err != nil {
		return err
	}

	s.collections = collections
	s.history = history
	s.saved = saved
	s.environments = environments
	s.cookies = cookies
	s.activeEnvID = activeID
	s.prefs = prefs
	s.activeRequest = nil
	return nil
}

// ClearAllData drops the persisted scalars, erases every record store in one
// transaction and resets all in-memory state, including the active request
// and the request log. When the record sweep fails the scalars are written
// back, so either everything is cleared or nothing is.
func (s *Store) ClearAllData() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Reset(); err != nil {
		return errdef.Storage("clear all data", err)
	}
	if err := s.records.ClearAll(); err != nil {
		s.restoreScalarsLocked()
		return errdef.Storage("clear all data", err)
	}

	s.resetLocked()
	s.logger.Info("all data cleared")
	return nil
}

// restoreScalarsLocked writes the mirrored scalars back to the key-value
// layer after an aborted clear.
func (s *Store) restoreScalarsLocked() {
	if s.activeEnvID != "" {
		if err := s.kv.Set(storage.KeyActiveEnvironment, s.activeEnvID); err != nil {
			s.logger.Warn("failed to restore active environment", "error", err)
		}
	}
	if err := s.kv.Set(storage.KeyPreferences, s.prefs); err != nil {
		s.logger.Warn("failed to restore preferences", "error", err)
	}
}

// Preferences returns the current preferences.
func (s *Store) Preferences() model.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// UpdatePreferences merges patch into the current preferences and persists
// the result.
func (s *Store) UpdatePreferences(patch model.PreferencesPatch) (model.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.prefs.Apply(patch)
	if err := s.kv.Set(storage.KeyPreferences, merged); err != nil {
		return s.prefs, errdef.Storage("update preferences", err)
	}
	s.prefs = merged
	return merged, nil
}

// SetActiveRequest replaces the in-memory request being composed. Nil clears it.
func (s *Store) SetActiveRequest(req *model.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req == nil {
		s.activeRequest = nil
		return
	}
	r := req.Clone()
	s.activeRequest = &r
}

// ActiveRequest returns a copy of the request being composed, or nil.
func (s *Store) ActiveRequest() *model.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeRequest == nil {
		return nil
	}
	r := s.activeRequest.Clone()
	return &r
}

// AddLog records an outgoing request in the ring buffer.
func (s *Store) AddLog(entry model.RequestLog) {
	s.logs.Add(entry)
}

// Logs returns the retained request log entries, newest first.
func (s *Store) Logs() []model.RequestLog {
	return s.logs.List()
}

// ResolveVariables substitutes {{name}} tokens using the active environment.
func (s *Store) ResolveVariables(text string) string {
	env := s.ActiveEnvironment()
	return resolver.Resolve(text, env)
}

func newID() string {
	return uuid.NewString()
}

func sortedDomains(index map[string][]model.Cookie) []string {
	domains := make([]string, 0, len(index))
	for d := range index {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}
