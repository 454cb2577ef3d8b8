package store

import (
	"github.com/webmip/postbank/internal/errdef"
	"github.com/webmip/postbank/internal/model"
	"github.com/webmip/postbank/internal/storage"
)

// Environments returns all environments in insertion order.
func (s *Store) Environments() []model.Environment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEnvironments(s.environments)
}

// FindEnvironment looks an environment up by id, then by name.
func (s *Store) FindEnvironment(ref string) (model.Environment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.findEnvironmentLocked(ref); i >= 0 {
		return s.environments[i].Clone(), true
	}
	for _, env := range s.environments {
		if env.Name == ref {
			return env.Clone(), true
		}
	}
	return model.Environment{}, false
}

func (s *Store) findEnvironmentLocked(id string) int {
	for i, env := range s.environments {
		if env.ID == id {
			return i
		}
	}
	return -1
}

// SaveEnvironment inserts env or replaces the environment with the same id.
// An environment without an id gets a fresh one.
func (s *Store) SaveEnvironment(env model.Environment) ([]model.Environment, error) {
	env = env.Clone()
	if env.ID == "" {
		env.ID = newID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	envs, err := s.records.SaveEnvironment(env)
	if err != nil {
		return nil, errdef.Storage("save environment", err)
	}
	s.environments = envs
	s.reindexLocked()
	return cloneEnvironments(envs), nil
}

// DeleteEnvironment removes the environment with id. Deleting the active
// environment also clears the persisted active reference.
func (s *Store) DeleteEnvironment(id string) ([]model.Environment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	envs, err := s.records.DeleteEnvironment(id)
	if err != nil {
		return nil, errdef.Storage("delete environment", err)
	}
	s.environments = envs

	var kvErr error
	if s.activeEnvID == id {
		kvErr = s.kv.Delete(storage.KeyActiveEnvironment)
	}
	s.reindexLocked()

	if kvErr != nil {
		return cloneEnvironments(envs), errdef.Storage("delete environment", kvErr)
	}
	return cloneEnvironments(envs), nil
}

// ActiveEnvironment returns a copy of the active environment, or nil.
func (s *Store) ActiveEnvironment() *model.Environment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.findEnvironmentLocked(s.activeEnvID)
	if s.activeEnvID == "" || i < 0 {
		return nil
	}
	env := s.environments[i].Clone()
	return &env
}

// SetActiveEnvironment persists env's id as the active reference. Nil
// clears it. The environment must already be stored.
func (s *Store) SetActiveEnvironment(env *model.Environment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if env == nil {
		if err := s.kv.Delete(storage.KeyActiveEnvironment); err != nil {
			return errdef.Storage("set active environment", err)
		}
		s.activeEnvID = ""
		return nil
	}

	if s.findEnvironmentLocked(env.ID) < 0 {
		return errdef.InvalidInput("set active environment", "environment %q not found", env.ID)
	}
	if err := s.kv.Set(storage.KeyActiveEnvironment, env.ID); err != nil {
		return errdef.Storage("set active environment", err)
	}
	s.activeEnvID = env.ID
	return nil
}

func cloneEnvironments(in []model.Environment) []model.Environment {
	out := make([]model.Environment, len(in))
	for i, env := range in {
		out[i] = env.Clone()
	}
	return out
}
