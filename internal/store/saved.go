package store

import (
	"github.com/webmip/postbank/internal/errdef"
	"github.com/webmip/postbank/internal/model"
)

// SavedRequests returns saved requests in insertion order.
func (s *Store) SavedRequests() []model.SavedRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSaved(s.saved)
}

// FindSavedRequest looks a saved request up by id, then by name.
func (s *Store) FindSavedRequest(ref string) (model.SavedRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sr := range s.saved {
		if sr.ID == ref {
			return sr.Clone(), true
		}
	}
	for _, sr := range s.saved {
		if sr.Name == ref {
			return sr.Clone(), true
		}
	}
	return model.SavedRequest{}, false
}

// SaveRequest stores a named snapshot of req under a fresh id.
func (s *Store) SaveRequest(name string, req model.Request) (model.SavedRequest, error) {
	if name == "" {
		return model.SavedRequest{}, errdef.InvalidInput("save request", "name is required")
	}

	sr := model.SavedRequest{
		ID:        newID(),
		Name:      name,
		Request:   req.Clone(),
		CreatedAt: s.now().UnixMilli(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.records.SaveRequest(sr)
	if err != nil {
		return model.SavedRequest{}, errdef.Storage("save request", err)
	}
	s.saved = saved
	return sr.Clone(), nil
}

// DeleteSavedRequest removes the saved request with id.
func (s *Store) DeleteSavedRequest(id string) ([]model.SavedRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.records.DeleteSavedRequest(id)
	if err != nil {
		return nil, errdef.Storage("delete saved request", err)
	}
	s.saved = saved
	return cloneSaved(saved), nil
}

func cloneSaved(in []model.SavedRequest) []model.SavedRequest {
	out := make([]model.SavedRequest, len(in))
	for i, sr := range in {
		out[i] = sr.Clone()
	}
	return out
}
