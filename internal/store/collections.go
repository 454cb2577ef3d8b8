package store

import (
	"github.com/webmip/postbank/internal/codec"
	"github.com/webmip/postbank/internal/errdef"
	"github.com/webmip/postbank/internal/model"
)

// Collections returns all collections in insertion order.
func (s *Store) Collections() []model.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCollections(s.collections)
}

// FindCollection looks a collection up by id, then by name.
func (s *Store) FindCollection(ref string) (model.Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.findCollectionLocked(ref); i >= 0 {
		return s.collections[i].Clone(), true
	}
	for _, c := range s.collections {
		if c.Name == ref {
			return c.Clone(), true
		}
	}
	return model.Collection{}, false
}

func (s *Store) findCollectionLocked(id string) int {
	for i, c := range s.collections {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// SaveCollection inserts c or replaces the collection with the same id. A
// collection without an id gets a fresh one. Returns the full list.
func (s *Store) SaveCollection(c model.Collection) ([]model.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCollectionLocked(c)
}

func (s *Store) saveCollectionLocked(c model.Collection) ([]model.Collection, error) {
	c = c.Clone()
	if c.ID == "" {
		c.ID = newID()
	}
	for i := range c.Requests {
		if c.Requests[i].ID == "" {
			c.Requests[i].ID = newID()
		}
	}

	collections, err := s.records.SaveCollection(c)
	if err != nil {
		return nil, errdef.Storage("save collection", err)
	}
	s.collections = collections
	s.logger.Debug("collection saved", "id", c.ID, "requests", len(c.Requests))
	return cloneCollections(collections), nil
}

// DeleteCollection removes the collection with id. Returns the full list.
func (s *Store) DeleteCollection(id string) ([]model.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collections, err := s.records.DeleteCollection(id)
	if err != nil {
		return nil, errdef.Storage("delete collection", err)
	}
	s.collections = collections
	return cloneCollections(collections), nil
}

// ImportCollection parses, validates and stores a Postman collection
// document. The imported collection and every request get fresh ids.
func (s *Store) ImportCollection(text string) (model.Collection, error) {
	c, err := codec.Decode(text)
	if err != nil {
		return model.Collection{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.saveCollectionLocked(c); err != nil {
		return model.Collection{}, err
	}
	s.logger.Info("collection imported", "name", c.Name, "requests", len(c.Requests))
	return c.Clone(), nil
}

// ExportCollection serializes the stored collection with id as a Postman
// v2.1 document.
func (s *Store) ExportCollection(id string) (string, error) {
	s.mu.RLock()
	i := s.findCollectionLocked(id)
	var c model.Collection
	if i >= 0 {
		c = s.collections[i].Clone()
	}
	s.mu.RUnlock()

	if i < 0 {
		return "", errdef.InvalidInput("export collection", "collection %q not found", id)
	}
	return codec.Export(c)
}

// CreateCollectionFromHistory builds a new collection from the executed
// requests of the given history entries, in the order given.
func (s *Store) CreateCollectionFromHistory(name string, historyIDs []int64) (model.Collection, error) {
	if name == "" {
		return model.Collection{}, errdef.InvalidInput("create collection", "collection name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := model.Collection{ID: newID(), Name: name, Requests: make([]model.Request, 0, len(historyIDs))}
	for _, hid := range historyIDs {
		i := s.findHistoryLocked(hid)
		if i < 0 {
			return model.Collection{}, errdef.InvalidInput("create collection", "history entry %d not found", hid)
		}
		req := s.history[i].Request.Clone()
		req.ID = newID()
		if req.Name == "" {
			req.Name = req.URL
		}
		c.Requests = append(c.Requests, req)
	}

	if _, err := s.saveCollectionLocked(c); err != nil {
		return model.Collection{}, err
	}
	return c.Clone(), nil
}

// AddRequestToCollection appends req to the collection with id. The stored
// copy gets a fresh request id.
func (s *Store) AddRequestToCollection(collectionID string, req model.Request) (model.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findCollectionLocked(collectionID)
	if i < 0 {
		return model.Collection{}, errdef.InvalidInput("add request", "collection %q not found", collectionID)
	}
	c := s.collections[i].Clone()
	r := req.Clone()
	r.ID = newID()
	c.Requests = append(c.Requests, r)

	if _, err := s.saveCollectionLocked(c); err != nil {
		return model.Collection{}, err
	}
	return c, nil
}

// RemoveRequestFromCollection drops the request with requestID from the
// collection with collectionID.
func (s *Store) RemoveRequestFromCollection(collectionID, requestID string) (model.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findCollectionLocked(collectionID)
	if i < 0 {
		return model.Collection{}, errdef.InvalidInput("remove request", "collection %q not found", collectionID)
	}
	c := s.collections[i].Clone()
	kept := c.Requests[:0]
	found := false
	for _, r := range c.Requests {
		if r.ID == requestID {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return model.Collection{}, errdef.InvalidInput("remove request", "request %q not in collection", requestID)
	}
	c.Requests = kept

	if _, err := s.saveCollectionLocked(c); err != nil {
		return model.Collection{}, err
	}
	return c, nil
}

func cloneCollections(in []model.Collection) []model.Collection {
	out := make([]model.Collection, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}
