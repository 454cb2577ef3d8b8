package store

import (
	"github.com/webmip/postbank/internal/errdef"
	"github.com/webmip/postbank/internal/model"
)

// History returns every entry, newest first.
func (s *Store) History() []model.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.HistoryEntry, len(s.history))
	for i, e := range s.history {
		out[i] = e.Clone()
	}
	return out
}

// HistoryEntry returns the entry with id.
func (s *Store) HistoryEntry(id int64) (model.HistoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.findHistoryLocked(id); i >= 0 {
		return s.history[i].Clone(), true
	}
	return model.HistoryEntry{}, false
}

func (s *Store) findHistoryLocked(id int64) int {
	for i, e := range s.history {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// AddToHistory records an executed request and its response. The
// timestamp is taken now; the request is stored without its id.
func (s *Store) AddToHistory(req model.Request, resp model.Response) ([]model.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.records.AddHistory(s.now().UnixMilli(), req.Executed(), resp.Clone())
	if err != nil {
		return nil, errdef.Storage("add to history", err)
	}
	s.history = history

	out := make([]model.HistoryEntry, len(history))
	for i, e := range history {
		out[i] = e.Clone()
	}
	return out, nil
}

// ClearHistory removes every history entry and nothing else.
func (s *Store) ClearHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.records.ClearHistory(); err != nil {
		return errdef.Storage("clear history", err)
	}
	history, err := s.records.LoadHistory()
	if err != nil {
		return errdef.Storage("clear history", err)
	}
	s.history = history
	return nil
}
