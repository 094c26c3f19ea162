// Package auth decides which Telegram users may talk to the bot.
package auth

import "sync"

type Service struct {
	mu      sync.RWMutex
	allowed map[int64]struct{}
}

// New builds an allowlist. An empty list lets everyone in.
func New(ids []int64) *Service {
	s := &Service{allowed: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		s.allowed[id] = struct{}{}
	}
	return s
}

func (s *Service) IsAllowed(userID int64) bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.allowed) == 0 {
		return true
	}
	_, ok := s.allowed[userID]
	return ok
}

func (s *Service) Allow(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowed[userID] = struct{}{}
}

func (s *Service) Restricted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.allowed) > 0
}
