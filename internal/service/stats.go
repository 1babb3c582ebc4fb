package service

import "sync"

// StatsSnapshot is a point-in-time copy of the aggregate counters.
type StatsSnapshot struct {
	TokensScanned  int64   `json:"tokensScanned"`
	SnipesExecuted int64   `json:"snipesExecuted"`
	Kills          int64   `json:"kills"`
	Deaths         int64   `json:"deaths"`
	TotalPnL       float64 `json:"totalPnl"`
	LastToken      string  `json:"lastToken,omitempty"`
}

// Stats holds the process-wide counters. It is shared by the coordinator,
// the supervisor and the status loop.
type Stats struct {
	mu sync.Mutex
	s  StatsSnapshot
}

// NewStats creates zeroed counters.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) TokenScanned(ca string) {
	s.mu.Lock()
	s.s.TokensScanned++
	s.s.LastToken = ca
	s.mu.Unlock()
}

func (s *Stats) SnipeExecuted() {
	s.mu.Lock()
	s.s.SnipesExecuted++
	s.mu.Unlock()
}

// Kill records a take-profit exit.
func (s *Stats) Kill(pnlPercent float64) {
	s.mu.Lock()
	s.s.Kills++
	s.s.TotalPnL += pnlPercent
	s.mu.Unlock()
}

// Death records a stop-loss exit.
func (s *Stats) Death(pnlPercent float64) {
	s.mu.Lock()
	s.s.Deaths++
	s.s.TotalPnL += pnlPercent
	s.mu.Unlock()
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s
}
