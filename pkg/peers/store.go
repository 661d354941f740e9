// Package peers tracks per-endpoint transport statistics. The store is
// advisory: it feeds status logging and tests, never transport decisions.
package peers

import (
	"net/netip"
	"sort"
	"sync"
	"time"
)

// Stats holds the counters kept for one peer endpoint.
type Stats struct {
	Endpoint        netip.AddrPort `json:"endpoint"`
	Connects        uint64         `json:"connects"`
	ConnectFailures uint64         `json:"connect_failures"`
	FramesSent      uint64         `json:"frames_sent"`
	SendFailures    uint64         `json:"send_failures"`
	Retries         uint64         `json:"retries"`
	FramesReceived  uint64         `json:"frames_received"`
	BytesOut        uint64         `json:"bytes_out"`
	BytesIn         uint64         `json:"bytes_in"`
	LastActivity    time.Time      `json:"last_activity"`
}

// Store is safe for concurrent use by the sender, receiver and
// retransmitter tasks.
type Store struct {
	mu    sync.RWMutex
	stats map[netip.AddrPort]*Stats
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{stats: make(map[netip.AddrPort]*Stats)}
}

func (s *Store) get(ep netip.AddrPort) *Stats {
	st, ok := s.stats[ep]
	if !ok {
		st = &Stats{Endpoint: ep}
		s.stats[ep] = st
	}
	st.LastActivity = time.Now()
	return st
}

// RecordConnect notes the outcome of one outbound TCP connect attempt.
func (s *Store) RecordConnect(ep netip.AddrPort, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(ep)
	if ok {
		st.Connects++
	} else {
		st.ConnectFailures++
	}
}

// RecordSend notes one frame write attempt and its size on success.
func (s *Store) RecordSend(ep netip.AddrPort, bytes int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(ep)
	if ok {
		st.FramesSent++
		st.BytesOut += uint64(bytes)
	} else {
		st.SendFailures++
	}
}

// RecordRetry notes one envelope handed to the retransmission scheduler.
func (s *Store) RecordRetry(ep netip.AddrPort) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(ep).Retries++
}

// RecordReceive notes one decoded inbound frame from ep.
func (s *Store) RecordReceive(ep netip.AddrPort, bytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(ep)
	st.FramesReceived++
	st.BytesIn += uint64(bytes)
}

// Snapshot returns a copy of all stats ordered by endpoint.
func (s *Store) Snapshot() []Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Stats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Endpoint.String() < out[j].Endpoint.String()
	})
	return out
}

// Get returns the stats for one endpoint and whether it is known.
func (s *Store) Get(ep netip.AddrPort) (Stats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[ep]
	if !ok { return Stats{}, false }
	return *st, true
}
