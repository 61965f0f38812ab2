// Package session keeps per-visitor pipeline state for the web UI.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/TobiSchelling/WikiGraph/internal/graph"
	"github.com/TobiSchelling/WikiGraph/internal/pipeline"
)

// ErrNoGraph is returned when querying before any graph was built.
var ErrNoGraph = errors.New("no graph has been built yet")

// Query is the outcome of the last neighbor query.
type Query struct {
	Entity    string
	Neighbors []string
	Err       error
}

// Session holds one visitor's pipeline, current graph and last results.
// All methods are safe for concurrent use; runs within a session are
// serialized.
type Session struct {
	ID string

	mu       sync.Mutex
	pipeline *pipeline.Pipeline
	graph    *graph.Graph
	title    string
	last     *pipeline.Result
	query    *Query
}

// Snapshot is a consistent view of a session for rendering.
type Snapshot struct {
	Graph      *graph.Graph
	GraphTitle string
	Last       *pipeline.Result
	Query      *Query
}

// Fetch runs the pipeline for title. The session's graph is replaced only
// when the run reaches query-ready; a failed run leaves the previous graph
// in place.
func (s *Session) Fetch(ctx context.Context, title string) *pipeline.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.pipeline.Run(ctx, title)
	s.last = r
	if r.State == pipeline.StateQueryReady && r.Graph != nil {
		s.graph = r.Graph
		s.title = r.Page.Title
		s.query = nil
	} else if s.graph != nil {
		log.Info("Keeping previous graph", "session", s.ID, "title", s.title)
	}
	return r
}

// Query looks up the outgoing neighbors of entity in the current graph and
// remembers the outcome.
func (s *Session) Query(entity string) *Query {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := &Query{Entity: entity}
	if s.graph == nil {
		q.Err = ErrNoGraph
	} else {
		q.Neighbors, q.Err = s.graph.Query(entity)
	}
	s.query = q
	return q
}

// Snapshot returns the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Graph: s.graph, GraphTitle: s.title, Last: s.last, Query: s.query}
}

// Store holds sessions in a size-bounded LRU with idle expiry.
type Store struct {
	sessions    *expirable.LRU[string, *Session]
	newPipeline func() *pipeline.Pipeline
	mu          sync.Mutex
}

// NewStore creates a store holding at most size sessions, each evicted ttl
// after its last use. newPipeline builds the pipeline for a new session.
func NewStore(size int, ttl time.Duration, newPipeline func() *pipeline.Pipeline) *Store {
	onEvict := func(id string, _ *Session) {
		log.Debug("Session evicted", "session", id)
	}
	return &Store{
		sessions:    expirable.NewLRU[string, *Session](size, onEvict, ttl),
		newPipeline: newPipeline,
	}
}

// Get returns the session for id, creating one when id is unknown or has
// expired. The second result reports whether a new session was created.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if id != "" {
		if s, ok := st.sessions.Get(id); ok {
			// Re-adding refreshes the expiry.
			st.sessions.Add(id, s)
			return s, false
		}
	}
	s := &Session{ID: uuid.NewString(), pipeline: st.newPipeline()}
	st.sessions.Add(s.ID, s)
	log.Debug("Session created", "session", s.ID)
	return s, true
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	return st.sessions.Len()
}
