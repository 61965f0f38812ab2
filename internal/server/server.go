package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/WikiGraph/internal/graph"
	"github.com/TobiSchelling/WikiGraph/internal/nlp"
	"github.com/TobiSchelling/WikiGraph/internal/pipeline"
	"github.com/TobiSchelling/WikiGraph/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

const (
	cookieName   = "wikigraph_session"
	defaultTitle = "New York City"
	defaultQuery = "manhattan"
)

// Server is the HTTP server for the knowledge graph UI.
type Server struct {
	store   *session.Store
	timeout time.Duration
	pages   map[string]*template.Template
	mux     *http.ServeMux
}

// New creates a new Server. timeout bounds a single pipeline run; zero means
// no limit beyond the request's own context.
func New(store *session.Store, timeout time.Duration) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	pageNames := []string{"index.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{store: store, timeout: timeout, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/fetch", s.handleFetch)
	s.mux.HandleFunc("/query", s.handleQuery)
	s.mux.HandleFunc("/graph.json", s.handleGraph)
}

// session returns the caller's session, issuing a cookie for a new one.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if c, err := r.Cookie(cookieName); err == nil {
		id = c.Value
	}
	sess, created := s.store.Get(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	sess := s.session(w, r)
	s.render(w, "index.html", newIndexView(sess.Snapshot()))
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	sess := s.session(w, r)

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = defaultTitle
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	res := sess.Fetch(ctx, title)
	log.Info("Fetch handled", "session", sess.ID, "title", title, "state", res.State.String())

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	sess := s.session(w, r)

	entity := strings.TrimSpace(r.FormValue("entity"))
	if entity == "" {
		entity = defaultQuery
	}
	sess.Query(entity)

	http.Redirect(w, r, "/#neighbors", http.StatusSeeOther)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	g := sess.Snapshot().Graph
	if g == nil {
		g = graph.New()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(g); err != nil {
		log.Error("Encoding graph", "err", err)
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Error("Template not found", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Error("Rendering template", "template", name, "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// message is a flash line shown above the panels. Level is one of success,
// info, warning, error.
type message struct {
	Level string
	Text  string
}

type indexView struct {
	Title      string
	Query      string
	GraphTitle string
	HasGraph   bool
	Messages   []message
	Steps      []pipeline.StepResult
	Normalized string
	Segments   []nlp.EntitySegment
	Chains     string
	Resolved   string
	Nodes      int
	Edges      int
	Neighbors  string
	QueryMsg   *message
}

func newIndexView(snap session.Snapshot) indexView {
	v := indexView{Title: defaultTitle, Query: defaultQuery}
	if snap.Graph != nil {
		v.HasGraph = true
		v.GraphTitle = snap.GraphTitle
		v.Nodes = snap.Graph.NodeCount()
		v.Edges = snap.Graph.EdgeCount()
	}

	if r := snap.Last; r != nil {
		v.Title = r.Title
		v.Steps = r.Steps
		v.Messages = runMessages(r)
		if r.Failed() && snap.Graph != nil {
			v.Messages = append(v.Messages, message{"info", fmt.Sprintf("Showing the previous graph for '%s'.", snap.GraphTitle)})
		}
		v.Normalized = r.Normalized
		v.Resolved = r.Resolved
		if r.Document != nil {
			v.Segments = r.Document.EntitySegments()
			v.Chains = chainMarkdown(r.Chains)
		}
	}

	if q := snap.Query; q != nil {
		v.Query = q.Entity
		v.Neighbors, v.QueryMsg = neighborListing(q)
	}
	return v
}

// runMessages turns step outcomes into flash messages.
func runMessages(r *pipeline.Result) []message {
	var out []message
	for _, st := range r.Steps {
		switch {
		case st.Warning != "":
			out = append(out, message{"warning", st.Warning})
		case st.Err != nil:
			out = append(out, stepError(st))
		case st.Name == "Fetch":
			out = append(out, message{"success", st.Summary})
		}
	}
	if r.Document != nil && r.Document.CorefAvailable && len(r.Chains) == 0 {
		out = append(out, message{"info", "No coreference chains found."})
	}
	return out
}

func stepError(st pipeline.StepResult) message {
	switch st.Name {
	case "Fetch":
		return message{"error", fmt.Sprintf("Failed to process Wikipedia content: %v", st.Err)}
	case "Annotate":
		return message{"error", fmt.Sprintf("Failed to annotate the article: %v", st.Err)}
	case "Resolve":
		return message{"error", fmt.Sprintf("Coreference resolution failed: %v", st.Err)}
	case "Reannotate":
		return message{"error", fmt.Sprintf("Error while building the knowledge graph: %v", st.Err)}
	}
	return message{"error", fmt.Sprintf("%s failed: %v", st.Name, st.Err)}
}

func chainMarkdown(chains []string) string {
	var b strings.Builder
	for i, c := range chains {
		fmt.Fprintf(&b, "**Chain %d:** %s\n\n", i+1, c)
	}
	return b.String()
}

// neighborListing returns a markdown bullet list of neighbors, or a message
// when there is nothing to list.
func neighborListing(q *session.Query) (string, *message) {
	switch {
	case errors.Is(q.Err, session.ErrNoGraph):
		return "", &message{"warning", "Fetch an article before querying the graph."}
	case errors.Is(q.Err, graph.ErrNodeNotFound):
		return "", &message{"warning", fmt.Sprintf("Node '%s' does not exist in the graph.", q.Entity)}
	case q.Err != nil:
		return "", &message{"error", q.Err.Error()}
	case len(q.Neighbors) == 0:
		return "", &message{"info", fmt.Sprintf("No related entities found for '%s'.", q.Entity)}
	}
	var b strings.Builder
	for _, n := range q.Neighbors {
		fmt.Fprintf(&b, "- %s\n", n)
	}
	return b.String(), nil
}

// Serve starts the HTTP server on the given port.
func Serve(store *session.Store, port int, timeout time.Duration) error {
	srv, err := New(store, timeout)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Info("Server listening", "url", "http://"+addr)
	return http.ListenAndServe(addr, srv.Handler())
}
