// Package graph holds the knowledge graph built from extracted relationships.
package graph

import (
	"encoding/json"
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/TobiSchelling/WikiGraph/internal/extract"
	"github.com/TobiSchelling/WikiGraph/internal/nlp"
)

// NodeSize is the uniform display size of every node.
const NodeSize = 5

// MinSentenceTokens is the length a sentence must exceed to be considered.
const MinSentenceTokens = 3

// ErrNodeNotFound is returned when querying a phrase that is not a node.
var ErrNodeNotFound = errors.New("node not found")

// Node is a phrase in the graph.
type Node struct {
	ID   string `json:"id"`
	Size int    `json:"size"`
}

// Edge is a directed relationship between two phrases.
type Edge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Title  string `json:"title"`
	Weight int    `json:"weight"`
	Arrows string `json:"arrows"`
}

// Graph is a directed graph with insertion-ordered nodes and edges. Adding
// an existing node or edge replaces its attributes in place; counts never
// grow on re-insertion. A Graph is not safe for concurrent use.
type Graph struct {
	nodes *orderedmap.OrderedMap[string, Node]
	adj   *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, Edge]]
	edges int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: orderedmap.New[string, Node](),
		adj:   orderedmap.New[string, *orderedmap.OrderedMap[string, Edge]](),
	}
}

// AddNode upserts a node.
func (g *Graph) AddNode(id string, size int) {
	g.nodes.Set(id, Node{ID: id, Size: size})
	if _, ok := g.adj.Get(id); !ok {
		g.adj.Set(id, orderedmap.New[string, Edge]())
	}
}

// AddEdge upserts the edge from → to. Missing endpoints are added with the
// default node size.
func (g *Graph) AddEdge(from, to, title string) {
	for _, id := range []string{from, to} {
		if !g.HasNode(id) {
			g.AddNode(id, NodeSize)
		}
	}
	out, _ := g.adj.Get(from)
	if _, existed := out.Set(to, Edge{From: from, To: to, Title: title, Weight: 1, Arrows: "to"}); !existed {
		g.edges++
	}
}

// Insert adds a relationship: both phrases as nodes and a labelled edge.
// Triples missing either end are ignored.
func (g *Graph) Insert(t extract.Triple) bool {
	if !t.Found() {
		return false
	}
	g.AddNode(t.Subject, NodeSize)
	g.AddNode(t.Object, NodeSize)
	g.AddEdge(t.Subject, t.Object, extract.Label(t.Connector))
	return true
}

// HasNode reports whether id is a node.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes.Get(id)
	return ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return g.nodes.Len() }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return g.edges }

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, g.nodes.Len())
	for p := g.nodes.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Value)
	}
	return out
}

// Edges returns edges grouped by source node in node order, each group in
// insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edges)
	for p := g.adj.Oldest(); p != nil; p = p.Next() {
		for e := p.Value.Oldest(); e != nil; e = e.Next() {
			out = append(out, e.Value)
		}
	}
	return out
}

// Neighbors returns the destinations of id's outgoing edges in insertion
// order. The second result is false when id is not a node, which is distinct
// from a node with no outgoing edges.
func (g *Graph) Neighbors(id string) ([]string, bool) {
	if !g.HasNode(id) {
		return nil, false
	}
	out, _ := g.adj.Get(id)
	dests := make([]string, 0, out.Len())
	for e := out.Oldest(); e != nil; e = e.Next() {
		dests = append(dests, e.Key)
	}
	return dests, true
}

// Query is Neighbors with ErrNodeNotFound for a missing node.
func (g *Graph) Query(id string) ([]string, error) {
	dests, ok := g.Neighbors(id)
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrNodeNotFound)
	}
	return dests, nil
}

// Build walks the document's sentences and inserts the relationship of
// every sentence longer than MinSentenceTokens.
func Build(doc *nlp.Document) *Graph {
	g := New()
	for _, sent := range doc.Sentences {
		if sent.Len() <= MinSentenceTokens {
			continue
		}
		g.Insert(extract.Relationship(doc, sent))
	}
	return g
}

type visNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Size  int    `json:"size"`
}

// MarshalJSON encodes the graph in the vis-network dataset form.
func (g *Graph) MarshalJSON() ([]byte, error) {
	nodes := make([]visNode, 0, g.nodes.Len())
	for _, n := range g.Nodes() {
		nodes = append(nodes, visNode{ID: n.ID, Label: n.ID, Size: n.Size})
	}
	return json.Marshal(struct {
		Nodes []visNode `json:"nodes"`
		Edges []Edge    `json:"edges"`
	}{nodes, g.Edges()})
}
