package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sony/gobreaker"
)

// ErrServiceUnavailable is returned while the circuit to the NLP service is open.
var ErrServiceUnavailable = errors.New("nlp service unavailable")

// RemoteAnnotator calls a JSON annotation service, typically spaCy with the
// coreferee component, at POST {BaseURL}/annotate.
type RemoteAnnotator struct {
	BaseURL string
	token   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	stages  *stages
}

// NewRemoteAnnotator creates a remote annotator. token may be empty.
func NewRemoteAnnotator(baseURL, token string, timeout time.Duration) *RemoteAnnotator {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &RemoteAnnotator{
		BaseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "nlp",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("Circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
		stages: newStages(StageTagger, StageNER, StageChunker),
	}
}

// AddStage attaches a stage; the service runs the stages named in each request.
func (r *RemoteAnnotator) AddStage(name string) error {
	return r.stages.add(name)
}

// Stages returns the attached stage names in order.
func (r *RemoteAnnotator) Stages() []string {
	return r.stages.list()
}

type annotateRequest struct {
	Text   string   `json:"text"`
	Stages []string `json:"stages"`
}

type wireToken struct {
	Text string `json:"text"`
	WS   string `json:"ws"`
	Tag  string `json:"tag"`
	Dep  string `json:"dep"`
	Ent  string `json:"ent"`
	Sent int    `json:"sent"`
}

type wireSpan struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label,omitempty"`
}

type wireMention struct {
	Spans     []wireSpan `json:"spans"`
	Anaphoric bool       `json:"anaphoric"`
}

type wireChain struct {
	Mentions     []wireMention `json:"mentions"`
	MostSpecific int           `json:"most_specific"`
}

type annotateResponse struct {
	Tokens     []wireToken `json:"tokens"`
	Sentences  []wireSpan  `json:"sents"`
	Entities   []wireSpan  `json:"ents"`
	NounChunks []wireSpan  `json:"noun_chunks"`
	Chains     []wireChain `json:"coref_chains"`
	Coref      bool        `json:"coref"`
}

// Annotate sends text to the service and converts the response.
func (r *RemoteAnnotator) Annotate(ctx context.Context, text string) (*Document, error) {
	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.call(ctx, text)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return out.(*annotateResponse).document(), nil
}

func (r *RemoteAnnotator) call(ctx context.Context, text string) (*annotateResponse, error) {
	data, err := json.Marshal(annotateRequest{Text: text, Stages: r.stages.list()})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/annotate", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nlp service error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("nlp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}

func (a *annotateResponse) document() *Document {
	doc := &Document{
		Tokens:         make([]Token, len(a.Tokens)),
		CorefAvailable: a.Coref,
	}
	for i, t := range a.Tokens {
		doc.Tokens[i] = Token{Text: t.Text, Whitespace: t.WS, Tag: t.Tag, Dep: t.Dep, Entity: t.Ent, Sent: t.Sent}
	}
	n := len(doc.Tokens)
	doc.Sentences = spans(a.Sentences, n)
	doc.Entities = spans(a.Entities, n)
	doc.NounChunks = spans(a.NounChunks, n)
	for _, c := range a.Chains {
		ch := Chain{MostSpecific: c.MostSpecific}
		for _, m := range c.Mentions {
			ch.Mentions = append(ch.Mentions, Mention{Spans: spans(m.Spans, n), Anaphoric: m.Anaphoric})
		}
		doc.Chains = append(doc.Chains, ch)
	}
	return doc
}

// spans converts wire spans, dropping any that are empty or fall outside
// the n tokens of the document.
func spans(in []wireSpan, n int) []Span {
	var out []Span
	for _, s := range in {
		if s.Start < 0 || s.Start >= s.End || s.End > n {
			log.Debug("Dropping invalid span", "start", s.Start, "end", s.End, "tokens", n)
			continue
		}
		out = append(out, Span{Start: s.Start, End: s.End, Label: s.Label})
	}
	return out
}
