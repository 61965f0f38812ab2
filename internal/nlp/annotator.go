// Package nlp wraps the language model behind the knowledge graph: it turns
// text into tokens, sentences, entities, noun chunks and coreference chains.
package nlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Stage names understood by every annotator.
const (
	StageTagger      = "tagger"
	StageNER         = "ner"
	StageChunker     = "noun_chunks"
	StageCoreference = "coreference"
)

// ErrDuplicateStage is returned when a stage is attached twice.
var ErrDuplicateStage = errors.New("stage already in pipeline")

// Annotator is the interface for language models.
type Annotator interface {
	Annotate(ctx context.Context, text string) (*Document, error)
	// AddStage attaches an optional processing stage such as coreference.
	AddStage(name string) error
	Stages() []string
}

// stages is an ordered, duplicate-free list of pipeline stage names.
type stages struct {
	mu    sync.RWMutex
	names []string
}

func newStages(names ...string) *stages {
	return &stages{names: names}
}

func (s *stages) add(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.names {
		if n == name {
			return fmt.Errorf("%s: %w", name, ErrDuplicateStage)
		}
	}
	s.names = append(s.names, name)
	return nil
}

func (s *stages) has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.names {
		if n == name {
			return true
		}
	}
	return false
}

func (s *stages) list() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.names...)
}

// Options configures CreateAnnotator.
type Options struct {
	Backend   string
	RemoteURL string
	APIKeyEnv string
	Timeout   time.Duration
}

// CreateAnnotator creates an annotator based on configuration. The base
// stages (tagger, ner, noun chunks) are attached; coreference is left to the
// caller so that it can report a duplicate attach.
func CreateAnnotator(opts Options) Annotator {
	if strings.ToLower(opts.Backend) == "remote" {
		log.Info("Using remote NLP service", "url", opts.RemoteURL)
		return NewRemoteAnnotator(opts.RemoteURL, os.Getenv(opts.APIKeyEnv), opts.Timeout)
	}
	log.Info("Using in-process prose annotator")
	return NewProseAnnotator()
}
