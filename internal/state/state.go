package state

import (
	"context"
	"sort"
	"sync"

	"github.com/shinyvision/phpinfer/internal/analysis"
	"github.com/shinyvision/phpinfer/internal/utils"
	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// State tracks the open documents of the language server. They are analyzed
// together so that symbols declared in one buffer resolve in the others.
type State struct {
	mu      sync.RWMutex
	docs    map[protocol.DocumentUri]*Document
	project *analysis.Project
	// analyzing serializes Refresh calls.
	analyzing sync.Mutex
	log       commonlog.Logger
}

func NewState(project *analysis.Project) *State {
	return &State{
		docs:    make(map[protocol.DocumentUri]*Document),
		project: project,
		log:     commonlog.GetLoggerf("phpinfer.state"),
	}
}

func (s *State) Project() *analysis.Project { return s.project }

// GetDocument retrieves a document from the state.
func (s *State) GetDocument(uri protocol.DocumentUri) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	return doc, ok
}

// SetDocument adds or updates a document and hands its text to the project.
func (s *State) SetDocument(ctx context.Context, uri protocol.DocumentUri, text string, version protocol.Integer) error {
	s.mu.Lock()
	doc, ok := s.docs[uri]
	if !ok {
		doc = &Document{URI: uri, Path: utils.UriToPath(uri)}
		s.docs[uri] = doc
	}
	s.mu.Unlock()

	err := s.project.AddSource(ctx, doc.Path, []byte(text))
	doc.update(text, version)
	return err
}

// DeleteDocument removes a document from the state and the project.
func (s *State) DeleteDocument(uri protocol.DocumentUri) {
	s.mu.Lock()
	doc, ok := s.docs[uri]
	delete(s.docs, uri)
	s.mu.Unlock()
	if ok {
		s.project.RemoveFile(doc.Path)
	}
}

// Refresh re-analyzes every open document and returns them, ordered by URI,
// with their results attached.
func (s *State) Refresh(ctx context.Context) []*Document {
	s.analyzing.Lock()
	defer s.analyzing.Unlock()

	s.mu.RLock()
	byPath := make(map[string]*Document, len(s.docs))
	versions := make(map[string]protocol.Integer, len(s.docs))
	for _, doc := range s.docs {
		byPath[doc.Path] = doc
		versions[doc.Path] = doc.Version()
	}
	s.mu.RUnlock()

	results := s.project.Analyze(ctx)
	docs := make([]*Document, 0, len(results))
	for _, result := range results {
		doc, ok := byPath[result.File]
		if !ok {
			continue
		}
		doc.attach(result, versions[result.File])
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	s.log.Debugf("analyzed %d documents", len(docs))
	return docs
}
