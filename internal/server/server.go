package server

import (
	"context"

	"github.com/shinyvision/phpinfer/internal/analysis"
	"github.com/shinyvision/phpinfer/internal/config"
	"github.com/shinyvision/phpinfer/internal/state"
	"github.com/shinyvision/phpinfer/internal/utils"
	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"
)

const lsName = "phpinfer"

// Server is the language server.
type Server struct {
	config  *config.Config
	state   *state.State
	version string
	h       protocol.Handler
	log     commonlog.Logger
}

// NewServer creates a new server analyzing with cfg.
func NewServer(cfg *config.Config, version string) (*Server, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	project := analysis.NewProject(opts, cfg.Workers)
	if cfg.PHPVersion != "" {
		if err := project.Store().SetPHPVersion(cfg.PHPVersion); err != nil {
			return nil, err
		}
	}
	s := &Server{
		config:  cfg,
		state:   state.NewState(project),
		version: version,
		log:     commonlog.GetLoggerf("phpinfer.server"),
	}
	s.h = protocol.Handler{
		Initialize:             s.initialize,
		Initialized:            s.initialized,
		Shutdown:               s.shutdown,
		SetTrace:               s.setTrace,
		TextDocumentDidOpen:    s.didOpen,
		TextDocumentDidChange:  s.didChange,
		TextDocumentDidClose:   s.didClose,
		TextDocumentHover:      s.onHover,
		TextDocumentDefinition: s.onDefinition,
	}
	return s, nil
}

// Run runs the language server on stdio until the client disconnects.
func (s *Server) Run() error {
	defer s.state.Project().Close()
	server := glspserver.NewServer(&s.h, lsName, false)
	return server.RunStdio()
}

func (s *Server) initialize(_ *glsp.Context, params *protocol.InitializeParams) (any, error) {
	caps := s.h.CreateServerCapabilities()
	openClose := true
	change := protocol.TextDocumentSyncKindIncremental
	caps.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &openClose,
		Change:    &change,
	}
	caps.HoverProvider = true
	caps.DefinitionProvider = true

	if params.RootURI != nil {
		s.config.Root = utils.UriToPath(*params.RootURI)
	} else if len(params.WorkspaceFolders) > 0 {
		s.config.Root = utils.UriToPath(params.WorkspaceFolders[0].URI)
	}
	s.log.Infof("workspace root %s", s.config.Root)

	return protocol.InitializeResult{
		Capabilities: caps,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error { return nil }
func (s *Server) shutdown(_ *glsp.Context) error                                   { return nil }
func (s *Server) setTrace(_ *glsp.Context, p *protocol.SetTraceParams) error {
	protocol.SetTraceValue(p.Value)
	return nil
}

func (s *Server) didOpen(ctx *glsp.Context, p *protocol.DidOpenTextDocumentParams) error {
	if !s.config.HasSourceExtension(utils.UriToPath(p.TextDocument.URI)) {
		return nil
	}
	if err := s.state.SetDocument(context.Background(), p.TextDocument.URI, p.TextDocument.Text, p.TextDocument.Version); err != nil {
		s.log.Warningf("%s", err.Error())
		return nil
	}
	s.publish(ctx)
	return nil
}

func (s *Server) didChange(ctx *glsp.Context, p *protocol.DidChangeTextDocumentParams) error {
	doc, ok := s.state.GetDocument(p.TextDocument.URI)
	if !ok {
		return nil
	}
	var text string
	doc.Read(func(current string, _ *analysis.Result) { text = current })

	for _, c := range p.ContentChanges {
		switch ch := c.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			text = ch.Text
		case protocol.TextDocumentContentChangeEvent:
			start := ch.Range.Start.IndexIn(text)
			end := ch.Range.End.IndexIn(text)
			if start >= 0 && end >= start && end <= len(text) {
				text = text[:start] + ch.Text + text[end:]
			}
		}
	}
	if err := s.state.SetDocument(context.Background(), p.TextDocument.URI, text, p.TextDocument.Version); err != nil {
		s.log.Warningf("%s", err.Error())
		return nil
	}
	s.publish(ctx)
	return nil
}

func (s *Server) didClose(ctx *glsp.Context, p *protocol.DidCloseTextDocumentParams) error {
	if _, ok := s.state.GetDocument(p.TextDocument.URI); !ok {
		return nil
	}
	s.state.DeleteDocument(p.TextDocument.URI)
	// Clear what was shown for the closed buffer.
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         p.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	s.publish(ctx)
	return nil
}

// publish re-analyzes the open documents and sends their diagnostics.
func (s *Server) publish(ctx *glsp.Context) {
	for _, doc := range s.state.Refresh(context.Background()) {
		var params protocol.PublishDiagnosticsParams
		doc.Read(func(text string, result *analysis.Result) {
			params = diagnosticsFor(doc.URI, text, result)
		})
		ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, params)
	}
}
