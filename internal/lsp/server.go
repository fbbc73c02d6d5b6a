package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"sqlbridge/internal/lint"
	"sqlbridge/internal/lintcfg"
	"sqlbridge/internal/schedule"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// ServerOptions configures LSP server behavior.
type ServerOptions struct {
	// Settings are the effective settings at startup; workspace
	// configuration pushes override them at runtime.
	Settings lintcfg.Settings
	// Run overrides the process runner, for tests.
	Run   lint.RunProcess
	Cache *lint.Cache
	Log   zerolog.Logger
}

type document struct {
	text    string
	version int
	// saved reports whether text matches the on-disk content.
	saved bool
}

// Server handles stdio JSON-RPC for the sqlbridge LSP.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex
	log    zerolog.Logger

	mu                sync.Mutex
	docs              map[string]*document
	published         map[string]struct{}
	settings          lintcfg.Settings
	workspaceRoot     string
	shutdownRequested bool

	baseCtx context.Context
	sched   *schedule.Scheduler
	lint    *lint.Service
}

// NewServer constructs a new LSP server.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	st := opts.Settings
	if st.Command == "" {
		st = lintcfg.Default()
	}
	s := &Server{
		in:        bufio.NewReader(in),
		out:       bufio.NewWriter(out),
		log:       opts.Log,
		docs:      make(map[string]*document),
		published: make(map[string]struct{}),
		settings:  st,
	}
	s.lint = lint.NewService(lint.Options{
		Settings: s.currentSettings,
		Run:      opts.Run,
		Notify:   s.notify,
		Cache:    opts.Cache,
		Log:      opts.Log,
	})
	s.sched = schedule.New(schedule.Options{
		MaxConcurrent: st.MaxConcurrent,
		Version:       s.docVersion,
		Run:           s.runJob,
		Log:           opts.Log,
	})
	return s
}

// Run serves LSP requests until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	defer s.sched.Close()
	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.log.Warn().Err(err).Msg("failed to parse message")
			continue
		}
		if msg.Method == "" {
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		if s.shutdownRequested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "sqlbridge/lintDocument":
		return s.handleLintDocument(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, -32601, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	root := ""
	if params.RootURI != "" {
		root = uriToPath(params.RootURI)
	}
	if root == "" && params.RootPath != "" {
		root = params.RootPath
	}
	if root == "" && len(params.WorkspaceFolders) > 0 {
		root = uriToPath(params.WorkspaceFolders[0].URI)
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	s.mu.Lock()
	s.workspaceRoot = root
	s.mu.Unlock()

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    2,
				Save: saveOptions{
					IncludeText: true,
				},
			},
		},
	}
	return s.sendResponse(msg.ID, result)
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	uris := make([]string, 0, len(s.published))
	for uri := range s.published {
		uris = append(uris, uri)
	}
	s.published = make(map[string]struct{})
	s.mu.Unlock()
	for _, uri := range uris {
		s.sched.Clear(uri)
		if err := s.sendPublish(uri, nil); err != nil {
			s.log.Warn().Err(err).Str("uri", uri).Msg("failed to clear diagnostics")
		}
	}
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	s.docs[uri] = &document{
		text:    params.TextDocument.Text,
		version: params.TextDocument.Version,
		saved:   true,
	}
	s.mu.Unlock()
	s.sched.Request(uri, schedule.ReasonOpen, params.TextDocument.Version, 0)
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	doc, ok := s.docs[uri]
	if !ok {
		doc = &document{}
		s.docs[uri] = doc
	}
	doc.text = applyChanges(doc.text, params.ContentChanges)
	doc.version = params.TextDocument.Version
	doc.saved = false
	debounce := s.settings.Debounce
	s.mu.Unlock()
	s.sched.Request(uri, schedule.ReasonType, params.TextDocument.Version, debounce)
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	doc, ok := s.docs[uri]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if params.Text != nil {
		doc.text = *params.Text
	}
	doc.saved = true
	version := doc.version
	s.mu.Unlock()
	s.sched.Request(uri, schedule.ReasonSave, version, 0)
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	delete(s.docs, uri)
	_, hadDiagnostics := s.published[uri]
	delete(s.published, uri)
	s.mu.Unlock()
	s.sched.Clear(uri)
	if hadDiagnostics {
		if err := s.sendPublish(uri, nil); err != nil {
			s.log.Warn().Err(err).Str("uri", uri).Msg("failed to clear diagnostics")
		}
	}
	return nil
}

// handleLintDocument serves the sqlbridge/lintDocument request: an explicit
// editor command that lints the latest content immediately, skipping
// debounce and the overflow queue. The response carries the result count.
func (s *Server) handleLintDocument(msg *rpcMessage) error {
	var params lintDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return s.sendError(msg.ID, -32602, "invalid document uri")
	}
	s.mu.Lock()
	doc, ok := s.docs[uri]
	var version int
	if ok {
		version = doc.version
	}
	s.mu.Unlock()
	if !ok {
		return s.sendError(msg.ID, -32803, "document not open")
	}
	done := s.sched.Request(uri, schedule.ReasonManual, version, 0)
	id := append(json.RawMessage(nil), msg.ID...)
	go func() {
		count := <-done
		if err := s.sendResponse(id, lintDocumentResult{Count: count}); err != nil {
			s.log.Warn().Err(err).Str("uri", uri).Msg("failed to answer lint request")
		}
	}()
	return nil
}

// docVersion feeds the scheduler's staleness checks.
func (s *Server) docVersion(uri string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return 0, false
	}
	return doc.version, true
}

func (s *Server) currentSettings() lintcfg.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *Server) notify(level lint.NoticeLevel, message string) {
	msgType := 2
	if level == lint.NoticeError {
		msgType = 1
	}
	if err := s.showMessage(msgType, message); err != nil {
		s.log.Warn().Err(err).Msg("failed to send notice")
	}
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) sendPublish(uri string, list []lspDiagnostic) error {
	if list == nil {
		list = []lspDiagnostic{}
	}
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  "textDocument/publishDiagnostics",
		"params": publishDiagnosticsParams{
			URI:         uri,
			Diagnostics: list,
		},
	}
	return s.send(msg)
}

func (s *Server) showMessage(msgType int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  "window/showMessage",
		"params": showMessageParams{
			Type:    msgType,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}
