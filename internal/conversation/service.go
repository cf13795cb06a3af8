// ABOUTME: Session orchestrator: connection lifecycle, session cache, prompt submission.
// ABOUTME: The server is authoritative; this layer heals its own stale caches.

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/opencode-client/internal/api"
	"github.com/2389/opencode-client/internal/apierr"
	"github.com/2389/opencode-client/internal/eventstream"
	"github.com/2389/opencode-client/internal/transport"
)

const (
	// DefaultServerPort is the well-known port probed before asking the
	// supervisor to launch a server.
	DefaultServerPort = 4096

	defaultHistoryLimit = 100

	healthPath   = "/global/health"
	agentPath    = "/agent"
	providerPath = "/provider"
	sessionPath  = "/session"

	// Budget for the history refetch triggered by idle/finish events.
	backgroundRefetchTimeout = 30 * time.Second
)

// Config carries the caller-supplied settings. Zero values get sensible
// defaults.
type Config struct {
	Host         string
	DefaultPort  int
	HistoryLimit int

	// StreamOptions tune the event stream; tests use them to shrink
	// backoff delays.
	StreamOptions []eventstream.Option
}

// Service is the orchestrator: the single owner of connection state, the
// active session id, conversation history, and the processing flag.
type Service struct {
	cfg        Config
	transport  *transport.Client
	stream     *eventstream.Stream
	supervisor Supervisor
	notifier   *Notifier
	logger     *slog.Logger

	// promptMu serializes prompt submission per instance.
	promptMu sync.Mutex

	// mu guards everything below.
	mu            sync.Mutex
	state         ConnectionState
	stateReason   string
	serverVersion string
	sessionID     string
	agents        []api.Agent
	providers     []api.Provider
	defaultModels map[string]string
	history       []api.MessageWithParts
	processing    bool
	streamText    string
	lastFailure   string
	promptCancel  context.CancelFunc
	streamCancel  context.CancelFunc
}

// New creates a Service. supervisor may be nil, in which case connect()
// only ever adopts an already-running server. Pass nil logger for default.
func New(cfg Config, supervisor Supervisor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.DefaultPort == 0 {
		cfg.DefaultPort = DefaultServerPort
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}

	tp := transport.New(cfg.Host, 0, logger)
	return &Service{
		cfg:        cfg,
		transport:  tp,
		stream:     eventstream.New(tp, logger, cfg.StreamOptions...),
		supervisor: supervisor,
		notifier:   NewNotifier(logger),
		logger:     logger.With("component", "conversation"),
	}
}

// Notifier exposes the state-change subscription surface.
func (s *Service) Notifier() *Notifier {
	return s.notifier
}

// Connect resolves a server (adopting one already listening on the
// default port before asking the supervisor to start one), verifies its
// health, loads the agent and provider catalogs, and starts the event
// stream. Calling while already Connecting or Connected is a no-op.
func (s *Service) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateConnecting || s.state == StateConnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.stateReason = ""
	s.mu.Unlock()
	s.notifier.Publish(Change{Kind: ChangeState})

	if err := s.connect(ctx); err != nil {
		s.failConnect(err)
		return err
	}
	return nil
}

func (s *Service) connect(ctx context.Context) error {
	health, err := s.resolveServer(ctx)
	if err != nil {
		return err
	}
	if !health.Healthy {
		return apierr.Unknown("server reported unhealthy")
	}

	// A new or rediscovered server invalidates any cached session.
	s.mu.Lock()
	s.serverVersion = health.Version
	s.sessionID = ""
	s.mu.Unlock()

	agents, providers, defaults, err := s.loadCatalogs(ctx)
	if err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	ch := s.stream.Subscribe(streamCtx)

	s.mu.Lock()
	s.agents = agents
	s.providers = providers
	s.defaultModels = defaults
	s.streamCancel = cancel
	s.state = StateConnected
	s.mu.Unlock()
	s.notifier.Publish(Change{Kind: ChangeState})

	s.logger.Info("connected",
		"port", s.transport.Port(),
		"server_version", health.Version,
		"agents", len(agents),
		"providers", len(providers))

	go s.eventLoop(ch)
	return nil
}

// resolveServer probes the configured port first so an already-running
// server is adopted rather than duplicated, and falls back to the
// supervisor only when nothing answers.
func (s *Service) resolveServer(ctx context.Context) (api.Health, error) {
	if s.transport.Port() == 0 {
		s.transport.SetPort(s.cfg.DefaultPort)
	}

	health, err := transport.Get[api.Health](ctx, s.transport, healthPath)
	if err == nil {
		return health, nil
	}

	var cerr *apierr.Error
	unreachable := apierr.AsError(err, &cerr) &&
		(cerr.Kind == apierr.KindServerNotRunning || cerr.Kind == apierr.KindNetwork)
	if !unreachable || s.supervisor == nil {
		return api.Health{}, err
	}

	port, workDir, err := s.supervisor.Start(ctx)
	if err != nil {
		return api.Health{}, fmt.Errorf("starting server: %w", err)
	}
	s.logger.Info("server launched by supervisor", "port", port, "working_dir", workDir)
	s.transport.SetPort(port)

	return transport.Get[api.Health](ctx, s.transport, healthPath)
}

// loadCatalogs fetches agents and providers concurrently. Agents are
// filtered to those a user may select directly; providers are restricted
// to the ones the server reports as connected.
func (s *Service) loadCatalogs(ctx context.Context) ([]api.Agent, []api.Provider, map[string]string, error) {
	var agents []api.Agent
	var providers []api.Provider
	var defaults map[string]string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		all, err := transport.Get[[]api.Agent](gctx, s.transport, agentPath)
		if err != nil {
			return err
		}
		for _, a := range all {
			if a.Selectable() {
				agents = append(agents, a)
			}
		}
		return nil
	})
	g.Go(func() error {
		list, err := transport.Get[api.ProviderList](gctx, s.transport, providerPath)
		if err != nil {
			return err
		}
		connected := make(map[string]bool, len(list.Connected))
		for _, id := range list.Connected {
			connected[id] = true
		}
		for _, p := range list.All {
			if connected[p.ID] {
				providers = append(providers, p)
			}
		}
		defaults = list.Default
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return agents, providers, defaults, nil
}

func (s *Service) failConnect(err error) {
	reason := err.Error()
	var cerr *apierr.Error
	if apierr.AsError(err, &cerr) {
		reason = cerr.Label()
	}

	s.logger.Error("connect failed", "error", err)

	s.mu.Lock()
	s.state = StateError
	s.stateReason = reason
	s.mu.Unlock()
	s.notifier.Publish(Change{Kind: ChangeState, Message: reason})
}

// Disconnect tears down the event stream, abandons any in-flight prompt,
// and resets all orchestrator-owned state. The server itself is left
// running.
func (s *Service) Disconnect() {
	s.mu.Lock()
	if s.streamCancel != nil {
		s.streamCancel()
		s.streamCancel = nil
	}
	if s.promptCancel != nil {
		s.promptCancel()
		s.promptCancel = nil
	}
	s.state = StateDisconnected
	s.stateReason = ""
	s.serverVersion = ""
	s.sessionID = ""
	s.agents = nil
	s.providers = nil
	s.defaultModels = nil
	s.history = nil
	s.processing = false
	s.streamText = ""
	s.mu.Unlock()

	s.notifier.Publish(Change{Kind: ChangeState})
	s.logger.Info("disconnected")
}

// getOrCreateSession returns the active session id, verifying a cached id
// still exists server-side before trusting it. A lost session costs at
// most one extra round trip and its id is never reused.
func (s *Service) getOrCreateSession(ctx context.Context) (string, error) {
	s.mu.Lock()
	cached := s.sessionID
	s.mu.Unlock()

	if cached != "" {
		_, err := transport.Get[api.Session](ctx, s.transport, sessionPath+"/"+cached)
		if err == nil {
			return cached, nil
		}
		if !apierr.IsNotFound(err) {
			return "", err
		}
		s.logger.Info("cached session no longer exists", "session_id", cached)
		s.mu.Lock()
		if s.sessionID == cached {
			s.sessionID = ""
		}
		s.mu.Unlock()
	}

	sess, err := transport.Post[api.Session](ctx, s.transport, sessionPath, api.CreateSessionRequest{})
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.sessionID = sess.ID
	s.mu.Unlock()
	s.logger.Info("session created", "session_id", sess.ID)
	return sess.ID, nil
}

// SubmitPrompt sends a prompt and returns the newline-joined text of the
// response's text parts. It requires a Connected state, resolves or
// creates the session, and after the blocking call triggers one full
// history refetch to pick up tool-call updates the response didn't carry.
// Failures clear the processing flag and propagate; retry policy belongs
// to the caller.
func (s *Service) SubmitPrompt(ctx context.Context, parts []api.PromptPart, agentName string) (string, error) {
	s.promptMu.Lock()
	defer s.promptMu.Unlock()

	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return "", apierr.ServerNotRunning()
	}
	if agentName != "" && !s.hasAgentLocked(agentName) {
		s.mu.Unlock()
		return "", apierr.AgentNotFound(agentName)
	}
	pctx, cancel := context.WithCancel(ctx)
	s.promptCancel = cancel
	s.processing = true
	s.streamText = ""
	s.mu.Unlock()
	s.notifier.Publish(Change{Kind: ChangeProcessing})
	s.notifier.Publish(Change{Kind: ChangeStreaming})

	defer func() {
		cancel()
		s.mu.Lock()
		s.promptCancel = nil
		s.mu.Unlock()
	}()

	text, err := s.submit(pctx, parts, agentName)
	s.clearProcessing()
	if err != nil {
		return "", err
	}

	if err := s.refreshHistory(ctx); err != nil {
		// The prompt itself succeeded; reconciliation will also happen on
		// the next idle event.
		s.logger.Warn("history refetch after prompt failed", "error", err)
	}
	return text, nil
}

func (s *Service) submit(ctx context.Context, parts []api.PromptPart, agentName string) (string, error) {
	sid, err := s.getOrCreateSession(ctx)
	if err != nil {
		return "", err
	}

	resp, err := transport.Post[api.MessageWithParts](ctx, s.transport,
		sessionPath+"/"+sid+"/message",
		api.PromptRequest{Parts: parts, Agent: agentName})
	if err != nil {
		return "", err
	}
	return resp.TextContent(), nil
}

func (s *Service) hasAgentLocked(name string) bool {
	for _, a := range s.agents {
		if a.Name == name {
			return true
		}
	}
	return false
}

func (s *Service) clearProcessing() {
	s.mu.Lock()
	changed := s.processing
	s.processing = false
	s.mu.Unlock()
	if changed {
		s.notifier.Publish(Change{Kind: ChangeProcessing})
	}
}

// refreshHistory rebuilds the conversation history wholesale from the
// server's message list for the active session.
func (s *Service) refreshHistory(ctx context.Context) error {
	s.mu.Lock()
	sid := s.sessionID
	limit := s.cfg.HistoryLimit
	s.mu.Unlock()
	if sid == "" {
		return apierr.NoActiveSession()
	}

	path := fmt.Sprintf("%s/%s/message?limit=%d", sessionPath, sid, limit)
	msgs, err := transport.Get[[]api.MessageWithParts](ctx, s.transport, path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	// The session may have been switched while the fetch was in flight.
	if s.sessionID != sid {
		s.mu.Unlock()
		return nil
	}
	s.history = msgs
	s.mu.Unlock()
	s.notifier.Publish(Change{Kind: ChangeHistory})
	return nil
}

// Abort cancels any in-flight prompt client-side, best-effort signals the
// server abort endpoint, and unconditionally clears the processing flag.
// The server call is a courtesy: its failure is swallowed.
func (s *Service) Abort(ctx context.Context) {
	s.mu.Lock()
	if s.promptCancel != nil {
		s.promptCancel()
		s.promptCancel = nil
	}
	sid := s.sessionID
	s.mu.Unlock()

	if sid != "" {
		if _, err := s.transport.PostBool(ctx, sessionPath+"/"+sid+"/abort", nil); err != nil {
			s.logger.Debug("abort request failed", "session_id", sid, "error", err)
		}
	}
	s.clearProcessing()
}

// NewSession drops the cached session id and resets the conversation. The
// next prompt mints a fresh session lazily.
func (s *Service) NewSession() {
	s.mu.Lock()
	s.sessionID = ""
	s.history = nil
	s.streamText = ""
	s.lastFailure = ""
	s.mu.Unlock()

	s.notifier.Publish(Change{Kind: ChangeHistory})
	s.notifier.Publish(Change{Kind: ChangeStreaming})
	s.logger.Info("conversation reset")
}

// ListSessions fetches all sessions known to the server.
func (s *Service) ListSessions(ctx context.Context) ([]api.Session, error) {
	if state, _ := s.State(); state != StateConnected {
		return nil, apierr.ServerNotRunning()
	}
	return transport.Get[[]api.Session](ctx, s.transport, sessionPath)
}

// DeleteSession removes a session server-side. Deleting the active
// session also resets the local conversation.
func (s *Service) DeleteSession(ctx context.Context, id string) (bool, error) {
	ok, err := s.transport.DeleteBool(ctx, sessionPath+"/"+id)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	active := s.sessionID == id
	s.mu.Unlock()
	if ok && active {
		s.NewSession()
	}
	return ok, nil
}

// State returns the connection state and, for StateError, its reason.
func (s *Service) State() (ConnectionState, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.stateReason
}

// ServerVersion returns the version reported by the last health check.
func (s *Service) ServerVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverVersion
}

// ActiveSessionID returns the cached session id, or empty.
func (s *Service) ActiveSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Processing reports whether a prompt is in flight.
func (s *Service) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// StreamingText returns the accumulated streaming buffer for the active
// prompt.
func (s *Service) StreamingText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamText
}

// LastFailure returns the most recent server-reported session error.
func (s *Service) LastFailure() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFailure
}

// Agents returns the selectable agent catalog.
func (s *Service) Agents() []api.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Agent, len(s.agents))
	copy(out, s.agents)
	return out
}

// Providers returns the connected provider catalog.
func (s *Service) Providers() []api.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Provider, len(s.providers))
	copy(out, s.providers)
	return out
}

// Models flattens the provider catalog into sorted composite model refs.
func (s *Service) Models() []api.ModelRef {
	s.mu.Lock()
	defer s.mu.Unlock()

	var refs []api.ModelRef
	for _, p := range s.providers {
		for id := range p.Models {
			refs = append(refs, api.ModelRef{ProviderID: p.ID, ModelID: id})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })
	return refs
}

// DefaultModel returns the server's default model for a provider.
func (s *Service) DefaultModel(providerID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.defaultModels[providerID]
	return id, ok
}

// History returns a snapshot of the conversation history in server order.
func (s *Service) History() []api.MessageWithParts {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.MessageWithParts, len(s.history))
	copy(out, s.history)
	return out
}
