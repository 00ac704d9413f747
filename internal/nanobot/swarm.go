package nanobot

import (
	"sort"
	"sync"
	"time"

	"github.com/iff-guardian/nanoguard/internal/domain"
)

// pollInterval is how long the swarm worker sleeps between drains of an
// empty submission queue.
const pollInterval = 50 * time.Millisecond

// ManagerStats summarizes the swarm's lifetime activity.
type ManagerStats struct {
	RegisteredAgents int
	ActiveAgents     int
	EventsProcessed  int
	ActionsTaken     int
	Running          bool
}

// Manager coordinates a set of agents: registration, activation by mode,
// immediate dispatch, and a background worker that drains a submission
// queue. Grounded on the swarm manager.
type Manager struct {
	mu     sync.RWMutex
	agents map[string]*Agent

	qmu   sync.Mutex
	queue []domain.Event

	statsMu         sync.Mutex
	eventsProcessed int
	actionsTaken    int

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewManager constructs an empty swarm manager.
func NewManager() *Manager {
	return &Manager{agents: make(map[string]*Agent)}
}

// Register adds agent to the swarm, replacing any prior agent with the
// same ID.
func (m *Manager) Register(agent *Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[agent.ID()] = agent
}

// Unregister deactivates and removes the agent with the given id,
// reporting whether it existed.
func (m *Manager) Unregister(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[id]
	if !ok {
		return false
	}
	agent.Deactivate()
	delete(m.agents, id)
	return true
}

// GetByMode returns every registered agent operating in the given mode.
func (m *Manager) GetByMode(mode domain.NanobotMode) []*Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Agent
	for _, agent := range m.agents {
		if agent.Mode() == mode {
			out = append(out, agent)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ActivateAll activates every registered agent.
func (m *Manager) ActivateAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, agent := range m.agents {
		agent.Activate()
	}
}

// DeactivateAll deactivates every registered agent.
func (m *Manager) DeactivateAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, agent := range m.agents {
		agent.Deactivate()
	}
}

// ActivateMode activates every agent in the given mode.
func (m *Manager) ActivateMode(mode domain.NanobotMode) {
	for _, agent := range m.GetByMode(mode) {
		agent.Activate()
	}
}

// DeactivateMode deactivates every agent in the given mode.
func (m *Manager) DeactivateMode(mode domain.NanobotMode) {
	for _, agent := range m.GetByMode(mode) {
		agent.Deactivate()
	}
}

// Submit queues event for the background worker to process.
func (m *Manager) Submit(event domain.Event) {
	m.qmu.Lock()
	m.queue = append(m.queue, event)
	m.qmu.Unlock()
}

// Process dispatches event immediately to every active agent able to
// handle it, collecting the non-nil results.
func (m *Manager) Process(event domain.Event) []domain.ActionResult {
	m.mu.RLock()
	agents := make([]*Agent, 0, len(m.agents))
	for _, agent := range m.agents {
		agents = append(agents, agent)
	}
	m.mu.RUnlock()

	var results []domain.ActionResult
	for _, agent := range agents {
		result, err := agent.Process(event)
		if err != nil || result == nil {
			continue
		}
		results = append(results, *result)
	}

	m.statsMu.Lock()
	m.eventsProcessed++
	m.actionsTaken += len(results)
	m.statsMu.Unlock()

	return results
}

// Start launches the background worker that drains the submission queue.
// It is a no-op if already running.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	go m.run()
}

// Stop halts the background worker and waits for it to exit. It is a
// no-op if not running.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	stopCh := m.stopCh
	doneCh := m.doneCh
	m.running = false
	m.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (m *Manager) run() {
	defer close(m.doneCh)
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		m.qmu.Lock()
		pending := m.queue
		m.queue = nil
		m.qmu.Unlock()

		if len(pending) == 0 {
			time.Sleep(pollInterval)
			continue
		}

		for _, event := range pending {
			m.Process(event)
		}
	}
}

// Stats reports the swarm's current registration, activation, and
// processing totals.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	active := 0
	for _, agent := range m.agents {
		if agent.IsActive() {
			active++
		}
	}
	registered := len(m.agents)
	running := m.running
	m.mu.RUnlock()

	m.statsMu.Lock()
	processed, actions := m.eventsProcessed, m.actionsTaken
	m.statsMu.Unlock()

	return ManagerStats{
		RegisteredAgents: registered,
		ActiveAgents:     active,
		EventsProcessed:  processed,
		ActionsTaken:     actions,
		Running:          running,
	}
}

// RecentActions merges each agent's recent action history and returns up
// to limit of the newest results across the whole swarm.
func (m *Manager) RecentActions(limit int) []domain.ActionResult {
	m.mu.RLock()
	var all []domain.ActionResult
	for _, agent := range m.agents {
		all = append(all, agent.RecentActions(0)...)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	return all[:limit]
}

// ClearHistory clears every registered agent's action history.
func (m *Manager) ClearHistory() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, agent := range m.agents {
		agent.ClearHistory()
	}
}
