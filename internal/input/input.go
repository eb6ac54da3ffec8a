// Package input carries controller events from pads to the engine.
//
// A Source owns a set of connected Pads. A Manager watches any number of
// sources, subscribes to every pad they connect and fans pad activity out to
// its listeners as Events.
package input

import (
	"errors"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/FabianRolfMatthiasNoll/jemu/internal/abi"
)

var ErrUnknownPad = errors.New("input: pad not connected to source")

// EventType distinguishes digital button edges from analog changes.
type EventType int

const (
	ButtonPress EventType = iota
	ButtonRelease
	ValueChange
)

func (t EventType) String() string {
	switch t {
	case ButtonPress:
		return "press"
	case ButtonRelease:
		return "release"
	case ValueChange:
		return "change"
	}
	return "unknown"
}

// Event is one controller state change.
type Event struct {
	Type    EventType
	Control abi.Control
	Player  int
	Value   float32
	Pressed bool
}

// Listener receives manager events.
type Listener interface {
	HandleGamePadEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) HandleGamePadEvent(e Event) { f(e) }

// subscribers holds callbacks keyed by subscription id behind a mutex.
// Senders work on a snapshot, so a callback may subscribe or cancel.
type subscribers[F any] struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]F
}

func (s *subscribers[F]) add(fn F) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[uint64]F)
	}
	id := s.next
	s.next++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers[F]) snapshot() []F {
	s.mu.Lock()
	defer s.mu.Unlock()
	// subscription order
	ids := slices.Sorted(maps.Keys(s.subs))
	out := make([]F, len(ids))
	for i, id := range ids {
		out[i] = s.subs[id]
	}
	return out
}

func (s *subscribers[F]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Pad is one controller. Drivers call Press, Release and Change; subscribers
// see the resulting events in order.
type Pad struct {
	name   string
	player int
	subs   subscribers[func(*Pad, Event)]
}

// NewPad returns a pad reporting events for player.
func NewPad(name string, player int) *Pad {
	return &Pad{name: name, player: player}
}

func (p *Pad) Name() string { return p.name }
func (p *Pad) Player() int  { return p.player }

// Subscribe registers fn and returns a function that removes it.
func (p *Pad) Subscribe(fn func(*Pad, Event)) (cancel func()) { return p.subs.add(fn) }

func (p *Pad) Press(c abi.Control) {
	p.send(Event{Type: ButtonPress, Control: c, Player: p.player, Value: 1, Pressed: true})
}

func (p *Pad) Release(c abi.Control) {
	p.send(Event{Type: ButtonRelease, Control: c, Player: p.player, Value: 0, Pressed: false})
}

// Change reports an analog value for c.
func (p *Pad) Change(c abi.Control, value float32, pressed bool) {
	p.send(Event{Type: ValueChange, Control: c, Player: p.player, Value: value, Pressed: pressed})
}

func (p *Pad) send(e Event) {
	for _, fn := range p.subs.snapshot() {
		fn(p, e)
	}
}

// SourceListener is told about pads coming and going.
type SourceListener interface {
	PadConnected(*Pad)
	PadDisconnected(*Pad)
}

// Source is a set of connected pads, for example the keyboard or a
// platform controller API.
type Source struct {
	name string

	mu   sync.Mutex
	pads []*Pad
	subs subscribers[SourceListener]
}

func NewSource(name string) *Source { return &Source{name: name} }

func (s *Source) Name() string { return s.name }

// Subscribe registers l and returns a function that removes it.
func (s *Source) Subscribe(l SourceListener) (cancel func()) { return s.subs.add(l) }

// Connect adds p and notifies listeners. It reports false if p was already
// connected.
func (s *Source) Connect(p *Pad) bool {
	s.mu.Lock()
	for _, q := range s.pads {
		if q == p {
			s.mu.Unlock()
			return false
		}
	}
	s.pads = append(s.pads, p)
	s.mu.Unlock()

	for _, l := range s.subs.snapshot() {
		l.PadConnected(p)
	}
	return true
}

// Disconnect removes p and notifies listeners.
func (s *Source) Disconnect(p *Pad) error {
	s.mu.Lock()
	idx := -1
	for i, q := range s.pads {
		if q == p {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrUnknownPad
	}
	s.pads = append(s.pads[:idx], s.pads[idx+1:]...)
	s.mu.Unlock()

	for _, l := range s.subs.snapshot() {
		l.PadDisconnected(p)
	}
	return nil
}

// Pads returns the connected pads.
func (s *Source) Pads() []*Pad {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Pad(nil), s.pads...)
}

// Pad returns the pad at index or nil.
func (s *Source) Pad(index int) *Pad {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.pads) {
		return nil
	}
	return s.pads[index]
}

// Manager turns pad activity from all its sources into Events.
type Manager struct {
	log *zap.Logger

	mu      sync.Mutex
	sources map[*Source]func()
	pads    map[*Pad]func()

	listeners subscribers[Listener]
}

// NewManager returns a manager with no sources. A nil logger disables
// logging.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		log:     log,
		sources: make(map[*Source]func()),
		pads:    make(map[*Pad]func()),
	}
}

// AddSource watches s and every pad already connected to it. Adding the
// same source twice does nothing.
func (m *Manager) AddSource(s *Source) {
	m.mu.Lock()
	if _, ok := m.sources[s]; ok {
		m.mu.Unlock()
		return
	}
	m.sources[s] = s.Subscribe(m)
	m.mu.Unlock()

	for _, p := range s.Pads() {
		m.PadConnected(p)
	}
}

// AddListener registers l and returns a function that removes it.
func (m *Manager) AddListener(l Listener) (cancel func()) { return m.listeners.add(l) }

func (m *Manager) PadConnected(p *Pad) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pads[p]; ok {
		return
	}
	m.log.Debug("gamepad connected", zap.String("pad", p.Name()), zap.Int("player", p.Player()))
	m.pads[p] = p.Subscribe(m.forward)
}

func (m *Manager) PadDisconnected(p *Pad) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancel, ok := m.pads[p]
	if !ok {
		return
	}
	m.log.Debug("gamepad disconnected", zap.String("pad", p.Name()))
	cancel()
	delete(m.pads, p)
}

func (m *Manager) forward(_ *Pad, e Event) {
	for _, l := range m.listeners.snapshot() {
		l.HandleGamePadEvent(e)
	}
}

// Close detaches the manager from every source and pad.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for s, cancel := range m.sources {
		cancel()
		delete(m.sources, s)
	}
	for p, cancel := range m.pads {
		cancel()
		delete(m.pads, p)
	}
	return nil
}
