package usecases

import (
	"context"
	"errors"
	"github.com/practice-sem-2/chat-client/internal/models"
	storage "github.com/practice-sem-2/chat-client/internal/storages"
	"sync"
)

var (
	ErrNoRequest       = errors.New("there is no chat request with this user")
	ErrNotRecipient    = errors.New("only the recipient can answer a chat request")
	ErrRequestResolved = errors.New("chat request is already answered")
)

type GateDecision int

const (
	// GateOpen allows free-form messages.
	GateOpen GateDecision = iota
	// GateHandshakeSent means the send attempt created a pending request instead of a message.
	GateHandshakeSent
	// GateBlocked means a request exists but is not accepted.
	GateBlocked
)

func (d GateDecision) String() string {
	switch d {
	case GateOpen:
		return "open"
	case GateHandshakeSent:
		return "handshake sent"
	case GateBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Gate holds the chat request between the signed in user and the selected
// peer. Requests move none -> pending -> accepted|rejected and never back.
type Gate struct {
	registry storage.Registry

	mu      sync.RWMutex
	seq     uint64
	peer    string
	loaded  bool
	request *models.ChatRequest
}

func NewGate(r storage.Registry) *Gate {
	return &Gate{
		registry: r,
	}
}

// Load fetches the latest request between me and other in either direction.
// A nil request means the pair never exchanged one.
// A load superseded by a newer Load or Reset does not touch the gate state.
func (g *Gate) Load(ctx context.Context, me string, other string) (*models.ChatRequest, error) {
	g.mu.Lock()
	g.seq++
	seq := g.seq
	g.peer = other
	g.loaded = false
	g.request = nil
	g.mu.Unlock()

	req, err := g.registry.GetRequestsStore().GetLatestRequest(ctx, me, other)
	if errors.Is(err, storage.ErrRequestNotFound) {
		req, err = nil, nil
	}
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	if seq == g.seq {
		g.loaded = true
		g.request = req
	}
	g.mu.Unlock()

	return copyRequest(req), nil
}

// Reset forgets the loaded request, e.g. when a group gets selected.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	g.peer = ""
	g.loaded = false
	g.request = nil
}

func (g *Gate) Request() *models.ChatRequest {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return copyRequest(g.request)
}

// Check decides whether me may message other. Without a request it creates a
// pending one and the caller must not store the message. Only an accepted
// request is trusted from the cache, anything else is fetched again since the
// peer may have answered in the meantime.
func (g *Gate) Check(ctx context.Context, me string, other string) (GateDecision, error) {
	g.mu.RLock()
	seq := g.seq
	loaded := g.loaded && g.peer == other
	req := copyRequest(g.request)
	g.mu.RUnlock()

	var err error
	switch {
	case !loaded:
		req, err = g.Load(ctx, me, other)
	case req == nil || req.Status != models.RequestAccepted:
		req, err = g.refresh(ctx, seq, me, other)
	}
	if err != nil {
		return GateBlocked, err
	}

	switch {
	case req == nil:
		created, err := g.registry.GetRequestsStore().CreateRequest(ctx, me, other)
		if err != nil {
			return GateBlocked, err
		}
		g.set(other, created)
		return GateHandshakeSent, nil
	case req.Status != models.RequestAccepted:
		return GateBlocked, nil
	default:
		return GateOpen, nil
	}
}

// refresh refetches the request of a loaded peer. Unlike Load it keeps the
// cached request visible while the store call is in flight.
func (g *Gate) refresh(ctx context.Context, seq uint64, me string, other string) (*models.ChatRequest, error) {
	req, err := g.registry.GetRequestsStore().GetLatestRequest(ctx, me, other)
	if errors.Is(err, storage.ErrRequestNotFound) {
		req, err = nil, nil
	}
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	if seq == g.seq && g.peer == other {
		g.request = req
	}
	g.mu.Unlock()

	return copyRequest(req), nil
}

func (g *Gate) Accept(ctx context.Context, me string) error {
	return g.resolve(ctx, me, models.RequestAccepted)
}

func (g *Gate) Reject(ctx context.Context, me string) error {
	return g.resolve(ctx, me, models.RequestRejected)
}

func (g *Gate) resolve(ctx context.Context, me string, status models.RequestStatus) error {
	g.mu.RLock()
	peer := g.peer
	req := copyRequest(g.request)
	g.mu.RUnlock()

	switch {
	case req == nil:
		return ErrNoRequest
	case req.RecipientID != me:
		return ErrNotRecipient
	case req.Status.IsTerminal():
		return ErrRequestResolved
	}

	err := g.registry.GetRequestsStore().SetRequestStatus(ctx, req.ID, me, status)
	if errors.Is(err, storage.ErrRequestNotFound) {
		return ErrRequestResolved
	} else if err != nil {
		return err
	}

	req.Status = status
	g.set(peer, req)
	return nil
}

// set stores req unless the peer changed while the store call was in flight.
func (g *Gate) set(peer string, req *models.ChatRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.peer != peer {
		return
	}
	g.loaded = true
	g.request = req
}

func copyRequest(r *models.ChatRequest) *models.ChatRequest {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
