// Package session hosts editor sessions over websockets. Every project with
// at least one connected client has a room owning a single editor.Session;
// commands from any client mutate it and every redraw is pushed to all of
// the room's clients as a draw list.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/document"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/editor"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/typeid"
)

// PlaygroundProjectID is an anonymous scratch project that is never loaded
// or saved.
const PlaygroundProjectID = "proj_playground"

const saveTimeout = 10 * time.Second

var ErrNotPersisted = errors.New("playground projects are not saved")

// Persister loads and stores project documents. Access control happens
// before a client is registered.
type Persister interface {
	LoadDocument(ctx context.Context, projectID string) (*document.Document, error)
	SaveDocument(ctx context.Context, projectID string, doc *document.Document) error
}

type Room struct {
	id        string
	projectID string
	clients   map[string]*Client // clientID -> client
	editor    *editor.Session
	redraw    chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc

	ready   bool          // guarded by Hub.mu
	loaded  chan struct{} // closed once the document load has finished
	loadErr error
}

type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room         // projectID -> room
	closing    map[string]chan struct{} // projectID -> closed when its last save is done
	closers    sync.WaitGroup
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopped    chan struct{}

	persist   Persister
	editorCfg editor.Config
}

func NewHub(persist Persister, editorCfg editor.Config) *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		closing:    make(map[string]chan struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
		persist:    persist,
		editorCfg:  editorCfg,
	}
}

func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.stop:
			h.closeAll()
			return
		}
	}
}

// Stop saves every open room and disconnects all clients.
func (h *Hub) Stop() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
	<-h.stopped
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stopped:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// addClient joins client to its project's room. A new room loads in the
// background; its clients are greeted once the load has finished.
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.ProjectID]
	if !ok {
		room = h.newRoom(client.ProjectID)
		h.rooms[client.ProjectID] = room
		go h.openRoom(room, h.closing[client.ProjectID])
	}
	room.clients[client.ClientID] = client
	ready := room.ready
	h.mu.Unlock()

	slog.Info("client joined", "user", client.UserID, "project", client.ProjectID)
	if ready {
		greet(room, client)
	}
}

func (h *Hub) newRoom(projectID string) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	return &Room{
		id:        typeid.NewSessionID(),
		projectID: projectID,
		clients:   make(map[string]*Client),
		editor:    editor.New(h.editorCfg),
		redraw:    make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		loaded:    make(chan struct{}),
	}
}

func greet(room *Room, client *Client) {
	size := room.editor.Canvas().Size()
	client.Send(mustMessage(TypeWelcome, 0, WelcomePayload{
		ClientID:  client.ClientID,
		ProjectID: client.ProjectID,
		Width:     int(size.Width),
		Height:    int(size.Height),
	}))
	client.Send(renderMessage(room))
}

// openRoom restores the project's document into the room's editor, after
// the save of a previous room for the same project (prev) has finished.
// Images that can no longer be loaded are skipped.
func (h *Hub) openRoom(room *Room, prev <-chan struct{}) {
	if prev != nil {
		<-prev
	}
	room.loadErr = h.loadRoom(room)
	close(room.loaded)

	if room.loadErr != nil {
		slog.Error("open editor room", "project", room.projectID, "error", room.loadErr)
		h.mu.Lock()
		if h.rooms[room.projectID] == room {
			delete(h.rooms, room.projectID)
		}
		clients := room.clients
		room.clients = make(map[string]*Client)
		h.mu.Unlock()

		for _, c := range clients {
			c.Send(errorMessage(0, "", "failed to load project"))
			c.close()
		}
		room.cancel()
		return
	}

	// The listener runs inside editor mutations; it only signals.
	room.editor.OnRender(func(uint64) {
		select {
		case room.redraw <- struct{}{}:
		default:
		}
	})
	go h.renderLoop(room)

	h.mu.Lock()
	room.ready = true
	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	slog.Info("editor session opened", "session", room.id, "project", room.projectID)
	for _, c := range clients {
		greet(room, c)
	}
}

func (h *Hub) loadRoom(room *Room) error {
	if room.projectID == PlaygroundProjectID || h.persist == nil {
		return nil
	}
	doc, err := h.persist.LoadDocument(room.ctx, room.projectID)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	var report *document.LoadReport
	if err := room.editor.Load(room.ctx, doc); err != nil && !errors.As(err, &report) {
		return err
	}
	return nil
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.ProjectID]
	if !ok || room.clients[client.ClientID] != client {
		h.mu.Unlock()
		return
	}

	delete(room.clients, client.ClientID)
	client.close()

	empty := len(room.clients) == 0
	if empty {
		delete(h.rooms, client.ProjectID)
		h.closeRoom(room)
	}
	h.mu.Unlock()

	slog.Info("client left", "user", client.UserID, "project", client.ProjectID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]*Room)
	for _, room := range rooms {
		for _, c := range room.clients {
			c.close()
		}
		h.closeRoom(room)
	}
	h.mu.Unlock()

	h.closers.Wait()
}

// closeRoom saves the room in the background once its load has settled and
// then stops its render loop. A room reopened for the same project waits
// for that save. Caller holds h.mu.
func (h *Hub) closeRoom(room *Room) {
	done := make(chan struct{})
	prev := h.closing[room.projectID]
	h.closing[room.projectID] = done
	h.closers.Add(1)

	go func() {
		defer h.closers.Done()
		defer func() {
			h.mu.Lock()
			if h.closing[room.projectID] == done {
				delete(h.closing, room.projectID)
			}
			h.mu.Unlock()
			close(done)
		}()
		defer func() {
			room.cancel()
			slog.Info("editor session closed", "session", room.id, "project", room.projectID)
		}()

		if prev != nil {
			<-prev
		}
		<-room.loaded
		if room.loadErr != nil || room.projectID == PlaygroundProjectID {
			return
		}
		if _, err := h.save(room); err != nil {
			slog.Error("save on close failed", "project", room.projectID, "error", err)
		}
	}()
}

func (h *Hub) save(room *Room) (*document.Document, error) {
	if room.projectID == PlaygroundProjectID || h.persist == nil {
		return nil, ErrNotPersisted
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := room.editor.Wait(ctx); err != nil {
		slog.Warn("saving with loads still pending", "project", room.projectID, "error", err)
	}
	doc, err := room.editor.Save()
	if err != nil {
		return nil, err
	}
	if err := h.persist.SaveDocument(ctx, room.projectID, doc); err != nil {
		return nil, err
	}
	slog.Info("project saved", "project", room.projectID, "images", len(doc.Images))
	return doc, nil
}

func (h *Hub) renderLoop(room *Room) {
	for {
		select {
		case <-room.ctx.Done():
			return
		case <-room.redraw:
			h.broadcastToRoom(room, renderMessage(room))
		}
	}
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch msg.Type {
	case TypeCmd:
		h.handleCommand(sender, msg)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "client", sender.ClientID)
		sender.Send(errorMessage(msg.Seq, "", "unknown message type "+msg.Type))
	}
}

func (h *Hub) handleCommand(sender *Client, msg *Message) {
	var cmd editor.Command
	if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
		sender.Send(errorMessage(msg.Seq, "", "invalid command payload"))
		return
	}

	h.mu.RLock()
	room, ok := h.rooms[sender.ProjectID]
	ready := ok && room.ready
	h.mu.RUnlock()
	if !ok {
		return
	}
	if !ready {
		sender.Send(errorMessage(msg.Seq, cmd.Op, "project is still loading"))
		return
	}

	if cmd.Op == "save" {
		doc, err := h.save(room)
		if err != nil {
			slog.Warn("save failed", "project", room.projectID, "error", err)
			sender.Send(errorMessage(msg.Seq, cmd.Op, err.Error()))
			return
		}
		sender.Send(mustMessage(TypeSaved, msg.Seq, SavedPayload{ProjectID: room.projectID, Timestamp: doc.Timestamp}))
		return
	}

	result, err := room.editor.Execute(room.ctx, cmd)
	if err != nil {
		slog.Debug("command failed", "op", cmd.Op, "client", sender.ClientID, "error", err)
		sender.Send(errorMessage(msg.Seq, cmd.Op, err.Error()))
		return
	}
	sender.Send(mustMessage(TypeResult, msg.Seq, ResultPayload{Op: cmd.Op, Result: result}))
}

func (h *Hub) broadcastToRoom(room *Room, msg *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range room.clients {
		c.Send(msg)
	}
}

// Rooms returns the number of open rooms.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func renderMessage(room *Room) *Message {
	return mustMessage(TypeRender, 0, RenderPayload{
		Frame:    room.editor.Canvas().Frame(),
		Commands: room.editor.DrawList(),
	})
}

func errorMessage(seq int64, op, text string) *Message {
	return mustMessage(TypeError, seq, ErrorPayload{Op: op, Error: text})
}

func mustMessage(typ string, seq int64, payload any) *Message {
	msg, err := newMessage(typ, seq, payload)
	if err != nil {
		slog.Error("marshal payload", "type", typ, "error", err)
		return nil
	}
	return msg
}
