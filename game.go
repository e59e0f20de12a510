// Wordrush
//
// All connected players race to type the same target word. Everyone sees
// everyone else's progress keystroke by keystroke, and the first player to
// submit the full word wins the round, scores a point, and the game rolls
// straight into the next word.
//
// Features:
// - Single authoritative game per process, served over /race/ws
// - Players named player-<id> on connect, renameable at any time
// - Live typed-progress sharing (letters only, capped at the word's length)
// - First correct submission wins; matching is trimmed and case-insensitive
// - Scoreboard ordered by score, with ids breaking ties
// - Slow or dead connections are dropped on the next broadcast, never retried
// - Pluggable word bank via --words, built-in 25-word bank by default
// - In-browser QR button to share the game URL, backed by go-qrcode

package main

import (
	"cmp"
	_ "embed"
	"fmt"
	"log"
	"math"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Player holds the data we store server-side for one connected player.
type Player struct {
	ID    uint64
	Name  string
	Score uint64
	Typed string

	send chan ServerMessage
}

// Game is the single source of truth for the running game. Every operation
// takes the mutex for its whole body; outbound delivery is a non-blocking
// channel enqueue, so no I/O ever happens inside the critical section.
type Game struct {
	mu sync.Mutex

	nextPlayerID    uint64
	round           uint64
	currentWord     string
	winnerLastRound *string
	players         map[uint64]*Player

	bank WordBank
	cfg  *Config
}

func newGame(cfg *Config, bank WordBank) *Game {
	return &Game{
		nextPlayerID: 1,
		round:        1,
		currentWord:  bank.choose(""),
		players:      make(map[uint64]*Player),
		bank:         bank,
		cfg:          cfg,
	}
}

// stateLocked derives a snapshot of the game, players sorted by descending
// score then ascending id.
func (g *Game) stateLocked() StateData {
	players := make([]PlayerState, 0, len(g.players))
	for _, p := range g.players {
		players = append(players, PlayerState{
			ID:    p.ID,
			Name:  p.Name,
			Score: p.Score,
			Typed: p.Typed,
		})
	}

	slices.SortFunc(players, func(a, b PlayerState) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.ID, b.ID)
	})

	var winner *string
	if g.winnerLastRound != nil {
		name := *g.winnerLastRound
		winner = &name
	}

	return StateData{
		Round:           g.round,
		CurrentWord:     g.currentWord,
		Players:         players,
		WinnerLastRound: winner,
	}
}

// deliverLocked enqueues one message for a player. A full or closed send
// channel retires the player on the spot: the entry is removed from the
// registry and its channel closed, which ends the connection's writer.
func (g *Game) deliverLocked(p *Player, msg ServerMessage) {
	select {
	case p.send <- msg:
	default:
		delete(g.players, p.ID)
		close(p.send)
		logf(g.cfg, "GAMES: Dropped unresponsive player %d (%q)", p.ID, p.Name)
	}
}

// broadcastLocked fans one snapshot out to every registered player. Failed
// sinks are pruned as a side effect and never delay the remaining players.
func (g *Game) broadcastLocked() {
	msg := stateMessage(g.stateLocked())
	for _, p := range g.players {
		g.deliverLocked(p, msg)
	}
}

// join allocates the next id and registers a player with score 0 and empty
// typed-progress. An empty name gets the player-<id> default. The new player
// receives a Welcome and a snapshot first, then everyone is re-synchronized.
func (g *Game) join(name string, send chan ServerMessage) (uint64, StateData) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextPlayerID
	g.nextPlayerID++

	if name == "" {
		name = fmt.Sprintf("player-%d", id)
	}

	p := &Player{
		ID:   id,
		Name: name,
		send: send,
	}
	g.players[id] = p

	g.deliverLocked(p, welcomeMessage(id))
	state := g.stateLocked()
	g.deliverLocked(p, stateMessage(state))

	logf(g.cfg, "GAMES: Player %d joined as %q", id, name)

	g.broadcastLocked()

	return id, state
}

// rename sets a player's display name. Names are not unique; identity is the
// id, never the name. Unknown ids are a no-op, but still broadcast.
func (g *Game) rename(id uint64, name string) StateData {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p, ok := g.players[id]; ok {
		p.Name = name
		logf(g.cfg, "GAMES: Player %d is now %q", id, name)
	}

	g.broadcastLocked()

	return g.stateLocked()
}

// updateTyped stores a player's sanitized in-progress typing.
func (g *Game) updateTyped(id uint64, raw string) StateData {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p, ok := g.players[id]; ok {
		p.Typed = sanitizeTyped(raw, utf8.RuneCountInString(g.currentWord))
	}

	g.broadcastLocked()

	return g.stateLocked()
}

// submitWord checks a submission against the current word, trimmed and
// case-insensitively. A match ends the round in one atomic step: the
// submitter scores, the round advances, a fresh word is chosen, and all
// typed-progress is cleared. A mismatch changes nothing. Either way every
// player receives a fresh snapshot.
func (g *Game) submitWord(id uint64, raw string) StateData {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p, ok := g.players[id]; ok && strings.EqualFold(strings.TrimSpace(raw), g.currentWord) {
		if p.Score < math.MaxUint64 {
			p.Score++
		}
		winner := p.Name
		g.winnerLastRound = &winner
		if g.round < math.MaxUint64 {
			g.round++
		}
		g.currentWord = g.bank.choose(g.currentWord)
		for _, q := range g.players {
			q.Typed = ""
		}

		logf(g.cfg, "GAMES: %q won round %d, starting round %d", winner, g.round-1, g.round)
	}

	g.broadcastLocked()

	return g.stateLocked()
}

// leave removes a player from the registry. Unknown ids (a player already
// pruned by a failed broadcast) are a no-op.
func (g *Game) leave(id uint64) StateData {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p, ok := g.players[id]; ok {
		delete(g.players, id)
		close(p.send)
		logf(g.cfg, "GAMES: Player %d (%q) left", id, p.Name)
	}

	g.broadcastLocked()

	return g.stateLocked()
}

// sanitizeTyped keeps only ASCII letters, lowercases them, and truncates to
// max characters.
func sanitizeTyped(raw string, max int) string {
	out := make([]byte, 0, max)
	for _, r := range raw {
		if len(out) == max {
			break
		}
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, byte(r))
		case r >= 'A' && r <= 'Z':
			out = append(out, byte(r)+('a'-'A'))
		}
	}
	return string(out)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	conn     *websocket.Conn
	send     chan ServerMessage
	playerID uint64
}

func (c *Client) readPump(cfg *Config, g *Game) {
	defer func() {
		g.leave(c.playerID)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := decodeClientMessage(payload)
		if err != nil {
			logf(cfg, "GAMES: Dropping bad message from player %d: %v", c.playerID, err)
			continue
		}

		switch m := msg.(type) {
		case JoinMessage:
			g.rename(c.playerID, m.Name)
		case TypedProgressMessage:
			g.updateTyped(c.playerID, m.Typed)
		case SubmitWordMessage:
			g.submitWord(c.playerID, m.Word)
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// WebSocket handler: one goroutine per direction, teacher pattern.
func serveGameSocket(cfg *Config, g *Game) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan ServerMessage, 8),
		}

		client.playerID, _ = g.join("", client.send)

		go client.writePump()
		client.readPump(cfg, g)
	}
}

// QR handler: generates a PNG QR code for the game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../qr; strip the trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// ---- Static file paths ----

//go:embed race/index.html
var indexHTML []byte

//go:embed race/app.css
var wordrushCSS []byte

//go:embed race/app.js
var wordrushJS []byte

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(wordrushCSS)
	}
}

func getJsHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(wordrushJS)
	}
}

// registerRaceGame sets up routes so that:
//   - $path          → HTML client
//   - $path/ws       → WebSocket for the game
//   - $path/qr       → PNG QR code for the game URL
func registerRaceGame(cfg *Config, path string, mux *httprouter.Router) error {
	bank := defaultWordBank()
	if cfg.words != "" {
		loaded, err := loadWordBank(cfg.words)
		if err != nil {
			return err
		}
		bank = loaded
		logf(cfg, "GAMES: Loaded %d words from %s", len(bank), cfg.words)
	}

	game := newGame(cfg, bank)

	// Client view (HTML)
	mux.GET(cfg.prefix+path, getIndexHandler(cfg))

	// Shared assets
	mux.GET(cfg.prefix+"/assets/race/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/race/app.js", getJsHandler(cfg))

	// Game websocket
	mux.GET(cfg.prefix+path+"/ws", serveGameSocket(cfg, game))

	// QR code
	mux.GET(cfg.prefix+path+"/qr", qrHandler)

	return nil
}
