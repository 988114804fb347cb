package server

import (
	"errors"
	"log"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"termshare/internal/constants"
	"termshare/internal/hub"
	"termshare/internal/security"
	"termshare/internal/types"
	"termshare/internal/ui"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:   constants.WSBufferSize,
	WriteBufferSize:  constants.WSBufferSize,
	HandshakeTimeout: constants.WSHandshakeWindow,
	// Origin is validated after the upgrade, inside admission, so rejected
	// browsers receive a distinct close code instead of a bare 403.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r, security.ClassGeneral) {
		return
	}

	sessions := s.cfg.Hub.Sessions()
	if sessions == nil {
		sessions = []types.SessionInfo{}
	}
	writeJSON(w, http.StatusOK, types.SessionListResponse{Sessions: sessions})
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r, security.ClassGeneral) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, constants.EndpointSessionByID)
	if !security.ValidateRecordID(id) {
		http.Error(w, "Invalid session id", http.StatusBadRequest)
		return
	}

	deleted := s.cfg.Hub.Delete(id)
	writeJSON(w, http.StatusOK, types.DeleteResponse{Deleted: deleted})
}

func (s *Server) handleTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r, security.ClassTicket) {
		return
	}

	ticket, err := s.cfg.Tickets.Issue(bearerToken(r))
	if err != nil {
		http.Error(w, constants.MsgUnauthorized, http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, types.TicketResponse{
		Ticket:  ticket.ID,
		Expires: ticket.ExpiresAt.Unix(),
	})
}

func (s *Server) handleProxyTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}
	if !s.cfg.IsHub {
		http.Error(w, constants.MsgNotFound, http.StatusNotFound)
		return
	}
	if !s.authorize(w, r, security.ClassGeneral) {
		return
	}

	portStr := strings.TrimPrefix(r.URL.Path, constants.EndpointProxyTicket)
	port, err := strconv.Atoi(portStr)
	if err != nil || !security.ValidatePort(port) {
		http.Error(w, constants.MsgInvalidPort, http.StatusBadRequest)
		return
	}

	resp, err := s.cfg.Hub.ProxyTicket(port)
	switch {
	case errors.Is(err, hub.ErrUnknownSession):
		http.Error(w, constants.MsgNotFound, http.StatusNotFound)
	case errors.Is(err, hub.ErrUnreachable):
		http.Error(w, constants.MsgSessionUnreachable, http.StatusBadGateway)
	case err != nil:
		http.Error(w, constants.MsgSessionUnreachable, http.StatusBadGateway)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Bridge == nil {
		// Hub instances proxy tickets; viewers connect to the session's own
		// bridge directly.
		http.Error(w, constants.MsgNotFound, http.StatusNotFound)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️  WebSocket upgrade failed: %v", err)
		return
	}

	conn, ok := s.cfg.Manager.Admit(ws, r)
	if !ok {
		return
	}
	s.cfg.Bridge.Attach(conn)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			break
		}
		s.cfg.Bridge.HandleMessage(conn, raw)
	}
	s.cfg.Manager.Remove(conn, websocket.CloseNormalClosure, "")
	log.Printf("🔌 Viewer disconnected: %s", conn.ID)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	// Viewers may upgrade on the root path directly.
	if websocket.IsWebSocketUpgrade(r) {
		s.handleWebSocket(w, r)
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	if _, err := url.PathUnescape(r.URL.EscapedPath()); err != nil {
		http.Error(w, "Malformed path encoding", http.StatusBadRequest)
		return
	}

	name := r.URL.Path
	if !security.ValidatePath(name) {
		http.Error(w, constants.MsgNotFound, http.StatusNotFound)
		return
	}
	if name == "/" {
		name = "/index.html"
	}

	data, err := ui.Assets.ReadFile("static" + path.Clean(name))
	if err != nil {
		http.Error(w, constants.MsgNotFound, http.StatusNotFound)
		return
	}

	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Write(data)
}
