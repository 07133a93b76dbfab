package websocket

import (
	"net/http"

	"nft-marketplace/internal/domain"
	"nft-marketplace/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades observer connections and parks them in the connection
// manager; the subscriber loop in the observer service does the writing.
type Handler struct {
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewHandler(connManager domain.ConnectionManager, log logger.Logger) *Handler {
	return &Handler{
		connManager: connManager,
		log:         log,
	}
}

func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	assetID := vars["assetID"]
	if assetID == "" {
		http.Error(w, "asset id required", http.StatusBadRequest)
		return
	}

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	obsConn := newObserverConnection(conn, clientID, assetID)

	if err := h.connManager.RegisterConnection(clientID, assetID, obsConn); err != nil {
		h.log.Error("Failed to register observer", "error", err)
		conn.Close()
		return
	}

	go h.drainReads(obsConn)
}

// Observers are read-only; incoming frames are discarded and a read error
// tears the connection down.
func (h *Handler) drainReads(conn *observerConnection) {
	defer func() {
		h.connManager.UnregisterConnection(conn.ClientID(), conn.AssetID())
		conn.Close()
	}()

	for {
		if _, _, err := conn.conn.ReadMessage(); err != nil {
			return
		}
	}
}

type observerConnection struct {
	conn     *websocket.Conn
	clientID string
	assetID  string
}

func newObserverConnection(conn *websocket.Conn, clientID, assetID string) *observerConnection {
	return &observerConnection{
		conn:     conn,
		clientID: clientID,
		assetID:  assetID,
	}
}

func (c *observerConnection) Send(message interface{}) error {
	return c.conn.WriteJSON(message)
}

func (c *observerConnection) Close() error {
	return c.conn.Close()
}

func (c *observerConnection) ClientID() string {
	return c.clientID
}

func (c *observerConnection) AssetID() string {
	return c.assetID
}
