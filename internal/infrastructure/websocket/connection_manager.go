package websocket

import (
	"sync"

	"nft-marketplace/internal/domain"
	"nft-marketplace/pkg/logger"
)

// ConnectionManager tracks observer connections per asset and fans listing
// notifications out to them.
type ConnectionManager struct {
	connections map[string]map[string]domain.WebSocketConnection // assetID -> clientID -> connection
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[string]domain.WebSocketConnection),
		log:         log,
	}
}

func (cm *ConnectionManager) RegisterConnection(clientID, assetID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[assetID] == nil {
		cm.connections[assetID] = make(map[string]domain.WebSocketConnection)
	}
	cm.connections[assetID][clientID] = conn

	cm.log.Info("Observer registered", "client_id", clientID, "asset_id", assetID)
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(clientID, assetID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if assetConns, exists := cm.connections[assetID]; exists {
		delete(assetConns, clientID)
		if len(assetConns) == 0 {
			delete(cm.connections, assetID)
		}
	}

	cm.log.Info("Observer unregistered", "client_id", clientID, "asset_id", assetID)
	return nil
}

func (cm *ConnectionManager) BroadcastToAsset(assetID string, message interface{}) error {
	cm.mutex.RLock()
	var connections []domain.WebSocketConnection
	for _, conn := range cm.connections[assetID] {
		connections = append(connections, conn)
	}
	cm.mutex.RUnlock()

	for _, conn := range connections {
		if err := conn.Send(message); err != nil {
			cm.log.Error("Failed to send message", "client_id", conn.ClientID(),
				"asset_id", assetID, "error", err)
			// Keep going; one dead connection must not starve the rest.
		}
	}

	return nil
}

func (cm *ConnectionManager) CloseConnectionsForAsset(assetID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	for clientID, conn := range cm.connections[assetID] {
		if err := conn.Close(); err != nil {
			cm.log.Error("Failed to close connection", "client_id", clientID,
				"asset_id", assetID, "error", err)
		}
	}
	delete(cm.connections, assetID)

	return nil
}
