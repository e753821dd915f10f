package websockets

import (
	"time"
)

const (
	AUTH_REQUEST           = "auth_request"
	AUTH_RESPONSE          = "auth_response"
	AUTH_SUCCESS           = "auth_success"
	AUTH_FAILURE           = "auth_failure"
	AUTH_HANDSHAKE_TIMEOUT = 10 * time.Second
)

// startAuthTimeout closes the connection if the client has not
// authenticated within AUTH_HANDSHAKE_TIMEOUT.
func (c *Client) startAuthTimeout() {
	log := c.Manager.log.Function("startAuthTimeout")

	time.AfterFunc(AUTH_HANDSHAKE_TIMEOUT, func() {
		if c.Status() != STATUS_UNAUTHENTICATED {
			return
		}
		log.Warn("Client failed to authenticate within timeout, disconnecting",
			"clientID", c.ID,
			"timeout", AUTH_HANDSHAKE_TIMEOUT)

		c.trySend(newMessage(AUTH_FAILURE, SYSTEM_CHANNEL, "authentication_timeout",
			map[string]any{"reason": "Authentication timeout"}))
		c.closeSoon()
	})
}

func (c *Client) handleAuthResponse(message Message) {
	log := c.Manager.log.Function("handleAuthResponse")

	if c.Status() != STATUS_UNAUTHENTICATED {
		log.Warn("Auth response from already authenticated client", "clientID", c.ID)
		return
	}

	token, ok := message.Data["token"].(string)
	if !ok || token == "" {
		log.Warn("Invalid token in auth response", "clientID", c.ID)
		c.sendAuthFailure("Invalid token format")
		return
	}

	claims, err := c.Manager.tokens.Validate(token)
	if err != nil {
		log.Info("WebSocket token validation failed", "clientID", c.ID, "error", err.Error())
		c.sendAuthFailure("Authentication failed")
		return
	}

	c.Subject = claims.Subject
	c.setStatus(STATUS_AUTHENTICATED)
	log.Info("WebSocket client authenticated", "clientID", c.ID, "subject", c.Subject)

	c.trySend(newMessage(AUTH_SUCCESS, SYSTEM_CHANNEL, "authenticated",
		map[string]any{"subject": c.Subject}))
}

func (c *Client) sendAuthFailure(reason string) {
	c.trySend(newMessage(AUTH_FAILURE, SYSTEM_CHANNEL, "authentication_failed",
		map[string]any{"reason": reason}))
	c.closeSoon()
}

func (c *Client) sendAuthRequest() error {
	log := c.Manager.log.Function("sendAuthRequest")

	request := newMessage(AUTH_REQUEST, SYSTEM_CHANNEL, "authenticate", nil)
	if err := c.Connection.WriteJSON(request); err != nil {
		return log.Err("failed to send auth request", err, "clientID", c.ID)
	}
	return nil
}

func (c *Client) handleUnauthenticatedMessage(message Message) {
	c.Manager.log.Function("handleUnauthenticatedMessage").Warn(
		"Blocking message from unauthenticated client",
		"clientID", c.ID,
		"type", message.Type,
	)

	c.trySend(newMessage(AUTH_FAILURE, SYSTEM_CHANNEL, "authentication_required",
		map[string]any{"reason": "Authentication required"}))
}

// closeSoon gives the write pump time to flush the last message.
func (c *Client) closeSoon() {
	if c.Connection == nil {
		return
	}
	time.AfterFunc(100*time.Millisecond, func() {
		_ = c.Connection.Close()
	})
}
