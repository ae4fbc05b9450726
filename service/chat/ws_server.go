package chat

import (
	"errors"
	"net"
	"net/http"
	"time"

	"PPLive/logger"
	"PPLive/middleware"
	midsec "PPLive/middleware/security"
	"PPLive/tools/errs"
	"PPLive/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		return middleware.OriginAllowed(allowed, r.Header.Get("Origin"))
	}
}

// HandleWS upgrades an authenticated request and runs the connection until
// either side closes it. It must sit behind the security middleware.
func (s *Server) HandleWS(c *gin.Context) {
	userID, ok := midsec.UserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrAuthentication.WithDetail("no user on request"))
		return
	}

	s.life.RLock()
	if s.closing {
		s.life.RUnlock()
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": ErrClosed.Error()})
		return
	}
	s.wg.Add(1)
	s.life.RUnlock()
	defer s.wg.Done()

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 常见：非 WebSocket 请求/握手失败; the upgrader already replied
		logger.Info("[WS] upgrade failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	conn, err := s.Attach(userID)
	if err != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(s.opts.WriteWait))
		_ = ws.Close()
		return
	}

	writerDone := make(chan struct{})
	safe.Go("ws-writer", func() {
		defer close(writerDone)
		s.writeLoop(ws, conn)
	})

	s.readLoop(ws, conn)

	s.Detach(conn)
	<-writerDone
}

// readLoop only reads; it returns on any read error, including the one caused
// by the writer closing the socket.
func (s *Server) readLoop(ws *websocket.Conn, conn *Conn) {
	pongWait := 2*s.opts.PingInterval + s.opts.WriteWait
	ws.SetReadLimit(s.opts.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			var ne net.Error
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				logger.Debug("[WS] peer closed", zap.String("conn_id", conn.ID), zap.Error(err))
			case errors.As(err, &ne) && ne.Timeout():
				logger.Info("[WS] read timeout", zap.String("conn_id", conn.ID), zap.Error(err))
			default:
				logger.Debug("[WS] read ended", zap.String("conn_id", conn.ID), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		s.HandleFrame(s.ctx, conn, data)
	}
}

// writeLoop is the only writer on ws. It drains the outbound queue, pings on
// an interval and closes the socket when it exits.
func (s *Server) writeLoop(ws *websocket.Conn, conn *Conn) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case frame := <-conn.Outbound():
			_ = ws.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Info("[WS] write failed", zap.String("conn_id", conn.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteWait)); err != nil {
				logger.Info("[WS] ping failed", zap.String("conn_id", conn.ID), zap.Error(err))
				return
			}
		case <-conn.Done():
			s.drain(ws, conn)
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.opts.WriteWait))
			return
		}
	}
}

// drain flushes frames that were queued before the connection closed.
func (s *Server) drain(ws *websocket.Conn, conn *Conn) {
	for {
		select {
		case frame := <-conn.Outbound():
			_ = ws.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
