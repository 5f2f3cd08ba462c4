package server

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"paintboard/internal/protocol"
)

// handle answers one request from c and pushes its effects to the room
func (s *Server) handle(c *Client, msg protocol.Message) {
	switch msg.OpCode() {
	case protocol.OpDraw:
		s.handleDraw(c, msg)
	case protocol.OpGetDrawList:
		s.handleGetDrawList(c, msg)
	case protocol.OpUploadPic:
		s.handleUploadPic(c, msg)
	case protocol.OpClearDraw:
		s.handleClearDraw(c, msg)
	default:
		c.logger.Debug("ignoring message", zap.Stringer("opCode", msg.OpCode()))
	}
}

// reject answers a request with a failure status without acting on it
func (s *Server) reject(c *Client, msg protocol.Message) {
	switch msg.OpCode() {
	case protocol.OpDraw, protocol.OpGetDrawList, protocol.OpClearDraw:
		s.replyStatus(c, msg.OpCode(), protocol.StatusFailed)
	case protocol.OpUploadPic:
		s.replyUpload(c, protocol.StatusFailed, "")
	}
}

func (s *Server) handleDraw(c *Client, msg protocol.Message) {
	roomID, line, err := protocol.DecodeDraw(msg)
	if err != nil {
		c.logger.Warn("invalid draw request", zap.Error(err))
		s.replyStatus(c, protocol.OpDraw, protocol.StatusFailed)
		return
	}
	if roomID != c.Room.ID {
		c.logger.Warn("draw for another room", zap.Int("payloadRoomId", roomID))
		s.replyStatus(c, protocol.OpDraw, protocol.StatusFailed)
		return
	}

	c.Room.AddLine(line)
	s.replyStatus(c, protocol.OpDraw, protocol.StatusOK)

	push, err := protocol.NewMessage(protocol.OpDrawPush, msg.Timestamp(), msg.Payload()...)
	if err != nil {
		c.logger.Error("cannot build draw push", zap.Error(err))
		return
	}
	s.broadcast(c.Room, push, c)
}

func (s *Server) handleGetDrawList(c *Client, msg protocol.Message) {
	roomID, err := msg.Int(0)
	if err != nil {
		c.logger.Warn("invalid draw list request", zap.Error(err))
		s.replyStatus(c, protocol.OpGetDrawList, protocol.StatusFailed)
		return
	}

	var lines []protocol.Line
	if room, ok := s.hub.Room(roomID); ok {
		lines = room.GetLines()
	}
	payload, err := protocol.DrawListPayload(lines)
	if err != nil {
		c.logger.Error("cannot encode draw list", zap.Int("roomId", roomID), zap.Error(err))
		s.replyStatus(c, protocol.OpGetDrawList, protocol.StatusFailed)
		return
	}
	s.send(c, protocol.OpGetDrawList, payload...)
}

func (s *Server) handleUploadPic(c *Client, msg protocol.Message) {
	tag, err := msg.Int(0)
	if err != nil || tag != protocol.UploadPicAsk {
		c.logger.Warn("invalid upload request", zap.Error(err))
		s.replyUpload(c, protocol.StatusFailed, "")
		return
	}
	s.replyUpload(c, protocol.StatusOK, backgroundPath(c.Room.ID))
}

func (s *Server) handleClearDraw(c *Client, _ protocol.Message) {
	c.Room.ClearLines()
	s.replyStatus(c, protocol.OpClearDraw, protocol.StatusOK)

	push, err := protocol.NewMessage(protocol.OpClearDrawPush, s.now().UnixMilli(), c.Room.ID)
	if err != nil {
		c.logger.Error("cannot build clear push", zap.Error(err))
		return
	}
	s.broadcast(c.Room, push, c)
}

func (s *Server) replyStatus(c *Client, op protocol.OpCode, status int) {
	s.send(c, op, status)
}

func (s *Server) replyUpload(c *Client, status int, path string) {
	if status != protocol.StatusOK {
		s.send(c, protocol.OpUploadPic, protocol.UploadPicAsk, status)
		return
	}
	s.send(c, protocol.OpUploadPic, protocol.UploadPicAsk, status, path)
}

func (s *Server) send(c *Client, op protocol.OpCode, payload ...any) {
	msg, err := protocol.NewMessage(op, s.now().UnixMilli(), payload...)
	if err != nil {
		c.logger.Error("cannot build reply", zap.Stringer("opCode", op), zap.Error(err))
		return
	}
	c.reply(msg)
}

// broadcast pushes msg to every client of room except sender. A nil sender
// reaches everyone.
func (s *Server) broadcast(room *Room, msg protocol.Message, sender *Client) {
	data, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Error("cannot encode push", zap.Stringer("opCode", msg.OpCode()), zap.Error(err))
		return
	}
	room.Broadcast(data, sender)
}

func backgroundPath(roomID int) string {
	return fmt.Sprintf("/rooms/%d/background", roomID)
}

func (s *Server) now() time.Time {
	return s.clock()
}
