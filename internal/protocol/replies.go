package protocol

import "fmt"

// UploadPicReply is the server's answer to the upload handshake
type UploadPicReply struct {
	Status int
	// Path is where the picture should be POSTed, relative to the server
	Path string
}

// NewUploadPicAsk builds the UPLOAD_PIC handshake request
func NewUploadPicAsk(timestamp int64) (Message, error) {
	return NewMessage(OpUploadPic, timestamp, UploadPicAsk)
}

// DecodeUploadPic reads an UPLOAD_PIC reply: UPLOAD_PIC_ASK, status, uploadPath
func DecodeUploadPic(m Message) (UploadPicReply, error) {
	tag, err := m.Int(0)
	if err != nil {
		return UploadPicReply{}, err
	}
	if tag != UploadPicAsk {
		return UploadPicReply{}, &PayloadError{Op: m.op, Index: 0, Reason: fmt.Sprintf("unexpected tag %d", tag)}
	}
	status, err := m.Int(1)
	if err != nil {
		return UploadPicReply{}, err
	}
	reply := UploadPicReply{Status: status}
	if status != StatusOK {
		return reply, nil
	}
	if reply.Path, err = m.String(2); err != nil {
		return UploadPicReply{}, err
	}
	return reply, nil
}

// NewClearDraw builds the CLEAR_DRAW request
func NewClearDraw(timestamp int64) (Message, error) {
	return NewMessage(OpClearDraw, timestamp)
}

// NewGetDrawList builds the GET_DRAW_LIST request
func NewGetDrawList(timestamp int64, roomID int) (Message, error) {
	return NewMessage(OpGetDrawList, timestamp, roomID)
}

// DecodeBgPic reads a BG_PIC_PUSH: roomId, picturePath
func DecodeBgPic(m Message) (roomID int, path string, err error) {
	if roomID, err = m.Int(0); err != nil {
		return 0, "", err
	}
	if path, err = m.String(1); err != nil {
		return 0, "", err
	}
	return roomID, path, nil
}

// DecodeClearPush reads a CLEAR_DRAW_PUSH: roomId
func DecodeClearPush(m Message) (int, error) {
	return m.Int(0)
}
