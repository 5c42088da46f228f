package gateway

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zlib"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// decodeEvent reads one gateway frame. Binary frames carry a zlib
// compressed payload when identify asked for compression.
func decodeEvent(messageType int, message []byte) (*RawEvent, error) {
	var reader io.Reader = bytes.NewReader(message)
	if messageType == websocket.BinaryMessage {
		z, err := zlib.NewReader(reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		defer z.Close()
		reader = z
	}
	e := &RawEvent{}
	if err := codec.NewDecoder(reader).Decode(e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return e, nil
}

func encodeEvent(op GatewayOpcode, d any) ([]byte, error) {
	return codec.Marshal(Event{Op: op, D: d})
}
