// Package framing 实现 uvarint 长度前缀的消息分帧
//
// 所有基于流的协议（identify、autonat、中继、DHT、gossip、WebRTC 信令）
// 都以 <uvarint 长度><消息体> 的形式在流上传输消息。
package framing

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

// DefaultMaxSize 默认单条消息上限
const DefaultMaxSize = 1 << 20

// ErrMsgTooLarge 消息超过上限
var ErrMsgTooLarge = errors.New("message too large")

// WriteMsg 写入一条消息
func WriteMsg(w io.Writer, msg []byte) error {
	buf := make([]byte, 0, varint.UvarintSize(uint64(len(msg)))+len(msg))
	buf = append(buf, varint.ToUvarint(uint64(len(msg)))...)
	buf = append(buf, msg...)
	_, err := w.Write(buf)
	return err
}

// ReadMsg 读取一条消息
//
// 不做预读：消息之后的字节保留在 r 中，
// 适合握手后转为原始字节流的协议（如中继电路）。
func ReadMsg(r io.Reader, maxSize int) ([]byte, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReader{r: r}
	}
	return readMsg(br, r, maxSize)
}

func readMsg(br io.ByteReader, r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	n, err := varint.ReadUvarint(br)
	if err != nil {
		return nil, err
	}
	if n > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrMsgTooLarge, n, maxSize)
	}
	msg := make([]byte, n)
	if _, err := io.ReadFull(r, msg); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return msg, nil
}

// Reader 带缓冲的消息读取器，适合长期存在、只承载消息的流
type Reader struct {
	br      *bufio.Reader
	maxSize int
}

// NewReader 创建消息读取器
func NewReader(r io.Reader, maxSize int) *Reader {
	return &Reader{br: bufio.NewReader(r), maxSize: maxSize}
}

// ReadMsg 读取下一条消息
func (r *Reader) ReadMsg() ([]byte, error) {
	return readMsg(r.br, r.br, r.maxSize)
}

type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}
