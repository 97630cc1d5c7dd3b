package noise

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/flynn/noise"

	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// maxPlaintext 单帧明文上限（帧上限减去 16 字节认证标签）
const maxPlaintext = maxFrameSize - 16

// Conn Noise 安全连接
type Conn struct {
	net.Conn

	sendCS *noise.CipherState
	recvCS *noise.CipherState

	localPeer  types.PeerID
	remotePeer types.PeerID
	remotePub  crypto.PublicKey
	remoteExt  *Extensions

	readMu  sync.Mutex
	writeMu sync.Mutex
	readBuf []byte
}

// Read 读取并解密
func (c *Conn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for len(c.readBuf) == 0 {
		frame, err := readFrame(c.Conn)
		if err != nil {
			return 0, err
		}
		plain, err := c.recvCS.Decrypt(nil, nil, frame)
		if err != nil {
			return 0, fmt.Errorf("decrypt: %w", err)
		}
		c.readBuf = plain
	}

	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

// Write 加密并写入，超长数据拆分为多帧
func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	written := 0
	for written < len(p) {
		end := written + maxPlaintext
		if end > len(p) {
			end = len(p)
		}
		ct, err := c.sendCS.Encrypt(nil, nil, p[written:end])
		if err != nil {
			return written, fmt.Errorf("encrypt: %w", err)
		}
		buf := make([]byte, 2+len(ct))
		binary.BigEndian.PutUint16(buf, uint16(len(ct)))
		copy(buf[2:], ct)
		if _, err := c.Conn.Write(buf); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}

// LocalPeer 返回本地节点 ID
func (c *Conn) LocalPeer() types.PeerID { return c.localPeer }

// RemotePeer 返回远端节点 ID
func (c *Conn) RemotePeer() types.PeerID { return c.remotePeer }

// RemotePublicKey 返回远端身份公钥
func (c *Conn) RemotePublicKey() crypto.PublicKey { return c.remotePub }

// RemoteExtensions 返回对端握手 payload 中的扩展，未携带时为 nil
func (c *Conn) RemoteExtensions() *Extensions { return c.remoteExt }

var _ io.ReadWriteCloser = (*Conn)(nil)
