package noise

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/flynn/noise"

	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// payloadSigPrefix 是签名 payload 的前缀，与 libp2p-noise 规范兼容
const payloadSigPrefix = "noise-libp2p-static-key:"

// maxFrameSize 单帧最大长度
const maxFrameSize = 65535

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// ============================================================================
// Noise XX 握手实现
// ============================================================================

// performHandshake 执行 Noise XX 握手
//
// remotePeer 非空时，握手得到的对端身份必须与之相同。
func (t *Transport) performHandshake(conn net.Conn, remotePeer types.PeerID, initiator bool) (*Conn, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: t.static,
	})
	if err != nil {
		return nil, fmt.Errorf("create handshake state: %w", err)
	}

	var (
		sendCS, recvCS *noise.CipherState
		remotePayload  []byte
	)
	if initiator {
		sendCS, recvCS, remotePayload, err = clientHandshake(conn, hs, t.payload)
	} else {
		sendCS, recvCS, remotePayload, err = serverHandshake(conn, hs, t.payload)
	}
	if err != nil {
		return nil, err
	}

	remotePub, remoteExt, err := verifyRemotePayload(remotePayload, hs.PeerStatic())
	if err != nil {
		return nil, err
	}
	actual, err := crypto.PeerIDFromPublicKey(remotePub)
	if err != nil {
		return nil, fmt.Errorf("derive remote peer id: %w", err)
	}
	if remotePeer != "" && actual != remotePeer {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrPeerIDMismatch, remotePeer, actual)
	}

	return &Conn{
		Conn:       conn,
		sendCS:     sendCS,
		recvCS:     recvCS,
		localPeer:  t.localPeer,
		remotePeer: actual,
		remotePub:  remotePub,
		remoteExt:  remoteExt,
	}, nil
}

// newPayload 生成握手 payload
func newPayload(priv crypto.PrivateKey, staticPub []byte, ext *Extensions) ([]byte, error) {
	key, err := crypto.MarshalPublicKey(priv.GetPublic())
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	sig, err := priv.Sign(append([]byte(payloadSigPrefix), staticPub...))
	if err != nil {
		return nil, fmt.Errorf("sign static key: %w", err)
	}
	p := handshakePayload{IdentityKey: key, IdentitySig: sig, Extensions: ext}
	return p.marshal(), nil
}

// verifyRemotePayload 验证对端签名并返回其身份公钥与扩展
func verifyRemotePayload(b, remoteStatic []byte) (crypto.PublicKey, *Extensions, error) {
	if len(remoteStatic) != 32 {
		return nil, nil, fmt.Errorf("invalid remote static key length: %d", len(remoteStatic))
	}
	var p handshakePayload
	if err := p.unmarshal(b); err != nil {
		return nil, nil, err
	}
	pub, err := crypto.UnmarshalPublicKey(p.IdentityKey)
	if err != nil {
		return nil, nil, fmt.Errorf("unmarshal remote public key: %w", err)
	}
	ok, err := pub.Verify(append([]byte(payloadSigPrefix), remoteStatic...), p.IdentitySig)
	if err != nil || !ok {
		return nil, nil, ErrInvalidSignature
	}
	return pub, p.Extensions, nil
}

// ============================================================================
// 握手流程
// ============================================================================

// clientHandshake 客户端握手（发起者）
func clientHandshake(conn net.Conn, hs *noise.HandshakeState, localPayload []byte) (*noise.CipherState, *noise.CipherState, []byte, error) {
	// 轮次 1: 发送 e
	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 1: %w", err)
	}
	if err := writeFrame(conn, msg1); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 1: %w", err)
	}

	// 轮次 2: 接收 e, ee, s, es, payload
	msg2, err := readFrame(conn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 2: %w", err)
	}
	remotePayload, _, _, err := hs.ReadMessage(nil, msg2)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read message 2: %w", err)
	}

	// 轮次 3: 发送 s, se, payload
	msg3, cs1, cs2, err := hs.WriteMessage(nil, localPayload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 3: %w", err)
	}
	if err := writeFrame(conn, msg3); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 3: %w", err)
	}

	// 发起者：cs1 发送，cs2 接收
	return cs1, cs2, remotePayload, nil
}

// serverHandshake 服务器握手（响应者）
func serverHandshake(conn net.Conn, hs *noise.HandshakeState, localPayload []byte) (*noise.CipherState, *noise.CipherState, []byte, error) {
	msg1, err := readFrame(conn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 1: %w", err)
	}
	if _, _, _, err = hs.ReadMessage(nil, msg1); err != nil {
		return nil, nil, nil, fmt.Errorf("read message 1: %w", err)
	}

	msg2, _, _, err := hs.WriteMessage(nil, localPayload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 2: %w", err)
	}
	if err := writeFrame(conn, msg2); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 2: %w", err)
	}

	msg3, err := readFrame(conn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 3: %w", err)
	}
	remotePayload, cs1, cs2, err := hs.ReadMessage(nil, msg3)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read message 3: %w", err)
	}

	// 响应者与发起者相反
	return cs2, cs1, remotePayload, nil
}

// writeFrame 写入帧（2 字节长度 + 数据）
func writeFrame(w io.Writer, data []byte) error {
	if len(data) > maxFrameSize {
		return fmt.Errorf("frame too large: %d", len(data))
	}
	buf := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(buf, uint16(len(data)))
	copy(buf[2:], data)
	_, err := w.Write(buf)
	return err
}

// readFrame 读取帧（2 字节长度 + 数据）
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	data := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
