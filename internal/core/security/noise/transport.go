package noise

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/flynn/noise"

	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/protocolids"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// ID Noise 协议标识
const ID = protocolids.Noise

// Transport Noise 安全传输
type Transport struct {
	priv      crypto.PrivateKey
	localPeer types.PeerID
	static    noise.DHKey
	payload   []byte
	logger    *slog.Logger
}

// New 创建 Noise 传输
func New(priv crypto.PrivateKey, logger *slog.Logger) (*Transport, error) {
	if priv == nil {
		return nil, crypto.ErrNilPrivateKey
	}
	local, err := crypto.PeerIDFromPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	static, err := noise.DH25519.GenerateKeypair(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate static key: %w", err)
	}
	payload, err := newPayload(priv, static.Public, nil)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Transport{
		priv:      priv,
		localPeer: local,
		static:    static,
		payload:   payload,
		logger:    logger,
	}, nil
}

// WithExtensions 返回在握手 payload 中携带 ext 的副本
//
// 静态密钥与原 Transport 相同。
func (t *Transport) WithExtensions(ext *Extensions) (*Transport, error) {
	payload, err := newPayload(t.priv, t.static.Public, ext)
	if err != nil {
		return nil, err
	}
	c := *t
	c.payload = payload
	return &c, nil
}

// LocalPeer 返回本地节点 ID
func (t *Transport) LocalPeer() types.PeerID { return t.localPeer }

// SecureInbound 保护入站连接
func (t *Transport) SecureInbound(ctx context.Context, conn net.Conn, remotePeer types.PeerID) (*Conn, error) {
	return t.secure(ctx, conn, remotePeer, false)
}

// SecureOutbound 保护出站连接
func (t *Transport) SecureOutbound(ctx context.Context, conn net.Conn, remotePeer types.PeerID) (*Conn, error) {
	return t.secure(ctx, conn, remotePeer, true)
}

func (t *Transport) secure(ctx context.Context, conn net.Conn, remotePeer types.PeerID, initiator bool) (*Conn, error) {
	if d, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(d); err != nil {
			return nil, err
		}
		defer conn.SetDeadline(time.Time{})
	}

	// ctx 取消时打断阻塞中的读写
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetDeadline(time.Unix(1, 0))
		case <-done:
		}
	}()

	sc, err := t.performHandshake(conn, remotePeer, initiator)
	if err != nil {
		t.logger.Debug("noise handshake failed",
			"initiator", initiator,
			"peer", log.TruncateID(remotePeer.String(), 8),
			"error", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("noise handshake: %w", err)
	}
	return sc, nil
}
