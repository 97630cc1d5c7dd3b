package webtransport

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/minio/sha256-simd"
	"github.com/multiformats/go-varint"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
)

// multihashSHA256 sha2-256 的 multihash 代码
const multihashSHA256 = 0x12

// maxCertValidity 自签名证书最长有效期
const maxCertValidity = 14 * 24 * time.Hour

// certHash 解码后的 multihash
type certHash struct {
	code   uint64
	digest []byte
}

func decodeMultihash(b []byte) (certHash, error) {
	code, n, err := varint.FromUvarint(b)
	if err != nil {
		return certHash{}, fmt.Errorf("multihash code: %w", err)
	}
	length, m, err := varint.FromUvarint(b[n:])
	if err != nil {
		return certHash{}, fmt.Errorf("multihash length: %w", err)
	}
	digest := b[n+m:]
	if uint64(len(digest)) != length {
		return certHash{}, fmt.Errorf("multihash length mismatch: declared %d, got %d", length, len(digest))
	}
	return certHash{code: code, digest: append([]byte(nil), digest...)}, nil
}

func encodeMultihash(code uint64, digest []byte) []byte {
	out := varint.ToUvarint(code)
	out = append(out, varint.ToUvarint(uint64(len(digest)))...)
	return append(out, digest...)
}

// extractCertHashes 取出地址中的全部 /certhash 段
func extractCertHashes(m multiaddr.Multiaddr) ([]certHash, error) {
	var out []certHash
	for _, c := range multiaddr.Split(m) {
		codes := c.ProtoCodes()
		if len(codes) != 1 || codes[0] != multiaddr.P_CERTHASH {
			continue
		}
		s, err := c.ValueForProtocol(multiaddr.P_CERTHASH)
		if err != nil {
			return nil, err
		}
		raw, err := multiaddr.TranscoderCertHash.StringToBytes(s)
		if err != nil {
			return nil, err
		}
		h, err := decodeMultihash(raw)
		if err != nil {
			return nil, err
		}
		if h.code != multihashSHA256 {
			return nil, fmt.Errorf("%w: 0x%x", ErrUnsupportedHash, h.code)
		}
		out = append(out, h)
	}
	return out, nil
}

// verifyRawCerts 校验服务端叶子证书与 certhash 之一匹配
func verifyRawCerts(rawCerts [][]byte, hashes []certHash) error {
	if len(rawCerts) == 0 {
		return fmt.Errorf("%w: no certificate", ErrCertHashMismatch)
	}
	leaf := rawCerts[0]
	cert, err := x509.ParseCertificate(leaf)
	if err != nil {
		return err
	}
	if cert.NotAfter.Sub(cert.NotBefore) > maxCertValidity {
		return ErrCertValidity
	}
	sum := sha256.Sum256(leaf)
	for _, h := range hashes {
		if bytes.Equal(h.digest, sum[:]) {
			return nil
		}
	}
	return ErrCertHashMismatch
}

// checkAdvertised 地址中的每个 certhash 都必须出现在服务端通告的集合中
func checkAdvertised(dialed []certHash, advertised [][]byte) error {
	got := make([]certHash, 0, len(advertised))
	for _, b := range advertised {
		h, err := decodeMultihash(b)
		if err != nil {
			return fmt.Errorf("advertised certhash: %w", err)
		}
		got = append(got, h)
	}
	for _, want := range dialed {
		found := false
		for _, h := range got {
			if h.code == want.code && bytes.Equal(h.digest, want.digest) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: server did not advertise %x", ErrCertHashMismatch, want.digest)
		}
	}
	return nil
}
