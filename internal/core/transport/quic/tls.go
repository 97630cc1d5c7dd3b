package quic

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"time"

	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// ALPN 协商的应用层协议
const ALPN = "libp2p"

// certSignaturePrefix 节点私钥签名证书公钥时的前缀
const certSignaturePrefix = "libp2p-tls-handshake:"

// identityExtensionOID 携带节点身份的证书扩展
var identityExtensionOID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 53594, 1, 1}

// certValidity 证书有效期
const certValidity = 100 * 365 * 24 * time.Hour

// signedKey 身份扩展的 ASN.1 结构
type signedKey struct {
	PubKey    []byte
	Signature []byte
}

// ============================================================================
//                              证书生成
// ============================================================================

// newCertificate 生成携带节点身份的自签名证书
func newCertificate(priv crypto.PrivateKey) (tls.Certificate, error) {
	certKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}
	certPubDER, err := x509.MarshalPKIXPublicKey(&certKey.PublicKey)
	if err != nil {
		return tls.Certificate{}, err
	}
	pubBytes, err := crypto.MarshalPublicKey(priv.GetPublic())
	if err != nil {
		return tls.Certificate{}, err
	}
	sig, err := priv.Sign(append([]byte(certSignaturePrefix), certPubDER...))
	if err != nil {
		return tls.Certificate{}, err
	}
	ext, err := asn1.Marshal(signedKey{PubKey: pubBytes, Signature: sig})
	if err != nil {
		return tls.Certificate{}, err
	}

	sn, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return tls.Certificate{}, err
	}
	tmpl := &x509.Certificate{
		SerialNumber:    sn,
		NotBefore:       time.Now().Add(-time.Hour),
		NotAfter:        time.Now().Add(certValidity),
		ExtraExtensions: []pkix.Extension{{Id: identityExtensionOID, Value: ext}},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &certKey.PublicKey, certKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create certificate: %w", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: certKey}, nil
}

// newTLSConfig 生成双向认证的 TLS 配置
//
// 标准链验证关闭，身份由 verifyPeerCertificate 检查。
func newTLSConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		MinVersion:            tls.VersionTLS13,
		Certificates:          []tls.Certificate{cert},
		NextProtos:            []string{ALPN},
		InsecureSkipVerify:    true,
		ClientAuth:            tls.RequireAnyClientCert,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			_, err := peerFromRawCerts(rawCerts)
			return err
		},
	}
}

// ============================================================================
//                              证书验证
// ============================================================================

func peerFromRawCerts(rawCerts [][]byte) (crypto.PublicKey, error) {
	if len(rawCerts) != 1 {
		return nil, ErrNoCertificate
	}
	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return verifyCertificate(cert)
}

// verifyCertificate 验证自签名与身份扩展，返回节点公钥
func verifyCertificate(cert *x509.Certificate) (crypto.PublicKey, error) {
	if err := cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature); err != nil {
		return nil, fmt.Errorf("certificate not self-signed: %w", err)
	}
	now := time.Now()
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return nil, fmt.Errorf("certificate outside validity period")
	}

	var raw []byte
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(identityExtensionOID) {
			raw = ext.Value
			break
		}
	}
	if raw == nil {
		return nil, ErrMissingExtension
	}
	var sk signedKey
	if rest, err := asn1.Unmarshal(raw, &sk); err != nil || len(rest) != 0 {
		return nil, fmt.Errorf("%w: malformed extension", ErrInvalidCertSignature)
	}
	pub, err := crypto.UnmarshalPublicKey(sk.PubKey)
	if err != nil {
		return nil, err
	}
	msg := append([]byte(certSignaturePrefix), cert.RawSubjectPublicKeyInfo...)
	ok, err := pub.Verify(msg, sk.Signature)
	if err != nil || !ok {
		return nil, ErrInvalidCertSignature
	}
	return pub, nil
}

// remoteIdentity 从握手完成的 TLS 状态中提取对端公钥与 PeerID
func remoteIdentity(state tls.ConnectionState) (crypto.PublicKey, types.PeerID, error) {
	if len(state.PeerCertificates) == 0 {
		return nil, "", ErrNoCertificate
	}
	pub, err := verifyCertificate(state.PeerCertificates[0])
	if err != nil {
		return nil, "", err
	}
	id, err := crypto.PeerIDFromPublicKey(pub)
	if err != nil {
		return nil, "", err
	}
	return pub, id, nil
}
