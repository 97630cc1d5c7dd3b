package multiaddr

import (
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/mr-tron/base58/base58"
	"github.com/multiformats/go-varint"
)

// Transcoder 定义协议数据的编解码方法
type Transcoder interface {
	// StringToBytes 将字符串值转换为字节
	StringToBytes(string) ([]byte, error)

	// BytesToString 将字节转换为字符串值
	BytesToString([]byte) (string, error)

	// ValidateBytes 验证字节数据是否有效
	ValidateBytes([]byte) error
}

// NewTranscoderFromFunctions 从函数创建 Transcoder
func NewTranscoderFromFunctions(
	s2b func(string) ([]byte, error),
	b2s func([]byte) (string, error),
	val func([]byte) error,
) Transcoder {
	return &transcoderWrapper{s2b, b2s, val}
}

type transcoderWrapper struct {
	stringToBytes func(string) ([]byte, error)
	bytesToString func([]byte) (string, error)
	validateBytes func([]byte) error
}

func (t *transcoderWrapper) StringToBytes(s string) ([]byte, error) {
	return t.stringToBytes(s)
}

func (t *transcoderWrapper) BytesToString(b []byte) (string, error) {
	if err := t.ValidateBytes(b); err != nil {
		return "", err
	}
	return t.bytesToString(b)
}

func (t *transcoderWrapper) ValidateBytes(b []byte) error {
	if t.validateBytes == nil {
		return nil
	}
	return t.validateBytes(b)
}

// ════════════════════════════════════════════════════════════════════════════
//                              IP 与端口
// ════════════════════════════════════════════════════════════════════════════

// TranscoderIP4 IPv4 地址
var TranscoderIP4 = NewTranscoderFromFunctions(ip4StringToBytes, ip4BytesToString, nil)

func ip4StringToBytes(s string) ([]byte, error) {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil || strings.Contains(s, ":") {
		return nil, fmt.Errorf("failed to parse ip4 addr: %s", s)
	}
	return ip.To4(), nil
}

func ip4BytesToString(b []byte) (string, error) {
	if len(b) != 4 {
		return "", fmt.Errorf("invalid ip4 length: %d", len(b))
	}
	return net.IP(b).String(), nil
}

// TranscoderIP6 IPv6 地址
var TranscoderIP6 = NewTranscoderFromFunctions(ip6StringToBytes, ip6BytesToString, nil)

func ip6StringToBytes(s string) ([]byte, error) {
	ip := net.ParseIP(s)
	if ip == nil || !strings.Contains(s, ":") {
		return nil, fmt.Errorf("failed to parse ip6 addr: %s", s)
	}
	return ip.To16(), nil
}

func ip6BytesToString(b []byte) (string, error) {
	if len(b) != 16 {
		return "", fmt.Errorf("invalid ip6 length: %d", len(b))
	}
	ip := net.IP(b)
	// IPv4-mapped IPv6 地址保持 v6 形式
	if ip4 := ip.To4(); ip4 != nil {
		return "::ffff:" + ip4.String(), nil
	}
	return ip.String(), nil
}

// TranscoderIP6Zone IPv6 zone ID
var TranscoderIP6Zone = NewTranscoderFromFunctions(nonEmptyNoSlashStringToBytes, bytesToPlainString, nonEmptyNoSlashValidate)

// TranscoderDNS 域名（dns/dns4/dns6/dnsaddr/sni）
var TranscoderDNS = NewTranscoderFromFunctions(nonEmptyNoSlashStringToBytes, bytesToPlainString, nonEmptyNoSlashValidate)

func nonEmptyNoSlashStringToBytes(s string) ([]byte, error) {
	b := []byte(s)
	if err := nonEmptyNoSlashValidate(b); err != nil {
		return nil, err
	}
	return b, nil
}

func nonEmptyNoSlashValidate(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty value")
	}
	if strings.IndexByte(string(b), '/') >= 0 {
		return fmt.Errorf("value contains '/': %s", b)
	}
	return nil
}

func bytesToPlainString(b []byte) (string, error) {
	return string(b), nil
}

// TranscoderPort TCP/UDP 端口
var TranscoderPort = NewTranscoderFromFunctions(portStringToBytes, portBytesToString, nil)

func portStringToBytes(s string) ([]byte, error) {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("failed to parse port: %w", err)
	}
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(port))
	return b, nil
}

func portBytesToString(b []byte) (string, error) {
	if len(b) != 2 {
		return "", fmt.Errorf("invalid port length: %d", len(b))
	}
	return strconv.Itoa(int(binary.BigEndian.Uint16(b))), nil
}

// TranscoderUnix unix 套接字路径
var TranscoderUnix = NewTranscoderFromFunctions(unixStringToBytes, bytesToPlainString, nil)

func unixStringToBytes(s string) ([]byte, error) {
	if len(s) == 0 {
		return nil, errors.New("empty unix path")
	}
	return []byte(s), nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              节点身份与证书哈希
// ════════════════════════════════════════════════════════════════════════════

// TranscoderP2P 节点 ID（base58btc 编码的 multihash）
var TranscoderP2P = NewTranscoderFromFunctions(p2pStringToBytes, p2pBytesToString, validateMultihash)

func p2pStringToBytes(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse p2p addr %s: %w", s, err)
	}
	if err := validateMultihash(b); err != nil {
		return nil, err
	}
	return b, nil
}

func p2pBytesToString(b []byte) (string, error) {
	return base58.Encode(b), nil
}

// validateMultihash 校验 <varint code><varint len><digest> 结构
func validateMultihash(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty multihash")
	}
	_, n, err := varint.FromUvarint(b)
	if err != nil {
		return fmt.Errorf("invalid multihash code: %w", err)
	}
	length, m, err := varint.FromUvarint(b[n:])
	if err != nil {
		return fmt.Errorf("invalid multihash length: %w", err)
	}
	if uint64(len(b)-n-m) != length {
		return fmt.Errorf("multihash length mismatch: declared %d, got %d", length, len(b)-n-m)
	}
	return nil
}

// TranscoderCertHash 证书哈希（multibase 编码的 multihash）
//
// 输入接受 'u'（base64url）、'z'（base58btc）与 'b'（base32）前缀，
// 输出统一为 'u'。
var TranscoderCertHash = NewTranscoderFromFunctions(certHashStringToBytes, certHashBytesToString, validateMultihash)

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

func certHashStringToBytes(s string) ([]byte, error) {
	if len(s) < 2 {
		return nil, fmt.Errorf("certhash too short: %s", s)
	}
	var (
		b   []byte
		err error
	)
	switch s[0] {
	case 'u':
		b, err = base64.RawURLEncoding.DecodeString(s[1:])
	case 'z':
		b, err = base58.Decode(s[1:])
	case 'b':
		b, err = base32NoPad.DecodeString(strings.ToUpper(s[1:]))
	default:
		return nil, fmt.Errorf("unsupported multibase prefix %q", s[0])
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode certhash: %w", err)
	}
	if err := validateMultihash(b); err != nil {
		return nil, err
	}
	return b, nil
}

func certHashBytesToString(b []byte) (string, error) {
	return "u" + base64.RawURLEncoding.EncodeToString(b), nil
}
