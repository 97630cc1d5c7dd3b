package crypto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// 序列化格式（libp2p crypto.pb）：
//
//	message PublicKey  { KeyType Type = 1; bytes Data = 2; }
//	message PrivateKey { KeyType Type = 1; bytes Data = 2; }

// MarshalPublicKey 序列化公钥
func MarshalPublicKey(k PublicKey) ([]byte, error) {
	if k == nil {
		return nil, ErrNilPublicKey
	}
	raw, err := k.Raw()
	if err != nil {
		return nil, err
	}
	return marshalKey(k.Type(), raw), nil
}

// UnmarshalPublicKey 反序列化公钥
func UnmarshalPublicKey(data []byte) (PublicKey, error) {
	kt, raw, err := unmarshalKey(data)
	if err != nil {
		return nil, err
	}
	if kt != KeyTypeEd25519 {
		return nil, fmt.Errorf("%w: %s", ErrBadKeyType, kt)
	}
	return UnmarshalEd25519PublicKey(raw)
}

// MarshalPrivateKey 序列化私钥
func MarshalPrivateKey(k PrivateKey) ([]byte, error) {
	if k == nil {
		return nil, ErrNilPrivateKey
	}
	raw, err := k.Raw()
	if err != nil {
		return nil, err
	}
	return marshalKey(k.Type(), raw), nil
}

// UnmarshalPrivateKey 反序列化私钥
func UnmarshalPrivateKey(data []byte) (PrivateKey, error) {
	kt, raw, err := unmarshalKey(data)
	if err != nil {
		return nil, err
	}
	if kt != KeyTypeEd25519 {
		return nil, fmt.Errorf("%w: %s", ErrBadKeyType, kt)
	}
	return UnmarshalEd25519PrivateKey(raw)
}

func marshalKey(kt KeyType, raw []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(kt))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	return protowire.AppendBytes(b, raw)
}

func unmarshalKey(data []byte) (KeyType, []byte, error) {
	var (
		kt      KeyType = -1
		raw     []byte
		hasData bool
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return 0, nil, fmt.Errorf("%w: %v", ErrUnmarshalFailed, protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return 0, nil, fmt.Errorf("%w: %v", ErrUnmarshalFailed, protowire.ParseError(m))
			}
			kt = KeyType(v)
			n = m
		case num == 2 && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return 0, nil, fmt.Errorf("%w: %v", ErrUnmarshalFailed, protowire.ParseError(m))
			}
			raw, hasData = v, true
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return 0, nil, fmt.Errorf("%w: %v", ErrUnmarshalFailed, protowire.ParseError(n))
			}
		}
		data = data[n:]
	}
	if kt < 0 || !hasData {
		return 0, nil, fmt.Errorf("%w: missing key type or data", ErrUnmarshalFailed)
	}
	return kt, raw, nil
}
