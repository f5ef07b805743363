package snapshot

import (
	"bytes"
	"compress/zlib"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
)

// Codec turns container state into bytes and back. Codecs nest: the
// outer codec transforms what its delegate produced, and Name reports
// the whole chain.
type Codec interface {
	Name() string
	Encode(obj any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JsonCodec struct{}

func (c JsonCodec) Name() string {
	return "json"
}

func (c JsonCodec) Encode(obj any) ([]byte, error) {
	return json.Marshal(obj)
}

func (c JsonCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

func NewZlibCompressor(delegate Codec) *ZlibCompressor {
	return &ZlibCompressor{delegate: delegate}
}

type ZlibCompressor struct {
	delegate Codec
}

func (c *ZlibCompressor) Name() string {
	return c.delegate.Name() + "+zlib"
}

func (c *ZlibCompressor) Encode(obj any) ([]byte, error) {
	data, err := c.delegate.Encode(obj)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err = w.Write(data)
	if err != nil {
		return nil, err
	}
	err = w.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *ZlibCompressor) Decode(data []byte, out any) error {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer r.Close()
	decompressed, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return c.delegate.Decode(decompressed, out)
}

const aesGcmNonceSize = 12

func NewAesGcmEncryptor(key []byte, delegate Codec) (*AesGcmEncryptor, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AesGcmEncryptor{aead: aead, delegate: delegate}, nil
}

type AesGcmEncryptor struct {
	aead     cipher.AEAD
	delegate Codec
}

func (c *AesGcmEncryptor) Name() string {
	return c.delegate.Name() + "+aesgcm"
}

func (c *AesGcmEncryptor) Encode(obj any) ([]byte, error) {
	data, err := c.delegate.Encode(obj)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aesGcmNonceSize)
	_, err = rand.Read(nonce)
	if err != nil {
		return nil, err
	}
	ciphertext := c.aead.Seal(nil, nonce, data, nil)
	return append(nonce, ciphertext...), nil
}

func (c *AesGcmEncryptor) Decode(data []byte, out any) error {
	if len(data) < aesGcmNonceSize {
		return errors.New("snapshot: ciphertext shorter than nonce")
	}
	nonce := data[:aesGcmNonceSize]
	ciphertext := data[aesGcmNonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return err
	}
	return c.delegate.Decode(plaintext, out)
}
