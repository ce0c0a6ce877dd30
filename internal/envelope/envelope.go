// Package envelope unwraps the encrypted request bodies browser clients send.
//
// An envelope is the OpenSSL "Salted__" format produced by CryptoJS when it is
// given a passphrase: base64("Salted__" || salt[8] || AES-256-CBC(payload)),
// with key and IV derived from passphrase and salt by EVP_BytesToKey (MD5, one
// round). The payload is a JSON object.
package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
)

// ErrBadEnvelope is returned for every decryption or parse failure.
var ErrBadEnvelope = fmt.Errorf("%w: invalid encrypted payload", errorz.ErrBadRequest)

var saltedMagic = []byte("Salted__")

const (
	saltLen = 8
	keyLen  = 32
)

// Key is the pre-shared passphrase. It never prints its value.
type Key string

func (k Key) String() string { return "[REDACTED]" }

func (k Key) Format(f fmt.State, verb rune) { _, _ = f.Write([]byte(k.String())) }

// Gate decrypts envelopes with a process-wide key loaded once at startup.
type Gate struct {
	key Key
}

// New returns a Gate for the given passphrase. An empty passphrase is rejected.
func New(passphrase string) (*Gate, error) {
	if passphrase == "" {
		return nil, errors.New("envelope: empty key")
	}
	return &Gate{key: Key(passphrase)}, nil
}

// FromEnv builds a Gate from ENVELOPE_SECRET_KEY. It returns nil when the
// variable is unset, which disables encrypted payloads.
func FromEnv() *Gate {
	g, err := New(os.Getenv("ENVELOPE_SECRET_KEY"))
	if err != nil {
		return nil
	}
	return g
}

// Unwrap decrypts env and decodes the resulting JSON object into dst.
func (g *Gate) Unwrap(env string, dst any) error {
	plain, err := g.open(env)
	if err != nil {
		return ErrBadEnvelope
	}
	trimmed := bytes.TrimSpace(plain)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ErrBadEnvelope
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		return ErrBadEnvelope
	}
	return nil
}

// Fields is Unwrap into a generic map. It returns nil on any failure.
func (g *Gate) Fields(env string) map[string]any {
	var out map[string]any
	if err := g.Unwrap(env, &out); err != nil {
		return nil
	}
	return out
}

// Seal encrypts v in the same format Unwrap accepts.
func (g *Gate) Seal(v any) (string, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key, iv := deriveKeyIV([]byte(g.key), salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(saltedMagic)+saltLen+len(padded))
	copy(out, saltedMagic)
	copy(out[len(saltedMagic):], salt)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(saltedMagic)+saltLen:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (g *Gate) open(env string) ([]byte, error) {
	if g == nil {
		return nil, errors.New("no key")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(env))
	if err != nil {
		return nil, err
	}
	head := len(saltedMagic) + saltLen
	if len(raw) < head+aes.BlockSize || !bytes.Equal(raw[:len(saltedMagic)], saltedMagic) {
		return nil, errors.New("short or unsalted")
	}
	body := raw[head:]
	if len(body)%aes.BlockSize != 0 {
		return nil, errors.New("partial block")
	}
	key, iv := deriveKeyIV([]byte(g.key), raw[len(saltedMagic):head])
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)
	return pkcs7Unpad(plain, aes.BlockSize)
}

// deriveKeyIV is OpenSSL's EVP_BytesToKey with MD5 and a single iteration.
func deriveKeyIV(pass, salt []byte) (key, iv []byte) {
	var out, prev []byte
	for len(out) < keyLen+aes.BlockSize {
		h := md5.New()
		h.Write(prev)
		h.Write(pass)
		h.Write(salt)
		prev = h.Sum(nil)
		out = append(out, prev...)
	}
	return out[:keyLen], out[keyLen : keyLen+aes.BlockSize]
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errors.New("bad length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, errors.New("bad padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("bad padding")
		}
	}
	return b[:len(b)-n], nil
}
