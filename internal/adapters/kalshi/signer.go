package kalshi

// signer.go: autenticación de la API de Kalshi.
//
// Cada request lleva tres headers: el id de la API key, un timestamp en ms y
// una firma RSA-PSS (SHA-256, salt = tamaño del hash) en base64 sobre
// timestamp + METHOD + path sin query.

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	headerKey       = "KALSHI-ACCESS-KEY"
	headerTimestamp = "KALSHI-ACCESS-TIMESTAMP"
	headerSignature = "KALSHI-ACCESS-SIGNATURE"
)

// Signer firma requests con la clave privada de la API key.
type Signer struct {
	keyID string
	key   *rsa.PrivateKey
	now   func() time.Time
}

// NewSigner parsea una clave RSA en PEM (PKCS#1 o PKCS#8).
func NewSigner(keyID string, pemBytes []byte) (*Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("kalshi.NewSigner: no PEM block found")
	}

	var key *rsa.PrivateKey
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		key = k
	} else {
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("kalshi.NewSigner: parse key: %w", err)
		}
		rk, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("kalshi.NewSigner: key is not RSA")
		}
		key = rk
	}
	return &Signer{keyID: keyID, key: key, now: time.Now}, nil
}

// LoadSigner usa el PEM inline si viene, si no lo lee de path.
func LoadSigner(keyID, inlinePEM, path string) (*Signer, error) {
	if inlinePEM != "" {
		return NewSigner(keyID, []byte(inlinePEM))
	}
	if path == "" {
		return nil, errors.New("kalshi.LoadSigner: no private key configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kalshi.LoadSigner: read %q: %w", path, err)
	}
	return NewSigner(keyID, data)
}

// Headers devuelve los headers de autenticación para method + path. La query
// se ignora al firmar.
func (s *Signer) Headers(method, path string) (http.Header, error) {
	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	sig, err := s.sign(ts + method + path)
	if err != nil {
		return nil, err
	}

	h := make(http.Header)
	h.Set(headerKey, s.keyID)
	h.Set(headerTimestamp, ts)
	h.Set(headerSignature, sig)
	return h, nil
}

func (s *Signer) sign(msg string) (string, error) {
	digest := sha256.Sum256([]byte(msg))
	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return "", fmt.Errorf("kalshi.sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
