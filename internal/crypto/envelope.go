// Package crypto seals instance credentials at rest using AES-GCM
// envelopes with rotating key IDs.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// sealedFields are the instance property keys that get encrypted when
// a master key is configured.
var sealedFields = []string{"api_key"}

// sealedPrefix marks a property value holding an envelope rather than
// a plaintext string.
const sealedPrefix = "enc:"

type Envelope struct {
	KeyID      string `json:"key_id"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type Manager struct {
	currentKeyID string
	keys         map[string][]byte
}

func NewManager(currentKeyID string, keys map[string][]byte) (*Manager, error) {
	if currentKeyID == "" {
		return nil, fmt.Errorf("current key id is empty")
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("keys map is empty")
	}
	if _, ok := keys[currentKeyID]; !ok {
		return nil, fmt.Errorf("current key id %q not found", currentKeyID)
	}
	for id, key := range keys {
		if len(key) != 32 {
			return nil, fmt.Errorf("key %q must be 32 bytes", id)
		}
	}
	cp := make(map[string][]byte, len(keys))
	for id, key := range keys {
		buf := make([]byte, len(key))
		copy(buf, key)
		cp[id] = buf
	}
	return &Manager{currentKeyID: currentKeyID, keys: cp}, nil
}

func (m *Manager) Encrypt(plaintext []byte) (Envelope, error) {
	key := m.keys[m.currentKeyID]
	block, err := aes.NewCipher(key)
	if err != nil {
		return Envelope{}, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return Envelope{}, fmt.Errorf("new gcm: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, fmt.Errorf("nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	return Envelope{
		KeyID:      m.currentKeyID,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

func (m *Manager) Decrypt(env Envelope) ([]byte, error) {
	key, ok := m.keys[env.KeyID]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", env.KeyID)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

func (m *Manager) marshalEncryptedString(value string) (string, error) {
	env, err := m.Encrypt([]byte(value))
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return sealedPrefix + string(b), nil
}

func (m *Manager) unmarshalEncryptedString(raw string) (string, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(strings.TrimPrefix(raw, sealedPrefix)), &env); err != nil {
		return "", fmt.Errorf("unmarshal envelope: %w", err)
	}
	pt, err := m.Decrypt(env)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// SealProperties encrypts the credential fields inside an instance
// properties JSON bag and returns the bag re-serialized. Fields that
// are absent, empty or already sealed are left alone.
func (m *Manager) SealProperties(propertiesJSON string) (string, error) {
	if strings.TrimSpace(propertiesJSON) == "" {
		return propertiesJSON, nil
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(propertiesJSON), &props); err != nil {
		return "", fmt.Errorf("parse properties: %w", err)
	}

	changed := false
	for _, field := range sealedFields {
		raw, ok := props[field].(string)
		if !ok || raw == "" || strings.HasPrefix(raw, sealedPrefix) {
			continue
		}
		sealed, err := m.marshalEncryptedString(raw)
		if err != nil {
			return "", fmt.Errorf("seal %s: %w", field, err)
		}
		props[field] = sealed
		changed = true
	}
	if !changed {
		return propertiesJSON, nil
	}

	out, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("serialize properties: %w", err)
	}
	return string(out), nil
}

// OpenProperties decrypts any sealed credential fields in a properties
// bag. Plaintext fields pass through, so bags written before a master
// key was configured keep working.
func (m *Manager) OpenProperties(propertiesJSON string) (string, error) {
	if strings.TrimSpace(propertiesJSON) == "" {
		return propertiesJSON, nil
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(propertiesJSON), &props); err != nil {
		return "", fmt.Errorf("parse properties: %w", err)
	}

	changed := false
	for _, field := range sealedFields {
		raw, ok := props[field].(string)
		if !ok || !strings.HasPrefix(raw, sealedPrefix) {
			continue
		}
		plain, err := m.unmarshalEncryptedString(raw)
		if err != nil {
			return "", fmt.Errorf("open %s: %w", field, err)
		}
		props[field] = plain
		changed = true
	}
	if !changed {
		return propertiesJSON, nil
	}

	out, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("serialize properties: %w", err)
	}
	return string(out), nil
}

// ResealProperties decrypts and re-encrypts sealed fields under the
// current key, used after key rotation.
func (m *Manager) ResealProperties(propertiesJSON string) (string, error) {
	opened, err := m.OpenProperties(propertiesJSON)
	if err != nil {
		return "", err
	}
	return m.SealProperties(opened)
}
