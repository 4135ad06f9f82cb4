package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

// scrypt cost used for the token. Opening it runs on every start.
const vaultWorkFactor = 15

// Vault encrypts the session token before it is written to local storage.
type Vault struct {
	recipient *age.ScryptRecipient
	identity  *age.ScryptIdentity
}

func NewVault(passphrase string) (*Vault, error) {
	if passphrase == "" {
		return nil, errors.New("vault passphrase is required")
	}
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("create scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(vaultWorkFactor)
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("create scrypt identity: %w", err)
	}
	return &Vault{recipient: recipient, identity: identity}, nil
}

// Seal returns the ASCII-armored ciphertext of plaintext.
func (v *Vault) Seal(plaintext string) (string, error) {
	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	w, err := age.Encrypt(aw, v.recipient)
	if err != nil {
		return "", fmt.Errorf("encrypt token: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("encrypt token: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("encrypt token: %w", err)
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("armor token: %w", err)
	}
	return buf.String(), nil
}

func (v *Vault) Open(sealed string) (string, error) {
	r, err := age.Decrypt(armor.NewReader(strings.NewReader(sealed)), v.identity)
	if err != nil {
		return "", fmt.Errorf("decrypt token: %w", err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decrypt token: %w", err)
	}
	return string(b), nil
}
