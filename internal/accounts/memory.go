package accounts

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	goVerify "github.com/MrEthical07/goVerify"
	"gopkg.in/yaml.v3"
)

type fileAccount struct {
	UserID         string `yaml:"user_id"`
	Recipient      string `yaml:"recipient"`
	CredentialHash string `yaml:"credential_hash"`
}

type accountsFile struct {
	Accounts []fileAccount `yaml:"accounts"`
}

// Memory is an in-process credential provider. Credential changes live
// only as long as the process.
type Memory struct {
	mu          sync.RWMutex
	byID        map[string]goVerify.Account
	byRecipient map[string]string
}

func NewMemory(accs ...goVerify.Account) (*Memory, error) {
	m := &Memory{
		byID:        make(map[string]goVerify.Account, len(accs)),
		byRecipient: make(map[string]string, len(accs)),
	}
	for _, acc := range accs {
		if err := m.add(acc); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// LoadFile reads an account list of the form
//
//	accounts:
//	  - user_id: u1
//	    recipient: alice@example.com
//	    credential_hash: "$argon2id$..."
func LoadFile(path string) (*Memory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f accountsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	accs := make([]goVerify.Account, 0, len(f.Accounts))
	for _, a := range f.Accounts {
		accs = append(accs, goVerify.Account(a))
	}
	return NewMemory(accs...)
}

func (m *Memory) add(acc goVerify.Account) error {
	acc.UserID = strings.TrimSpace(acc.UserID)
	acc.Recipient = normalize(acc.Recipient)
	if acc.UserID == "" || acc.Recipient == "" {
		return fmt.Errorf("account needs user_id and recipient")
	}
	if _, dup := m.byID[acc.UserID]; dup {
		return fmt.Errorf("duplicate user_id %q", acc.UserID)
	}
	if _, dup := m.byRecipient[acc.Recipient]; dup {
		return fmt.Errorf("duplicate recipient %q", acc.Recipient)
	}
	m.byID[acc.UserID] = acc
	m.byRecipient[acc.Recipient] = acc.UserID
	return nil
}

func (m *Memory) FindByRecipient(_ context.Context, recipient string) (goVerify.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byRecipient[normalize(recipient)]
	if !ok {
		return goVerify.Account{}, goVerify.ErrAccountNotFound
	}
	return m.byID[id], nil
}

func (m *Memory) FindByID(_ context.Context, userID string) (goVerify.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.byID[userID]
	if !ok {
		return goVerify.Account{}, goVerify.ErrAccountNotFound
	}
	return acc, nil
}

func (m *Memory) UpdateCredential(_ context.Context, userID, currentHash, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.byID[userID]
	if !ok {
		return goVerify.ErrAccountNotFound
	}
	if acc.CredentialHash != currentHash {
		return goVerify.ErrCredentialConflict
	}
	acc.CredentialHash = newHash
	m.byID[userID] = acc
	return nil
}

// Each calls fn for every account in user id order and stops at the first
// error.
func (m *Memory) Each(fn func(goVerify.Account) error) error {
	m.mu.RLock()
	accs := make([]goVerify.Account, 0, len(m.byID))
	for _, acc := range m.byID {
		accs = append(accs, acc)
	}
	m.mu.RUnlock()

	sort.Slice(accs, func(i, j int) bool { return accs[i].UserID < accs[j].UserID })
	for _, acc := range accs {
		if err := fn(acc); err != nil {
			return err
		}
	}
	return nil
}

func normalize(recipient string) string {
	return strings.ToLower(strings.TrimSpace(recipient))
}
