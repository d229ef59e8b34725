// Package login manages user accounts: registration, secrets, and the
// on-disk user database.
package login

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"golang.org/x/crypto/argon2"

	"github.com/rakugaki/rakugaki/id"
)

var log = commonlog.GetLogger("login")

// ---------------------------------------------------------------------------
// Nicknames
// ---------------------------------------------------------------------------

// ErrInvalidNickname is returned for nicknames that are empty, too long, or
// contain control characters.
var ErrInvalidNickname = errors.New("nicknames must be 1 to 32 characters long and may not contain control characters")

const maxNicknameLen = 32

// ValidNickname checks the nickname rules.
func ValidNickname(nickname string) bool {
	if !utf8.ValidString(nickname) {
		return false
	}
	count := utf8.RuneCountInString(nickname)
	if count < 1 || count > maxNicknameLen {
		return false
	}
	for _, r := range nickname {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Secret hashing
// ---------------------------------------------------------------------------

// Argon2id parameters. Logins are rare, so the cost leans toward security.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

func hashSecret(secret string) string {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		panic(err)
	}
	key := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

func verifySecret(secret, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(secret), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// ---------------------------------------------------------------------------
// User store
// ---------------------------------------------------------------------------

// Status is the outcome of a credential check.
type Status int

const (
	// StatusOK: the user exists and the secret matches.
	StatusOK Status = iota
	// StatusUserDoesNotExist: no user with that id.
	StatusUserDoesNotExist
	// StatusInvalidSecret: the user exists but the secret is wrong.
	StatusInvalidSecret
)

type userRecord struct {
	Nickname    string    `json:"nickname"`
	SecretHash  string    `json:"secretHash"`
	CreatedAt   time.Time `json:"createdAt"`
	LastLoginAt time.Time `json:"lastLoginAt"`
}

// Store is the on-disk user database: one JSON file per user, cached in
// memory. Safe for concurrent use.
type Store struct {
	dir   string
	mu    sync.Mutex
	cache map[string]*userRecord
}

// NewStore opens (creating if needed) a user database rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create user database: %w", err)
	}
	return &Store{dir: dir, cache: make(map[string]*userRecord)}, nil
}

func (s *Store) userPath(userID string) string {
	return filepath.Join(s.dir, userID+".json")
}

func (s *Store) writeRecord(userID string, record *userRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	// Write-then-rename so a crash can't leave a truncated record.
	tmp := s.userPath(userID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.userPath(userID))
}

func (s *Store) loadRecord(userID string) (*userRecord, error) {
	if record, ok := s.cache[userID]; ok {
		return record, nil
	}
	data, err := os.ReadFile(s.userPath(userID))
	if err != nil {
		return nil, err
	}
	var record userRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("user record %s is corrupt: %w", userID, err)
	}
	s.cache[userID] = &record
	return &record, nil
}

// Register creates a user and returns their id and secret. The secret is
// only ever returned here; at rest it is stored hashed.
func (s *Store) Register(nickname string) (userID, secret string, err error) {
	if !ValidNickname(nickname) {
		return "", "", ErrInvalidNickname
	}

	userID = id.New("user")
	secret = id.Secret()
	now := time.Now().UTC()
	record := &userRecord{
		Nickname:    nickname,
		SecretHash:  hashSecret(secret),
		CreatedAt:   now,
		LastLoginAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeRecord(userID, record); err != nil {
		return "", "", fmt.Errorf("save user: %w", err)
	}
	s.cache[userID] = record
	log.Infof("registered user %s", userID)
	return userID, secret, nil
}

// Verify checks a (user id, secret) pair and records the login time.
func (s *Store) Verify(userID, secret string) (Status, error) {
	if !id.Valid("user", userID) {
		return StatusUserDoesNotExist, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.loadRecord(userID)
	if errors.Is(err, os.ErrNotExist) {
		return StatusUserDoesNotExist, nil
	}
	if err != nil {
		return 0, err
	}
	if !verifySecret(secret, record.SecretHash) {
		return StatusInvalidSecret, nil
	}

	record.LastLoginAt = time.Now().UTC()
	if err := s.writeRecord(userID, record); err != nil {
		log.Errorf("recording login time for %s: %v", userID, err)
	}
	return StatusOK, nil
}

// Nickname returns a user's nickname.
func (s *Store) Nickname(userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.loadRecord(userID)
	if err != nil {
		return "", err
	}
	return record.Nickname, nil
}
