package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrInvalidUser is returned for an empty user identifier.
var ErrInvalidUser = errors.New("user id is required")

var pathSafe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Layout is one user's on-disk directories.
type Layout struct {
	Root       string
	Documents  string
	Embeddings string
}

// hashedPrefix marks hashed directory names. pathSafe never matches it, so a
// raw id cannot collide with the hash of another id.
const hashedPrefix = "~"

// UserDir maps a user id to a directory name. Path-safe ids are used as is;
// anything else is replaced by a hash so it cannot escape the data directory.
func UserDir(userID string) string {
	if pathSafe.MatchString(userID) {
		return userID
	}
	sum := sha256.Sum256([]byte(userID))
	return hashedPrefix + hex.EncodeToString(sum[:])[:32]
}

// LayoutFor returns the directories for userID under dataDir without
// creating them.
func LayoutFor(dataDir, userID string) (Layout, error) {
	if strings.TrimSpace(userID) == "" {
		return Layout{}, ErrInvalidUser
	}
	root := filepath.Join(dataDir, UserDir(userID))
	return Layout{
		Root:       root,
		Documents:  filepath.Join(root, "documents"),
		Embeddings: filepath.Join(root, "embeddings"),
	}, nil
}

func (l Layout) ensure() error {
	for _, dir := range []string{l.Documents, l.Embeddings} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return nil
}
