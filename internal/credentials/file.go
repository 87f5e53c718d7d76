package credentials

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	"github.com/lumen-io/client/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var CREDENTIALS_PATH = filepath.Join(".config", "lumen")

const credentialFileVersion = "1.0"

// credentialFile is the on-disk layout, one file per backend host.
type credentialFile struct {
	Version   string            `yaml:"version"`
	Timestamp time.Time         `yaml:"timestamp"`
	Entries   map[string]string `yaml:"entries"`
}

func newCredentialFile() credentialFile {
	return credentialFile{
		Version:   credentialFileVersion,
		Timestamp: time.Now().UTC(),
		Entries:   make(map[string]string),
	}
}

// FileStore is the bearer-mode persistent store. Values are cached in
// memory and written through to a 0600 yaml file on every change.
type FileStore struct {
	lock sync.Mutex
	path string
	data credentialFile
}

// DefaultCredentialsDir resolves ~/.config/lumen for the current user.
func DefaultCredentialsDir() (string, error) {
	usr, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return filepath.Join(usr.HomeDir, CREDENTIALS_PATH), nil
}

// NewFileStore opens (or creates) the credential file for host inside dir.
// A file that cannot be read or parsed does not fail construction: the
// store starts empty, which leaves the client logged out.
func NewFileStore(dir string, host string) *FileStore {
	store := &FileStore{
		path: filepath.Join(dir, fmt.Sprintf("%s.yaml", host)),
		data: newCredentialFile(),
	}

	if err := store.Load(); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"path": store.path,
		}).Warnln("Credential file unavailable, starting logged out")
	}

	return store
}

func (s *FileStore) Path() string {
	return s.path
}

// Load replaces the in-memory view with the file contents.
func (s *FileStore) Load() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	logrus.WithField("path", s.path).Debugln("Loading credentials")

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.data = newCredentialFile()
		return nil
	}
	if err != nil {
		s.data = newCredentialFile()
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if len(raw) == 0 {
		s.data = newCredentialFile()
		return nil
	}

	var data credentialFile
	if err := yaml.Unmarshal(raw, &data); err != nil {
		// A corrupt file is treated as no session at all
		logrus.WithError(err).Errorf("Failed to parse credential file %s, reinitializing", s.path)
		s.data = newCredentialFile()
		return nil
	}
	if data.Entries == nil {
		data.Entries = make(map[string]string)
	}

	s.data = data
	return nil
}

func (s *FileStore) Get(name string) (string, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	value, ok := s.data.Entries[name]
	if !ok || len(value) == 0 {
		return "", false
	}
	return value, true
}

func (s *FileStore) Set(name string, value string, _ Options) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	logrus.WithFields(logrus.Fields{
		"name": name,
		"path": s.path,
	}).Debugln("Storing credential")

	previous, existed := s.data.Entries[name]
	s.data.Entries[name] = value
	if err := s.commit(); err != nil {
		s.restore(name, previous, existed)
		return err
	}
	return nil
}

func (s *FileStore) Remove(name string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	previous, ok := s.data.Entries[name]
	if !ok {
		return nil
	}

	delete(s.data.Entries, name)
	if err := s.commit(); err != nil {
		s.restore(name, previous, true)
		return err
	}
	return nil
}

// restore puts back an entry whose change never reached the file.
func (s *FileStore) restore(name string, value string, existed bool) {
	if existed {
		s.data.Entries[name] = value
	} else {
		delete(s.data.Entries, name)
	}
}

func (s *FileStore) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	logrus.WithField("path", s.path).Debugln("Clearing credentials")

	// Cleared entries stay gone in memory even when the file cannot be
	// rewritten, so a failed logout never keeps using the credential
	for _, name := range models.SessionArtefacts() {
		delete(s.data.Entries, name)
	}
	return s.commit()
}

// commit must be called with the lock held.
func (s *FileStore) commit() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.data.Timestamp = time.Now().UTC()
	out, err := yaml.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	// Only allow read/write access to the owner
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0600); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return nil
}
