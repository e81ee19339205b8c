package session

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"teakspice-storefront/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// StorageKey is the well-known key the session is kept under.
	StorageKey = "user"
	bucketName = "localStorage"
)

// Persister is durable client storage for the session.
type Persister interface {
	Load() (*model.Session, error)
	Save(s *model.Session) error
	Clear() error
}

// BoltPersister keeps the session as JSON in a bbolt file.
type BoltPersister struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the session database at path.
func OpenBolt(path string) (*BoltPersister, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "create session directory")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open session store %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create session bucket")
	}
	return &BoltPersister{db: db}, nil
}

// Load returns nil when nothing is stored.
func (p *BoltPersister) Load() (*model.Session, error) {
	var raw []byte
	err := p.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(bucketName)).Get([]byte(StorageKey)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return nil, err
	}
	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(err, "decode stored session")
	}
	return &s, nil
}

func (p *BoltPersister) Save(s *model.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(StorageKey), raw)
	})
}

func (p *BoltPersister) Clear() error {
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(StorageKey))
	})
}

func (p *BoltPersister) Close() error {
	return p.db.Close()
}

// MemoryPersister keeps the encoded session in memory.
type MemoryPersister struct {
	mu  sync.Mutex
	raw []byte
}

func (p *MemoryPersister) Load() (*model.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.raw == nil {
		return nil, nil
	}
	var s model.Session
	if err := json.Unmarshal(p.raw, &s); err != nil {
		return nil, errors.Wrap(err, "decode stored session")
	}
	return &s, nil
}

func (p *MemoryPersister) Save(s *model.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	p.mu.Lock()
	p.raw = raw
	p.mu.Unlock()
	return nil
}

func (p *MemoryPersister) Clear() error {
	p.mu.Lock()
	p.raw = nil
	p.mu.Unlock()
	return nil
}

// Raw returns the stored bytes.
func (p *MemoryPersister) Raw() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.raw...)
}
