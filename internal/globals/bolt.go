package globals

import (
	"fmt"
	"os"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	bolt "go.etcd.io/bbolt"
)

// rootBucket holds one nested bucket per note.
const rootBucket = "note_globals"

// Bolt is a durable cache backed by a bbolt database, for hosts that want
// note-globals to survive process restarts. Values are serialized as JSON
// under the dynamic pseudo-type so the concrete type round-trips.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) a bbolt-backed cache at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, os.FileMode(0o600), nil)
	if err != nil {
		return nil, fmt.Errorf("open globals database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(rootBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize globals bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Get returns the persistent bindings for a note.
func (b *Bolt) Get(noteID string) (map[string]cty.Value, error) {
	out := make(map[string]cty.Value)
	err := b.db.View(func(tx *bolt.Tx) error {
		nb := tx.Bucket([]byte(rootBucket)).Bucket([]byte(noteID))
		if nb == nil {
			return nil
		}
		return nb.ForEach(func(k, v []byte) error {
			val, err := ctyjson.Unmarshal(v, cty.DynamicPseudoType)
			if err != nil {
				return fmt.Errorf("decode global %q of note %q: %w", k, noteID, err)
			}
			out[string(k)] = val
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Merge folds bindings into a note's bucket.
func (b *Bolt) Merge(noteID string, bindings map[string]cty.Value) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		nb, err := tx.Bucket([]byte(rootBucket)).CreateBucketIfNotExists([]byte(noteID))
		if err != nil {
			return err
		}
		for name, v := range bindings {
			data, err := ctyjson.Marshal(v, cty.DynamicPseudoType)
			if err != nil {
				return fmt.Errorf("encode global %q of note %q: %w", name, noteID, err)
			}
			if err := nb.Put([]byte(name), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the underlying database.
func (b *Bolt) Close() error {
	return b.db.Close()
}
