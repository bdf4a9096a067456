package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/boltdb/bolt"
)

var postsBucket = []byte("posts")

// PostRecord は論文と WordPress 投稿の対応
type PostRecord struct {
	ArxivID     string    `json:"arxivId"`
	PostID      int       `json:"postId"`
	PostURL     string    `json:"postUrl,omitempty"`
	Transport   string    `json:"transport,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Ledger は投稿済み論文を bolt ファイルに記録する
//
// 同じ論文を再投稿したときに新規作成ではなく更新するために使う。
type Ledger struct {
	db *bolt.DB
}

// OpenLedger は台帳ファイルを開く（なければ作成）
func OpenLedger(path string) (*Ledger, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(postsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying file.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Get returns the record for arxivID.
func (l *Ledger) Get(arxivID string) (PostRecord, bool, error) {
	var rec PostRecord
	found := false
	err := l.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(postsBucket).Get([]byte(arxivID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	return rec, found, err
}

// Put stores rec, replacing any previous record for the same paper.
func (l *Ledger) Put(rec PostRecord) error {
	if rec.ArxivID == "" {
		return fmt.Errorf("ledger record without arxiv id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(postsBucket).Put([]byte(rec.ArxivID), data)
	})
}

// List returns every record, most recently updated first.
func (l *Ledger) List() ([]PostRecord, error) {
	var out []PostRecord
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(postsBucket).ForEach(func(_, v []byte) error {
			var rec PostRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
