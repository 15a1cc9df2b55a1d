package receipt

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "receipts"

// ErrNotFound is returned when no receipt has the requested ID
var ErrNotFound = errors.New("receipt not found")

// DB defines the interface for database operations.
// Every method runs in its own store session which is released before it returns.
type DB interface {
	// InsertReceipt stores a new receipt and assigns its ID
	InsertReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id int64) (*Receipt, error)

	// ListReceipts returns all receipts in insertion order
	ListReceipts() ([]*Receipt, error)

	// FindByFilename returns receipts whose filename equals filename
	FindByFilename(filename string) ([]*Receipt, error)

	// FindByContent returns receipts with exactly this vendor, date and amount
	FindByContent(vendor, date string, amount float64) ([]*Receipt, error)

	// UpdateReceipt loads a receipt, applies fn and saves it in one transaction
	UpdateReceipt(id int64, fn func(*Receipt)) (*Receipt, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// itob encodes an ID big-endian so cursor order matches insertion order
func itob(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func putReceipt(bucket *bbolt.Bucket, receipt *Receipt) error {
	type plain Receipt
	data, err := json.Marshal((*plain)(receipt))
	if err != nil {
		return fmt.Errorf("marshaling receipt: %w", err)
	}
	return bucket.Put(itob(receipt.ID), data)
}

// InsertReceipt saves a new receipt using the bucket sequence as its ID
func (b *BoltDB) InsertReceipt(receipt *Receipt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating receipt id: %w", err)
		}
		receipt.ID = int64(seq)
		return putReceipt(bucket, receipt)
	})
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id int64) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get(itob(id))
		if data == nil {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return json.Unmarshal(data, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// scan walks every stored receipt and keeps those accepted by match
func (b *BoltDB) scan(match func(*Receipt) bool) ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			if match(&receipt) {
				receipts = append(receipts, &receipt)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// ListReceipts returns all receipts
func (b *BoltDB) ListReceipts() ([]*Receipt, error) {
	return b.scan(func(*Receipt) bool { return true })
}

// FindByFilename returns receipts uploaded under filename
func (b *BoltDB) FindByFilename(filename string) ([]*Receipt, error) {
	return b.scan(func(r *Receipt) bool { return r.Filename == filename })
}

// FindByContent returns receipts matching the vendor, date and amount exactly
func (b *BoltDB) FindByContent(vendor, date string, amount float64) ([]*Receipt, error) {
	return b.scan(func(r *Receipt) bool {
		return r.Vendor == vendor && r.Date == date && r.Amount == amount
	})
}

// UpdateReceipt applies fn to the stored receipt inside a single write transaction
func (b *BoltDB) UpdateReceipt(id int64, fn func(*Receipt)) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get(itob(id))
		if data == nil {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		if err := json.Unmarshal(data, &receipt); err != nil {
			return fmt.Errorf("unmarshaling receipt: %w", err)
		}
		fn(receipt)
		receipt.ID = id
		return putReceipt(bucket, receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
