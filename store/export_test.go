package store

import (
	"encoding/binary"

	bolt "go.etcd.io/bbolt"
)

func rewindToV1(bs *BoltStore) error {
	return bs.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(addedAtIndex); err != nil {
			return err
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, 1)
		return tx.Bucket(metaBucket).Put(schemaKey, buf)
	})
}
