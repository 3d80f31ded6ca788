package badger

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/poiesic/furrow/storage"
)

// Key prefixes for different data types
const (
	vectorRecordPrefix = "vecrec"
	documentPrefix     = "docrec"
	collectionPrefix   = "colrec"
)

// validateCollectionName rejects names that would break key prefix boundaries.
func validateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", storage.ErrInvalidCollection)
	}
	if strings.Contains(name, ":") {
		return fmt.Errorf("%w: %q contains ':'", storage.ErrInvalidCollection, name)
	}
	return nil
}

// makeCollectionRecordPrefix generates the prefix shared by every vector record of a collection.
// Format: prefix:collection:
func makeCollectionRecordPrefix(collection string) []byte {
	return []byte(vectorRecordPrefix + ":" + collection + ":")
}

// makeDocumentRecordPrefix generates the prefix shared by every vector record of a document.
// Format: prefix:collection:documentID:
func makeDocumentRecordPrefix(collection, documentID string) []byte {
	return []byte(vectorRecordPrefix + ":" + collection + ":" + documentID + ":")
}

// makeVectorRecordKey generates a key for the record at a chunk position.
// Format: prefix:collection:documentID:index
func makeVectorRecordKey(collection, documentID string, index int) []byte {
	prefix := makeDocumentRecordPrefix(collection, documentID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort follows chunk order
	binary.BigEndian.PutUint64(buf[offset:], uint64(index))
	return buf
}

// documentIDFromRecordKey extracts the document id from a record key of the
// collection whose prefix is given.
func documentIDFromRecordKey(prefix, key []byte) (string, bool) {
	// separator plus the 8 byte index
	const suffix = 9
	if len(key) < len(prefix)+suffix+1 || key[len(key)-suffix] != ':' {
		return "", false
	}
	return string(key[len(prefix) : len(key)-suffix]), true
}

// makeDocumentKey generates a key for a catalog entry.
func makeDocumentKey(collection, id string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", documentPrefix, collection, id))
}

// makeDocumentListPrefix generates the prefix shared by a collection's catalog entries.
func makeDocumentListPrefix(collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", documentPrefix, collection))
}

// makeCollectionKey generates a key for a collection descriptor.
func makeCollectionKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", collectionPrefix, name))
}
