package cachestore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// ============================================================================
// Database Key Namespace Design
// ============================================================================
//
// BadgerDB is a key-value store, so prefixed keys organize the data types
// into logical namespaces. This design:
//   - Prevents key collisions between data types
//   - Enables efficient range scans (all entries of a namespace, oldest first)
//   - Makes the database structure self-documenting
//
// Key Namespace Prefixes:
//
// Data Type           Prefix  Key Format               Value Type
// =============================================================================
// Entry               "e:"    e:<ns>:<url>             Entry (JSON)
// Insertion Index     "q:"    q:<ns>:<seq BE64>        canonical URL (bytes)
// Namespace Registry  "n:"    n:<ns>                   Namespace (JSON)
// Insertion Sequence  "s:"    s:<ns>                   uint64 (binary)
//
// The insertion index orders entries by a per-namespace monotonic sequence;
// big-endian encoding makes badger's lexicographic iteration equal insertion
// order, which is what Trim's strict LRU-by-insertion contract needs.

const (
	prefixEntry     = "e:"
	prefixIndex     = "q:"
	prefixNamespace = "n:"
	prefixSequence  = "s:"
)

// keyEntry generates a key for a stored entry: "e:<ns>:<url>"
func keyEntry(ns Namespace, url string) []byte {
	return []byte(prefixEntry + ns.StorageName() + ":" + url)
}

// keyEntryPrefix generates a prefix for scanning all entries of a namespace.
func keyEntryPrefix(ns Namespace) []byte {
	return []byte(prefixEntry + ns.StorageName() + ":")
}

// keyIndex generates an insertion-order index key: "q:<ns>:<seq>"
func keyIndex(ns Namespace, seq uint64) []byte {
	buf := make([]byte, 0, len(prefixIndex)+len(ns.StorageName())+1+8)
	buf = append(buf, prefixIndex...)
	buf = append(buf, ns.StorageName()...)
	buf = append(buf, ':')
	return binary.BigEndian.AppendUint64(buf, seq)
}

// keyIndexPrefix generates a prefix for scanning the insertion index.
func keyIndexPrefix(ns Namespace) []byte {
	return []byte(prefixIndex + ns.StorageName() + ":")
}

// keyNamespace generates the namespace registry key: "n:<ns>"
func keyNamespace(ns Namespace) []byte {
	return []byte(prefixNamespace + ns.StorageName())
}

// keySequence generates the insertion sequence counter key: "s:<ns>"
func keySequence(ns Namespace) []byte {
	return []byte(prefixSequence + ns.StorageName())
}

// encodeEntry serializes an Entry to JSON.
func encodeEntry(e *Entry) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return data, nil
}

// decodeEntry deserializes an Entry from JSON.
func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &e, nil
}

// encodeNamespace serializes a Namespace registry record.
func encodeNamespace(ns Namespace) ([]byte, error) {
	data, err := json.Marshal(ns)
	if err != nil {
		return nil, fmt.Errorf("failed to encode namespace: %w", err)
	}
	return data, nil
}

// decodeNamespace deserializes a Namespace registry record.
func decodeNamespace(data []byte) (Namespace, error) {
	var ns Namespace
	if err := json.Unmarshal(data, &ns); err != nil {
		return Namespace{}, fmt.Errorf("failed to decode namespace: %w", err)
	}
	return ns, nil
}

// encodeUint64 encodes a sequence counter value.
func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

// decodeUint64 decodes a sequence counter value.
func decodeUint64(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("invalid uint64 encoding: %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}
