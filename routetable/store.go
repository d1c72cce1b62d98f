package routetable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v5"

	"github.com/edgecraft/edgecraft"
)

// Well-known keys inside one routing table.
const (
	// RoutesKey holds the global route list shared by every namespace.
	RoutesKey = "routes"
	// MetadataKey holds one namespace's metadata blob.
	MetadataKey = "metadata"
)

const appendMaxTries = 8

// ErrNotFound is returned by providers for absent keys.
var ErrNotFound = errors.New("routetable: key not found")

// ErrVersionConflict is returned by Apply when the store moved on since the
// version token was taken. Callers re-read and retry.
var ErrVersionConflict = errors.New("routetable: version conflict")

// Limits are the provider-imposed size bounds.
//
// MaxTotalBytes is enforced against the serialized route list alone, not the
// live store footprint: metadata blobs and the deploy-hash key are small,
// individually bounded by MaxValueBytes, and not counted. The route list is
// the only value that grows with the number of routes, so it is the one that
// can approach the store ceiling.
type Limits struct {
	MaxValueBytes int
	MaxTotalBytes int
}

// Getter is the read-only provider surface. The request dispatcher consumes
// only this.
type Getter interface {
	Get(ctx context.Context, key string) (string, error)
}

// Provider is a namespaced key-value backend for one routing table.
type Provider interface {
	Getter
	Limits() Limits

	// Version returns an opaque revision token for the whole store.
	Version(ctx context.Context) (string, error)

	// Apply atomically applies puts and deletes if the store revision still
	// matches version, and returns ErrVersionConflict otherwise.
	Apply(ctx context.Context, version string, puts map[string]string, deletes []string) error
}

// Store implements the deploy-time write side of the routing table.
type Store struct {
	provider Provider
}

func NewStore(provider Provider) *Store {
	return &Store{provider: provider}
}

// Key joins a namespace and key into the physical store key. The global
// route list lives in the empty namespace.
func Key(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}

// chunkSentinel is stored under RoutesKey when the route list is split
// across RoutesKey:<i> part keys.
type chunkSentinel struct {
	Parts int `json:"parts"`
}

// ParseChunkSentinel reports whether value is a chunk sentinel and, if so,
// how many part keys to read.
func ParseChunkSentinel(value string) (int, bool) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "{") {
		return 0, false
	}
	var s chunkSentinel
	if err := json.Unmarshal([]byte(trimmed), &s); err != nil || s.Parts < 1 {
		return 0, false
	}
	return s.Parts, true
}

// ChunkKey returns the physical key of the i-th route list part.
func ChunkKey(i int) string {
	return fmt.Sprintf("%s:%d", RoutesKey, i)
}

// Read fetches a raw value. Callers handle chunk reassembly.
func (s *Store) Read(ctx context.Context, namespace, key string) (string, error) {
	return s.provider.Get(ctx, Key(namespace, key))
}

// UpsertMetadata fully replaces the metadata blob for a namespace. Metadata
// is never chunked: a blob over the per-value limit is a deploy-time error.
func (s *Store) UpsertMetadata(ctx context.Context, namespace string, md *Metadata) error {
	if namespace == "" {
		return &edgecraft.ValidationError{Field: "namespace", Message: "metadata namespace is required"}
	}
	blob, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("routetable: marshal metadata: %w", err)
	}
	return s.WriteValue(ctx, namespace, MetadataKey, string(blob))
}

// WriteValue replaces a single namespaced value. It is never chunked: a
// value over the per-value limit is a deploy-time error.
func (s *Store) WriteValue(ctx context.Context, namespace, key, value string) error {
	physical := Key(namespace, key)
	limits := s.provider.Limits()
	if limits.MaxValueBytes > 0 && len(value) > limits.MaxValueBytes {
		return &edgecraft.CapacityError{Key: physical, Size: len(value), Limit: limits.MaxValueBytes}
	}

	op := func() (struct{}, error) {
		version, err := s.provider.Version(ctx)
		if err != nil {
			return struct{}{}, err
		}
		err = s.provider.Apply(ctx, version, map[string]string{physical: value}, nil)
		return struct{}{}, err
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(appendMaxTries))
	return err
}

// AppendRoute adds one descriptor to the shared route list.
//
// The update is an optimistic read-modify-write: the current list (chunked
// or not) is read under a version token, merged, re-chunked, and applied
// conditionally. A concurrent deploy racing on the same table triggers
// ErrVersionConflict and the merge is retried from a fresh read, so no
// namespace's entries are lost. Appending an already-present literal line is
// a no-op.
func (s *Store) AppendRoute(ctx context.Context, desc RouteDescriptor) error {
	if desc.Namespace == "" {
		return &edgecraft.ValidationError{Field: "namespace", Message: "route namespace is required"}
	}
	if !strings.HasPrefix(desc.Path, "/") {
		return &edgecraft.ValidationError{Field: "path", Message: `route path must start with "/"`}
	}

	op := func() (struct{}, error) {
		version, err := s.provider.Version(ctx)
		if err != nil {
			return struct{}{}, err
		}

		serialized, oldParts, err := s.readRouteList(ctx)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return struct{}{}, err
		}

		line := desc.Line()
		for _, existing := range strings.Split(serialized, "\n") {
			if existing == line {
				return struct{}{}, nil
			}
		}
		if serialized != "" {
			serialized += "\n"
		}
		serialized += line

		puts, deletes, err := chunkRouteList(serialized, s.provider.Limits(), oldParts)
		if err != nil {
			// Capacity overflow is not recoverable by retrying.
			return struct{}{}, backoff.Permanent(err)
		}

		return struct{}{}, s.provider.Apply(ctx, version, puts, deletes)
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(appendMaxTries))
	return err
}

// Register writes one route's metadata and then appends its descriptor.
// Metadata is written first so the dispatcher never observes a listed route
// without its blob.
func (s *Store) Register(ctx context.Context, desc RouteDescriptor, md *Metadata) error {
	if err := s.UpsertMetadata(ctx, desc.Namespace, md); err != nil {
		return err
	}
	return s.AppendRoute(ctx, desc)
}

// readRouteList returns the reassembled route list and how many part keys
// currently hold it (0 when stored inline).
func (s *Store) readRouteList(ctx context.Context) (string, int, error) {
	value, err := s.provider.Get(ctx, RoutesKey)
	if err != nil {
		return "", 0, err
	}
	parts, ok := ParseChunkSentinel(value)
	if !ok {
		return value, 0, nil
	}
	var b strings.Builder
	for i := 0; i < parts; i++ {
		chunk, err := s.provider.Get(ctx, ChunkKey(i))
		if err != nil {
			return "", 0, fmt.Errorf("routetable: read part %d of %d: %w", i, parts, err)
		}
		b.WriteString(chunk)
	}
	return b.String(), parts, nil
}

// chunkRouteList produces the put/delete sets for storing a serialized route
// list, splitting it across part keys when it exceeds the per-value limit.
func chunkRouteList(serialized string, limits Limits, oldParts int) (map[string]string, []string, error) {
	puts := map[string]string{}
	newParts := 0

	if limits.MaxValueBytes <= 0 || len(serialized) <= limits.MaxValueBytes {
		puts[RoutesKey] = serialized
	} else {
		data := serialized
		for len(data) > 0 {
			n := limits.MaxValueBytes
			if n > len(data) {
				n = len(data)
			}
			puts[ChunkKey(newParts)] = data[:n]
			data = data[n:]
			newParts++
		}
		sentinel, err := json.Marshal(chunkSentinel{Parts: newParts})
		if err != nil {
			return nil, nil, err
		}
		puts[RoutesKey] = string(sentinel)
	}

	if limits.MaxTotalBytes > 0 {
		total := 0
		for k, v := range puts {
			total += len(k) + len(v)
		}
		if total > limits.MaxTotalBytes {
			return nil, nil, &edgecraft.CapacityError{Key: RoutesKey, Size: total, Limit: limits.MaxTotalBytes}
		}
	}

	var deletes []string
	for i := newParts; i < oldParts; i++ {
		deletes = append(deletes, ChunkKey(i))
	}
	return puts, deletes, nil
}
