package oxia

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	oxiaclient "github.com/oxia-db/oxia/oxia"

	"github.com/starquake/horizon/internal/metadata"
)

// Config configures the Oxia store.
type Config struct {
	// ServiceAddress is the Oxia endpoint, e.g. "localhost:6648".
	ServiceAddress string

	// Namespace scopes every key, e.g. "horizon".
	Namespace string

	// RequestTimeout bounds each request. Zero uses the client default.
	RequestTimeout time.Duration

	// SessionTimeout is how long ephemeral keys outlive a silent client.
	// Oxia requires at least 5 seconds. Zero uses the client default.
	SessionTimeout time.Duration
}

// Store implements metadata.Store using an Oxia sync client.
type Store struct {
	client oxiaclient.SyncClient

	mu     sync.RWMutex
	closed bool
}

var _ metadata.Store = (*Store)(nil)

// New connects to Oxia.
func New(cfg Config) (*Store, error) {
	if cfg.ServiceAddress == "" {
		return nil, errors.New("oxia: service address is required")
	}
	if cfg.Namespace == "" {
		return nil, errors.New("oxia: namespace is required")
	}

	opts := []oxiaclient.ClientOption{oxiaclient.WithNamespace(cfg.Namespace)}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, oxiaclient.WithRequestTimeout(cfg.RequestTimeout))
	}
	if cfg.SessionTimeout > 0 {
		opts = append(opts, oxiaclient.WithSessionTimeout(cfg.SessionTimeout))
	}

	client, err := oxiaclient.NewSyncClient(cfg.ServiceAddress, opts...)
	if err != nil {
		return nil, fmt.Errorf("oxia: create client: %w", err)
	}
	return &Store{client: client}, nil
}

// Oxia versions start at 0 for the first write; metadata.Version reserves 0
// for "never written".
func fromOxiaVersion(v int64) metadata.Version {
	return metadata.Version(v + 1)
}

func toOxiaVersion(v metadata.Version) int64 {
	return int64(v - 1)
}

func (s *Store) Get(ctx context.Context, key string) (metadata.GetResult, error) {
	if err := s.checkOpen(); err != nil {
		return metadata.GetResult{}, err
	}

	_, value, version, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, oxiaclient.ErrKeyNotFound) {
			return metadata.GetResult{}, nil
		}
		return metadata.GetResult{}, fmt.Errorf("oxia: get %s: %w", key, err)
	}
	return metadata.GetResult{
		Value:   value,
		Version: fromOxiaVersion(version.VersionId),
		Exists:  true,
	}, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, opts ...metadata.PutOption) (metadata.Version, error) {
	return s.put(ctx, key, value, nil, opts)
}

func (s *Store) PutEphemeral(ctx context.Context, key string, value []byte, opts ...metadata.PutOption) (metadata.Version, error) {
	return s.put(ctx, key, value, []oxiaclient.PutOption{oxiaclient.Ephemeral()}, opts)
}

func (s *Store) put(ctx context.Context, key string, value []byte, base []oxiaclient.PutOption, opts []metadata.PutOption) (metadata.Version, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	oxiaOpts := base
	expectNotExists, expectedVersion := metadata.ResolvePutOptions(opts)
	switch {
	case expectNotExists:
		oxiaOpts = append(oxiaOpts, oxiaclient.ExpectedRecordNotExists())
	case expectedVersion != nil:
		oxiaOpts = append(oxiaOpts, oxiaclient.ExpectedVersionId(toOxiaVersion(*expectedVersion)))
	}

	_, version, err := s.client.Put(ctx, key, value, oxiaOpts...)
	if err != nil {
		if errors.Is(err, oxiaclient.ErrUnexpectedVersionId) {
			return 0, metadata.ErrVersionMismatch
		}
		return 0, fmt.Errorf("oxia: put %s: %w", key, err)
	}
	return fromOxiaVersion(version.VersionId), nil
}

func (s *Store) Delete(ctx context.Context, key string, expectedVersion *metadata.Version) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	var oxiaOpts []oxiaclient.DeleteOption
	if expectedVersion != nil {
		oxiaOpts = append(oxiaOpts, oxiaclient.ExpectedVersionId(toOxiaVersion(*expectedVersion)))
	}

	err := s.client.Delete(ctx, key, oxiaOpts...)
	switch {
	case err == nil, errors.Is(err, oxiaclient.ErrKeyNotFound):
		return nil
	case errors.Is(err, oxiaclient.ErrUnexpectedVersionId):
		return metadata.ErrVersionMismatch
	default:
		return fmt.Errorf("oxia: delete %s: %w", key, err)
	}
}

// Close ends the client session, which releases every ephemeral key it
// wrote.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return metadata.ErrStoreClosed
	}
	return nil
}

const minSessionTimeout = 5 * time.Second
