package syncx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ObjectStorageName is the registry key of the object storage provider.
const ObjectStorageName = "oss"

// objectStore is one configured bucket object.
type objectStore interface {
	put(ctx context.Context, data []byte, version int64) error
	get(ctx context.Context) ([]byte, error)
	// head returns the stored version, or ErrRemoteNotFound.
	head(ctx context.Context) (int64, error)
}

// ObjectStorage syncs the container as a single object in an Aliyun OSS,
// Tencent COS or S3-compatible bucket. The upload version is the unix time of
// the upload and travels as object metadata.
type ObjectStorage struct {
	client *http.Client
	now    func() time.Time
}

// NewObjectStorage returns the "oss" provider. client carries the request
// timeout; nil means http.DefaultClient.
func NewObjectStorage(client *http.Client) *ObjectStorage {
	if client == nil {
		client = http.DefaultClient
	}
	return &ObjectStorage{client: client, now: time.Now}
}

func (p *ObjectStorage) Name() string { return ObjectStorageName }

func (p *ObjectStorage) store(ctx context.Context, config string) (objectStore, error) {
	cfg, err := ParseObjectStorageConfig(config)
	if err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case FamilyAliyun:
		return newAliyunStore(cfg, p.client, p.now), nil
	case FamilyTencent:
		return newTencentStore(cfg, p.client, p.now), nil
	case FamilyS3:
		return newS3Store(ctx, cfg, p.client)
	default:
		return nil, fmt.Errorf("%q: %w", cfg.Provider, ErrUnsupportedProvider)
	}
}

// TestConnection validates config and checks the object. A missing object
// still counts as a working connection.
func (p *ObjectStorage) TestConnection(ctx context.Context, config string) error {
	s, err := p.store(ctx, config)
	if err != nil {
		return err
	}
	if _, err := s.head(ctx); err != nil && !errors.Is(err, ErrRemoteNotFound) {
		return fmt.Errorf("connection failed: %w", err)
	}
	return nil
}

func (p *ObjectStorage) Upload(ctx context.Context, data []byte, config string) (*Result, error) {
	s, err := p.store(ctx, config)
	if err != nil {
		return nil, err
	}
	version := p.now().Unix()
	if err := s.put(ctx, data, version); err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	return &Result{Success: true, Message: "upload succeeded", Version: version, Timestamp: version}, nil
}

func (p *ObjectStorage) Download(ctx context.Context, config string) ([]byte, error) {
	s, err := p.store(ctx, config)
	if err != nil {
		return nil, err
	}
	data, err := s.get(ctx)
	if err != nil {
		if errors.Is(err, ErrRemoteNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}
	return data, nil
}

func (p *ObjectStorage) RemoteVersion(ctx context.Context, config string) (int64, bool, error) {
	s, err := p.store(ctx, config)
	if err != nil {
		return 0, false, err
	}
	v, err := s.head(ctx)
	if errors.Is(err, ErrRemoteNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (p *ObjectStorage) CheckUpdate(ctx context.Context, localVersion int64, config string) (bool, error) {
	return CheckUpdate(ctx, p, localVersion, config)
}

// NewDefaultManager returns a Manager with every built-in provider
// registered.
func NewDefaultManager(client *http.Client) *Manager {
	m := NewManager()
	m.Register(NewObjectStorage(client))
	return m
}
