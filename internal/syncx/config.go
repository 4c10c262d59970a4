package syncx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/keevault/internal/common"
)

// Object storage families.
const (
	FamilyAliyun  = "aliyun"
	FamilyTencent = "tencent"
	FamilyS3      = "s3"
)

// ObjectStorageConfig is the JSON document configuring the "oss" provider.
type ObjectStorageConfig struct {
	Provider        string `json:"provider"`
	Endpoint        string `json:"endpoint"`
	Bucket          string `json:"bucket"`
	AccessKeyID     string `json:"access_key_id"`
	AccessKeySecret string `json:"access_key_secret"`
	Region          string `json:"region,omitempty"`
	Path            string `json:"path"`
}

// ParseObjectStorageConfig decodes and validates config.
func ParseObjectStorageConfig(config string) (*ObjectStorageConfig, error) {
	var c ObjectStorageConfig
	if err := json.Unmarshal([]byte(config), &c); err != nil {
		return nil, fmt.Errorf("sync config: %v: %w", err, common.ErrInvalidFormat)
	}
	c.Path = strings.TrimLeft(c.Path, "/")
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every required field is set. Tencent and S3 targets
// may omit the endpoint when a region is given.
func (c *ObjectStorageConfig) Validate() error {
	missing := func(field string) error {
		return fmt.Errorf("%s must not be empty: %w", field, common.ErrInvalidFormat)
	}
	switch {
	case c.Endpoint == "" && (c.Provider == FamilyAliyun || c.Region == ""):
		return missing("endpoint")
	case c.Bucket == "":
		return missing("bucket")
	case c.AccessKeyID == "":
		return missing("access key id")
	case c.AccessKeySecret == "":
		return missing("access key secret")
	case c.Path == "":
		return missing("path")
	}
	switch c.Provider {
	case FamilyAliyun, FamilyTencent, FamilyS3:
		return nil
	default:
		return fmt.Errorf("%q: %w", c.Provider, ErrUnsupportedProvider)
	}
}

// SyncConfig is a stored provider configuration. Config is the provider's
// JSON document and holds credentials; it is only ever persisted encrypted.
type SyncConfig struct {
	Provider  string `json:"provider_name"`
	Enabled   bool   `json:"enabled"`
	Config    string `json:"config"`
	UpdatedAt int64  `json:"updated_at"`
}
