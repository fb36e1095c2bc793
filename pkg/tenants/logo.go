package tenants

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
)

// MaxLogoSize bounds uploaded logos
const MaxLogoSize = 2 << 20

// ObjectStore is the subset of the S3 client used for logos
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}

// LogoStore uploads tenant logos to object storage
type LogoStore struct {
	service Service
	objects ObjectStore
}

// NewLogoStore creates a new LogoStore
func NewLogoStore(service Service, objects ObjectStore) *LogoStore {
	return &LogoStore{service: service, objects: objects}
}

// LogoKey returns the object key for a logo. Keys are content addressed so a
// re-upload of the same image is a no-op for caches.
func LogoKey(tenantID int64, data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("tenants/%d/logo/%s", tenantID, hex.EncodeToString(sum[:]))
}

// Upload stores the logo and points the tenant at it. The previous object is
// removed once the tenant row is updated.
func (l *LogoStore) Upload(ctx context.Context, tenantID int64, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("logo is empty")
	}
	if len(data) > MaxLogoSize {
		return "", fmt.Errorf("logo exceeds %d bytes", MaxLogoSize)
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	tenant, err := l.service.GetTenant(ctx, tenantID)
	if err != nil {
		return "", err
	}

	key := LogoKey(tenantID, data)
	if err := l.objects.PutObject(ctx, key, data, contentType); err != nil {
		return "", fmt.Errorf("failed to upload logo: %w", err)
	}

	if err := l.service.SetLogoKey(ctx, tenantID, key); err != nil {
		return "", err
	}

	if tenant.LogoKey != "" && tenant.LogoKey != key {
		if err := l.objects.DeleteObject(ctx, tenant.LogoKey); err != nil {
			return key, fmt.Errorf("failed to delete previous logo: %w", err)
		}
	}
	return key, nil
}
