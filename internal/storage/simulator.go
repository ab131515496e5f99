package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Simulator returns deterministic URLs without touching any bucket. Used in
// dev and by the API binary, which never uploads.
type Simulator struct {
	bucket   string
	endpoint string
}

func NewSimulator(bucket, endpoint string) *Simulator {
	return &Simulator{
		bucket:   strings.TrimSpace(bucket),
		endpoint: strings.TrimSpace(endpoint),
	}
}

func (s *Simulator) UploadAvatarImage(avatarID string, imageData []byte) (string, error) {
	if len(imageData) == 0 {
		return "", fmt.Errorf("empty image data")
	}

	sum := sha256.Sum256(imageData)
	key := hex.EncodeToString(sum[:])

	ep := s.endpoint
	if ep == "" {
		ep = "https://storage.example.invalid"
	}
	bucket := s.bucket
	if bucket == "" {
		bucket = "avatar-hub"
	}

	return fmt.Sprintf("%s/%s/avatars/%s/%s.png", strings.TrimRight(ep, "/"), bucket, avatarID, key), nil
}
