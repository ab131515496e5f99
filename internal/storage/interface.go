package storage

// ImageClient uploads avatar images and returns their public URL.
type ImageClient interface {
	UploadAvatarImage(avatarID string, imageData []byte) (string, error)
}
