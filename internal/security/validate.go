package security

import "errors"

// ValidateID checks an opaque avatar or owner id: non-empty, bounded length,
// visible ASCII only. Ids are caller-minted, so only shape is enforced.
func ValidateID(s string) error {
	if s == "" {
		return errors.New("empty id")
	}
	if len(s) > 64 {
		return errors.New("id too long")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= ' ' || c > '~' {
			return errors.New("id contains invalid characters")
		}
	}
	return nil
}
