package validation

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	apperrors "go-leaf-inspector/internal/errors"
)

// DefaultExtensions are the image formats the decoder understands.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".gif"}

// SourceValidator checks image references before anything is fetched
type SourceValidator struct {
	allowedSchemes    []string
	allowedHosts      []string
	allowedExtensions []string
}

// NewSourceValidator accepts local paths, file://, http(s):// and azblob://
// references with any host.
func NewSourceValidator() *SourceValidator {
	return &SourceValidator{
		allowedSchemes:    []string{"", "file", "http", "https", "azblob"},
		allowedHosts:      []string{}, // empty means all hosts allowed
		allowedExtensions: DefaultExtensions,
	}
}

// NewSourceValidatorWithOptions creates a validator with custom schemes and
// hosts. The scheme "" stands for plain file paths.
func NewSourceValidatorWithOptions(schemes []string, hosts []string) *SourceValidator {
	return &SourceValidator{
		allowedSchemes:    schemes,
		allowedHosts:      hosts,
		allowedExtensions: DefaultExtensions,
	}
}

// ValidateSource validates an image reference.
func (v *SourceValidator) ValidateSource(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return apperrors.NewValidationError("image source cannot be empty", nil)
	}

	scheme, name := "", ref
	if u, err := url.Parse(ref); err == nil && len(u.Scheme) > 1 {
		scheme = strings.ToLower(u.Scheme)
		name = u.Path
		if !v.isSchemeAllowed(scheme) {
			return apperrors.NewValidationError(fmt.Sprintf("image source scheme %q not allowed", scheme), nil)
		}
		if scheme != "file" {
			if u.Host == "" {
				return apperrors.NewValidationError("image source must have a valid host", nil)
			}
			if !v.isHostAllowed(u.Hostname()) {
				return apperrors.NewValidationError("image source host not allowed", nil)
			}
		}
		name = path.Base(name)
	} else {
		if !v.isSchemeAllowed("") {
			return apperrors.NewValidationError("local image paths not allowed", nil)
		}
		name = filepath.Base(ref)
	}

	return v.ValidateFilename(name)
}

// ValidateFilename checks that name carries a supported image extension.
func (v *SourceValidator) ValidateFilename(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range v.allowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return apperrors.NewValidationError(
		fmt.Sprintf("unsupported image type %q (allowed: %s)", ext, strings.Join(v.allowedExtensions, ", ")), nil)
}

func (v *SourceValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed returns true if no host restrictions are set
func (v *SourceValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if strings.EqualFold(host, allowed) {
			return true
		}
	}
	return false
}
