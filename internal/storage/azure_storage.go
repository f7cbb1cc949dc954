package storage

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"strings"

	apperrors "go-leaf-inspector/internal/errors"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// BlobScheme is the reference scheme for Azure blobs:
// azblob://<container>/<blob path>.
const BlobScheme = "azblob"

type azureStorage struct {
	client       *azblob.Client
	maxImageSize int64
}

// NewAzureStorage creates a fetcher for azblob:// references using shared
// key authentication.
func NewAzureStorage(accountName string, accountKey string) (ImageFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return &azureStorage{client: client, maxImageSize: DefaultHTTPOptions.MaxImageSize}, nil
}

// ParseBlobRef splits an azblob:// reference into container and blob name.
func ParseBlobRef(ref string) (string, string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob reference: %w", err)
	}
	if !strings.EqualFold(u.Scheme, BlobScheme) {
		return "", "", fmt.Errorf("blob reference must use %s://", BlobScheme)
	}
	blob := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || blob == "" {
		return "", "", fmt.Errorf("blob reference must be %s://<container>/<blob>", BlobScheme)
	}
	return u.Host, blob, nil
}

func (s *azureStorage) FetchImage(ctx context.Context, ref string) (image.Image, error) {
	container, blob, err := ParseBlobRef(ref)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), err)
	}

	resp, err := s.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, apperrors.NewNetworkError("blob download failed", err)
	}
	body := resp.Body
	defer body.Close()

	return decodeLimited(body, s.maxImageSize)
}
