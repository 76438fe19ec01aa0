package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// UploadsConfig holds file-delivery configuration.
type UploadsConfig struct {
	// MaxSizeMB caps the total size of a single upload. Files larger than
	// this are rejected before any network call.
	MaxSizeMB int `env:"UPLOAD_MAX_SIZE_MB" yaml:"max_size_mb" default:"20"`

	// FolderName is the destination folder under the drive root. Uploads
	// fall back to the drive root if the folder cannot be provisioned.
	FolderName string `env:"UPLOAD_FOLDER_NAME" yaml:"folder_name" default:"Uploads"`
}

// MaxSizeBytes returns the configured cap in bytes.
func (c UploadsConfig) MaxSizeBytes() int64 {
	return int64(c.MaxSizeMB) * 1024 * 1024
}

func (c UploadsConfig) validate() error {
	var result error
	if c.MaxSizeMB <= 0 {
		result = multierror.Append(result, fmt.Errorf("upload max_size_mb must be greater than 0"))
	}
	if c.FolderName == "" {
		result = multierror.Append(result, fmt.Errorf("upload folder_name must not be empty"))
	}
	return result
}
