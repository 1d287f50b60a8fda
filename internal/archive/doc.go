// Package archive uploads committed recordings to S3-compatible object storage.
package archive
