package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/docluster/blobstore"
	"github.com/hupe1980/docluster/internal/hash"
)

// Client is the subset of *s3.Client the store uses.
type Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// UploadConfig configures writes.
type UploadConfig struct {
	// PartSize is the multipart part size. Blobs smaller than one part are
	// written with a single PutObject.
	// Default: 8MB
	PartSize int64

	// Concurrency is the number of concurrent part uploads.
	// Default: 5
	Concurrency int
}

// DefaultUploadConfig returns the default upload settings.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:    8 * 1024 * 1024,
		Concurrency: 5,
	}
}

// Store implements blobstore.Store for S3.
type Store struct {
	client   Client
	bucket   string
	prefix   string
	upload   UploadConfig
	uploader *manager.Uploader
}

var _ blobstore.Store = (*Store)(nil)

type options struct {
	prefix    string
	region    string
	endpoint  string
	pathStyle bool
	upload    UploadConfig
}

// Option configures New.
type Option func(*options)

// WithPrefix prepends prefix to every key.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithRegion overrides the region from the environment.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithEndpoint points the client at an S3-compatible endpoint and switches
// to path-style addressing.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
		o.pathStyle = true
	}
}

// WithUploadConfig overrides the upload settings.
func WithUploadConfig(cfg UploadConfig) Option {
	return func(o *options) {
		o.upload = cfg
	}
}

// New creates a Store with credentials and region from the default AWS
// configuration chain.
func New(ctx context.Context, bucket string, optFns ...Option) (*Store, error) {
	opts := options{upload: DefaultUploadConfig()}
	for _, fn := range optFns {
		fn(&opts)
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.endpoint != "" {
			o.BaseEndpoint = aws.String(opts.endpoint)
		}
		o.UsePathStyle = opts.pathStyle
	})
	return NewStore(client, bucket, opts.prefix, opts.upload), nil
}

// NewStore creates a Store over an existing client.
// rootPrefix is prepended to all keys (e.g. "docluster/").
func NewStore(client Client, bucket, rootPrefix string, upload UploadConfig) *Store {
	if upload.PartSize <= 0 {
		upload.PartSize = DefaultUploadConfig().PartSize
	}
	if upload.Concurrency <= 0 {
		upload.Concurrency = DefaultUploadConfig().Concurrency
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
		upload: upload,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = upload.PartSize
			u.Concurrency = upload.Concurrency
		}),
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open issues a HEAD request to learn the size of the blob.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return &s3Blob{
		client: s.client,
		bucket: s.bucket,
		key:    key,
		size:   aws.ToInt64(head.ContentLength),
	}, nil
}

// Put writes a blob.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	key := s.key(name)
	if int64(len(data)) < s.upload.PartSize {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:         aws.String(s.bucket),
			Key:            aws.String(key),
			Body:           bytes.NewReader(data),
			ContentLength:  aws.Int64(int64(len(data))),
			ChecksumCRC32C: aws.String(hash.CRC32CBase64(data)),
		})
		return err
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(key),
		Body:              bytes.NewReader(data),
		ChecksumAlgorithm: types.ChecksumAlgorithmCrc32c,
	})
	return err
}

// Delete removes a blob.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// List returns all blob names with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	root := strings.TrimSuffix(s.prefix, "/")
	fullPrefix := prefix
	if root != "" {
		fullPrefix = root + "/" + prefix
	}

	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fullPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			name := aws.ToString(obj.Key)
			if root != "" {
				name = strings.TrimPrefix(strings.TrimPrefix(name, root), "/")
			}
			if name != "" {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

type s3Blob struct {
	client Client
	bucket string
	key    string
	size   int64
}

func (b *s3Blob) Close() error { return nil }

func (b *s3Blob) Size() int64 { return b.size }

// ReadRange issues a ranged GET.
func (b *s3Blob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 {
		off = 0
	}
	end := off + length - 1
	if end >= b.size {
		end = b.size - 1
	}
	if off >= b.size || end < off {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}

	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return resp.Body, nil
}
