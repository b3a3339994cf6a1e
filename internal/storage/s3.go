package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/pathutil"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/xerrors"
)

// S3API is the subset of the S3 client the backend calls.
type S3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Presigner signs GET requests for direct client downloads.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Options struct {
	Client     S3API
	Presigner  Presigner
	Bucket     string
	Prefix     string
	PresignTTL time.Duration
}

// S3 stores archives as objects in a bucket, optionally below a prefix.
type S3 struct {
	client  S3API
	presign Presigner
	bucket  string
	prefix  string
	ttl     time.Duration
}

func NewS3(opts S3Options) (*S3, error) {
	if opts.Client == nil {
		return nil, errors.New("storage: s3 client is required")
	}
	if opts.Bucket == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 15 * time.Minute
	}
	return &S3{
		client:  opts.Client,
		presign: opts.Presigner,
		bucket:  opts.Bucket,
		prefix:  strings.Trim(opts.Prefix, "/"),
		ttl:     opts.PresignTTL,
	}, nil
}

// NewS3FromClient wires a real client together with its presign client.
func NewS3FromClient(c *s3.Client, bucket, prefix string, ttl time.Duration) (*S3, error) {
	return NewS3(S3Options{
		Client:     c,
		Presigner:  s3.NewPresignClient(c),
		Bucket:     bucket,
		Prefix:     prefix,
		PresignTTL: ttl,
	})
}

func (s *S3) key(name string) (string, error) {
	rel, err := pathutil.CleanRelative(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if s.prefix == "" {
		return rel, nil
	}
	return path.Join(s.prefix, rel), nil
}

// isNotFound matches both the HEAD style "NotFound" code and the GET
// style NoSuchKey error.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func (s *S3) head(ctx context.Context, name string) (*s3.HeadObjectOutput, error) {
	key, err := s.key(name)
	if err != nil {
		return nil, err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
		}
		return nil, xerrors.Wrapf(err, "head s3://%s/%s", s.bucket, key)
	}
	return out, nil
}

func (s *S3) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.head(ctx, name)
	if errors.Is(err, ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *S3) Delete(ctx context.Context, name string) error {
	key, err := s.key(name)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return xerrors.Wrapf(err, "delete s3://%s/%s", s.bucket, key)
	}
	return nil
}

func (s *S3) Save(ctx context.Context, name string, r io.Reader) error {
	key, err := s.key(name)
	if err != nil {
		return err
	}
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String("application/zip"),
	}
	if sk, ok := r.(io.Seeker); ok {
		if n, err := sk.Seek(0, io.SeekEnd); err == nil {
			if _, err := sk.Seek(0, io.SeekStart); err != nil {
				return xerrors.Wrap(err, "rewind upload")
			}
			in.ContentLength = aws.Int64(n)
		}
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return xerrors.Wrapf(err, "put s3://%s/%s", s.bucket, key)
	}
	return nil
}

// Open returns a reader that issues ranged GETs lazily, so seeking to the
// start of a byte range does not download the bytes before it.
func (s *S3) Open(ctx context.Context, name string) (io.ReadSeekCloser, error) {
	out, err := s.head(ctx, name)
	if err != nil {
		return nil, err
	}
	key, _ := s.key(name)
	return &s3Object{ctx: ctx, s: s, key: key, size: aws.ToInt64(out.ContentLength)}, nil
}

func (s *S3) Size(ctx context.Context, name string) (int64, error) {
	out, err := s.head(ctx, name)
	if err != nil {
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (s *S3) ModTime(ctx context.Context, name string) (time.Time, error) {
	out, err := s.head(ctx, name)
	if err != nil {
		return time.Time{}, err
	}
	return aws.ToTime(out.LastModified), nil
}

// Stat reads size and modification time from one HeadObject.
func (s *S3) Stat(ctx context.Context, name string) (Info, error) {
	out, err := s.head(ctx, name)
	if err != nil {
		return Info{}, err
	}
	return Info{Size: aws.ToInt64(out.ContentLength), ModTime: aws.ToTime(out.LastModified)}, nil
}

func (s *S3) URL(ctx context.Context, name string) (string, error) {
	if s.presign == nil {
		return "", ErrNoDirectURL
	}
	key, err := s.key(name)
	if err != nil {
		return "", err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", xerrors.Wrapf(err, "presign s3://%s/%s", s.bucket, key)
	}
	return req.URL, nil
}

func (s *S3) ServesDirectly() bool { return s.presign != nil }

func (s *S3) Check(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return xerrors.Wrapf(err, "head bucket %s", s.bucket)
	}
	return nil
}

type s3Object struct {
	ctx  context.Context
	s    *S3
	key  string
	size int64
	off  int64
	body io.ReadCloser
}

func (o *s3Object) Read(p []byte) (int, error) {
	if o.off >= o.size {
		return 0, io.EOF
	}
	if o.body == nil {
		out, err := o.s.client.GetObject(o.ctx, &s3.GetObjectInput{
			Bucket: aws.String(o.s.bucket),
			Key:    aws.String(o.key),
			Range:  aws.String(fmt.Sprintf("bytes=%d-", o.off)),
		})
		if err != nil {
			if isNotFound(err) {
				return 0, fmt.Errorf("%w: %s", ErrNotExist, o.key)
			}
			return 0, xerrors.Wrapf(err, "get s3://%s/%s", o.s.bucket, o.key)
		}
		o.body = out.Body
	}
	n, err := o.body.Read(p)
	o.off += int64(n)
	return n, err
}

func (o *s3Object) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = o.off + offset
	case io.SeekEnd:
		abs = o.size + offset
	default:
		return 0, errors.New("storage: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("storage: negative position")
	}
	if abs != o.off && o.body != nil {
		_ = o.body.Close()
		o.body = nil
	}
	o.off = abs
	return abs, nil
}

func (o *s3Object) Close() error {
	if o.body == nil {
		return nil
	}
	err := o.body.Close()
	o.body = nil
	return err
}
