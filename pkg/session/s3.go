package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Client is the subset of the S3 API the store uses.
// *s3.Client satisfies it; tests supply a fake.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// s3Envelope wraps the snapshot with its expiry. S3 has no per-key TTL, so
// the expiry travels inside the object and Load filters expired snapshots.
type s3Envelope struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// S3Store persists snapshots as S3 objects, one per session.
// Suitable for multi-server deployments where sessions may resume on a
// different instance.
type S3Store struct {
	client S3Client
	bucket string
	prefix string

	// closed is read on every operation while Close may run concurrently
	// (server shutdown races detaching sessions).
	closed atomic.Bool
}

// S3StoreOption configures S3Store behavior.
type S3StoreOption func(*s3StoreConfig)

type s3StoreConfig struct {
	prefix string
}

// WithS3Prefix sets the object key prefix. Default: "querysync/session/".
func WithS3Prefix(prefix string) S3StoreOption {
	return func(c *s3StoreConfig) {
		c.prefix = prefix
	}
}

// NewS3Store creates an S3-backed store writing into the given bucket.
func NewS3Store(client S3Client, bucket string, opts ...S3StoreOption) *S3Store {
	cfg := &s3StoreConfig{
		prefix: "querysync/session/",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: cfg.prefix,
	}
}

func (s *S3Store) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *S3Store) put(ctx context.Context, sessionID string, env s3Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(sessionID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	return err
}

func (s *S3Store) get(ctx context.Context, sessionID string) (s3Envelope, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return s3Envelope{}, false, nil
		}
		return s3Envelope{}, false, err
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return s3Envelope{}, false, err
	}

	var env s3Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return s3Envelope{}, false, err
	}
	return env, true, nil
}

func (s *S3Store) Save(ctx context.Context, sessionID string, data []byte, expiresAt time.Time) error {
	if s.closed.Load() {
		return ErrStoreClosed{}
	}

	if time.Until(expiresAt) <= 0 {
		return s.Delete(ctx, sessionID)
	}

	return s.put(ctx, sessionID, s3Envelope{Data: data, ExpiresAt: expiresAt})
}

func (s *S3Store) Load(ctx context.Context, sessionID string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed{}
	}

	env, ok, err := s.get(ctx, sessionID)
	if err != nil || !ok {
		return nil, err
	}
	if time.Now().After(env.ExpiresAt) {
		return nil, nil
	}
	return env.Data, nil
}

func (s *S3Store) Delete(ctx context.Context, sessionID string) error {
	if s.closed.Load() {
		return ErrStoreClosed{}
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID)),
	})
	return err
}

// Touch rewrites the envelope with the new expiry. S3 objects are immutable,
// so this costs a read and a write; callers should touch sparingly.
func (s *S3Store) Touch(ctx context.Context, sessionID string, expiresAt time.Time) error {
	if s.closed.Load() {
		return ErrStoreClosed{}
	}

	env, ok, err := s.get(ctx, sessionID)
	if err != nil || !ok {
		return err
	}

	env.ExpiresAt = expiresAt
	return s.put(ctx, sessionID, env)
}

func (s *S3Store) SaveAll(ctx context.Context, snapshots map[string]Stored) error {
	if s.closed.Load() {
		return ErrStoreClosed{}
	}

	for id, sn := range snapshots {
		if time.Until(sn.ExpiresAt) <= 0 {
			continue
		}
		if err := s.put(ctx, id, s3Envelope{Data: sn.Data, ExpiresAt: sn.ExpiresAt}); err != nil {
			return err
		}
	}
	return nil
}

// Close marks the store closed. The S3 client may be shared and is not
// closed here.
func (s *S3Store) Close() error {
	s.closed.Store(true)
	return nil
}
