package cachestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Storage.
type S3API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage keeps caches in an S3 bucket.
//
// Layout beneath Prefix:
//
//	caches/<escaped name>            marker object; body is the creation time
//	entries/<escaped name>/<md5>     JSON record for one entry
type S3Storage struct {
	client S3API
	bucket string
	prefix string

	mu          sync.Mutex
	lastCreated time.Time
}

// NewS3Storage creates an S3-backed storage.
func NewS3Storage(client S3API, bucket, prefix string) (*S3Storage, error) {
	if client == nil {
		return nil, ErrNilStorage
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("cachestore: s3 bucket is required")
	}
	return &S3Storage{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (s *S3Storage) object(parts ...string) string {
	if s.prefix == "" {
		return path.Join(parts...)
	}
	return path.Join(append([]string{s.prefix}, parts...)...)
}

func (s *S3Storage) markerKey(name string) string {
	return s.object("caches", url.PathEscape(name))
}

func (s *S3Storage) entriesPrefix(name string) string {
	return s.object("entries", url.PathEscape(name)) + "/"
}

// Open returns the named cache, writing its marker if absent.
func (s *S3Storage) Open(ctx context.Context, name string) (Cache, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	ok, err := s.Has(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		created := s.nextCreated().Format(time.RFC3339Nano)
		if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.markerKey(name)),
			Body:   strings.NewReader(created),
		}); err != nil {
			return nil, fmt.Errorf("cachestore: create cache marker: %w", err)
		}
	}
	return &S3Cache{storage: s, name: name}, nil
}

// nextCreated returns a creation time strictly after the previous one so
// caches opened back to back keep their order.
func (s *S3Storage) nextCreated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if !now.After(s.lastCreated) {
		now = s.lastCreated.Add(time.Nanosecond)
	}
	s.lastCreated = now
	return now
}

// Lookup returns the named cache without writing its marker.
func (s *S3Storage) Lookup(ctx context.Context, name string) (Cache, bool, error) {
	ok, err := s.Has(ctx, name)
	if err != nil || !ok {
		return nil, false, err
	}
	return &S3Cache{storage: s, name: name}, true, nil
}

// Has reports whether the cache marker exists.
func (s *S3Storage) Has(ctx context.Context, name string) (bool, error) {
	_, ok, err := s.getObject(ctx, s.markerKey(name))
	return ok, err
}

type s3Marker struct {
	name    string
	created time.Time
}

// Keys lists cache names ordered by marker creation time.
func (s *S3Storage) Keys(ctx context.Context) ([]string, error) {
	prefix := s.object("caches") + "/"
	objects, err := s.list(ctx, prefix)
	if err != nil {
		return nil, err
	}

	markers := make([]s3Marker, 0, len(objects))
	for _, obj := range objects {
		name, err := url.PathUnescape(strings.TrimPrefix(aws.ToString(obj.Key), prefix))
		if err != nil {
			continue
		}
		body, ok, err := s.getObject(ctx, aws.ToString(obj.Key))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		created, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(body)))
		if err != nil {
			created = aws.ToTime(obj.LastModified)
		}
		markers = append(markers, s3Marker{name: name, created: created})
	}
	sort.SliceStable(markers, func(i, j int) bool {
		return markers[i].created.Before(markers[j].created)
	})

	names := make([]string, len(markers))
	for i, m := range markers {
		names[i] = m.name
	}
	return names, nil
}

// Delete removes every entry object and then the marker.
func (s *S3Storage) Delete(ctx context.Context, name string) (bool, error) {
	ok, err := s.Has(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	objects, err := s.list(ctx, s.entriesPrefix(name))
	if err != nil {
		return false, err
	}
	for _, obj := range objects {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    obj.Key,
		}); err != nil {
			return false, fmt.Errorf("cachestore: delete entry object: %w", err)
		}
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.markerKey(name)),
	}); err != nil {
		return false, fmt.Errorf("cachestore: delete cache marker: %w", err)
	}
	return true, nil
}

// Match looks url up in each cache in creation order.
func (s *S3Storage) Match(ctx context.Context, rawURL string) (*Response, bool, error) {
	key, err := Key(rawURL)
	if err != nil {
		return nil, false, err
	}
	names, err := s.Keys(ctx)
	if err != nil {
		return nil, false, err
	}
	for _, name := range names {
		resp, ok, err := s.readEntry(ctx, name, key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return resp, true, nil
		}
	}
	return nil, false, nil
}

func (s *S3Storage) readEntry(ctx context.Context, name, key string) (*Response, bool, error) {
	body, ok, err := s.getObject(ctx, s.entriesPrefix(name)+encodeKey(key))
	if err != nil || !ok {
		return nil, false, err
	}
	var rec diskRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, false, fmt.Errorf("cachestore: decode entry: %w", err)
	}
	if rec.Response == nil {
		return nil, false, ErrNilResponse
	}
	return rec.Response, true, nil
}

func (s *S3Storage) getObject(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cachestore: get object %q: %w", key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("cachestore: read object %q: %w", key, err)
	}
	return body, true, nil
}

func (s *S3Storage) list(ctx context.Context, prefix string) ([]types.Object, error) {
	var objects []types.Object
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("cachestore: list %q: %w", prefix, err)
		}
		objects = append(objects, page.Contents...)
	}
	return objects, nil
}

// S3Cache is a single cache stored under one S3 key prefix.
type S3Cache struct {
	storage *S3Storage
	name    string
}

// Name returns the cache name.
func (c *S3Cache) Name() string {
	return c.name
}

// Put stores a single response.
func (c *S3Cache) Put(ctx context.Context, url string, resp *Response) error {
	return c.PutAll(ctx, []Entry{{URL: url, Response: resp}})
}

// PutAll encodes every entry before uploading any of them. S3 has no
// multi-object transaction, so the previous object under each key is kept
// in memory and put back (or the new object deleted) if a later upload
// fails.
func (c *S3Cache) PutAll(ctx context.Context, entries []Entry) error {
	prepared, err := prepareEntries(entries, time.Now())
	if err != nil {
		return err
	}
	bodies := make([][]byte, len(prepared))
	for i, p := range prepared {
		b, err := json.Marshal(diskRecord{Key: p.key, Response: p.resp})
		if err != nil {
			return fmt.Errorf("cachestore: encode entry: %w", err)
		}
		bodies[i] = b
	}

	prefix := c.storage.entriesPrefix(c.name)
	var written []s3Previous
	seen := make(map[string]bool, len(prepared))
	for i, p := range prepared {
		object := prefix + encodeKey(p.key)
		if !seen[object] {
			prev, existed, err := c.storage.getObject(ctx, object)
			if err != nil {
				return errors.Join(err, c.rollback(ctx, written))
			}
			seen[object] = true
			written = append(written, s3Previous{object: object, body: prev, existed: existed})
		}
		if err := c.storage.putEntry(ctx, object, bodies[i]); err != nil {
			return errors.Join(fmt.Errorf("cachestore: put entry object: %w", err), c.rollback(ctx, written))
		}
	}
	return nil
}

// s3Previous is what an entry object held before a batch touched it.
type s3Previous struct {
	object  string
	body    []byte
	existed bool
}

// rollback restores every object a failed batch touched. It ignores
// cancellation so a canceled batch still cleans up.
func (c *S3Cache) rollback(ctx context.Context, written []s3Previous) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for _, w := range written {
		if w.existed {
			if err := c.storage.putEntry(ctx, w.object, w.body); err != nil {
				errs = append(errs, fmt.Errorf("cachestore: restore entry object: %w", err))
			}
			continue
		}
		if _, err := c.storage.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.storage.bucket),
			Key:    aws.String(w.object),
		}); err != nil {
			errs = append(errs, fmt.Errorf("cachestore: remove entry object: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *S3Storage) putEntry(ctx context.Context, object string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(object),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	return err
}

// Match returns the stored response for url.
func (c *S3Cache) Match(ctx context.Context, url string) (*Response, bool, error) {
	key, err := Key(url)
	if err != nil {
		return nil, false, err
	}
	return c.storage.readEntry(ctx, c.name, key)
}

// Delete removes the entry object for url.
func (c *S3Cache) Delete(ctx context.Context, url string) (bool, error) {
	key, err := Key(url)
	if err != nil {
		return false, err
	}
	object := c.storage.entriesPrefix(c.name) + encodeKey(key)
	if _, ok, err := c.storage.getObject(ctx, object); err != nil || !ok {
		return false, err
	}
	if _, err := c.storage.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.storage.bucket),
		Key:    aws.String(object),
	}); err != nil {
		return false, fmt.Errorf("cachestore: delete entry object: %w", err)
	}
	return true, nil
}

// Keys lists canonical keys, sorted.
func (c *S3Cache) Keys(ctx context.Context) ([]string, error) {
	objects, err := c.storage.list(ctx, c.storage.entriesPrefix(c.name))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		body, ok, err := c.storage.getObject(ctx, aws.ToString(obj.Key))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var rec diskRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("cachestore: decode entry: %w", err)
		}
		keys = append(keys, rec.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Ensure S3Storage implements Storage
var _ Storage = (*S3Storage)(nil)

// Ensure S3Cache implements Cache
var _ Cache = (*S3Cache)(nil)
