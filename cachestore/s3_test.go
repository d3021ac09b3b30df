package cachestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory stand-in for the S3 client.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error

	// failSuffix fails puts of objects ending in it.
	failSuffix string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	if f.failSuffix != "" && strings.HasSuffix(aws.ToString(in.Key), f.failSuffix) {
		return nil, errors.New("boom")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(in.Key)] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	data, ok := f.objects[aws.ToString(in.Key)]
	f.mu.Unlock()
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, aws.ToString(in.Key))
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := aws.ToString(in.Prefix)
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	now := time.Now()
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			LastModified: aws.Time(now),
		})
	}
	return out, nil
}

func TestS3Storage_Contract(t *testing.T) {
	runStorageContract(t, func(t *testing.T) Storage {
		s, err := NewS3Storage(newFakeS3(), "assets", "offline")
		if err != nil {
			t.Fatalf("NewS3Storage failed: %v", err)
		}
		return s
	})
}

func TestS3Storage_Layout(t *testing.T) {
	client := newFakeS3()
	s, _ := NewS3Storage(client, "assets", "/offline/")
	ctx := context.Background()

	c, err := s.Open(ctx, "FoodFest-version_01")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := c.Put(ctx, "./index.html", okResponse("./index.html", "x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, ok := client.objects["offline/caches/FoodFest-version_01"]; !ok {
		t.Errorf("marker object missing, have %v", keysOf(client.objects))
	}
	want := "offline/entries/FoodFest-version_01/" + encodeKey("/index.html")
	if _, ok := client.objects[want]; !ok {
		t.Errorf("entry object %q missing, have %v", want, keysOf(client.objects))
	}
}

func TestS3Storage_PutError(t *testing.T) {
	client := newFakeS3()
	s, _ := NewS3Storage(client, "assets", "")
	ctx := context.Background()
	c, _ := s.Open(ctx, "app-v1")

	boom := errors.New("boom")
	client.putErr = boom
	if err := c.Put(ctx, "./a.js", okResponse("./a.js", "a")); !errors.Is(err, boom) {
		t.Errorf("Put error = %v, want wrapped boom", err)
	}
}

func TestS3Cache_PutAllRollsBack(t *testing.T) {
	client := newFakeS3()
	s, _ := NewS3Storage(client, "assets", "offline")
	ctx := context.Background()
	c, _ := s.Open(ctx, "app-v1")
	if err := c.Put(ctx, "./a.js", okResponse("./a.js", "old")); err != nil {
		t.Fatal(err)
	}

	client.failSuffix = encodeKey(MustKey("./c.js"))
	err := c.PutAll(ctx, []Entry{
		{URL: "./a.js", Response: okResponse("./a.js", "new")},
		{URL: "./b.js", Response: okResponse("./b.js", "b")},
		{URL: "./c.js", Response: okResponse("./c.js", "c")},
	})
	if err == nil {
		t.Fatal("PutAll should fail when an upload fails")
	}

	got, ok, err := c.Match(ctx, "./a.js")
	if err != nil || !ok || string(got.Body) != "old" {
		t.Errorf("a.js = (%v, %v, %v), want the previous body", got, ok, err)
	}
	if _, ok, _ := c.Match(ctx, "./b.js"); ok {
		t.Error("b.js should have been removed after the failed batch")
	}
}

func TestNewS3Storage_Validation(t *testing.T) {
	if _, err := NewS3Storage(nil, "b", ""); !errors.Is(err, ErrNilStorage) {
		t.Errorf("nil client error = %v, want ErrNilStorage", err)
	}
	if _, err := NewS3Storage(newFakeS3(), " ", ""); err == nil {
		t.Error("blank bucket should fail")
	}
}

func keysOf(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
