package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ppiankov/stewardgate/internal/audit"
)

type mockS3Client struct {
	putObjectFunc func(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func (m *mockS3Client) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return m.putObjectFunc(ctx, input, opts...)
}

func writeChain(t *testing.T, n int) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := audit.Open(p)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		l.Record(audit.Entry{Seq: uint64(i + 1), IdentityID: "h1", Action: "recognition"})
	}
	l.Close()
	return p
}

func fixedClock() time.Time {
	return time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
}

func TestUploadPutsVerifiedLog(t *testing.T) {
	p := writeChain(t, 3)
	want, _ := os.ReadFile(p)

	var got *s3.PutObjectInput
	var body []byte
	client := &mockS3Client{putObjectFunc: func(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		got = in
		body, _ = io.ReadAll(in.Body)
		return &s3.PutObjectOutput{}, nil
	}}

	u := NewUploaderWithClient(client, "audit-bucket", "/gate/")
	u.timeNow = fixedClock

	key, err := u.Upload(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if key != "gate/audit-20260402T103000Z.jsonl" {
		t.Errorf("unexpected key %q", key)
	}
	if *got.Bucket != "audit-bucket" || *got.Key != key {
		t.Errorf("unexpected destination %s/%s", *got.Bucket, *got.Key)
	}
	if got.Metadata["entries"] != "3" {
		t.Errorf("expected entries metadata 3, got %q", got.Metadata["entries"])
	}
	if tail := audit.Verify(p).TailHash; got.Metadata["chain-tail"] != tail {
		t.Errorf("expected chain-tail %s, got %q", tail, got.Metadata["chain-tail"])
	}
	if string(body) != string(want) {
		t.Error("uploaded body differs from local log")
	}
}

func TestUploadRefusesBrokenChain(t *testing.T) {
	p := writeChain(t, 3)
	data, _ := os.ReadFile(p)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	os.WriteFile(p, []byte(lines[0]+"\n"+lines[2]+"\n"), 0644)

	called := false
	client := &mockS3Client{putObjectFunc: func(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		called = true
		return &s3.PutObjectOutput{}, nil
	}}

	_, err := NewUploaderWithClient(client, "b", "").Upload(context.Background(), p)
	if !errors.Is(err, ErrBrokenChain) {
		t.Fatalf("expected ErrBrokenChain, got %v", err)
	}
	if called {
		t.Error("expected no upload for a broken chain")
	}
}

func TestUploadPropagatesClientError(t *testing.T) {
	p := writeChain(t, 1)
	client := &mockS3Client{putObjectFunc: func(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, errors.New("access denied")
	}}

	_, err := NewUploaderWithClient(client, "b", "").Upload(context.Background(), p)
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Errorf("expected client error, got %v", err)
	}
}

func TestNewUploaderRequiresBucket(t *testing.T) {
	if _, err := NewUploader(context.Background(), Config{}); !errors.Is(err, ErrMissingBucket) {
		t.Errorf("expected ErrMissingBucket, got %v", err)
	}
	u, err := NewUploader(context.Background(), Config{Bucket: "b", Endpoint: "http://localhost:9000", AccessKeyID: "k", SecretAccessKey: "s"})
	if err != nil || u == nil {
		t.Errorf("expected uploader, got %v", err)
	}
}

func TestNewUploaderDefaultChain(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_ACCESS_KEY_ID", "env-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "env-secret")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))

	u, err := NewUploader(context.Background(), Config{Bucket: "b", Prefix: "gate", Region: "eu-west-1"})
	if err != nil {
		t.Fatalf("NewUploader: %v", err)
	}
	if u.bucket != "b" || u.prefix != "gate" {
		t.Errorf("unexpected uploader %+v", u)
	}
}

func TestKeyWithoutPrefix(t *testing.T) {
	u := NewUploaderWithClient(&mockS3Client{}, "b", "")
	u.timeNow = fixedClock
	if k := u.Key("/var/log/gate.jsonl"); k != "gate-20260402T103000Z.jsonl" {
		t.Errorf("unexpected key %q", k)
	}
}
