package storage

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubMinio scripts the minio client surface the R2 client touches.
type stubMinio struct {
	putResults []error // consumed one per FPutObject call, last one repeats
	putCalls   int
	statInfo   minio.ObjectInfo
	statErr    error
	listObjs   []minio.ObjectInfo
}

func (s *stubMinio) FPutObject(_ context.Context, _, _, _ string, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	idx := s.putCalls
	if idx >= len(s.putResults) {
		idx = len(s.putResults) - 1
	}
	s.putCalls++
	if idx < 0 {
		return minio.UploadInfo{}, nil
	}
	return minio.UploadInfo{}, s.putResults[idx]
}

func (s *stubMinio) StatObject(_ context.Context, _, _ string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return s.statInfo, s.statErr
}

func (s *stubMinio) ListObjects(ctx context.Context, _ string, _ minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo)
	go func() {
		defer close(ch)
		for _, obj := range s.listObjs {
			select {
			case ch <- obj:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func newTestClient(api minioAPI) *R2Client {
	return &R2Client{
		api:           api,
		bucket:        "pmta-archive",
		maxRetries:    3,
		retryInterval: time.Millisecond,
	}
}

func TestNewR2ClientValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     R2Config
		wantErr string
	}{
		{
			name:    "missing account id",
			cfg:     R2Config{AccessKeyID: "k", SecretAccessKey: "s", Bucket: "b"},
			wantErr: "account id",
		},
		{
			name:    "missing credentials",
			cfg:     R2Config{AccountID: "abc123", Bucket: "b"},
			wantErr: "credentials",
		},
		{
			name:    "missing bucket",
			cfg:     R2Config{AccountID: "abc123", AccessKeyID: "k", SecretAccessKey: "s"},
			wantErr: "bucket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewR2Client(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewR2ClientDefaults(t *testing.T) {
	client, err := NewR2Client(R2Config{
		AccountID:       "abc123",
		AccessKeyID:     "k",
		SecretAccessKey: "s",
		Bucket:          "pmta-archive",
	})
	require.NoError(t, err)

	assert.Equal(t, "pmta-archive", client.bucket)
	assert.Equal(t, uint(defaultMaxRetries), client.maxRetries)
	assert.Equal(t, defaultRetryInterval, client.retryInterval)
}

func TestUploadFileRetriesTransientFailure(t *testing.T) {
	stub := &stubMinio{putResults: []error{errors.New("connection reset by peer"), nil}}
	client := newTestClient(stub)

	err := client.UploadFile(context.Background(), "/tmp/f.csv", "pmta-logs/2024-01/f.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, stub.putCalls)
}

func TestUploadFileDoesNotRetryPermanentFailure(t *testing.T) {
	denied := minio.ErrorResponse{Code: "AccessDenied", Message: "access denied", StatusCode: http.StatusForbidden}
	stub := &stubMinio{putResults: []error{denied}}
	client := newTestClient(stub)

	err := client.UploadFile(context.Background(), "/tmp/f.csv", "pmta-logs/2024-01/f.csv")
	require.Error(t, err)
	assert.Equal(t, 1, stub.putCalls)
}

func TestUploadFileExhaustsRetries(t *testing.T) {
	stub := &stubMinio{putResults: []error{errors.New("i/o timeout")}}
	client := newTestClient(stub)

	err := client.UploadFile(context.Background(), "/tmp/f.csv", "pmta-logs/2024-01/f.csv")
	require.Error(t, err)
	// First attempt plus maxRetries.
	assert.Equal(t, 4, stub.putCalls)
}

func TestStatObjectNotFound(t *testing.T) {
	stub := &stubMinio{statErr: minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}}
	client := newTestClient(stub)

	_, err := client.StatObject(context.Background(), "pmta-logs/2024-01/gone.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatObjectConnectivityFailureIsNotNotFound(t *testing.T) {
	stub := &stubMinio{statErr: errors.New("dial tcp: i/o timeout")}
	client := newTestClient(stub)

	_, err := client.StatObject(context.Background(), "pmta-logs/2024-01/f.csv")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestStatObjectReportsSize(t *testing.T) {
	stub := &stubMinio{statInfo: minio.ObjectInfo{Key: "pmta-logs/2024-01/f.csv", Size: 1048576}}
	client := newTestClient(stub)

	info, err := client.StatObject(context.Background(), "pmta-logs/2024-01/f.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(1048576), info.Size)
	assert.Equal(t, "pmta-logs/2024-01/f.csv", info.Key)
}

func TestListObjectsStreams(t *testing.T) {
	stub := &stubMinio{listObjs: []minio.ObjectInfo{
		{Key: "pmta-logs/2024-01/a.csv", Size: 1},
		{Key: "pmta-logs/2024-01/b.csv", Size: 2},
	}}
	client := newTestClient(stub)

	var infos []ObjectInfo
	for info, err := range client.ListObjects(context.Background(), "pmta-logs/") {
		require.NoError(t, err)
		infos = append(infos, info)
	}
	assert.Equal(t, []ObjectInfo{
		{Key: "pmta-logs/2024-01/a.csv", Size: 1},
		{Key: "pmta-logs/2024-01/b.csv", Size: 2},
	}, infos)
}

func TestListObjectsSurfacesListingError(t *testing.T) {
	stub := &stubMinio{listObjs: []minio.ObjectInfo{{Err: errors.New("listing interrupted")}}}
	client := newTestClient(stub)

	var listErr error
	for _, err := range client.ListObjects(context.Background(), "pmta-logs/") {
		listErr = err
	}
	require.Error(t, listErr)
	assert.Contains(t, listErr.Error(), "listing interrupted")
}

func TestListObjectsStopsOnEarlyBreak(t *testing.T) {
	stub := &stubMinio{listObjs: []minio.ObjectInfo{
		{Key: "a", Size: 1},
		{Key: "b", Size: 2},
		{Key: "c", Size: 3},
	}}
	client := newTestClient(stub)

	seen := 0
	for _, err := range client.ListObjects(context.Background(), "") {
		require.NoError(t, err)
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain network error", errors.New("connection refused"), true},
		{"server error", minio.ErrorResponse{Code: "InternalError", StatusCode: http.StatusInternalServerError}, true},
		{"throttling", minio.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusTooManyRequests}, true},
		{"request timeout", minio.ErrorResponse{Code: "RequestTimeout", StatusCode: http.StatusRequestTimeout}, true},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, false},
		{"no such bucket", minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}, false},
		{"entity too large", minio.ErrorResponse{Code: "EntityTooLarge", StatusCode: http.StatusBadRequest}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}
