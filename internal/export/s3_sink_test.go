package export

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	cfg "github.com/dafibh/fortuna/fortuna-client/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 answers HEAD bucket and PUT object requests in path style
type fakeS3 struct {
	mu       sync.Mutex
	requests []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()
	if r.Method == http.MethodPut {
		w.Header().Set("ETag", `"etag"`)
	}
	w.WriteHeader(http.StatusOK)
}

func (f *fakeS3) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newTestS3Sink(t *testing.T) (*S3Sink, *fakeS3) {
	t.Helper()
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	sink, err := NewS3Sink(context.Background(), cfg.S3Config{
		Region:          "us-east-1",
		Bucket:          "exports-bucket",
		Prefix:          "exports/",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Endpoint:        srv.URL,
	})
	require.NoError(t, err)
	return sink, fake
}

func TestS3Sink_New_ChecksBucket(t *testing.T) {
	_, fake := newTestS3Sink(t)

	assert.Equal(t, []string{"HEAD /exports-bucket"}, fake.Requests())
}

func TestS3Sink_Save_PrefixesKey(t *testing.T) {
	sink, fake := newTestS3Sink(t)

	location, err := sink.Save(context.Background(), "income/abc_income_details.xlsx", "application/octet-stream", []byte("PK"))

	require.NoError(t, err)
	assert.Equal(t, "exports/income/abc_income_details.xlsx", location)
	requests := fake.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, "PUT /exports-bucket/exports/income/abc_income_details.xlsx", requests[1])
}

func TestS3Sink_Link_IsPresigned(t *testing.T) {
	sink, _ := newTestS3Sink(t)

	url, err := sink.Link(context.Background(), "exports/income/abc.xlsx")

	require.NoError(t, err)
	assert.Contains(t, url, "/exports-bucket/exports/income/abc.xlsx")
	assert.True(t, strings.Contains(url, "X-Amz-Signature="))
	assert.Contains(t, url, "X-Amz-Expires=900")
}
