package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoineDubuc/theodore/internal/resilience"
)

func TestDetectBlockCloudflareHeaders(t *testing.T) {
	resp := &http.Response{StatusCode: 403, Header: http.Header{}}
	resp.Header.Set("cf-ray", "8a1b2c3d4e5f6789-ORD")

	blocked, kind := detectBlock(resp, nil)
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, kind)
}

func TestDetectBlockChallengeBody(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Header: http.Header{}}

	blocked, kind := detectBlock(resp, []byte("<html>Checking your browser before accessing</html>"))
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, kind)

	blocked, kind = detectBlock(resp, []byte(`<div class="g-recaptcha"></div>`))
	assert.True(t, blocked)
	assert.Equal(t, BlockCaptcha, kind)
}

func TestDetectBlockCleanPage(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Header: http.Header{}}
	blocked, kind := detectBlock(resp, []byte("<html><main>About Acme. We build robots.</main></html>"))
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, kind)
}

func TestFetchProtectedSite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>please solve this captcha to continue</html>")) //nolint:errcheck
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{Timeout: 2 * time.Second})
	_, body, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, resilience.KindProtectedSite, resilience.KindOf(err))
	assert.Nil(t, body)
}
