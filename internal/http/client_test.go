package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
			w.Write([]byte("sprite-bytes"))
		case "/missing.png":
			http.NotFound(w, r)
		case "/error.png":
			w.WriteHeader(http.StatusInternalServerError)
		case "/big.png":
			w.Write(make([]byte, 64))
		}
	}))
	defer srv.Close()

	client := NewClient(WithUserAgent("test-agent"), WithMaxBodySize(32))

	tests := []struct {
		name       string
		path       string
		want       string
		wantStatus int
		wantErr    bool
	}{
		{name: "success", path: "/ok.png", want: "sprite-bytes"},
		{name: "not found", path: "/missing.png", wantStatus: http.StatusNotFound, wantErr: true},
		{name: "server error", path: "/error.png", wantStatus: http.StatusInternalServerError, wantErr: true},
		{name: "body too large", path: "/big.png", wantStatus: http.StatusOK, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := client.Fetch(context.Background(), srv.URL+tt.path)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.want, string(data))
				return
			}

			var fe *FetchError
			require.True(t, errors.As(err, &fe), "expected *FetchError, got %T", err)
			assert.Equal(t, tt.wantStatus, fe.StatusCode)
			assert.NotEmpty(t, fe.Reason)
			assert.Nil(t, data)
		})
	}
}

func TestClient_FetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(WithTimeout(50 * time.Millisecond))

	start := time.Now()
	_, err := client.Fetch(context.Background(), srv.URL+"/slow.png")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.IsTimeout())
	assert.Equal(t, "timeout", fe.Reason)
	assert.Zero(t, fe.StatusCode)
}

func TestClient_FetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/gone.png"
	srv.Close()

	_, err := NewClient().Fetch(context.Background(), url)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Zero(t, fe.StatusCode)
	assert.Contains(t, fe.Error(), url)
}

func TestClient_FetchInvalidURL(t *testing.T) {
	_, err := NewClient().Fetch(context.Background(), "://not a url")

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Reason, "invalid request")
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(WithTimeout(0), WithUserAgent(""))
	assert.Equal(t, DefaultTimeout, c.Timeout())
	assert.Equal(t, DefaultUserAgent, c.userAgent)
	assert.Equal(t, DefaultMaxBodySize, c.maxBodySize)
}
