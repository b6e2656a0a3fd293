package download

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handiism/spritefetch/internal/store"
)

func TestServeWorker(t *testing.T) {
	root := t.TempDir()
	in := strings.NewReader(
		`{"id":0,"name":"bulbasaur","category":"grass","url":"ok://1"}` + "\n" +
			`{"id":7,"name":"charmander","category":"fire","url":"fail://4"}` + "\n",
	)
	var out strings.Builder

	err := ServeWorker(context.Background(), in, &out, schemeFetcher(nil), store.NewFileStore(root, ""))
	require.NoError(t, err)

	var responses []response
	sc := bufio.NewScanner(strings.NewReader(out.String()))
	for sc.Scan() {
		var r response
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		responses = append(responses, r)
	}
	require.Len(t, responses, 2)

	assert.Equal(t, 0, responses[0].ID)
	assert.True(t, responses[0].OK)
	assert.Positive(t, responses[0].Bytes)
	assert.Empty(t, responses[0].Reason)

	assert.Equal(t, 7, responses[1].ID)
	assert.False(t, responses[1].OK)
	assert.Equal(t, StageFetch, responses[1].Stage)
	assert.Contains(t, responses[1].Reason, "induced failure")

	assert.Equal(t, []string{"grass/bulbasaur.png"}, layout(t, root))
}

func TestServeWorker_MalformedRequest(t *testing.T) {
	var out strings.Builder
	err := ServeWorker(context.Background(), strings.NewReader("{not json\n"), &out, schemeFetcher(nil), store.NewFileStore(t.TempDir(), ""))
	assert.Error(t, err)
	assert.Empty(t, out.String())
}

func TestResponse_Outcome(t *testing.T) {
	rec := newRequest(3, testRecord()).record()

	ok := response{ID: 3, OK: true, Bytes: 42}.outcome(rec)
	assert.True(t, ok.OK())
	assert.Equal(t, StageDone, ok.Stage)
	assert.Equal(t, 42, ok.Bytes)

	bad := response{ID: 3, Stage: StageStore, Reason: "disk full"}.outcome(rec)
	assert.Equal(t, StageStore, bad.Stage)
	assert.EqualError(t, bad.Err, "disk full")

	unknown := response{ID: 3, Stage: "weird", Reason: "?"}.outcome(rec)
	assert.Equal(t, StageFetch, unknown.Stage)
}

func TestServeWorker_StopsAfterCancel(t *testing.T) {
	root := t.TempDir()
	in := strings.NewReader(
		`{"id":0,"name":"bulbasaur","category":"grass","url":"ok://1"}` + "\n" +
			`{"id":1,"name":"ivysaur","category":"grass","url":"ok://2"}` + "\n",
	)
	var out strings.Builder

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		cancel()
		return spritePNG(4, 4), nil
	})

	err := ServeWorker(ctx, in, &out, fetcher, store.NewFileStore(root, ""))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1, "only the in-flight request is answered")

	var resp response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &resp))
	assert.Equal(t, 0, resp.ID)
	assert.False(t, resp.OK)
	assert.Equal(t, StageStore, resp.Stage)
	assert.Empty(t, layout(t, root))
}

func TestServeWorker_CanceledBeforeFirstRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out strings.Builder
	in := strings.NewReader(`{"id":0,"name":"bulbasaur","category":"grass","url":"ok://1"}` + "\n")
	err := ServeWorker(ctx, in, &out, schemeFetcher(nil), store.NewFileStore(t.TempDir(), ""))
	require.NoError(t, err)
	assert.Empty(t, out.String())
}
