package download

import (
	"context"

	"github.com/handiism/spritefetch/internal/http"
	ioutils "github.com/handiism/spritefetch/internal/io"
)

// verifyingFetcher rejects 200 responses whose body is not an image.
type verifyingFetcher struct {
	next   Fetcher
	images *ioutils.ImageService
}

func (f *verifyingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	data, err := f.next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if _, err := f.images.Validate(ctx, data); err != nil {
		return nil, malformed(url, err)
	}
	return data, nil
}

// resizingFetcher scales fetched images down to maxSide before they are
// handed to the store.
type resizingFetcher struct {
	next    Fetcher
	images  *ioutils.ImageService
	maxSide int
}

func (f *resizingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	data, err := f.next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	resized, err := f.images.Fit(ctx, data, f.maxSide)
	if err != nil {
		return nil, malformed(url, err)
	}
	return resized, nil
}

func malformed(url string, err error) error {
	return &http.FetchError{URL: url, StatusCode: 200, Reason: "malformed response: " + err.Error(), Err: err}
}

// wrapFetcher applies the optional image checks configured by verify and
// maxSide.
func wrapFetcher(f Fetcher, verify bool, maxSide int) Fetcher {
	images := ioutils.NewImageService()
	if verify {
		f = &verifyingFetcher{next: f, images: images}
	}
	if maxSide > 0 {
		f = &resizingFetcher{next: f, images: images, maxSide: maxSide}
	}
	return f
}
