package retry

import "context"

// PageFetcher is anything that returns the HTML body at a URL.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

type retryingFetcher struct {
	policy *Policy
	next   PageFetcher
}

// WrapFetcher returns a PageFetcher that retries next according to the policy.
func (p *Policy) WrapFetcher(next PageFetcher) PageFetcher {
	return &retryingFetcher{policy: p, next: next}
}

func (f *retryingFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	var body string
	err := f.policy.Do(ctx, "GET "+url, func(ctx context.Context) error {
		var err error
		body, err = f.next.FetchPage(ctx, url)
		return err
	})
	if err != nil {
		return "", err
	}
	return body, nil
}
