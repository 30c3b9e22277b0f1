package mid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/maiwanamini/unnamed-tms-backend/pkg/fn"
)

// maxBody bounds how much of an upstream response is read.
const maxBody = 4 << 20

// bodyExcerpt is how much of a failed response UpstreamError keeps.
const bodyExcerpt = 512

// UpstreamError is a non-2xx answer from an upstream API.
type UpstreamError struct {
	Upstream   string
	StatusCode int
	Body       string // first bytes of the response, for logs
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream status %d", e.Upstream, e.StatusCode)
}

// GetJSON fetches rawURL with client and decodes the body into T. An empty
// body decodes as {}. Errors are prefixed with upstream and never include
// rawURL, which may carry credentials.
func GetJSON[T any](ctx context.Context, client *http.Client, upstream, rawURL string) fn.Result[T] {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fn.Errf[T]("%s: build request: %w", upstream, stripURL(err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fn.Errf[T]("%s: %w", upstream, stripURL(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fn.Errf[T]("%s: read body: %w", upstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := body
		if len(excerpt) > bodyExcerpt {
			excerpt = excerpt[:bodyExcerpt]
		}
		return fn.Err[T](&UpstreamError{Upstream: upstream, StatusCode: resp.StatusCode, Body: string(excerpt)})
	}

	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return fn.Errf[T]("%s: decode: %w", upstream, err)
	}
	return fn.Ok(out)
}

// stripURL drops the request URL from a *url.Error.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
