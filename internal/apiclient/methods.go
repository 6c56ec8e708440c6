package apiclient

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/openkcm/session-client/internal/serviceerr"
)

// Do calls the API and decodes a JSON response into T. An empty response
// body yields the zero value of T.
func Do[T any](ctx context.Context, c *Client, method, path string, body any, opts ...CallOption) (T, error) {
	var out T

	data, err := c.Call(ctx, method, path, body, opts...)
	if err != nil {
		return out, err
	}

	if err := decode(data, &out); err != nil {
		return out, err
	}

	return out, nil
}

func (c *Client) Get(ctx context.Context, path string, out any, opts ...CallOption) error {
	return c.callInto(ctx, http.MethodGet, path, nil, out, opts)
}

func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.callInto(ctx, http.MethodPost, path, body, out, opts)
}

func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.callInto(ctx, http.MethodPut, path, body, out, opts)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.callInto(ctx, http.MethodPatch, path, body, out, opts)
}

func (c *Client) Delete(ctx context.Context, path string, out any, opts ...CallOption) error {
	return c.callInto(ctx, http.MethodDelete, path, nil, out, opts)
}

// Upload posts file as multipart/form-data.
func (c *Client) Upload(ctx context.Context, path string, file File, out any, opts ...CallOption) error {
	return c.callInto(ctx, http.MethodPost, path, file, out, opts)
}

func (c *Client) callInto(ctx context.Context, method, path string, body, out any, opts []CallOption) error {
	data, err := c.Call(ctx, method, path, body, opts...)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	return decode(data, out)
}

func decode(data []byte, out any) error {
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return serviceerr.New(serviceerr.KindUnknown, "Unexpected response from the server", err)
	}

	return nil
}
