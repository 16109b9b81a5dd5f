package flow

import (
	"context"
	"net/http"
)

// Addon is the hook surface a MITM proxy library would invoke on a
// transaction's lifecycle. Table implements it; it is defined
// separately so a concrete proxy-library adapter can depend on this
// interface without this module depending on any specific proxy
// library.
type Addon interface {
	OnRequest(ctx context.Context, req Request) error
	OnResponseHeaders(ctx context.Context, flowID string, headers http.Header) error
	OnResponse(ctx context.Context, flowID string, resp Response) (*Event, error)
}

var _ Addon = (*Table)(nil)
