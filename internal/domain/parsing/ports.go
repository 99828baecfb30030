package parsing

import "context"

// StartOptions carries optional parameters for a parse start request.
type StartOptions struct {
	// PostLimit bounds how many posts a channel parse ingests. Zero means
	// the service default.
	PostLimit int
}

// StartAck is the parsing service's response to a start request.
type StartAck struct {
	// Accepted reports whether the service began the job.
	Accepted bool

	// JobRef is the service-side reference for the accepted job.
	JobRef string

	// Message carries the service's explanation, populated on rejection.
	Message string
}

// StatusFetcher queries the current status of the one job in flight for a
// collection. Satisfied by the gateway; split out so the poller depends on
// only what it uses.
type StatusFetcher interface {
	// JobStatus returns the latest status snapshot for the collection's
	// active job. Returns ErrMalformedStatus when the response is missing
	// the running flag.
	JobStatus(ctx context.Context, collection Collection) (JobStatus, error)
}

// ItemInventory exposes the result inventory operations capacity enforcement
// needs: the full item listing and single-item deletion.
type ItemInventory interface {
	// ListAll returns every stored result item for the collection.
	ListAll(ctx context.Context, collection Collection) ([]ResultItem, error)

	// DeleteItem removes a single result item by identity.
	DeleteItem(ctx context.Context, collection Collection, itemID int64) error
}

// PageFetcher retrieves one page of result items from the parsing service.
type PageFetcher interface {
	// ListPage returns the items for the given page, 1-based.
	ListPage(ctx context.Context, collection Collection, page, pageSize int) ([]ResultItem, error)
}

// Gateway is the full client surface of the remote parsing service. It shapes
// requests and decodes responses; it contains no orchestration logic.
type Gateway interface {
	StatusFetcher
	ItemInventory
	PageFetcher

	// StartParse asks the service to begin a parse of the given resource
	// locator into the collection.
	StartParse(ctx context.Context, collection Collection, locator string, opts StartOptions) (StartAck, error)

	// CancelParse asks the service to stop the collection's active job.
	// Cancellation is advisory; the job keeps running until the service
	// reports a terminal status.
	CancelParse(ctx context.Context, collection Collection) error
}

// TokenDirectory is the client surface for data-source token management,
// passed through to the parsing service.
type TokenDirectory interface {
	ListTokens(ctx context.Context) ([]Token, error)
	CreateToken(ctx context.Context, input TokenInput) (Token, error)
	DeleteToken(ctx context.Context, tokenID int64) error
}

// ResultInvalidator drops cached result pages for a collection so newly
// parsed items become visible on the next read.
type ResultInvalidator interface {
	Invalidate(ctx context.Context, collection Collection)
}
