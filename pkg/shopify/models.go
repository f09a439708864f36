package shopify

import (
	"net/url"
	"path"
	"time"

	"shopfiles/pkg/models"
)

// graphQLRequest is the POST body sent to the Admin API
type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// graphQLResponse is the envelope of every Admin API response
type graphQLResponse[T any] struct {
	Data       *T             `json:"data"`
	Errors     []GraphQLError `json:"errors"`
	Extensions *Extensions    `json:"extensions,omitempty"`
}

// GraphQLError is one entry of a response's errors array
type GraphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// Extensions carries query cost information. The Admin API reports the
// bucket state on every response, including THROTTLED ones.
type Extensions struct {
	Cost struct {
		RequestedQueryCost float64 `json:"requestedQueryCost"`
		ActualQueryCost    float64 `json:"actualQueryCost"`
		ThrottleStatus     struct {
			MaximumAvailable   float64 `json:"maximumAvailable"`
			CurrentlyAvailable float64 `json:"currentlyAvailable"`
			RestoreRate        float64 `json:"restoreRate"`
		} `json:"throttleStatus"`
	} `json:"cost"`
}

// PageInfo contains pagination information
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// filesData is the data field of a files query response
type filesData struct {
	Files struct {
		PageInfo PageInfo  `json:"pageInfo"`
		Edges    []FileEdge `json:"edges"`
	} `json:"files"`
}

// FileEdge wraps one listed file with its cursor
type FileEdge struct {
	Cursor string   `json:"cursor"`
	Node   FileNode `json:"node"`
}

// FileNode is the union of the File implementations we query
type FileNode struct {
	Typename   string    `json:"__typename"`
	ID         string    `json:"id"`
	Alt        string    `json:"alt"`
	CreatedAt  time.Time `json:"createdAt"`
	FileStatus string    `json:"fileStatus"`

	// GenericFile
	URL string `json:"url"`

	// GenericFile and MediaImage
	MimeType string `json:"mimeType"`

	// MediaImage
	Image *struct {
		OriginalSrc string `json:"originalSrc"`
		URL         string `json:"url"`
	} `json:"image"`
	OriginalSource *struct {
		URL string `json:"url"`
	} `json:"originalSource"`
}

// shopData is the data field of the shop query
type shopData struct {
	Shop ShopInfo `json:"shop"`
}

// ShopInfo identifies the store an access token belongs to
type ShopInfo struct {
	Name            string `json:"name"`
	MyshopifyDomain string `json:"myshopifyDomain"`
}

// Descriptor converts the node into the download pipeline's view of it
func (e FileEdge) Descriptor() models.AssetDescriptor {
	n := e.Node
	d := models.AssetDescriptor{
		ID:        n.ID,
		Kind:      models.AssetKind(n.Typename),
		Alt:       n.Alt,
		MimeType:  n.MimeType,
		CreatedAt: n.CreatedAt,
		Status:    n.FileStatus,
		Cursor:    e.Cursor,
	}

	switch d.Kind {
	case models.KindGenericFile:
		d.URL = n.URL
	case models.KindMediaImage:
		if n.Image != nil {
			d.ImageURL = n.Image.OriginalSrc
			if d.ImageURL == "" {
				d.ImageURL = n.Image.URL
			}
		}
		if n.OriginalSource != nil {
			d.OriginalFilename = basenameOf(n.OriginalSource.URL)
		}
	}
	return d
}

// basenameOf returns the last path segment of a URL, or "" if it has none
func basenameOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}
	return base
}
