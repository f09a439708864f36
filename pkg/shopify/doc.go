// Package shopify is a small client for the Shopify Admin GraphQL API,
// limited to what an export needs: listing Files page by page and checking
// which store an access token belongs to.
//
//	client, err := shopify.NewClient(shopify.ClientOptions{
//		Endpoint:    "https://demo.myshopify.com/admin/api/2024-10/graphql.json",
//		AccessToken: token,
//	})
//	page, err := client.FetchPage(ctx, models.PageRequest{PageSize: 50})
//
// Throttled (THROTTLED or HTTP 429), 5xx and transport failures are retried
// with per-error-type backoff before an error is returned.
package shopify
