package shopify

// FilesQuery lists files with the fields needed to locate and name them
const FilesQuery = `query Files($first: Int!, $after: String) {
  files(first: $first, after: $after) {
    pageInfo {
      hasNextPage
      endCursor
    }
    edges {
      cursor
      node {
        __typename
        id
        alt
        createdAt
        fileStatus
        ... on GenericFile {
          url
          mimeType
        }
        ... on MediaImage {
          mimeType
          image {
            originalSrc
            url
          }
          originalSource {
            url
          }
        }
      }
    }
  }
}`

// ShopQuery identifies the store behind an access token
const ShopQuery = `query Shop {
  shop {
    name
    myshopifyDomain
  }
}`

// filesVariables builds the variables for FilesQuery. A missing cursor is
// sent as null.
func filesVariables(first int, after string) map[string]interface{} {
	vars := map[string]interface{}{"first": first}
	if after != "" {
		vars["after"] = after
	} else {
		vars["after"] = nil
	}
	return vars
}
