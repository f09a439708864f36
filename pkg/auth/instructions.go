package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide explains how to create an Admin API access token
func ShowTokenGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "SHOPIFY ADMIN API ACCESS TOKEN")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "shopfiles reads your store's Files through the Admin GraphQL API.")
	fmt.Fprintln(w, "It needs an access token from a custom app installed on the store.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. In the Shopify admin open Settings > Apps and sales channels")
	fmt.Fprintln(w, "   > Develop apps, then create an app (or open an existing one).")
	fmt.Fprintln(w, "2. Under Configuration > Admin API integration grant the read_files")
	fmt.Fprintln(w, "   scope. Save.")
	fmt.Fprintln(w, "3. Install the app, then open API credentials and reveal the Admin")
	fmt.Fprintln(w, "   API access token. It starts with shpat_ and is shown only once.")
	fmt.Fprintln(w, "4. Run `shopfiles auth login --store <name>.myshopify.com` and paste it.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The token grants API access to your store. It is kept in the system")
	fmt.Fprintln(w, "keyring when available, otherwise in an encrypted file.")
	fmt.Fprintln(w, rule)
}

// ShowQuickGuide prints the one-line version of ShowTokenGuide
func ShowQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "Admin > Settings > Apps > Develop apps > your app > API credentials (scope: read_files)")
}
