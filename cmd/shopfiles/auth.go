package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"shopfiles/pkg/auth"
	"shopfiles/pkg/config"
	"shopfiles/pkg/logger"
	"shopfiles/pkg/shopify"
	"shopfiles/pkg/ui"
)

var (
	authStore      string
	authAPIVersion string
	authNoVerify   bool
	logoutAll      bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Admin API access tokens",
	Long: `Manage stored Shopify Admin API access tokens.

Tokens are stored in:
  - the system keychain, when available
  - an encrypted file (AES-GCM, PBKDF2 key) otherwise

SHOPFILES_ACCESS_TOKEN or ACCESS_TOKEN in the environment takes
precedence over stored tokens.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an access token for a store",
	Example: `  shopfiles auth login --store demo.myshopify.com
  echo "$TOKEN" | shopfiles auth login --store demo --no-verify`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [store]",
	Short: "Remove a stored access token",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored stores with masked tokens",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd)

	loginCmd.Flags().StringVarP(&authStore, "store", "s", "", "store domain, e.g. demo.myshopify.com")
	loginCmd.Flags().StringVar(&authAPIVersion, "api-version", "", "Admin API version to use with this store")
	loginCmd.Flags().BoolVar(&authNoVerify, "no-verify", false, "store the token without calling the API")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored token")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	store := authStore
	if store == "" {
		if !interactive {
			return fmt.Errorf("--store is required when input is not a terminal")
		}
		auth.ShowTokenGuide(os.Stdout)
		fmt.Print("\nStore domain: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read store: %w", err)
		}
		store = line
	}
	store = auth.NormalizeStore(store)
	if store == "" {
		return fmt.Errorf("store domain is required")
	}

	var token string
	if interactive {
		auth.ShowQuickGuide(os.Stdout)
		fmt.Print("Admin API access token (hidden): ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
		token = string(raw)
	} else {
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read token: %w", err)
		}
		token = line
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("access token is required")
	}

	account := &auth.Account{Store: store, AccessToken: token, APIVersion: authAPIVersion}
	printer := ui.Stdout()

	if !authNoVerify {
		shop, err := verifyToken(cmd.Context(), account)
		if err != nil {
			return fmt.Errorf("token check failed for %s: %w", store, err)
		}
		printer.Info("Verified shop", fmt.Sprintf("%s (%s)", shop.Name, shop.MyshopifyDomain))
	}

	if err := manager.Store(account); err != nil {
		return err
	}
	printer.Success("Token stored for " + account.Store)
	fmt.Printf("\nRun 'shopfiles export --store %s' to start an export.\n", account.Store)
	return nil
}

// verifyToken asks the API for the shop's name with the new token
func verifyToken(parent context.Context, account *auth.Account) (*shopify.ShopInfo, error) {
	if parent == nil {
		parent = context.Background()
	}
	cfg := config.DefaultConfig()
	cfg.Shopify.Store = account.Store
	if account.APIVersion != "" {
		cfg.Shopify.APIVersion = account.APIVersion
	}

	client, err := shopify.NewClient(shopify.ClientOptions{
		Endpoint:    cfg.GraphQLEndpoint(),
		AccessToken: account.AccessToken,
		MaxAttempts: 1,
		Logger:      logger.NewNopLogger(),
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(parent, 15*time.Second)
	defer cancel()
	return client.Shop(ctx)
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	printer := ui.Stdout()

	if logoutAll {
		if err := manager.DeleteAll(); err != nil {
			return err
		}
		printer.Success("All stored tokens removed")
		return nil
	}

	var store string
	if len(args) == 1 {
		store = args[0]
	} else {
		accounts, err := manager.List()
		if err != nil {
			return err
		}
		if len(accounts) != 1 {
			return fmt.Errorf("%d stores stored; name one or pass --all", len(accounts))
		}
		store = accounts[0].Store
	}

	if err := manager.Delete(store); err != nil {
		return err
	}
	printer.Success("Token removed for " + auth.NormalizeStore(store))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		ui.Stdout().Warning("No stored tokens. Run 'shopfiles auth login --store <domain>'.")
		return nil
	}

	fmt.Printf("%-36s %-24s %-10s %s\n", "STORE", "TOKEN", "API", "UPDATED")
	for _, account := range accounts {
		masked := auth.SanitizeAccount(account)
		fmt.Printf("%-36s %-24s %-10s %s\n",
			masked.Store, masked.AccessToken, masked.APIVersion,
			masked.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}
