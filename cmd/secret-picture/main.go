package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/gracehamilton0/secret-picture/internal/app"
	"github.com/gracehamilton0/secret-picture/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "List", "Purchase").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// promptPassphrase reads a passphrase from the terminal without echo.
func promptPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

// sessionPassphrases prompts for the identity passphrase and the sealed-store
// passphrase used by commands that run the key-release protocol.
func sessionPassphrases() (string, string, error) {
	identityPass, err := promptPassphrase("Identity passphrase: ")
	if err != nil {
		return "", "", err
	}
	sealerPass, err := promptPassphrase("Sealed store passphrase: ")
	if err != nil {
		return "", "", err
	}
	return identityPass, sealerPass, nil
}

func parseItemID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid item id %q", arg)
	}
	return id, nil
}

var rootCmd = &cobra.Command{
	Use:   "secret-picture",
	Short: "Encrypted content market",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Price:       %d\n", cfg.Price)
		fmt.Printf("Request TTL: %ds\n", cfg.TTLSecs)
		fmt.Printf("Ledger:      %s\n", cfg.Ledger.Type)
		fmt.Printf("Blob store:  %s\n", cfg.Blob.Type)
		fmt.Printf("Sealer:      %s\n", cfg.Sealer.Type)
		return nil
	},
}

// identity command
var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage the local signing identity",
}

var identityInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a new signing identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("InitIdentity")
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := promptPassphrase("New identity passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		principal, err := a.InitIdentity(pass)
		if err != nil {
			return err
		}

		fmt.Printf("Identity created.\nPrincipal: %s\n", principal)
		return nil
	},
}

var identityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the local principal identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("PrincipalID")
		if err != nil {
			return err
		}
		defer a.Close()

		principal, err := a.PrincipalID()
		if err != nil {
			return err
		}
		fmt.Println(principal)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list FILENAME",
	Short: "Encrypt a file and list it for sale",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("List")
		if err != nil {
			return err
		}
		defer a.Close()

		sealerPass, err := promptPassphrase("Sealed store passphrase: ")
		if err != nil {
			return err
		}

		itemID, err := a.ListContent(context.Background(), args[0], sealerPass)
		if err != nil {
			return fmt.Errorf("listing content: %w", err)
		}

		fmt.Printf("Listed item #%d\n", itemID)
		return nil
	},
}

// purchase command
var purchaseCmd = &cobra.Command{
	Use:   "purchase ITEM",
	Short: "Purchase access to an item and save the content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID, err := parseItemID(args[0])
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("output")

		a, err := newApp("Purchase")
		if err != nil {
			return err
		}
		defer a.Close()

		item, err := a.Info(itemID)
		if err != nil {
			return err
		}

		identityPass, sealerPass, err := sessionPassphrases()
		if err != nil {
			return err
		}

		content, err := a.Purchase(context.Background(), itemID, item.Price, identityPass, sealerPass)
		if err != nil {
			return fmt.Errorf("purchase failed: %w", err)
		}

		return writeContent(out, itemID, content)
	},
}

// unlock command
var unlockCmd = &cobra.Command{
	Use:   "unlock ITEM",
	Short: "Decrypt an item you already have access to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID, err := parseItemID(args[0])
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("output")

		a, err := newApp("Unlock")
		if err != nil {
			return err
		}
		defer a.Close()

		identityPass, sealerPass, err := sessionPassphrases()
		if err != nil {
			return err
		}

		content, err := a.Unlock(context.Background(), itemID, identityPass, sealerPass)
		if err != nil {
			return fmt.Errorf("unlock failed: %w", err)
		}

		return writeContent(out, itemID, content)
	},
}

// writeContent saves decrypted content to the output path, or item-<id>.bin
// when none is given.
func writeContent(out string, itemID int64, content []byte) error {
	if out == "" {
		out = fmt.Sprintf("item-%d.bin", itemID)
	}
	if err := os.WriteFile(out, content, 0600); err != nil {
		return fmt.Errorf("writing content: %w", err)
	}
	fmt.Printf("Wrote %d byte(s) to %s\n", len(content), out)
	return nil
}

// grant command
var grantCmd = &cobra.Command{
	Use:   "grant ITEM PRINCIPAL",
	Short: "Grant a principal access to an item you created",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID, err := parseItemID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("Grant")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Grant(itemID, args[1]); err != nil {
			return fmt.Errorf("grant failed: %w", err)
		}

		fmt.Printf("Granted %s access to item #%d\n", args[1], itemID)
		return nil
	},
}

// info command
var infoCmd = &cobra.Command{
	Use:   "info ITEM",
	Short: "Show an item's listing record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID, err := parseItemID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("Info")
		if err != nil {
			return err
		}
		defer a.Close()

		item, err := a.Info(itemID)
		if err != nil {
			return err
		}

		fmt.Printf("Item:    #%d\n", item.ID)
		fmt.Printf("Creator: %s\n", item.Creator)
		fmt.Printf("Price:   %d\n", item.Price)
		fmt.Printf("Blob:    %s\n", item.BlobHandle)
		fmt.Printf("Listed:  %s\n", item.CreatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

// count command
var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the total number of items listed",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Count")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Count()
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

// balance command
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the local principal's settled balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Balance")
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.Balance()
		if err != nil {
			return err
		}
		fmt.Println(b)
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// identity subcommands
	identityCmd.AddCommand(identityInitCmd)
	identityCmd.AddCommand(identityShowCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(identityCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(purchaseCmd)
	purchaseCmd.Flags().StringP("output", "o", "", "Output path for decrypted content")
	rootCmd.AddCommand(unlockCmd)
	unlockCmd.Flags().StringP("output", "o", "", "Output path for decrypted content")
	rootCmd.AddCommand(grantCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(balanceCmd)
}
