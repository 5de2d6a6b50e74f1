package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"pride/internal/crypto"
	"pride/internal/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// readPassword is swapped in tests to avoid touching the terminal.
var readPassword = term.ReadPassword

var passwordStdin bool

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage dashboard accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		password, err := getPassword(cmd)
		if err != nil {
			return err
		}

		created, err := store.Register(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		if !created {
			return fmt.Errorf("user %q already exists", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %q created\n", args[0])
		return nil
	},
}

var userVerifyCmd = &cobra.Command{
	Use:   "verify <username>",
	Short: "Check a password against the stored account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		password, err := getPassword(cmd)
		if err != nil {
			return err
		}

		ok, err := store.Verify(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("invalid credentials")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

var userImportCmd = &cobra.Command{
	Use:   "import <legacy-file>",
	Short: "Import username,hash lines from the old account file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open legacy file: %w", err)
		}
		defer f.Close()

		creds, err := repository.ParseLegacyCredentials(f)
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		importer, ok := store.(repository.CredentialImporter)
		if !ok {
			return errors.New("credential backend does not support import")
		}

		imported, skipped := 0, 0
		for _, c := range creds {
			added, err := importer.Import(cmd.Context(), c)
			if err != nil {
				return fmt.Errorf("import %q: %w", c.Username, err)
			}
			if added {
				imported++
			} else {
				skipped++
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d existing\n", imported, skipped)
		return nil
	},
}

func init() {
	userCmd.PersistentFlags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin instead of the terminal")
	userCmd.AddCommand(userAddCmd, userVerifyCmd, userImportCmd)
}

func openStore() (repository.CredentialStore, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return repository.OpenCredentialStore(cfg, crypto.NewPasswordHasher(), logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel)))
}

func getPassword(cmd *cobra.Command) (string, error) {
	if passwordStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}
