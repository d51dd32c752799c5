package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"russet/internal/domain/entity"
	"russet/internal/service/auth"
	"russet/internal/service/user"
)

var addUserCmd = &cobra.Command{
	Use:   "add-user <name> [password] [type]",
	Short: "create a user account",
	Args:  cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		password, err := passwordArgOrPrompt(args, 1, "password for "+name+": ")
		if err != nil {
			return err
		}
		userType := entity.UserTypeMember
		if len(args) > 2 && args[2] == "sysop" {
			userType = entity.UserTypeSysop
		}

		conn, store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		svc := user.New(store.Users(), []byte(cfg.Pepper), user.DefaultHashParams())
		u, err := svc.Create(cmd.Context(), name, password, userType)
		if err != nil {
			return fmt.Errorf("add-user: %w", err)
		}
		fmt.Printf("created user %s (%s)\n", u.Name, u.Type)
		return nil
	},
}

var setUserPasswordCmd = &cobra.Command{
	Use:   "set-user-password <name> [password]",
	Short: "change a user's password",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		password, err := passwordArgOrPrompt(args, 1, "new password for "+name+": ")
		if err != nil {
			return err
		}

		conn, store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		svc := user.New(store.Users(), []byte(cfg.Pepper), user.DefaultHashParams())
		u, err := svc.GetByName(cmd.Context(), name)
		if err != nil {
			return fmt.Errorf("set-user-password: %w", err)
		}
		if err := svc.SetPassword(cmd.Context(), u.ID, password); err != nil {
			return fmt.Errorf("set-user-password: %w", err)
		}
		authSvc := auth.New(store.Sessions(), time.Hour)
		if err := authSvc.LogoutAll(cmd.Context(), u.ID); err != nil {
			return fmt.Errorf("set-user-password: %w", err)
		}
		fmt.Printf("password updated for %s\n", name)
		return nil
	},
}

var deleteUserCmd = &cobra.Command{
	Use:   "delete-user <name>",
	Short: "delete a user account and everything it owns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		conn, store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		svc := user.New(store.Users(), []byte(cfg.Pepper), user.DefaultHashParams())
		u, err := svc.GetByName(cmd.Context(), name)
		if err != nil {
			return fmt.Errorf("delete-user: %w", err)
		}
		if err := svc.Delete(cmd.Context(), u.ID); err != nil {
			return fmt.Errorf("delete-user: %w", err)
		}
		fmt.Printf("deleted user %s\n", name)
		return nil
	},
}

var deleteSessionsCmd = &cobra.Command{
	Use:   "delete-sessions <name>",
	Short: "sign a user out of every session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		conn, store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		userSvc := user.New(store.Users(), []byte(cfg.Pepper), user.DefaultHashParams())
		authSvc := auth.New(store.Sessions(), time.Hour)
		u, err := userSvc.GetByName(cmd.Context(), name)
		if err != nil {
			return fmt.Errorf("delete-sessions: %w", err)
		}
		if err := authSvc.LogoutAll(cmd.Context(), u.ID); err != nil {
			return fmt.Errorf("delete-sessions: %w", err)
		}
		fmt.Printf("deleted sessions for %s\n", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addUserCmd, setUserPasswordCmd, deleteUserCmd, deleteSessionsCmd)
}

// passwordArgOrPrompt returns args[idx] if present, otherwise reads a
// password from the terminal with no echo.
func passwordArgOrPrompt(args []string, idx int, prompt string) (string, error) {
	if len(args) > idx {
		return args[idx], nil
	}
	fmt.Print(prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}
