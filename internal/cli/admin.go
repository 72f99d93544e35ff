package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/iliyamo/repairdesk/internal/database"
	"github.com/iliyamo/repairdesk/internal/importer"
	"github.com/iliyamo/repairdesk/internal/queue"
	"github.com/iliyamo/repairdesk/internal/utils"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and print the schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			// open has already migrated.
			v, err := database.Version(cmd.Context(), a.db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", v, a.cfg.DBPath)
			return nil
		},
	}
}

func newImportCommand(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import the seed CSV files",
		Long: fmt.Sprintf("Import %s, %s and %s from the import directory. Rows already present are left untouched.",
			importer.UsersFile, importer.RequestsFile, importer.CommentsFile),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.ImportDir
			}
			im := importer.New(a.db, a.requests, a.comments, a.users, a.cfg.PasswordSalt, importer.WithCache(a.cache))
			res, err := im.ImportDir(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d users, %d requests, %d comments (%d comments skipped)\n",
				res.Users, res.Requests, res.Comments, res.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory with the CSV files (default IMPORT_DIR)")
	return cmd
}

func readPassword(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		return string(b), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCommand(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Check a username and password against the imported accounts",
		Long:  "Check a username and password. Without --password the password is read from the terminal, or from the first line of stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("password") {
				p, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = p
			}
			who, err := a.users.FindByCredentials(cmd.Context(), args[0], utils.HashPassword(password, a.cfg.PasswordSalt))
			if err != nil {
				return err
			}
			if who == nil {
				return errors.New("invalid username or password")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s, %s)\n", who.Username, who.FullName, who.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	return cmd
}

func newConsumeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Write pickup notifications for requests that became ready",
		Long:  "Consume the pickup queue and append a notification line per request to EVENTS_NOTIFY_LOG until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Events.Enabled {
				return errors.New("events are disabled, set EVENTS_ENABLED=true")
			}
			a.log.Info("consuming pickup queue", "queue", a.cfg.Events.PickupQueue, "log", a.cfg.Events.NotifyLog)
			err := queue.NewPickupConsumer(a.cfg.Events).Run(cmd.Context())
			if errors.Is(err, cmd.Context().Err()) {
				return nil
			}
			return err
		},
	}
}
