// Package cli implements the repairdesk command tree.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/iliyamo/repairdesk/internal/analytics"
	"github.com/iliyamo/repairdesk/internal/cache"
	"github.com/iliyamo/repairdesk/internal/config"
	"github.com/iliyamo/repairdesk/internal/database"
	"github.com/iliyamo/repairdesk/internal/logger"
	"github.com/iliyamo/repairdesk/internal/queue"
	"github.com/iliyamo/repairdesk/internal/repository"
	"github.com/iliyamo/repairdesk/internal/service"
)

// app holds everything a command needs.  It is built once per invocation
// by the root command's PersistentPreRunE.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	db       *sql.DB
	rdb      *redis.Client
	cache    *cache.Cache
	requests *repository.RequestRepo
	comments *repository.CommentRepo
	users    *repository.UserRepo
	service  *service.RequestService
	engine   *analytics.Engine
}

func (a *app) open(ctx context.Context) error {
	a.cfg = config.Load()
	if err := logger.Init(a.cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.log = logger.WithComponent("cli")

	db, err := database.Open(a.cfg.DBPath)
	if err != nil {
		return err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return err
	}
	a.db = db

	if a.cfg.Cache.Enabled {
		if a.rdb = config.NewRedisClient(a.cfg.Redis); a.rdb == nil {
			a.log.Warn("redis unreachable, analytics cache disabled", "addr", a.cfg.Redis.Addr)
		}
	}
	c := cache.New(a.rdb, a.cfg.Cache)
	a.cache = c

	a.requests = repository.NewRequestRepo(db)
	a.comments = repository.NewCommentRepo(db)
	a.users = repository.NewUserRepo(db)
	a.service = service.NewRequestService(a.requests, a.comments,
		service.WithCache(c),
		service.WithPublisher(queue.NewPublisher(a.cfg.Events)),
	)
	a.engine = analytics.NewEngine(a.requests, a.comments, analytics.WithCache(c))
	a.log.Debug("database ready", "path", a.cfg.DBPath, "env", a.cfg.Env)
	return nil
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// Execute runs the command tree with os.Args and releases the database
// and Redis connections afterwards.
func Execute(ctx context.Context) error {
	root, a := newRoot()
	defer a.close()
	return root.ExecuteContext(ctx)
}

func newRoot() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:          "repairdesk",
		Short:        "Repair service center request desk",
		Long:         `repairdesk records appliance repair requests, their comments and status history in a local SQLite database and reports analytics over them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
	}

	root.AddCommand(
		newMigrateCommand(a),
		newImportCommand(a),
		newRequestsCommand(a),
		newStatsCommand(a),
		newLoginCommand(a),
		newConsumeCommand(a),
	)
	return root, a
}
