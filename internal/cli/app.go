package cli

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"taskshare/internal/access"
	"taskshare/internal/audit"
	"taskshare/internal/config"
	"taskshare/internal/repository"
	"taskshare/internal/service"
	"taskshare/internal/sharing"
)

// app holds the process-wide database handle and everything built on it.
type app struct {
	db         *gorm.DB
	log        *slog.Logger
	users      *repository.UserRepository
	resolver   *access.Resolver
	directory  *sharing.Directory
	categories *service.CategoryService
	lists      *service.ListService
	tasks      *service.TaskService
}

func newApp(cfg config.Config, log *slog.Logger) (*app, error) {
	db, err := repository.NewDB(cfg.DatabaseURL, repository.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		Logger:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	resolver := access.NewResolver(repository.NewLocator(db), repository.NewShareRepository(db))
	recorder := audit.NewRecorder(repository.NewAuditRepository(db), log)
	taskRepo := repository.NewTaskRepository(db)

	return &app{
		db:       db,
		log:      log,
		users:    repository.NewUserRepository(db),
		resolver: resolver,
		directory: sharing.NewDirectory(db, resolver, recorder,
			sharing.WithLogger(log),
			sharing.WithPublisher(sharing.NewLogPublisher(log)),
			sharing.WithInvitationTTL(cfg.InvitationTTL),
		),
		categories: service.NewCategoryService(repository.NewCategoryRepository(db), resolver),
		lists:      service.NewListService(repository.NewListRepository(db), taskRepo, resolver),
		tasks:      service.NewTaskService(taskRepo, resolver),
	}, nil
}

func (a *app) Close() error {
	return repository.Close(a.db)
}
