// Точка входа Attribute Admin — сервис редактирования атрибутов
// пользователей каталога (организационные подразделения и уровни доступа).
// Загружает конфигурацию, при заданном AA_DB_HOST подключается к PostgreSQL
// и применяет миграции, создаёт клиент каталога (attribute API или Keycloak),
// сервисный слой и API handlers, запускает topologymetrics,
// HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/bigkaa/goartstore/attribute-admin/internal/api/handlers"
	"github.com/bigkaa/goartstore/attribute-admin/internal/api/middleware"
	"github.com/bigkaa/goartstore/attribute-admin/internal/config"
	"github.com/bigkaa/goartstore/attribute-admin/internal/database"
	"github.com/bigkaa/goartstore/attribute-admin/internal/directory"
	"github.com/bigkaa/goartstore/attribute-admin/internal/keycloak"
	"github.com/bigkaa/goartstore/attribute-admin/internal/repository"
	"github.com/bigkaa/goartstore/attribute-admin/internal/roster"
	"github.com/bigkaa/goartstore/attribute-admin/internal/server"
	"github.com/bigkaa/goartstore/attribute-admin/internal/service"
)

// directoryBackend — каталог пользователей с проверкой готовности.
type directoryBackend interface {
	roster.Directory
	CheckReady() (status string, message string)
}

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Attribute Admin запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("directory_backend", cfg.DirectoryBackend),
	)

	if os.Getenv("AA_DEPHEALTH_GROUP") == "" {
		logger.Warn("AA_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	ctx := context.Background()

	// 3. PostgreSQL (опционально): миграции и пул для переопределений ролей
	var (
		db        *database.DB
		roleRepo  repository.RoleOverrides
		pgChecker handlers.ReadinessChecker
	)
	if cfg.HasDatabase() {
		db, err = database.Open(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()

		roleRepo = repository.NewRoleOverrides(db.Pool)
		pgChecker = db
	} else {
		logger.Info("AA_DB_HOST не задан, переопределения ролей отключены")
	}

	// 4. HTTP-клиент с кастомным CA (для каталога и Keycloak)
	var httpClientCA *http.Client
	if cfg.CACertPath != "" {
		httpClientCA, err = middleware.HTTPClientWithCA(cfg.CACertPath, cfg.DirectoryTimeout)
		if err != nil {
			logger.Error("Ошибка загрузки CA-сертификата",
				slog.String("path", cfg.CACertPath),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		logger.Info("CA-сертификат загружен", slog.String("path", cfg.CACertPath))
	}

	// 5. Каталог пользователей
	var dir directoryBackend
	switch cfg.DirectoryBackend {
	case config.BackendKeycloak:
		kcClient := keycloak.New(
			cfg.KeycloakURL,
			cfg.KeycloakRealm,
			cfg.KeycloakClientID,
			cfg.KeycloakClientSecret,
			httpClientCA, // nil — стандартный пул CA
			logger,
		)
		dir = keycloak.NewDirectory(kcClient, cfg.IdentityKey, keycloak.DefaultPageSize, logger)
		logger.Info("Каталог: Keycloak Admin API",
			slog.String("url", cfg.KeycloakURL),
			slog.String("realm", cfg.KeycloakRealm),
		)
	default:
		dir = directory.New(cfg.DirectoryURL, cfg.DirectoryAccessTokenHeader, httpClientCA, logger)
		logger.Info("Каталог: attribute API", slog.String("url", cfg.DirectoryURL))
	}

	// 6. Services
	attributesSvc := service.NewAttributeService(
		dir,
		cfg.Schema(),
		cfg.WorkspaceCacheSize,
		cfg.WorkspaceTTL,
		cfg.DirectoryTimeout,
		logger,
	)
	roleOverridesSvc := service.NewRoleOverrideService(roleRepo, logger)

	// 7. Readiness checkers
	kcChecker, err := middleware.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, cfg.CACertPath, cfg.JWKSClientTimeout)
	if err != nil {
		logger.Error("Ошибка создания Keycloak readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(dir, kcChecker, pgChecker)

	// 8. API handler
	apiHandler := handlers.NewAPIHandler(healthHandler, attributesSvc, roleOverridesSvc, logger)

	// 9. JWT middleware; без БД override не применяется
	var roleProvider middleware.RoleOverrideProvider
	if roleRepo != nil {
		roleProvider = roleRepo
	}

	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.CACertPath,
		cfg.JWTIssuer,
		roleProvider,
		cfg.RoleAdminGroups,
		cfg.RoleReadonlyGroups,
		cfg.DirectoryAccessTokenHeader,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jwtAuth.Close()
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 10. topologymetrics — мониторинг зависимостей
	dephealthCfg := service.DephealthConfig{
		ServiceID:       "attribute-admin",
		Group:           cfg.DephealthGroup,
		CheckInterval:   cfg.DephealthCheckInterval,
		KeycloakJWKSURL: cfg.JWTJWKSURL,
	}
	if cfg.DirectoryBackend == config.BackendHTTP {
		dephealthCfg.DirectoryURL = cfg.DirectoryURL
		dephealthCfg.DirectoryHealthPath = cfg.DirectoryHealthPath
	}
	if db != nil {
		dephealthCfg.DB = db.SQL
		dephealthCfg.PGConnURL = cfg.DatabaseURL()
	}

	dephealthSvc, dephealthErr := service.NewDephealthService(dephealthCfg, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Attribute Admin остановлен")
}
