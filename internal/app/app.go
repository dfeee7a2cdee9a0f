package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/APIConsole/internal/config"
	"github.com/router-for-me/APIConsole/internal/db"
	"github.com/router-for-me/APIConsole/internal/executor"
	"github.com/router-for-me/APIConsole/internal/http/api/console"
	"github.com/router-for-me/APIConsole/internal/logging"
	"github.com/router-for-me/APIConsole/internal/registry"
	"github.com/router-for-me/APIConsole/internal/session"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	log.Info("migrations applied")
	return nil
}

// RunServer boots the console API with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return err
	}
	settings.ApplyDefaultPort(defaultPort)

	logCloser, errLog := logging.Setup(logging.Options{
		Debug:         settings.Debug,
		LoggingToFile: settings.LoggingToFile,
		LogDir:        settings.LogDir,
	})
	if errLog != nil {
		return errLog
	}
	defer func() {
		if errClose := logCloser.Close(); errClose != nil {
			fmt.Printf("close log output: %v\n", errClose)
		}
	}()
	if settings.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	initialized, errInit := HasUserInitialized(conn)
	if errInit != nil {
		return errInit
	}
	var initState atomic.Bool
	initState.Store(initialized)

	authority := session.NewAuthority(conn, settings.Session.TTL)
	session.NewSweeper(authority, settings.Session.SweepInterval).Start(ctx)

	engine := console.NewEngine(console.Deps{
		DB:        conn,
		Authority: authority,
		Registry:  registry.New(conn),
		Executor:  executor.New(nil, settings.Executor.Timeout),
	})
	registerInitRoutes(engine, conn, dsn, &initState)

	srv := &http.Server{
		Addr:              settings.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting console on %s with config=%s", srv.Addr, configPath)
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	log.Info("console stopped")
	return nil
}

// registerInitRoutes serves setup endpoints on the main server, used when the
// database is configured through the environment but holds no account yet.
func registerInitRoutes(engine *gin.Engine, conn *gorm.DB, dsn string, initState *atomic.Bool) {
	engine.GET("/api/init/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, InitStatusResponse{Initialized: initState.Load()})
	})
	engine.GET("/api/init/prefill", func(c *gin.Context) {
		prefill, errPrefill := prefillFromDSN(dsn)
		if errPrefill != nil {
			c.JSON(http.StatusOK, gin.H{"locked": true})
			return
		}
		c.JSON(http.StatusOK, struct {
			Locked bool `json:"locked"`
			dsnPrefill
		}{Locked: true, dsnPrefill: prefill})
	})
	engine.POST("/api/init/setup", func(c *gin.Context) {
		if ok, errInit := HasUserInitialized(conn); errInit != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "check init status failed"})
			return
		} else if ok {
			initState.Store(true)
			c.JSON(http.StatusBadRequest, gin.H{"error": "System already initialized"})
			return
		}

		var req InitRequest
		if errBind := c.ShouldBindJSON(&req); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
			return
		}
		if errValidate := validateAccount(&req.Username, req.Password, &req.SiteName); errValidate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
			return
		}

		if errUser := CreateFirstUserWithConn(c.Request.Context(), conn, req.Username, req.Password, req.SiteName); errUser != nil {
			log.WithError(errUser).Error("init setup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
			return
		}
		initState.Store(true)
		c.JSON(http.StatusOK, gin.H{"message": "Initialization successful"})
	})
}
