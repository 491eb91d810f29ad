package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/core/config"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/ui/rest"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/ui/rest/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the WhatsApp webhook over http",
	Long:  `Starts the webhook receiver, the turn workers and the health endpoints.`,
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(_ *cobra.Command, _ []string) {
	cfg := config.Global

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := initServices(ctx, cfg)
	if err != nil {
		logrus.Fatalf("[REST] Failed to start services: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "UP IGRS WhatsApp Intake",
		ServerHeader:          "Hidden",
		Network:               "tcp",
		BodyLimit:             4 * 1024 * 1024,
		DisableStartupMessage: !cfg.App.Debug,
	})

	app.Use(requestid.New())
	app.Use(middleware.Recovery())
	app.Use(helmet.New())
	if cfg.App.Debug {
		app.Use(logger.New(logger.Config{
			Format: "[${ip}]:${port} ${locals:requestid} ${status} - ${method} ${path}\n",
		}))
	}

	router := app.Group(cfg.App.BasePath)
	rest.InitRestWebhook(router, cfg.Meta.VerifyToken, svc.processor)
	rest.InitRestHealth(router, svc.serverID, cfg.App.Version, svc.healthSources())
	rest.InitRestMetrics(router, svc.metrics.Registry)
	if svc.files.Configured() {
		router.Static("/attachments", svc.files.Dir())
	}
	rest.InitRestNotFound(app)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.WithError(err).Error("[REST] Failed to shutdown http server")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"port":      cfg.App.Port,
		"server_id": svc.serverID,
		"store":     svc.sessions.Mode(),
	}).Info("[REST] Listening")

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Fatalln("Failed to start: ", err.Error())
	}

	svc.stop()
	logrus.Info("[REST] Stopped")
}
