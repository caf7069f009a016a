package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/formbox/formbox/app"
	"github.com/formbox/formbox/config"
	"github.com/formbox/formbox/database"
	"github.com/formbox/formbox/httpx"
	"github.com/formbox/formbox/log"
	"github.com/formbox/formbox/outbox"
	"github.com/formbox/formbox/routes"
	"github.com/formbox/formbox/sheets"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.SheetID == "" {
		log.Warn("no -sheet-id configured: submissions will accumulate in the outbox unmirrored")
	} else {
		sheet, err := sheets.NewClient(ctx, cfg)
		if err != nil {
			log.Fatal("main.sheets:", err)
		}
		go outbox.NewWorker(db, sheet, cfg.MirrorInterval).Run(ctx)
	}

	bearerServer := httpx.NewBearerServer(db, cfg)

	app := app.App{
		DB:           db,
		BearerServer: bearerServer,
		Config:       cfg,
	}

	handler := routes.Wire(app)

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
