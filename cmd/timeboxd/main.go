package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	txStdLib "github.com/Thiht/transactor/stdlib"
	"github.com/charmbracelet/log"

	"timebox"
	"timebox/sqlite"
)

const Version = "0.1.0"

func main() {
	cfg, err := timebox.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	log.SetReportCaller(true)

	// db
	log.Info("opening db", "path", cfg.DatabaseURL)
	db, err := sqlite.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed database open", "err", err)
	}
	defer db.Close() //nolint
	if err := sqlite.Migrate(db); err != nil {
		log.Fatal("failed migration", "err", err)
	}

	tx, dbGetter := txStdLib.NewTransactor(
		db,
		txStdLib.NestedTransactionsSavepoints,
	)

	store := sqlite.NewStore(dbGetter, *log.Default())
	timer := NewTimer(store, tx, *log.Default())

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: newServer(timer, store, *log.Default()).routes(),
	}
	go func() {
		log.Info("timeboxd running", "addr", cfg.ListenAddr, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "err", err)
		}
	}()

	// graceful shutdown
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc
	log.Info("terminating timeboxd")

	shutdownCtx, shutdownCtxC := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCtxC()

	// flush the running timer before the listener goes away so the session
	// row records what was on the clock
	if err := timer.Save(shutdownCtx); err != nil {
		log.Error("failed to save active session", "err", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shut down gracefully", "err", err)
	}
}
