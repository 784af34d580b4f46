// Package main запускает панель мейкера: следит за входящими заказами
// и автоматически отклоняет те, по которым мейкер не принял решение вовремя.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/homefood-system/internal/config"
	"github.com/mmeshcher/homefood-system/internal/dashboard"
	"github.com/mmeshcher/homefood-system/internal/ordersapi"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.ParseBoard()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	client := ordersapi.NewClient(cfg.ServerAddress)
	session := dashboard.NewSession(cfg.MakerID, client, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting maker board", "maker", cfg.MakerID, "server", cfg.ServerAddress)
		session.Run(ctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}

	sugar.Info("maker board stopped")
}
