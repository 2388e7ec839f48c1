package main

import (
	"context"

	"github.com/DenisKhanov/CommuteBot/internal/app/tgbot"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx := context.Background()

	app, err := tgbot.NewApp(ctx)
	if err != nil {
		logrus.Fatalf("Failed to initialize app: %v", err)
	}
	app.Run()
}
