package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/wirehall/quorum/api/database"
	"github.com/wirehall/quorum/api/env"
	"github.com/wirehall/quorum/auth"
	"github.com/wirehall/quorum/chat"
	"github.com/wirehall/quorum/dispatch"
	"github.com/wirehall/quorum/logger"
	"github.com/wirehall/quorum/modules/reactions"
	"github.com/wirehall/quorum/modules/threads"
	"github.com/wirehall/quorum/service"
	"github.com/wirehall/quorum/store"
	"github.com/wirehall/quorum/web"
)

func main() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	defer func() {
		err := logger.Close()
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error closing logger: %s", err.Error())
		}
	}()
	defer database.Close()

	botToken := env.Get("chat.bot.token")
	if botToken == "" {
		logger.Err().Print("CHAT_BOT_TOKEN must be set in the environment to run this process")
		return
	}
	apiToken := env.GetOr("chat.api.token", botToken)

	db, err := database.Get()
	if err != nil {
		logger.Err().Print(err.Error())
		os.Exit(1)
	}

	domainStore := store.New(db)
	if err = domainStore.AutoMigrate(); err != nil {
		logger.Err().Print(err.Error())
		os.Exit(1)
	}

	baseURL := env.GetOr("base.url", "http://localhost:3000")
	bounty := env.GetIntOr("question.bounty", 50)

	client := chat.NewClient(env.GetOr("chat.api.url", "https://slack.com/api"), apiToken, botToken)
	questions := service.NewQuestions(domainStore)
	answers := service.NewAnswers(domainStore, client, baseURL)

	// fixed handler order, built once at startup
	handlers := []dispatch.Handler{
		threads.New(questions, answers, domainStore, client, bounty, baseURL),
		reactions.New(domainStore,
			env.GetStringArray("reactions.positive", ","),
			env.GetStringArray("reactions.negative", ",")),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatch.New(client, handlers).Run(ctx)

	authenticator := auth.New(
		[]byte(env.Get("jwt.secret")),
		env.Get("google.client.id"),
		env.Get("google.client.secret"),
		env.Get("google.redirect.url"))
	server := web.NewServer(authenticator, domainStore, questions, answers, bounty)

	httpServer := &http.Server{
		Addr:    ":" + env.GetOr("port", "8080"),
		Handler: server.Router(env.GetStringArray("cors.origins", ",")),
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Err().Print(err.Error())
			os.Exit(1)
		}
	}()

	// Wait for a CTRL-C
	fmt.Println(`Now running. Press CTRL-C to exit.`)
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc
	fmt.Println("Shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
}
