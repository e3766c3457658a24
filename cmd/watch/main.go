// Package main runs a terminal live view of an event: it seeds from the
// question API, follows the push stream, and prints the reconciled list as
// it changes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askwave/liveqa/config"
	"github.com/askwave/liveqa/internal/models"
	"github.com/askwave/liveqa/pkg/livesync"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Client.EventID == "" {
		logger.Fatal("LIVEQA_EVENT_ID is required")
	}
	eventID, err := uuid.Parse(cfg.Client.EventID)
	if err != nil {
		logger.Fatal("invalid LIVEQA_EVENT_ID", zap.Error(err))
	}

	session, err := livesync.NewSession(cfg.Client.BaseURL, eventID,
		livesync.WithSessionLogger(logger),
		livesync.WithOnChange(func(ev models.LiveEvent) {
			printEvent(ev)
		}),
	)
	if err != nil {
		logger.Fatal("create session", zap.Error(err))
	}

	// The context outlives Open: the channel keeps it for redials.
	if err := session.Open(context.Background()); err != nil {
		logger.Fatal("open session", zap.Error(err))
	}
	defer session.Close()

	fmt.Printf("watching event %s (%d questions)\n", eventID, len(session.TopLevel()))
	for _, q := range session.TopLevel() {
		printQuestion(q)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println("bye")
}

func printEvent(ev models.LiveEvent) {
	switch ev.Type {
	case models.EventNewQuestion:
		if ev.Data.IsFollowUp() {
			fmt.Printf("  ↳ follow-up to %s: %s\n", shortID(*ev.Data.ParentID), ev.Data.Content)
			return
		}
		printQuestion(ev.Data)
	case models.EventQuestionLiked:
		fmt.Printf("  ♥ %s now has %d likes\n", shortID(ev.Data.ID), ev.Data.LikeCount)
	case models.EventQuestionUpdated:
		fmt.Printf("  * %s updated\n", shortID(ev.Data.ID))
	}
}

func printQuestion(q models.Question) {
	author := q.UserName
	if author == "" {
		author = "anonymous"
	}
	fmt.Printf("[%s] %s by %s (%d likes, %d follow-ups)\n",
		shortID(q.ID), q.Content, author, q.LikeCount, q.FollowupCount)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
