package main

import (
	"context"
	"fmt"
	"net/http"

	"cloud.google.com/go/firestore"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/expensaur/backend/internal/api"
	"github.com/expensaur/backend/internal/config"
	"github.com/expensaur/backend/internal/service"
	"github.com/expensaur/backend/internal/store"
)

func main() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx := context.Background()

	var st store.Store
	if cfg.UseMemoryStore {
		log.Info("using in-memory store for local development")
		st = store.NewMemoryStore()
	} else {
		if cfg.ProjectID == "" {
			log.Fatal("GOOGLE_CLOUD_PROJECT must be set when using Firestore")
		}
		firestoreClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			log.WithError(err).Fatal("failed to create Firestore client")
		}
		defer firestoreClient.Close()
		st = store.NewFirestoreStore(firestoreClient)
	}

	svc := service.New(st, log)
	handler := api.NewServer(svc, log).Routes()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:1234",
			"http://127.0.0.1:1234",
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"User-Agent",
		},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: c.Handler(handler),
	}

	log.WithField("port", cfg.Port).Info("starting server")
	if err := srv.ListenAndServe(); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
