package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/staffhive/teamchat/config"
	"github.com/staffhive/teamchat/db"
	"github.com/staffhive/teamchat/realtime"
	"github.com/staffhive/teamchat/services"
)

type Server struct {
	Config              *config.Config
	ChatService         services.ChatService
	MembershipService   services.MembershipService
	MediaService        services.MediaService
	DirectoryRepository db.DirectoryRepository
	Hub                 *realtime.Hub
}

// Start runs the HTTP server until SIGINT/SIGTERM, then drains in-flight
// requests and closes the live channels.
func (s *Server) Start() {
	r := s.setupRouter()

	port := s.Config.Port
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}

	go func() {
		log.Printf("listening on :%d", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	s.Hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
}
