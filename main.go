package main

import (
	"log"

	"github.com/staffhive/teamchat/config"
	"github.com/staffhive/teamchat/db"
	"github.com/staffhive/teamchat/realtime"
	"github.com/staffhive/teamchat/server"
	"github.com/staffhive/teamchat/services"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	gormDB := db.GetDB(conf)
	chatRepo := db.NewChatRepo(gormDB)
	directoryRepo := db.NewDirectoryRepo(gormDB)

	hub := realtime.NewHub()

	chatService := services.NewChatService(chatRepo, hub)
	membershipService := services.NewMembershipService(chatRepo, directoryRepo)
	mediaService := services.NewMediaService(conf)

	s := &server.Server{
		Config:              conf,
		ChatService:         chatService,
		MembershipService:   membershipService,
		MediaService:        mediaService,
		DirectoryRepository: directoryRepo,
		Hub:                 hub,
	}

	s.Start()
}
