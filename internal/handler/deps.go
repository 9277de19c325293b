package handler

import (
	"listentogether/internal/app/moderation"
	"listentogether/internal/app/room"
	"listentogether/internal/configs"
)

type AppDeps struct {
	Manager *room.Manager
	Config  *configs.AppConfig
	Store   moderation.Store
}
