package middleware

import (
	"bikey/config"
	"bikey/internal/logger"
	"bikey/internal/services"
)

type Middleware struct {
	Config config.Config
	log    logger.Logger
	tokens *services.TokenService
}

func New(config config.Config, tokens *services.TokenService) Middleware {
	return Middleware{
		Config: config,
		log:    logger.New("middleware"),
		tokens: tokens,
	}
}
