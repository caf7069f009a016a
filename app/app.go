package app

import (
	"database/sql"

	"github.com/go-chi/oauth"

	"github.com/formbox/formbox/config"
)

type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config
}
