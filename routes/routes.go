package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/formbox/formbox/app"
	"github.com/formbox/formbox/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app))
	root.Mount("/", servePublicFiles())

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Post("/register", Register(app))
	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	// public form access: anonymous allowed, identity attributed if present
	api.Group(func(r chi.Router) {
		r.Use(middlewares.MaybeAuthenticated(app.TokenSecret))

		r.Get(`/forms/{id:^\d+$}/public`, GetFormById(app))
		r.Post(`/forms/{id:^\d+$}/public`, SubmitForm(app))
	})

	api.Group(func(r chi.Router) {
		r.Use(middlewares.CookieAuth(app.BearerServer), middlewares.Authenticated(app.TokenSecret))

		r.Post("/logout", Logout(app))

		r.Get("/forms", ListForms(app))
		r.Post("/forms", CreateForm(app))
		r.Get(`/forms/{id:^\d+$}`, GetFormById(app))
		r.Delete(`/forms/{id:^\d+$}`, DeleteForm(app))

		r.Post(`/forms/{id:^\d+$}/submissions`, SubmitForm(app))
		r.Get(`/forms/{id:^\d+$}/responses`, GetFormResponses(app))
	})

	return api
}

func servePublicFiles() http.Handler {
	return http.FileServer(http.Dir("public"))
}
