package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/aoe4hub/tournament-engine/handlers"
	"github.com/aoe4hub/tournament-engine/middleware"
	"github.com/aoe4hub/tournament-engine/services"
)

type Handlers struct {
	Auth         *handlers.AuthHandler
	Tournament   *handlers.TournamentHandler
	Join         *handlers.JoinHandler
	Entrant      *handlers.EntrantHandler
	JoinRequest  *handlers.JoinRequestHandler
	Availability *handlers.AvailabilityHandler
	Task         *handlers.TaskHandler
	WebSocket    *handlers.WebSocketHandler
}

func InitRoutes(h Handlers, authService *services.AuthService, allowedOrigins []string) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(authService)

	router.Post("/auth/signup", h.Auth.SignUp)
	router.Post("/auth/signin", h.Auth.SignIn)

	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.Subscribe)

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", h.Tournament.List)
		r.Get("/{tournamentID}", h.Tournament.GetByID)
		r.Get("/{tournamentID}/bracket", h.Tournament.GetBracket)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", h.Tournament.Create)
			r.Delete("/{tournamentID}", h.Tournament.Delete)
			r.Post("/{tournamentID}/start", h.Tournament.Start)
			r.Put("/{tournamentID}/logo", h.Tournament.UploadLogo)

			r.Post("/join-by-invite", h.Join.JoinByInvite)
			r.Post("/{tournamentID}/join", h.Join.JoinPublic)
			r.Post("/{tournamentID}/invites", h.Join.CreateInvite)

			r.Post("/{tournamentID}/entrants", h.Entrant.Create)
			r.Post("/{tournamentID}/entrants/{entrantID}/leave", h.Entrant.Leave)
			r.Delete("/{tournamentID}/players/{userID}", h.Entrant.RemovePlayer)

			r.Post("/{tournamentID}/join-requests", h.JoinRequest.Create)
			r.Post("/{tournamentID}/join-requests/{requestID}/respond", h.JoinRequest.Respond)
			r.Post("/{tournamentID}/join-requests/{requestID}/cancel", h.JoinRequest.Cancel)
		})
	})

	router.Route("/availability", func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/", h.Availability.List)
		r.Post("/", h.Availability.Create)
		r.Put("/{availabilityID}", h.Availability.Update)
		r.Delete("/{availabilityID}", h.Availability.Delete)
	})

	router.With(authenticate).Get("/tasks/{taskID}", h.Task.GetByID)

	return router
}
