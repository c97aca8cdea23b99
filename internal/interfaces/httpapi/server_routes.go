package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerLobbyRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("POST /v1/games", handler.CreateGame)
	mux.HandleFunc("GET /v1/games/{code}", handler.GetGame)
	mux.HandleFunc("POST /v1/games/{code}/players", handler.JoinGame)
	mux.Handle("DELETE /v1/games/{code}", RequirePlayer(http.HandlerFunc(handler.DeleteGame)))
	mux.Handle("DELETE /v1/games/{code}/players/me", RequirePlayer(http.HandlerFunc(handler.LeaveGame)))
	mux.Handle("DELETE /v1/games/{code}/players/{playerID}", RequirePlayer(http.HandlerFunc(handler.KickPlayer)))
	mux.Handle("PUT /v1/games/{code}/players/me/ready", RequirePlayer(http.HandlerFunc(handler.SetReady)))
}

func registerRoundRoutes(mux *http.ServeMux, handler *Handler) {
	mux.Handle("POST /v1/games/{code}/start", RequirePlayer(http.HandlerFunc(handler.StartGame)))
	mux.Handle("POST /v1/games/{code}/rounds/{round}/submissions", RequirePlayer(http.HandlerFunc(handler.SubmitMeme)))
	mux.Handle("POST /v1/games/{code}/rounds/{round}/submissions/{submissionID}/ratings", RequirePlayer(http.HandlerFunc(handler.RateMeme)))
}

func registerRealtimeRoutes(mux *http.ServeMux, handler *Handler) {
	mux.Handle("GET /v1/games/{code}/events", RequirePlayer(http.HandlerFunc(handler.SubscribeEvents)))
}
