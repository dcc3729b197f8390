package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"chipsight/engine"
)

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub
}

func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(eng.AppConfig().Web.SessionSecret),
		eventHub: hub,
	}

	h.ensureDefaultAdmin(eng.DB())

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// SSE
	r.Get("/events", hub.SSEHandler)

	// Admin auth
	r.Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)

	r.Route("/api", func(r chi.Router) {
		// Reads, open to the floor
		r.Get("/health", h.apiHealthCheck)
		r.Get("/projects", h.apiListProjects)
		r.Get("/projects/{id}/end-products", h.apiListEndProducts)
		r.Get("/drawings", h.apiListDrawings)
		r.Get("/drawings/lookup", h.apiLookupDrawing)
		r.Get("/drawings/{id}/hold", h.apiDrawingHold)
		r.Get("/drawings/{id}/logs", h.apiDrawingLogs)
		r.Get("/drawings/{id}/rework", h.apiDrawingRework)
		r.Get("/drawings/{id}/scrap", h.apiDrawingScrap)
		r.Get("/machines", h.apiListMachines)
		r.Get("/machines/{id}/logs", h.apiMachineLogs)
		r.Get("/sessions/active", h.apiActiveSessions)
		r.Get("/logs/open", h.apiOpenLogs)
		r.Get("/logs/{id}", h.apiGetLog)
		r.Get("/logs/{id}/history", h.apiLogHistory)
		r.Get("/logs/{id}/cycles", h.apiLogCycles)
		r.Get("/logs/{id}/downtime", h.apiLogDowntime)
		r.Get("/logs/{id}/checks", h.apiLogChecks)
		r.Get("/logs/{id}/oee", h.apiLogOEE)
		r.Get("/holds", h.apiListHolds)
		r.Get("/rework", h.apiListRework)
		r.Get("/audit", h.apiAuditLog)

		// Workstation actions. Operator identity rides on the session
		// row, not on web auth; the station terminals are trusted.
		r.Post("/sessions", h.apiSessionLogin)
		r.Post("/sessions/{id}/logout", h.apiSessionLogout)
		r.Post("/sessions/{id}/drawing", h.apiSelectDrawing)
		r.Post("/logs/setup", h.apiStartSetup)
		r.Post("/logs/rework-setup", h.apiStartRework)
		r.Post("/logs/{id}/setup-done", h.apiSetupDone)
		r.Post("/logs/{id}/cycle-start", h.apiCycleStart)
		r.Post("/logs/{id}/cycle-complete", h.apiCycleComplete)
		r.Post("/logs/{id}/pause", h.apiCyclePause)
		r.Post("/logs/{id}/downtime", h.apiLogDowntimeAdd)
		r.Post("/logs/{id}/cancel", h.apiCancelLog)
		r.Post("/logs/{id}/close", h.apiCloseLog)
		r.Post("/logs/{id}/fpi", h.apiRecordFPI)
		r.Post("/logs/{id}/lpi", h.apiRecordLPI)
		r.Post("/machines/{id}/breakdown", h.apiReportBreakdown)
		r.Post("/machines/{id}/healthy", h.apiMarkHealthy)

		// Supervisor actions
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/projects", h.apiCreateProject)
			r.Post("/projects/{id}/end-products", h.apiCreateEndProduct)
			r.Post("/drawings", h.apiCreateDrawing)
			r.Post("/machines", h.apiCreateMachine)
			r.Post("/machines/{id}/active", h.apiSetMachineActive)
			r.Post("/rework/{id}/approve", h.apiApproveRework)
			r.Post("/rework/{id}/decline", h.apiDeclineRework)
			r.Post("/logs/{id}/force-close", h.apiForceCloseLog)
			r.Post("/logs/close-all", h.apiCloseAllLogs)
		})
	})

	stopFn := func() {
		hub.Stop()
	}

	return r, stopFn
}
