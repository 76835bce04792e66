package server

import (
	"net/http"
	"time"

	"github.com/jrsteele09/epic-fhir-client/sessions"
	"github.com/rs/zerolog/log"
)

const contentTypeHTML = "text/html; charset=utf-8"

// PageData is what the page templates render
type PageData struct {
	AppName        string
	View           sessions.View
	RefreshSeconds int
}

// HomePageHandler renders the home page. A redirect back from the authorization
// server carries the code, which is exchanged before rendering; with a patient in
// context the Patient record is read as part of the same request.
func (s *Server) HomePageHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("home.html")
	if err != nil {
		panic("Failed to parse home template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		session := s.home.Current()
		// failures are kept on the session and rendered on the page
		_ = session.HandleRedirect(r.Context(), r.URL.Query())

		w.Header().Set("Content-Type", contentTypeHTML)
		w.Header().Set("Cache-Control", "no-store")
		if err := tmpl.Execute(w, PageData{AppName: s.config.GetAppName(), View: session.View()}); err != nil {
			log.Err(err).Msg("Failed to render home page")
		}
	}
}

// LoginRedirectHandler sends the browser to the authorize URL of the slot's flow
func (s *Server) LoginRedirectHandler(slot *sessions.Slot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, slot.Current().AuthorizeURL(), http.StatusFound)
	}
}

// consumedCodeRetention bounds how long redeemed codes are remembered across resets
const consumedCodeRetention = time.Hour

// ResetHandler tears the slot's session down, mounts a fresh one and returns to page
func (s *Server) ResetHandler(slot *sessions.Slot, builder *sessions.Builder, page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := builder.Exchanger().ForgetConsumedBefore(time.Now().Add(-consumedCodeRetention)); err != nil {
			log.Warn().Err(err).Msg("Failed to prune consumed authorization codes")
		}
		if _, err := slot.Reset(); err != nil {
			logError(r.Method, r.URL.Path, err.Error())
			http.Error(w, "Failed to reset session", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, page, http.StatusSeeOther)
	}
}
