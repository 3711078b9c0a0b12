package server

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/rs/zerolog"
)

type SessionCheckUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SessionCheckResponse is the minimal body served to other origins for single sign-on
// checks.
type SessionCheckResponse struct {
	Authenticated bool              `json:"authenticated"`
	User          *SessionCheckUser `json:"user,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// SessionCheckHandler answers whether the caller holds a valid session cookie. It is
// served with CORS headers for allowed origins.
func (s *Server) SessionCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _, err := s.auth.User(r)
		if err != nil {
			zerolog.Ctx(r.Context()).Err(err).Msg("[Session Check] Error")
			writeJSON(w, http.StatusInternalServerError, SessionCheckResponse{Error: "Failed to check session"})
			return
		}
		if user == nil {
			writeJSON(w, http.StatusOK, SessionCheckResponse{})
			return
		}
		writeJSON(w, http.StatusOK, SessionCheckResponse{
			Authenticated: true,
			User:          &SessionCheckUser{ID: user.ID, Email: user.Email, Name: user.Name},
		})
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.AppName}}</title></head>
<body>
<h1>{{.AppName}}</h1>
{{if .Error}}<p>Sign in failed: {{.Error}}</p>{{end}}
{{if .User}}
<p>Signed in as {{.User.Name}} ({{.User.Email}})</p>
<form method="post" action="{{.SignOut}}"><button type="submit">Sign out</button></form>
{{else}}
<p><a href="{{.SignIn}}">Sign in</a></p>
{{end}}
</body>
</html>
`))

type indexPageData struct {
	AppName string
	User    *SessionCheckUser
	Error   string
	SignIn  string
	SignOut string
}

// IndexHandler renders the home page with the signed-in user, if any.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := indexPageData{
			AppName: s.config.GetAppName(),
			Error:   r.URL.Query().Get("error"),
			SignIn:  RouteSignIn + "?callback_url=" + RouteIndex,
			SignOut: RouteSignOut,
		}
		user, _, err := s.auth.User(r)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("session lookup failed")
		}
		if user != nil {
			data.User = &SessionCheckUser{ID: user.ID, Email: user.Email, Name: user.Name}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexTemplate.Execute(w, data); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
