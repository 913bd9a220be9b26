package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/amolrairikar/spotify-listening-history-app/internal/faults"
	"github.com/amolrairikar/spotify-listening-history-app/internal/logging"
	"github.com/amolrairikar/spotify-listening-history-app/internal/params"
	"github.com/amolrairikar/spotify-listening-history-app/internal/spotify"
	webassets "github.com/amolrairikar/spotify-listening-history-app/web"
)

// TokenExchanger is the slice of the accounts-service client the auth flow
// needs.
type TokenExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, mode spotify.Mode, token string) (spotify.TokenPair, error)
}

// ParameterSeeder writes the parameters the one-time flow produces.
type ParameterSeeder interface {
	Exists(ctx context.Context, name string) (bool, error)
	Put(ctx context.Context, name, value string, opts params.PutOptions) error
}

// AuthServer serves the one-time authorization flow that seeds the parameter
// store with the refresh token and the initial fetch watermark.
type AuthServer struct {
	*Server
	exchanger TokenExchanger
	params    ParameterSeeder
	states    *StateStore
	templates *Templates

	// now is injectable for tests.
	now func() time.Time
}

// NewAuthServer creates the authorization-flow server.
func NewAuthServer(addr string, exchanger TokenExchanger, seeder ParameterSeeder) (*AuthServer, error) {
	templates, err := NewTemplates(webassets.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	s := &AuthServer{
		Server:    newServer(addr),
		exchanger: exchanger,
		params:    seeder,
		states:    NewStateStore(),
		templates: templates,
		now:       time.Now,
	}

	s.router.Get("/", s.home)
	s.router.Get("/login", s.login)
	s.router.Get("/callback", s.callback)
	return s, nil
}

func (s *AuthServer) home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.Render(w, "login", nil); err != nil {
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

func (s *AuthServer) login(w http.ResponseWriter, r *http.Request) {
	state, err := s.states.Issue()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, s.exchanger.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (s *AuthServer) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	if errMsg := query.Get("error"); errMsg != "" {
		http.Error(w, fmt.Sprintf("Authorization failed: %s", errMsg), http.StatusBadRequest)
		return
	}
	if !s.states.Consume(query.Get("state")) {
		http.Error(w, "Invalid or expired state", http.StatusBadRequest)
		return
	}
	code := query.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	pair, err := s.exchanger.Exchange(ctx, spotify.ModeInitial, code)
	if err != nil {
		logging.Error().Err(err).Msg("Authorization code exchange failed")
		http.Error(w, "Token exchange failed", exchangeStatus(err))
		return
	}
	if pair.RefreshToken == "" {
		http.Error(w, "No refresh token in response", http.StatusInternalServerError)
		return
	}

	exists, err := s.params.Exists(ctx, params.RefreshTokenParam)
	if err != nil {
		logging.Error().Err(err).Msg("Checking stored refresh token failed")
		http.Error(w, "Parameter store unavailable", http.StatusInternalServerError)
		return
	}
	if exists {
		// Protects a running pipeline's credentials from an accidental
		// re-authorization; the operator must delete the parameter first.
		writeJSON(w, http.StatusConflict, map[string]string{
			"message": "Refresh token already stored. Delete the parameter to re-authorize.",
		})
		return
	}

	err = s.params.Put(ctx, params.RefreshTokenParam, pair.RefreshToken, params.PutOptions{
		Secret:      true,
		Description: "Long-lived Spotify refresh token",
	})
	if err != nil {
		logging.Error().Err(err).Msg("Storing refresh token failed")
		http.Error(w, "Failed to store refresh token", http.StatusInternalServerError)
		return
	}

	watermarkExists, err := s.params.Exists(ctx, params.LastFetchedParam)
	if err == nil && !watermarkExists {
		err = s.params.Put(ctx, params.LastFetchedParam, strconv.FormatInt(s.now().UnixMilli(), 10), params.PutOptions{
			Description: "Unix milliseconds of the last successful fetch",
		})
	}
	if err != nil {
		logging.Error().Err(err).Msg("Seeding fetch watermark failed")
		http.Error(w, "Failed to seed fetch watermark", http.StatusInternalServerError)
		return
	}

	logging.Info().Msg("Authorization flow complete, tokens saved")
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Authentication successful and tokens saved!",
	})
}

// exchangeStatus maps an exchange fault to a response status.
func exchangeStatus(err error) int {
	switch faults.KindOf(err) {
	case faults.KindAuth:
		return http.StatusUnauthorized
	case faults.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
