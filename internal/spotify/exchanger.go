package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/amolrairikar/spotify-listening-history-app/internal/faults"
	"github.com/amolrairikar/spotify-listening-history-app/internal/logging"
)

// Mode selects the grant used by Exchange.
type Mode string

const (
	// ModeInitial exchanges a one-time authorization code using the
	// configured redirect URI.
	ModeInitial Mode = "initial"

	// ModeRefresh exchanges a long-lived refresh token.
	ModeRefresh Mode = "refresh"
)

const stageExchange = "token exchange"

// TokenPair is the result of a successful exchange. RefreshToken is empty
// when the identity provider did not rotate it.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Exchanger exchanges authorization codes and refresh tokens for access
// tokens at the Spotify accounts service. It performs no persistence; the
// caller owns any returned refresh token.
type Exchanger struct {
	clientID     string
	clientSecret string
	redirectURI  string
	httpClient   *http.Client
	tokenURL     string
	oauthConfig  *oauth2.Config
}

// NewExchanger creates an Exchanger for the given Spotify application.
func NewExchanger(clientID, clientSecret, redirectURI string) *Exchanger {
	return &Exchanger{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		tokenURL:     spotifyauth.TokenURL,
		oauthConfig: &oauth2.Config{
			ClientID:    clientID,
			RedirectURL: redirectURI,
			Scopes:      []string{spotifyauth.ScopeUserReadRecentlyPlayed},
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
	}
}

// AuthCodeURL builds the authorization URL for the one-time manual flow.
func (e *Exchanger) AuthCodeURL(state string) string {
	return e.oauthConfig.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "false"))
}

// Exchange performs a form-encoded grant exchange with Basic-auth client
// credentials. Non-2xx responses become classified faults: 429 and 5xx are
// transient, all other statuses auth failures.
func (e *Exchanger) Exchange(ctx context.Context, mode Mode, token string) (TokenPair, error) {
	form := url.Values{}
	switch mode {
	case ModeInitial:
		logging.Info().Msg("Performing initial authorization code exchange")
		form.Set("grant_type", "authorization_code")
		form.Set("code", token)
		form.Set("redirect_uri", e.redirectURI)
	case ModeRefresh:
		logging.Info().Msg("Refreshing access token using refresh token")
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", token)
	default:
		return TokenPair{}, faults.Validation(stageExchange, fmt.Errorf("invalid mode %q", mode))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenPair{}, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(e.clientID, e.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return TokenPair{}, faults.Transient(stageExchange, fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TokenPair{}, faults.Transient(stageExchange, fmt.Errorf("reading response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return TokenPair{}, faults.FromStatus(stageExchange, resp.StatusCode, apiErrorDetail(body))
	}

	var pair TokenPair
	if err := json.Unmarshal(body, &pair); err != nil {
		return TokenPair{}, faults.Validation(stageExchange, fmt.Errorf("parsing token response: %w", err))
	}
	return pair, nil
}
