package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"greentera/internal/config"
	"greentera/internal/logging"
	"greentera/internal/middleware"
	"greentera/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	oauthStateKey     = "oauth_state"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// NewGoogleOAuth returns the OAuth2 client config, or nil when Google
// sign-in is not configured.
func NewGoogleOAuth(cfg config.GoogleConfig, siteURL string) *oauth2.Config {
	if !cfg.Enabled() {
		return nil
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  siteURL + "/auth/google/callback",
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func generateStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if h.oauth == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Google sign-in is not configured"})
		return
	}
	state, err := generateStateToken()
	if err != nil {
		writeError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(oauthStateKey, state)
	_ = session.Save()

	c.Redirect(http.StatusTemporaryRedirect, h.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// GoogleCallback completes the code flow, signs the user in and sends the
// browser back to the dashboard.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.oauth == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Google sign-in is not configured"})
		return
	}
	session := sessions.Default(c)
	saved, _ := session.Get(oauthStateKey).(string)
	session.Delete(oauthStateKey)
	_ = session.Save()

	if saved == "" || c.Query("state") != saved {
		c.Redirect(http.StatusFound, "/login?error=invalid_state")
		return
	}
	code := c.Query("code")
	if code == "" {
		c.Redirect(http.StatusFound, "/login?error=missing_code")
		return
	}

	ctx := c.Request.Context()
	log := logging.Ctx(ctx)
	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		log.Warn().Err(err).Msg("Google token exchange failed")
		c.Redirect(http.StatusFound, "/login?error=exchange_failed")
		return
	}

	info, err := h.fetchGoogleUser(c, token)
	if err != nil {
		log.Warn().Err(err).Msg("Google user info failed")
		c.Redirect(http.StatusFound, "/login?error=userinfo_failed")
		return
	}
	if !info.VerifiedEmail {
		c.Redirect(http.StatusFound, "/login?error=email_not_verified")
		return
	}

	user, err := h.users.LoginWithGoogle(ctx, services.GoogleIdentity{
		ID:      info.ID,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	})
	if err != nil {
		log.Error().Err(err).Msg("Google sign-in failed")
		c.Redirect(http.StatusFound, "/login?error=signin_failed")
		return
	}

	session.Set(middleware.SessionUserKey, user.ID)
	_ = session.Save()
	c.Redirect(http.StatusFound, "/dashboard")
}

func (h *AuthHandler) fetchGoogleUser(c *gin.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	client := h.oauth.Client(c.Request.Context(), token)
	resp, err := client.Get(h.userInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var info GoogleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
