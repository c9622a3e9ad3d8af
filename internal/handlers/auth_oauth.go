package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/offerdesk/console-be/internal/models"
	"github.com/offerdesk/console-be/internal/utils"
)

// PartnerOAuthHandler signs vendors in through the partner platform's
// identity provider. Same start/callback shape as any OAuth code flow:
// state cookie, code exchange, userinfo fetch, local session cookie.
type PartnerOAuthHandler struct {
	DB              *gorm.DB
	JWTSecret       string
	Expires         int
	ClientID        string
	ClientSecret    string
	RedirectURL     string
	AuthURL         string
	TokenURL        string
	UserInfoURL     string
	FrontendBaseURL string
}

func (h *PartnerOAuthHandler) oauthCfg() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  h.AuthURL,
			TokenURL: h.TokenURL,
		},
		Scopes: []string{"openid", "email", "profile"},
	}
}

func randomState(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (h *PartnerOAuthHandler) Start(c *fiber.Ctx) error {
	next := c.Query("next", "/")
	st := randomState(32)

	c.Cookie(&fiber.Cookie{
		Name:     "oauth_state",
		Value:    st,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   10 * 60,
	})
	c.Cookie(&fiber.Cookie{
		Name:     "oauth_next",
		Value:    next,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   10 * 60,
	})

	authURL := h.oauthCfg().AuthCodeURL(st, oauth2.AccessTypeOffline)

	return c.Redirect(authURL, http.StatusTemporaryRedirect)
}

type partnerUserInfo struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

func (h *PartnerOAuthHandler) Callback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")

	if code == "" || state == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing code/state")
	}

	stCookie := c.Cookies("oauth_state")
	next := c.Cookies("oauth_next")
	if next == "" {
		next = "/"
	}

	if stCookie == "" || stCookie != state {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid state")
	}

	tok, err := h.oauthCfg().Exchange(c.Context(), code)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Failed to exchange code")
	}

	client := h.oauthCfg().Client(c.Context(), tok)
	resp, err := client.Get(h.UserInfoURL)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Failed to fetch userinfo")
	}
	defer resp.Body.Close()

	var pu partnerUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&pu); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Failed to decode userinfo")
	}

	email := strings.ToLower(strings.TrimSpace(pu.Email))
	if email == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Identity provider returned no email")
	}

	var u models.User
	err = h.DB.Where("email = ?", email).First(&u).Error
	if err == gorm.ErrRecordNotFound {
		u = models.User{
			Name:           pu.Name,
			Email:          email,
			Password:       "-", // no local password for provider accounts
			Role:           models.RoleVendor,
			IsActive:       true,
			PartnerSubject: pu.Subject,
		}
		if err := h.DB.Create(&u).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Failed to create account")
		}
	} else if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Server error")
	} else if u.PartnerSubject == "" {
		u.PartnerSubject = pu.Subject
		_ = h.DB.Save(&u).Error
	}

	if !u.IsActive {
		return c.Status(fiber.StatusForbidden).SendString("Account is inactive")
	}

	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to create token")
	}

	ah := &AuthHandler{Expires: h.Expires}
	ah.setSessionCookie(c, token)

	return c.Redirect(strings.TrimRight(h.FrontendBaseURL, "/")+next, http.StatusTemporaryRedirect)
}
