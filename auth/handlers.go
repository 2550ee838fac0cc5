package auth

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"quizroyale/domain"
)

var (
	ErrMissingTokenStr          = "missing-token"
	ErrExpiredTokenStr          = "expired-token"
	ErrInvalidTokenStr          = "invalid-token"
	ErrInvalidRequestFormatStr  = "bad-request-format"
	ErrUnknownStr               = "unknown-error"
	ErrUsernameAlreadyExistsStr = "username-already-exists"
	ErrInvalidUsernameFormatStr = "invalid-username-format"
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

type ProfileRepo interface {
	CreateProfile(ctx context.Context, username, avatarUrl, playerCode string, startingBalance int) (domain.Profile, error)
	GetProfile(ctx context.Context, id string) (domain.Profile, error)
}

type TokenManager interface {
	Generate(id string, now time.Time) (string, error)
	Verify(token string) (string, error)
}

type AuthHandler struct {
	profiles     ProfileRepo
	tokens       TokenManager
	cookieMaxAge time.Duration
	startBalance int
}

func NewAuthHandler(profiles ProfileRepo, tokens TokenManager, cookieMaxAge time.Duration, startBalance int) *AuthHandler {
	return &AuthHandler{
		profiles:     profiles,
		tokens:       tokens,
		cookieMaxAge: cookieMaxAge,
		startBalance: startBalance,
	}
}

func (ah *AuthHandler) RequireAuthMiddleware(ctx *gin.Context) {
	token := bearerToken(ctx)
	if token == "" {
		var err error
		token, err = ctx.Cookie("token")
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingTokenStr})
			return
		}
	}

	id, err := ah.tokens.Verify(token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrExpiredToken):
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrExpiredTokenStr})
		default:
			log.Warn().
				Err(err).
				Str("ip", ctx.ClientIP()).
				Str("user_agent", ctx.Request.UserAgent()).
				Msg("rejected token")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidTokenStr})
		}
		return
	}

	ctx.Set("id", id)
	ctx.Next()
}

func bearerToken(ctx *gin.Context) string {
	header := ctx.GetHeader("Authorization")
	if after, found := strings.CutPrefix(header, "Bearer "); found {
		return after
	}
	return ""
}

// GuestHandler mints a full profile for a chosen username. There is no
// password: possession of the token cookie is the identity.
func (ah *AuthHandler) GuestHandler(ctx *gin.Context) {
	var body struct {
		Username string `json:"username"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrInvalidRequestFormatStr})
		return
	}
	if !usernameRe.MatchString(body.Username) {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrInvalidUsernameFormatStr})
		return
	}

	avatarUrl := "https://api.dicebear.com/7.x/avataaars/svg?seed=" + url.QueryEscape(body.Username)

	var profile domain.Profile
	var err error
	// a player code collision is a lottery loss, not a user mistake;
	// regenerate a fresh code and try again
	for attempt := 0; attempt < 3; attempt++ {
		profile, err = ah.profiles.CreateProfile(ctx.Request.Context(), body.Username, avatarUrl, newPlayerCode(), ah.startBalance)
		if !errors.Is(err, domain.ErrDuplicatePlayerCode) {
			break
		}
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateUsername):
			ctx.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": ErrUsernameAlreadyExistsStr})
		default:
			log.Error().Err(err).Str("username", body.Username).Msg("guest profile creation failed")
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrUnknownStr})
		}
		return
	}

	token, err := ah.tokens.Generate(profile.Id, time.Now())
	if err != nil {
		log.Error().Err(err).Str("user", profile.Id).Msg("token generation failed")
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrUnknownStr})
		return
	}

	ctx.SetSameSite(http.SameSiteNoneMode)
	ctx.SetCookie("token", token, int(ah.cookieMaxAge.Seconds()), "/", "", true, true)
	ctx.JSON(http.StatusCreated, gin.H{"profile": profile, "token": token})
}

func (ah *AuthHandler) MeHandler(ctx *gin.Context) {
	id := ctx.GetString("id")
	profile, err := ah.profiles.GetProfile(ctx.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProfileNotFound):
			ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "profile-not-found"})
		default:
			log.Error().Err(err).Str("user", id).Msg("profile lookup failed")
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrUnknownStr})
		}
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (ah *AuthHandler) LogoutHandler(ctx *gin.Context) {
	ctx.SetCookie("token", "", -1, "/", "", true, true)
	ctx.Status(http.StatusOK)
}

const playerCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newPlayerCode() string {
	code := make([]byte, 6)
	for i := range code {
		code[i] = playerCodeAlphabet[rand.Intn(len(playerCodeAlphabet))]
	}
	return string(code)
}
