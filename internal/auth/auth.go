// Package auth implements bearer token authentication for the admin endpoints. Only a sha256 digest
// of each token is stored.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/furfur/central/internal/database"
	"github.com/furfur/central/internal/domain"
	"github.com/furfur/central/internal/httphelper"
	"github.com/furfur/central/internal/log"
	"github.com/furfur/central/pkg/stringutil"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
)

const (
	tokenLength     = 40
	CtxKeyAPIAuthID = "api_auth_id"
)

var (
	ErrAuthHeader          = errors.New("failed to bind auth header")
	ErrMalformedAuthHeader = errors.New("malformed auth header")
	ErrInvalidToken        = errors.New("invalid api token")
	ErrName                = errors.New("token name must not be empty")
)

// APIAuth is a stored credential. The plain token is never persisted.
type APIAuth struct {
	AuthID    uuid.UUID `json:"auth_id"`
	Name      string    `json:"name"`
	TokenHash string    `json:"-"`
	CreatedOn time.Time `json:"created_on"`
}

// HashToken returns the hex encoded sha256 digest of token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}

type Authentication struct {
	repo Repository
}

func NewAuthentication(repo Repository) Authentication {
	return Authentication{repo: repo}
}

// Create stores a new credential and returns it along with the plain token. The token cannot be
// recovered afterwards.
func (a Authentication) Create(ctx context.Context, name string) (APIAuth, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return APIAuth{}, "", errors.Join(ErrName, domain.ErrValidation)
	}

	authID, errID := uuid.NewV4()
	if errID != nil {
		return APIAuth{}, "", errors.Join(errID, domain.ErrInternal)
	}

	token := stringutil.SecureRandomString(tokenLength)
	apiAuth := APIAuth{
		AuthID:    authID,
		Name:      name,
		TokenHash: HashToken(token),
		CreatedOn: domain.Now(),
	}

	if err := a.repo.Insert(ctx, apiAuth); err != nil {
		return APIAuth{}, "", err
	}

	return apiAuth, token, nil
}

func (a Authentication) List(ctx context.Context) ([]APIAuth, error) {
	return a.repo.List(ctx)
}

func (a Authentication) Delete(ctx context.Context, authID uuid.UUID) error {
	return a.repo.Delete(ctx, authID)
}

// Verify checks token against the stored digests.
func (a Authentication) Verify(ctx context.Context, token string) (APIAuth, error) {
	if token == "" {
		return APIAuth{}, errors.Join(ErrInvalidToken, domain.ErrUnauthorized)
	}

	apiAuth, errGet := a.repo.GetByHash(ctx, HashToken(token))
	if errGet != nil {
		if errors.Is(errGet, database.ErrNoResult) {
			return APIAuth{}, errors.Join(ErrInvalidToken, domain.ErrUnauthorized)
		}

		return APIAuth{}, errGet
	}

	return apiAuth, nil
}

type authHeader struct {
	Authorization string `header:"Authorization"`
}

// TokenFromHeader extracts the bearer token from the Authorization header.
func TokenFromHeader(ctx *gin.Context) (string, error) {
	hdr := authHeader{}
	if errBind := ctx.ShouldBindHeader(&hdr); errBind != nil {
		return "", errors.Join(errBind, ErrAuthHeader)
	}

	pcs := strings.Split(hdr.Authorization, " ")
	if len(pcs) != 2 || !strings.EqualFold(pcs[0], "bearer") || pcs[1] == "" {
		return "", ErrMalformedAuthHeader
	}

	return pcs[1], nil
}

// Middleware rejects requests that do not carry a known bearer token.
func (a Authentication) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, errToken := TokenFromHeader(ctx)
		if errToken != nil {
			httphelper.SetError(ctx, httphelper.NewAPIError(http.StatusUnauthorized,
				errors.Join(errToken, domain.ErrUnauthorized)))
			ctx.Abort()

			return
		}

		apiAuth, errVerify := a.Verify(ctx, token)
		if errVerify != nil {
			if !errors.Is(errVerify, domain.ErrUnauthorized) {
				slog.Error("Failed to verify api token", log.ErrAttr(errVerify))
			}

			httphelper.HandleErr(ctx, errVerify)
			ctx.Abort()

			return
		}

		ctx.Set(CtxKeyAPIAuthID, apiAuth.AuthID)
		ctx.Next()
	}
}
