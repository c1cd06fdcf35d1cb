package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	clerkjwt "github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"wizardAPI/internal/apperror"
	"wizardAPI/internal/logger"
)

type contextKey string

const UserIDKey contextKey = "userID"
const AuthSubjectKey contextKey = "authSubject"

// TokenVerifier validates a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// IdentityResolver maps a token subject to an internal user id.
type IdentityResolver interface {
	ResolveUserID(ctx context.Context, subject string) (uuid.UUID, error)
}

// ClerkVerifier checks Clerk session tokens. clerk.SetKey must be called first.
type ClerkVerifier struct{}

func (ClerkVerifier) Verify(ctx context.Context, token string) (string, error) {
	claims, err := clerkjwt.Verify(ctx, &clerkjwt.VerifyParams{Token: token})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// JWTVerifier checks HS256 tokens signed with a shared secret. The subject is
// read from "sub", falling back to a "userId" claim.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	if sub, _ := claims.GetSubject(); sub != "" {
		return sub, nil
	}
	if userID, ok := claims["userId"]; ok && userID != nil {
		return fmt.Sprint(userID), nil
	}
	return "", errors.New("token has no subject")
}

type Auth struct {
	verifier TokenVerifier
	users    IdentityResolver
	log      *logger.Logger
}

func NewAuth(verifier TokenVerifier, users IdentityResolver, log *logger.Logger) *Auth {
	return &Auth{verifier: verifier, users: users, log: log.With("component", "auth")}
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("Authorization header required")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader || token == "" {
		return "", errors.New("Invalid authorization format. Use 'Bearer <token>'")
	}
	return token, nil
}

func (a *Auth) identify(ctx context.Context, token string) (context.Context, error) {
	subject, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return ctx, apperror.Unauthorized("Invalid token")
	}

	userID, err := a.users.ResolveUserID(ctx, subject)
	if err != nil {
		return ctx, err
	}

	ctx = context.WithValue(ctx, AuthSubjectKey, subject)
	return context.WithValue(ctx, UserIDKey, userID), nil
}

// Require rejects requests without a valid token for a known user.
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, err.Error())
			return
		}

		ctx, err := a.identify(r.Context(), token)
		if err != nil {
			status := apperror.HTTPStatus(err)
			if status == http.StatusInternalServerError {
				a.log.Error("identity lookup failed", "error", err)
			} else {
				a.log.Debug("request rejected", "error", err)
			}
			respondWithError(w, status, apperror.PublicMessage(err))
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches the identity when a valid token is present and otherwise
// lets the request through anonymously.
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, err := bearerToken(r); err == nil {
			if ctx, err := a.identify(r.Context(), token); err == nil {
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserID extracts the internal user id from context.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// GetAuthSubject extracts the token subject from context.
func GetAuthSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(AuthSubjectKey).(string)
	return subject, ok
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
