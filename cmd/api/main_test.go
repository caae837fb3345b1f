package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/crowdlend/crowdlend-api/internal/domain/admin"
	"github.com/crowdlend/crowdlend-api/internal/domain/fraud"
	"github.com/crowdlend/crowdlend-api/internal/domain/referralcredit"
	"github.com/crowdlend/crowdlend-api/internal/middleware"
	"github.com/crowdlend/crowdlend-api/internal/pkg/jwt"
	"github.com/crowdlend/crowdlend-api/internal/pkg/jwt/jwttest"
)

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

const testSecret = "test-secret"

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	jwtService := jwt.NewService(testSecret)
	adminJWT := admin.NewJWTService("admin-secret")

	return newRouter(routerDeps{
		allowedOrigins: []string{"http://localhost:3000"},
		authMiddleware: middleware.Auth(jwtService),
		fraudRateLimit: middleware.RateLimit(denyAll{}, "fraud_check", time.Minute),
		adminHandler:   admin.NewHandler(admin.NewService(nil), adminJWT),
		creditHandler:  referralcredit.NewHandler(nil, nil),
		fraudHandler:   fraud.NewHandler(nil, nil),
	})
}

func TestRouterMountsEveryArea(t *testing.T) {
	router := testRouter(t)

	cases := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"credits need a token", http.MethodGet, "/api/v1/credits", http.StatusUnauthorized},
		{"apply needs a token", http.MethodPost, "/api/v1/credits/apply", http.StatusUnauthorized},
		{"fraud check needs a token", http.MethodPost, "/api/v1/referrals/fraud-check", http.StatusUnauthorized},
		{"admin credits need an admin token", http.MethodPost, "/api/admin/credits/expire", http.StatusUnauthorized},
		{"admin fraud needs an admin token", http.MethodGet, "/api/admin/fraud/flagged", http.StatusUnauthorized},
		{"unknown route", http.MethodGet, "/api/v1/wallet", http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
			if rr.Code != tc.want {
				t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, rr.Code)
			}
		})
	}
}

func TestFraudCheckIsRateLimited(t *testing.T) {
	router := testRouter(t)
	token := jwttest.AccessToken(t, testSecret, time.Minute, uuid.New(), "borrower", false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/referrals/fraud-check", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rr.Header().Get("Retry-After"))
	}
}
