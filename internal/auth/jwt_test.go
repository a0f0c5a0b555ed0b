package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "workforce-test"
)

func TestIssueAndParse(t *testing.T) {
	id := Identity{UserID: "u-1", Role: "employee", Email: "u1@example.com"}
	pair, err := Issue(id, testIssuer, testKey, 15*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if pair.RefreshID == "" || !pair.RefreshExp.After(pair.AccessExp) {
		t.Fatalf("unexpected pair %+v", pair)
	}

	access, err := Parse(pair.AccessToken, testKey, testIssuer)
	if err != nil {
		t.Fatalf("Parse access: %v", err)
	}
	if access.Type != TypeAccess || access.Identity() != id {
		t.Fatalf("unexpected access claims %+v", access)
	}

	refresh, err := Parse(pair.RefreshToken, testKey, testIssuer)
	if err != nil {
		t.Fatalf("Parse refresh: %v", err)
	}
	if refresh.Type != TypeRefresh || refresh.ID != pair.RefreshID {
		t.Fatalf("unexpected refresh claims %+v", refresh)
	}
}

func TestParseRejects(t *testing.T) {
	pair, err := Issue(Identity{UserID: "u-1"}, testIssuer, testKey, time.Minute, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(pair.AccessToken, "other-key", testIssuer); err == nil {
		t.Error("expected signature failure")
	}
	if _, err := Parse(pair.AccessToken, testKey, "someone-else"); err == nil {
		t.Error("expected issuer mismatch")
	}

	expired, err := Sign(Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    testIssuer,
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}, testKey)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(expired, testKey, testIssuer); err == nil {
		t.Error("expected expired token to fail")
	}

	anonymous, err := Sign(Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    testIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}, testKey)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(anonymous, testKey, testIssuer); err == nil {
		t.Error("expected token without subject to fail")
	}
}

func TestRequiredMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Required(testKey, testIssuer), func(c *gin.Context) {
		id, _ := UserID(c)
		claims, _ := ClaimsFrom(c)
		c.JSON(http.StatusOK, gin.H{"userId": id, "role": claims.Role})
	})

	pair, err := Issue(Identity{UserID: "u-7", Role: "employee"}, testIssuer, testKey, time.Minute, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"refresh token", "Bearer " + pair.RefreshToken, http.StatusUnauthorized},
		{"access token", "Bearer " + pair.AccessToken, http.StatusOK},
		{"lowercase scheme", "bearer " + pair.AccessToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}
