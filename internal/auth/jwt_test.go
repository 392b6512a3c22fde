package auth

import (
	"context"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"

	"droneSurveyManagement/internal/testutil"
)

const testSecret = "test-secret"

func TestParseFromMD_ValidBearer(t *testing.T) {
	tok := testutil.GenerateJWTHS256(t, testSecret, "drone-1", "Drone")
	ctx := testutil.CtxWithBearer(context.Background(), tok)
	p, err := ParseFromMD(ctx, testSecret)
	if err != nil {
		t.Fatalf("ParseFromMD: %v", err)
	}
	if p.Subject != "drone-1" || p.Kind != KindDrone {
		t.Fatalf("principal mismatch: %+v", p)
	}
}

func TestParseFromMD_MissingHeader(t *testing.T) {
	if _, err := ParseFromMD(context.Background(), testSecret); err == nil {
		t.Fatalf("expected error for missing metadata")
	}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-other", "1"))
	if _, err := ParseFromMD(ctx, testSecret); err == nil {
		t.Fatalf("expected error for missing authorization")
	}
}

func TestParseFromMD_InvalidScheme(t *testing.T) {
	tok := testutil.GenerateJWTHS256(t, testSecret, "bob", KindOperator)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic "+tok))
	if _, err := ParseFromMD(ctx, testSecret); err == nil {
		t.Fatalf("expected error for non-Bearer scheme")
	}
}

func TestParseJWT_WrongSecret(t *testing.T) {
	tok := testutil.GenerateJWTHS256(t, testSecret, "bob", KindOperator)
	if _, err := parseJWT(tok, "wrong"); err == nil {
		t.Fatalf("expected error for wrong secret")
	}
	if _, err := parseJWT(tok, ""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestParseJWT_ClaimsValidation(t *testing.T) {
	if _, err := parseJWT(testutil.GenerateJWTHS256(t, testSecret, "", KindDrone), testSecret); err == nil {
		t.Fatalf("expected invalid claims error for empty subject")
	}
	if _, err := parseJWT(testutil.GenerateJWTHS256(t, testSecret, "x", "admin"), testSecret); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestParseJWT_RejectsOtherAlgorithms(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "x", "kind": KindDrone})
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := parseJWT(s, testSecret); err == nil {
		t.Fatalf("expected HS512 token to be rejected")
	}
}

func TestIssueToken_RoundTrip(t *testing.T) {
	tok, err := IssueToken(testSecret, "op-1", "Operator", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	p, err := parseJWT(tok, testSecret)
	if err != nil {
		t.Fatalf("parseJWT: %v", err)
	}
	if p.Subject != "op-1" || p.Kind != KindOperator {
		t.Fatalf("principal mismatch: %+v", p)
	}
	if _, err := parseJWT(tok, "other-secret"); err == nil {
		t.Fatal("expected signature mismatch")
	}
}

func TestIssueToken_Rejects(t *testing.T) {
	if _, err := IssueToken("", "a", KindDrone, 0); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := IssueToken(testSecret, "", KindDrone, 0); err == nil {
		t.Fatal("expected error for empty subject")
	}
	if _, err := IssueToken(testSecret, "a", "admin", 0); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestIssueToken_Expired(t *testing.T) {
	tok, err := IssueToken(testSecret, "d-1", KindDrone, time.Nanosecond)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	if _, err := parseJWT(tok, testSecret); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}
