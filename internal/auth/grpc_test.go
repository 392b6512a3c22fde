package auth

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"droneSurveyManagement/internal/testutil"
	"droneSurveyManagement/repository"
)

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeStream) Context() context.Context { return f.ctx }

func TestRequireKind(t *testing.T) {
	ctx := WithPrincipal(context.Background(), &Principal{Subject: "d1", Kind: KindDrone})
	if _, err := RequireKind(ctx, KindDrone); err != nil {
		t.Fatalf("RequireKind drone: %v", err)
	}
	if _, err := RequireKind(ctx, KindOperator); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
	if _, err := RequirePrincipal(context.Background()); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestRequireKnownOperator(t *testing.T) {
	d := testutil.OpenInMemoryDB(t)
	users := repository.NewUserRepository(d)
	u, err := users.Create(context.Background(), "Olive", "olive@example.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	known := WithPrincipal(context.Background(), &Principal{Subject: u.ID, Kind: KindOperator})
	if _, err := RequireKnownOperator(known, users); err != nil {
		t.Fatalf("known operator: %v", err)
	}
	ghost := WithPrincipal(context.Background(), &Principal{Subject: "ghost", Kind: KindOperator})
	if _, err := RequireKnownOperator(ghost, users); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected PermissionDenied for unknown operator, got %v", err)
	}
	drone := WithPrincipal(context.Background(), &Principal{Subject: "d1", Kind: KindDrone})
	if _, err := RequireKnownOperator(drone, users); err != nil {
		t.Fatalf("drone principal should pass: %v", err)
	}
}

func TestStreamAuthInterceptor(t *testing.T) {
	secret := "s3cr3t"
	interceptor := NewStreamAuthInterceptor(secret, "/open")
	info := &grpc.StreamServerInfo{FullMethod: "/svc/Stream"}

	called := false
	err := interceptor(nil, &fakeStream{ctx: context.Background()}, info, func(srv any, ss grpc.ServerStream) error {
		called = true
		return nil
	})
	if status.Code(err) != codes.Unauthenticated || called {
		t.Fatalf("missing token: err=%v called=%v", err, called)
	}

	tok := testutil.GenerateJWTHS256(t, secret, "drone-7", KindDrone)
	ctx := testutil.CtxWithBearer(context.Background(), tok)
	err = interceptor(nil, &fakeStream{ctx: ctx}, info, func(srv any, ss grpc.ServerStream) error {
		p, ok := FromContext(ss.Context())
		if !ok || p.Subject != "drone-7" || p.Kind != KindDrone {
			t.Fatalf("principal not injected: %+v ok=%v", p, ok)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("authenticated stream: %v", err)
	}

	called = false
	err = interceptor(nil, &fakeStream{ctx: context.Background()}, &grpc.StreamServerInfo{FullMethod: "/open"}, func(srv any, ss grpc.ServerStream) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("allowlisted stream err=%v called=%v", err, called)
	}
}

func TestUnaryAuthInterceptor(t *testing.T) {
	secret := "s3cr3t"
	interceptor := NewUnaryAuthInterceptor(secret, "/grpc.health.v1.Health/Check")

	hCalled := false
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, func(ctx context.Context, req any) (any, error) {
		hCalled = true
		if p, ok := FromContext(ctx); ok && p != nil {
			t.Fatalf("expected no principal on allowlisted path")
		}
		return 123, nil
	})
	if err != nil || !hCalled {
		t.Fatalf("allowlisted handler err=%v called=%v", err, hCalled)
	}

	tok := testutil.GenerateJWTHS256(t, secret, "bob", KindOperator)
	ctx := testutil.CtxWithBearer(context.Background(), tok)
	_, err = interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Op"}, func(ctx context.Context, req any) (any, error) {
		p, ok := FromContext(ctx)
		if !ok || p == nil || p.Subject != "bob" || p.Kind != KindOperator {
			t.Fatalf("principal not injected: %+v ok=%v", p, ok)
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor auth path: %v", err)
	}

	if _, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Op"}, nil); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated without token, got %v", err)
	}
}
