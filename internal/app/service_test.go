package app_test

import (
	"context"
	"fmt"
	"testing"

	"itef-puzzle-service/internal/app"
)

func TestDeviceLookupsAreNotRetained(t *testing.T) {
	h := newHarness(t, app.Options{})
	for i := 0; i < 10000; i++ {
		h.svc.Device(fmt.Sprintf("client-%d", i))
	}
	if got := h.svc.ActiveDevices(); got != 0 {
		t.Fatalf("expected no retained devices, got %d", got)
	}
}

func TestAcquireSharesDeviceUntilLastRelease(t *testing.T) {
	h := newHarness(t, app.Options{})
	ctx := context.Background()

	first, releaseFirst := h.svc.Acquire("kiosk")
	second, releaseSecond := h.svc.Acquire("kiosk")
	if first != second {
		t.Fatalf("expected concurrent holders to share one device")
	}
	if h.svc.Device("kiosk") != first {
		t.Fatalf("expected lookup to return the held device")
	}
	if _, err := first.Identity.Register(ctx, "Ann", "ann@example.com", "5550001234"); err != nil {
		t.Fatalf("register: %v", err)
	}

	releaseFirst()
	releaseFirst()
	if got := h.svc.ActiveDevices(); got != 1 {
		t.Fatalf("expected device held by remaining connection, got %d", got)
	}
	releaseSecond()
	if got := h.svc.ActiveDevices(); got != 0 {
		t.Fatalf("expected device dropped after last release, got %d", got)
	}

	again, release := h.svc.Acquire("kiosk")
	defer release()
	if again == first {
		t.Fatalf("expected a fresh device after eviction")
	}
	identity, ok := again.Identity.Current(ctx)
	if !ok || identity.ID != "ann@example.com" {
		t.Fatalf("expected identity to survive eviction, got %+v", identity)
	}
}
