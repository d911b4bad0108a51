package memory

import "testing"

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	session := newTestSession(t, "attempt-1")
	store.Save(session)
	got, ok := store.Get("attempt-1")
	if !ok || got != session {
		t.Fatalf("expected saved session")
	}
	if store.Len() != 1 {
		t.Fatalf("expected one live attempt, got %d", store.Len())
	}

	store.Delete("attempt-1")
	if _, ok := store.Get("attempt-1"); ok {
		t.Fatalf("expected session removed")
	}
	store.Delete("attempt-1")
}
