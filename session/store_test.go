package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Afolstee/authcore/permission"
)

func newTestStore(t *testing.T, sliding bool) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(client, "ac", sliding), mr
}

func testSession(sessionID, userID string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		SessionID:   sessionID,
		UserID:      userID,
		Role:        "member",
		Mask:        permission.Mask64(5),
		Status:      0,
		RefreshHash: sha256.Sum256([]byte("secret-" + sessionID)),
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(ttl).Unix(),
	}
}

func TestSaveGetRoundtrip(t *testing.T) {
	store, _ := newTestStore(t, false)
	ctx := context.Background()

	sess := testSession("s1", "u1", time.Hour)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.SessionID != "s1" || got.UserID != "u1" || got.Role != "member" {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	if got.Mask != sess.Mask {
		t.Fatalf("mask mismatch: %v vs %v", got.Mask, sess.Mask)
	}
	if got.RefreshHash != sess.RefreshHash {
		t.Fatal("refresh hash mismatch")
	}
	if got.ExpiresAt != sess.ExpiresAt {
		t.Fatalf("expiry mismatch: %d vs %d", got.ExpiresAt, sess.ExpiresAt)
	}
}

func TestGetMissingSession(t *testing.T) {
	store, _ := newTestStore(t, false)

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil, got %v", err)
	}
}

func TestGetRespectsAbsoluteExpiry(t *testing.T) {
	store, _ := newTestStore(t, false)
	ctx := context.Background()

	// Redis TTL outlives the expiresAt embedded in the blob.
	sess := testSession("s1", "u1", time.Second)
	sess.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Get(ctx, "s1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil for logically expired session, got %v", err)
	}

	// The stale key was reaped, including the user index entry.
	ids, err := store.ActiveSessionIDs(ctx, "u1")
	if err != nil {
		t.Fatalf("ActiveSessionIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no indexed sessions, got %v", ids)
	}
}

func TestSlidingRenewalExtendsTTL(t *testing.T) {
	store, mr := newTestStore(t, true)
	ctx := context.Background()

	sess := testSession("s1", "u1", time.Hour)
	if err := store.Save(ctx, sess, time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Get(ctx, "s1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// Renewal pushes the key TTL toward the absolute expiry, past the
	// original one-minute window.
	ttl := mr.TTL("ac:s:s1")
	if ttl <= time.Minute {
		t.Fatalf("expected TTL extended past 1m, got %v", ttl)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t, false)
	ctx := context.Background()

	sess := testSession("s1", "u1", time.Hour)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("second Delete must succeed: %v", err)
	}
	if err := store.Delete(ctx, "never-existed"); err != nil {
		t.Fatalf("Delete of unknown session must succeed: %v", err)
	}

	if _, err := store.Get(ctx, "s1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestDeleteAllForUser(t *testing.T) {
	store, _ := newTestStore(t, false)
	ctx := context.Background()

	for _, sid := range []string{"s1", "s2", "s3"} {
		if err := store.Save(ctx, testSession(sid, "u1", time.Hour), time.Hour); err != nil {
			t.Fatalf("Save %s failed: %v", sid, err)
		}
	}
	if err := store.Save(ctx, testSession("other", "u2", time.Hour), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.DeleteAllForUser(ctx, "u1"); err != nil {
		t.Fatalf("DeleteAllForUser failed: %v", err)
	}

	for _, sid := range []string{"s1", "s2", "s3"} {
		if _, err := store.Get(ctx, sid); !errors.Is(err, redis.Nil) {
			t.Fatalf("session %s: expected redis.Nil, got %v", sid, err)
		}
	}

	// Unrelated users are untouched.
	if _, err := store.Get(ctx, "other"); err != nil {
		t.Fatalf("u2 session lost: %v", err)
	}
}

/*
====================================
ROTATION
====================================
*/

func TestRotateRefreshHashSuccess(t *testing.T) {
	store, _ := newTestStore(t, false)
	ctx := context.Background()

	sess := testSession("s1", "u1", time.Hour)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	next := sha256.Sum256([]byte("next-secret"))
	rotated, err := store.RotateRefreshHash(ctx, "s1", sess.RefreshHash, next)
	if err != nil {
		t.Fatalf("rotation failed: %v", err)
	}
	if rotated.RefreshHash != next {
		t.Fatal("expected rotated hash in returned session")
	}
	if rotated.UserID != "u1" || rotated.Role != "member" || rotated.Mask != sess.Mask {
		t.Fatalf("rotation corrupted session fields: %+v", rotated)
	}

	// The store now holds the new hash.
	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.RefreshHash != next {
		t.Fatal("stored hash not rotated")
	}
}

func TestRotateRefreshHashMismatchDestroysSession(t *testing.T) {
	store, _ := newTestStore(t, false)
	ctx := context.Background()

	sess := testSession("s1", "u1", time.Hour)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	wrong := sha256.Sum256([]byte("stolen"))
	next := sha256.Sum256([]byte("next"))

	_, err := store.RotateRefreshHash(ctx, "s1", wrong, next)
	if !errors.Is(err, ErrRefreshHashMismatch) {
		t.Fatalf("expected ErrRefreshHashMismatch, got %v", err)
	}

	// Mismatch means the token leaked; the whole session is burned.
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected session destroyed, got %v", err)
	}
	ids, err := store.ActiveSessionIDs(ctx, "u1")
	if err != nil {
		t.Fatalf("ActiveSessionIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected index cleared, got %v", ids)
	}
}

func TestRotateRefreshHashNotFound(t *testing.T) {
	store, _ := newTestStore(t, false)

	a := sha256.Sum256([]byte("a"))
	b := sha256.Sum256([]byte("b"))
	_, err := store.RotateRefreshHash(context.Background(), "missing", a, b)
	if !errors.Is(err, ErrRefreshSessionNotFound) {
		t.Fatalf("expected ErrRefreshSessionNotFound, got %v", err)
	}
}

func TestRotateRefreshHashExpired(t *testing.T) {
	store, _ := newTestStore(t, false)
	ctx := context.Background()

	sess := testSession("s1", "u1", time.Hour)
	sess.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	next := sha256.Sum256([]byte("next"))
	_, err := store.RotateRefreshHash(ctx, "s1", sess.RefreshHash, next)
	if !errors.Is(err, ErrRefreshSessionExpired) {
		t.Fatalf("expected ErrRefreshSessionExpired, got %v", err)
	}

	if _, err := store.Get(ctx, "s1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected expired session deleted, got %v", err)
	}
}

func TestRotateRefreshHashCorruptBlob(t *testing.T) {
	store, mr := newTestStore(t, false)

	mr.Set("ac:s:s1", "not-a-session-blob")

	a := sha256.Sum256([]byte("a"))
	b := sha256.Sum256([]byte("b"))
	_, err := store.RotateRefreshHash(context.Background(), "s1", a, b)
	if !errors.Is(err, ErrRefreshSessionCorrupt) {
		t.Fatalf("expected ErrRefreshSessionCorrupt, got %v", err)
	}
}

func TestRotateRefreshHashOldHashLoses(t *testing.T) {
	store, _ := newTestStore(t, false)
	ctx := context.Background()

	sess := testSession("s1", "u1", time.Hour)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	second := sha256.Sum256([]byte("second"))
	third := sha256.Sum256([]byte("third"))

	if _, err := store.RotateRefreshHash(ctx, "s1", sess.RefreshHash, second); err != nil {
		t.Fatalf("first rotation failed: %v", err)
	}

	// Replaying the original hash after rotation is a mismatch.
	_, err := store.RotateRefreshHash(ctx, "s1", sess.RefreshHash, third)
	if !errors.Is(err, ErrRefreshHashMismatch) {
		t.Fatalf("expected ErrRefreshHashMismatch, got %v", err)
	}
}

/*
====================================
ENCODER
====================================
*/

func TestEncodeDecodeRoundtrip(t *testing.T) {
	sess := testSession("s1", "user-with-a-longer-id", time.Hour)
	sess.Role = "admin"
	sess.Status = 2

	data, err := Encode(sess)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.UserID != sess.UserID || got.Role != sess.Role || got.Status != sess.Status {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	if got.Mask != sess.Mask || got.RefreshHash != sess.RefreshHash {
		t.Fatal("binary fields corrupted")
	}
	if got.CreatedAt != sess.CreatedAt || got.ExpiresAt != sess.ExpiresAt {
		t.Fatal("timestamps corrupted")
	}
}

func TestDecodeRejectsInvalidBlobs(t *testing.T) {
	sess := testSession("s1", "u1", time.Hour)
	valid, err := Encode(sess)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	cases := [][]byte{
		nil,
		{},
		valid[:10],
		valid[:len(valid)-3],
		append([]byte{9}, valid[1:]...),
	}
	for i, data := range cases {
		if _, err := Decode(data); !errors.Is(err, ErrInvalidBlob) {
			t.Fatalf("case %d: expected ErrInvalidBlob, got %v", i, err)
		}
	}
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	sess := testSession("s1", "u1", time.Hour)
	sess.UserID = string(make([]byte, 300))

	if _, err := Encode(sess); err == nil {
		t.Fatal("expected error for oversized user id")
	}
}
