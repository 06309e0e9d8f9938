package store_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pravin-sketch/studyflow-ai1/internal/store"
)

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "studyflow",
			"POSTGRES_PASSWORD": "studyflow",
			"POSTGRES_DB":       "studyflow",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	return fmt.Sprintf("postgres://studyflow:studyflow@%s:%s/studyflow?sslmode=disable", host, port.Port())
}

func applyMigrations(t *testing.T, dsn string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(wd, "..", "..", "migrations")
	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		t.Fatalf("migrate.New: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("migrate up: %v", err)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dsn := startPostgres(t, ctx)
	applyMigrations(t, dsn)

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("NewWithDSN: %v", err)
	}
	defer st.DB.Close()

	userID, err := st.CreateUser(ctx, "it@example.com", "bcrypt-hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := st.CreateUser(ctx, "it@example.com", "other"); err == nil {
		t.Fatal("duplicate email accepted")
	}

	sessionID, err := st.CreateSession(ctx, userID, "Integration")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := st.AddMessage(ctx, sessionID, store.RoleUser, "hello"); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if _, err := st.AddMessage(ctx, sessionID, store.RoleAssistant, "hi"); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	msgs, err := st.ListMessages(ctx, sessionID)
	if err != nil || len(msgs) != 2 {
		t.Fatalf("ListMessages: %v (%d)", err, len(msgs))
	}
	if msgs[0].Role != store.RoleUser || msgs[1].Role != store.RoleAssistant {
		t.Fatalf("message order wrong: %+v", msgs)
	}

	docID, err := st.UpsertDocument(ctx, store.DocumentRecord{
		SessionID: sessionID, UserID: userID, Filename: "a.txt", ContentType: "text/plain",
		SizeBytes: 5, Subject: "Physics", Category: "science", Emoji: "🔬", Confidence: 0.8,
		Text: "hello", Data: []byte("hello"),
	})
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	// Re-upload replaces rather than duplicates.
	docID2, err := st.UpsertDocument(ctx, store.DocumentRecord{
		SessionID: sessionID, UserID: userID, Filename: "b.txt", ContentType: "text/plain",
		SizeBytes: 5, Subject: "Chemistry", Category: "science", Emoji: "⚗️", Confidence: 0.9,
		Text: "world", Data: []byte("world"),
	})
	if err != nil {
		t.Fatalf("UpsertDocument (replace): %v", err)
	}
	if docID != docID2 {
		t.Fatalf("re-upload created a new row: %s vs %s", docID, docID2)
	}
	doc, found, err := st.GetSessionDocument(ctx, sessionID)
	if err != nil || !found || doc.Filename != "b.txt" || doc.Text != "world" {
		t.Fatalf("GetSessionDocument: %+v found=%v err=%v", doc, found, err)
	}

	if err := st.RecordUsage(ctx, userID, 321); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	stats, err := st.Stats(ctx)
	if err != nil || stats.Users != 1 || stats.Messages != 2 || stats.Tokens != 321 {
		t.Fatalf("Stats: %+v err=%v", stats, err)
	}

	// Deleting the session cascades messages and the document.
	if err := st.DeleteSession(ctx, sessionID, userID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, found, _ := st.GetSessionDocument(ctx, sessionID); found {
		t.Fatal("document survived session delete")
	}
}

func TestRetentionPruneIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dsn := startPostgres(t, ctx)
	applyMigrations(t, dsn)

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("NewWithDSN: %v", err)
	}
	defer st.DB.Close()

	userID, err := st.CreateUser(ctx, "prune@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	oldID, err := st.CreateSession(ctx, userID, "old")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := st.DB.ExecContext(ctx, `UPDATE chat_sessions SET updated_at=NOW() - INTERVAL '100 days' WHERE id=$1`, oldID); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if _, err := st.CreateSession(ctx, userID, "fresh"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	n, err := st.DeleteSessionsBefore(ctx, time.Now().Add(-90*24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("DeleteSessionsBefore: n=%d err=%v", n, err)
	}
	sessions, err := st.ListSessions(ctx, userID)
	if err != nil || len(sessions) != 1 || sessions[0].Title != "fresh" {
		t.Fatalf("ListSessions after prune: %+v err=%v", sessions, err)
	}
}
