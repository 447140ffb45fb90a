package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"elsa-quiz-room/internal/app"
	"elsa-quiz-room/internal/domain"
	"elsa-quiz-room/internal/infra/postgres"
	pgmigrations "elsa-quiz-room/internal/infra/postgres/migrations"
	infraredis "elsa-quiz-room/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun/migrate"
)

func TestQuizRoomEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := postgres.OpenDB(pgURL)
	defer db.Close()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	library := postgres.NewQuizLoader(pool)
	if err := library.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	quizRepo := infraredis.NewQuizRepository(redisClient, library, 5*time.Minute)
	rooms := infraredis.NewRoomStore(redisClient, 5*time.Minute, "integration", nil)
	archive := postgres.NewResultArchive(db)
	if err := archive.Ping(ctx); err != nil {
		t.Fatalf("ping results archive: %v", err)
	}
	outbox := &recorder{}
	orch := app.NewOrchestrator(
		app.NewRoomRegistry(rooms, nil),
		outbox,
		app.WithQuizRepository(quizRepo),
		app.WithResultSink(archive),
		app.WithRevealDelay(50*time.Millisecond),
	)

	admin, alice, bob := domain.ConnID("admin"), domain.ConnID("alice"), domain.ConnID("bob")
	mustHandle(t, orch, admin, app.CreateRoom{RequestedCode: "INT001"})
	exists, err := redisClient.Exists(ctx, "quiz:room:INT001").Result()
	if err != nil || exists != 1 {
		t.Fatalf("expected room code reserved in redis, exists=%d err=%v", exists, err)
	}

	mustHandle(t, orch, alice, app.JoinRoom{RoomCode: "INT001", Username: "Alice"})
	mustHandle(t, orch, bob, app.JoinRoom{RoomCode: "INT001", Username: "Bob"})
	mustHandle(t, orch, admin, app.LoadQuiz{RoomCode: "INT001", QuizID: "quiz-1"})
	mustHandle(t, orch, admin, app.StartQuiz{RoomCode: "INT001"})

	question, ok := outbox.last(alice, domain.EventNextQuestion).(domain.QuestionPayload)
	if !ok {
		t.Fatalf("alice did not receive the first question")
	}
	correct := indexOf(question.Options, "4")
	mustHandle(t, orch, bob, app.SubmitAnswer{RoomCode: "INT001", AnswerIndex: correct})
	mustHandle(t, orch, alice, app.SubmitAnswer{RoomCode: "INT001", AnswerIndex: (correct + 1) % 4})

	var reports []domain.FinalReport
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		reports, err = archive.RecentResults(ctx, "quiz-1", 10)
		if err != nil {
			t.Fatalf("recent results: %v", err)
		}
		if len(reports) > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if len(reports) != 1 {
		t.Fatalf("expected one archived report, got %d", len(reports))
	}
	report := reports[0]
	if report.RoomCode != "INT001" || len(report.Results) != 2 || report.Results[0].Name != "Bob" {
		t.Fatalf("expected bob leading in archived report, got %+v", report)
	}

	orch.Disconnect(ctx, alice)
	orch.Disconnect(ctx, bob)
	rooms.Drain()
	exists, err = redisClient.Exists(ctx, "quiz:room:INT001").Result()
	if err != nil || exists != 0 {
		t.Fatalf("expected room code released, exists=%d err=%v", exists, err)
	}
}

type recorder struct {
	mu     sync.Mutex
	events []sent
}

type sent struct {
	conn domain.ConnID
	evt  domain.Event
}

func (r *recorder) Send(conn domain.ConnID, evt domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sent{conn: conn, evt: evt})
}

func (r *recorder) last(conn domain.ConnID, typ string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].conn == conn && r.events[i].evt.Type == typ {
			return r.events[i].evt.Payload
		}
	}
	return nil
}

func mustHandle(t *testing.T, orch *app.Orchestrator, conn domain.ConnID, action app.Action) {
	t.Helper()
	if err := orch.Handle(context.Background(), conn, action); err != nil {
		t.Fatalf("%s by %s: %v", action.Name(), conn, err)
	}
}

func indexOf(options []string, want string) int {
	for i, o := range options {
		if o == want {
			return i
		}
	}
	return -1
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Arithmetic",
		Questions: []domain.Question{
			{
				Text:          "What is 2 + 2?",
				Options:       []string{"3", "4", "5", "6"},
				CorrectAnswer: domain.IndexKey(1),
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
