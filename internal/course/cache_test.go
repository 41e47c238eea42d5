package course

import (
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/p-n-ai/pai-course/internal/curriculum"
	"github.com/p-n-ai/pai-course/internal/platform/cache"
)

func TestLessonKey(t *testing.T) {
	a := LessonKey("abc", "m1", curriculum.DepthSummary)
	b := LessonKey("abc", "m1", curriculum.DepthDeepDive)
	c := LessonKey("abd", "m1", curriculum.DepthSummary)

	if a == b || a == c {
		t.Errorf("keys should differ: %q %q %q", a, b, c)
	}
	if a != "lesson:abc:m1:summary" {
		t.Errorf("LessonKey() = %q", a)
	}
}

func TestMemoryLessonCache_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryLessonCache(time.Hour)
	c.now = func() time.Time { return now }
	ctx := t.Context()

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("empty cache should miss")
	}
	if err := c.Set(ctx, "k", "lesson"); err != nil {
		t.Fatal(err)
	}

	now = now.Add(59 * time.Minute)
	if v, ok, _ := c.Get(ctx, "k"); !ok || v != "lesson" {
		t.Errorf("Get() = %q, %v; want hit", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("entry should have expired")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want expired entry removed", c.Len())
	}
}

func TestRedisLessonCache_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := t.Context()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}

	endpoint, err := ctr.PortEndpoint(ctx, "6379/tcp", "redis")
	if err != nil {
		t.Fatalf("PortEndpoint() error = %v", err)
	}
	client, err := cache.New(ctx, endpoint)
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	defer client.Close()

	lessons := NewRedisLessonCache(client, time.Minute)
	key := LessonKey("abc", "m1", curriculum.DepthStandard)

	if _, ok, err := lessons.Get(ctx, key); err != nil || ok {
		t.Fatalf("Get() on empty cache = %v, %v; want miss", ok, err)
	}
	if err := lessons.Set(ctx, key, "# Lesson"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := lessons.Get(ctx, key)
	if err != nil || !ok || got != "# Lesson" {
		t.Errorf("Get() = %q, %v, %v", got, ok, err)
	}

	ttl, err := client.Client.TTL(ctx, "learn:"+key).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, %v; want up to one minute", ttl, err)
	}
}
