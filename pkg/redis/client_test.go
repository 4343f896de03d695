package redis

import (
	"testing"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/config"
)

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error when neither url nor address supplied")
	}
}

func TestOptionsFromConfigParsesURL(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:pw@localhost:6380/2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6380" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.DB != 2 {
		t.Fatalf("unexpected db %d", opts.DB)
	}
}

func TestKeyBuilders(t *testing.T) {
	c := &Client{}
	if got := c.IdempotencyKey("evt:processed:anomaly", "abc"); got != "kl:idempotency:evt:processed:anomaly:abc" {
		t.Fatalf("unexpected idempotency key %q", got)
	}
	if got := c.AccessSessionKey("sess-1"); got != "kl:session:access:sess-1" {
		t.Fatalf("unexpected session key %q", got)
	}
	if got := c.CounterKey("pending_orders"); got != "kl:counter:pending_orders" {
		t.Fatalf("unexpected counter key %q", got)
	}
}
