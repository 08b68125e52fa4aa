package skills

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestInvokeUnknownSkill(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Invoke(context.Background(), "nope", nil); !errors.Is(err, ErrUnknownSkill) {
		t.Errorf("got %v, want ErrUnknownSkill", err)
	}
}

func TestInvokeWrapsHandlerError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	r.Register("broken", "", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return nil, boom
	})

	_, err := r.Invoke(context.Background(), "broken", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("wrapped cause lost: %v", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error should name the skill: %v", err)
	}
}

func TestInvokeRecoversPanic(t *testing.T) {
	r := NewRegistry()
	r.Register("panicky", "", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		panic("oh no")
	})

	_, err := r.Invoke(context.Background(), "panicky", nil)
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Errorf("panic not converted to error: %v", err)
	}
}

func TestInvokeEchoesParams(t *testing.T) {
	r := NewRegistry()
	r.Register("echo", "returns its params", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var v map[string]string
		if err := json.Unmarshal(params, &v); err != nil {
			return nil, err
		}
		return v, nil
	})

	out, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{"hello":"world"}`))
	if err != nil {
		t.Fatal(err)
	}
	if out.(map[string]string)["hello"] != "world" {
		t.Errorf("unexpected result: %v", out)
	}
}

func TestListSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("zeta", "", nil)
	r.Register("alpha", "", nil)

	list := r.List()
	if len(list) != 2 || list[0].ID != "alpha" || list[1].ID != "zeta" {
		t.Errorf("unexpected order: %+v", list)
	}
}
