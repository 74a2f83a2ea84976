package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/yndnr/tallymesh/internal/storage"
)

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	val := []byte("abc")
	if err := s.Set(ctx, []byte("k"), val); err != nil {
		t.Fatal(err)
	}
	val[0] = 'x'

	got, _ := s.Get(ctx, []byte("k"))
	if string(got) != "abc" {
		t.Errorf("Set() kept caller slice: got %q", got)
	}
	got[0] = 'y'
	again, _ := s.Get(ctx, []byte("k"))
	if string(again) != "abc" {
		t.Errorf("Get() exposed internal slice: got %q", again)
	}
}

func TestStore_SetIfAbsent(t *testing.T) {
	s := New()
	ctx := context.Background()

	ok, err := s.SetIfAbsent(ctx, []byte("k"), []byte("1"))
	if err != nil || !ok {
		t.Fatalf("first SetIfAbsent() = %v, %v", ok, err)
	}
	ok, err = s.SetIfAbsent(ctx, []byte("k"), []byte("2"))
	if err != nil || ok {
		t.Fatalf("second SetIfAbsent() = %v, %v", ok, err)
	}
	got, _ := s.Get(ctx, []byte("k"))
	if string(got) != "1" {
		t.Errorf("value = %q, want 1", got)
	}
}

func TestStore_ScanOrdered(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, k := range []string{"p/c", "p/a", "q/z", "p/b"} {
		_ = s.Set(ctx, []byte(k), []byte(k))
	}

	var keys []string
	_ = s.Scan(ctx, []byte("p/"), func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	})
	if len(keys) != 3 || keys[0] != "p/a" || keys[2] != "p/c" {
		t.Errorf("Scan() keys = %v", keys)
	}
}

func TestStore_Closed(t *testing.T) {
	s := New()
	_ = s.Close()

	if _, err := s.Get(context.Background(), []byte("k")); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Get() error = %v, want ErrClosed", err)
	}
	if _, err := s.SetIfAbsent(context.Background(), []byte("k"), nil); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("SetIfAbsent() error = %v, want ErrClosed", err)
	}
}
