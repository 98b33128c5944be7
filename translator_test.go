package bikeshare

import (
	"reflect"
	"strconv"
	"sync"
	"testing"
)

func MustBe(t *testing.T, thing1, thing2 interface{}, context ...string) {
	t.Helper()
	var ctx string
	if len(context) > 0 {
		ctx = context[0] + ": "
	}
	if !reflect.DeepEqual(thing1, thing2) {
		t.Fatalf("%v'%#v' != '%#v'", ctx, thing1, thing2)
	}
}

func TestMapTranslator(t *testing.T) {
	mt := NewMapTranslator()
	id, err := mt.GetID("station", "Bay St / Bloor St W")
	MustBe(t, err, nil)
	MustBe(t, id, uint64(0), "first")
	id, err = mt.GetID("station", "Bay St / Bloor St W")
	MustBe(t, err, nil)
	MustBe(t, id, uint64(0), "repeat")
	id, err = mt.GetID("station", "King St W / Spadina Ave")
	MustBe(t, err, nil)
	MustBe(t, id, uint64(1), "second key")
	id, err = mt.GetID("area", "Annex")
	MustBe(t, err, nil)
	MustBe(t, id, uint64(0), "other field")

	key, err := mt.Get("station", 1)
	MustBe(t, err, nil)
	MustBe(t, key, "King St W / Spadina Ave")
	if _, err := mt.Get("station", 7); err == nil {
		t.Fatalf("expected error for unknown id")
	}
	if _, err := mt.Get("nope", 0); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestConcMapTranslator(t *testing.T) {
	mt := NewMapTranslator()
	wg := &sync.WaitGroup{}
	rets := make([][]uint64, 8)
	for i := 0; i < 8; i++ {
		rets[i] = make([]uint64, 500)
		wg.Add(1)
		go func(ret []uint64) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				id, err := mt.GetID("f1", strconv.Itoa(j))
				if err != nil {
					t.Errorf("getting id: %v", err)
					return
				}
				ret[j] = id
			}
		}(rets[i])
	}
	wg.Wait()
	for i := 1; i < 8; i++ {
		MustBe(t, rets[i], rets[0], "goroutine "+strconv.Itoa(i))
	}
	seen := make(map[uint64]bool)
	for _, id := range rets[0] {
		if seen[id] {
			t.Fatalf("id %d allocated twice", id)
		}
		seen[id] = true
	}
}
