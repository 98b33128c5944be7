package pilosa

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestNewTranslator(t *testing.T) {
	dir, err := ioutil.TempDir("", "translator")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	tests := []struct {
		kind string
		path string
		err  bool
	}{
		{kind: TranslatorLevelDB, path: filepath.Join(dir, "keys")},
		{kind: TranslatorBolt, path: filepath.Join(dir, "keys.bolt")},
		{kind: TranslatorMemory},
		{kind: "redis", err: true},
	}
	for _, test := range tests {
		t.Run(test.kind, func(t *testing.T) {
			tr, err := newTranslator(test.kind, test.path)
			if test.err {
				if err == nil {
					t.Fatalf("expected an error for translator '%s'", test.kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("opening translator: %v", err)
			}
			if c, ok := tr.(io.Closer); ok {
				defer c.Close()
			}
			id, err := tr.GetID(FieldStation, "Bay St")
			if err != nil {
				t.Fatalf("getting id: %v", err)
			}
			if key, err := tr.Get(FieldStation, id); err != nil || key != "Bay St" {
				t.Fatalf("unexpected key for id %d: %s, %v", id, key, err)
			}
		})
	}
}

func TestMainMissingStore(t *testing.T) {
	m := NewMain()
	m.StorePath = filepath.Join(os.TempDir(), "no-such-store.parquet")
	m.Translator = TranslatorMemory
	if err := m.Run(); err == nil {
		t.Fatal("expected an error for a missing store")
	}
}
