package access

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
)

func TestJSONFileRepository_MissingFile(t *testing.T) {
	repo := NewJSONFileRepository(filepath.Join(t.TempDir(), "users.json"))

	users, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(users) != 0 {
		t.Errorf("len(users) = %d, want 0", len(users))
	}
}

func TestJSONFileRepository_LoadLenient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	content := `{
  "users": {
    "200": {"name": "Bob", "allowed": ["status", "teleport", 5, "lock"], "lang": "en"},
    "201": {"name": "NoList", "allowed": "lock"},
    "abc": {"name": "BadKey", "allowed": ["lock"]},
    "202": "not an object"
  }
}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	users, err := NewJSONFileRepository(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(users) != 2 {
		t.Fatalf("len(users) = %d, want 2 (%v)", len(users), users)
	}
	bob := users[200]
	if bob.Name != "Bob" || bob.Lang != LangEN {
		t.Errorf("bob = %+v", bob)
	}
	if want := []Capability{CapLock, CapStatus}; !slices.Equal(bob.Allowed, want) {
		t.Errorf("bob.Allowed = %v, want %v", bob.Allowed, want)
	}
	noList := users[201]
	if len(noList.Allowed) != 0 || noList.Lang != DefaultLanguage {
		t.Errorf("noList = %+v", noList)
	}
}

func TestJSONFileRepository_LoadLanguage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	content := `{
  "users": {
    "300": {"name": "En", "allowed": [], "lang": "en"},
    "301": {"name": "Fr", "allowed": [], "lang": "fr"},
    "302": {"name": "Upper", "allowed": [], "lang": "EN"},
    "303": {"name": "Empty", "allowed": [], "lang": ""},
    "304": {"name": "Missing", "allowed": []}
  }
}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	users, err := NewJSONFileRepository(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		id   Identity
		want Language
	}{
		{300, LangEN},
		{301, DefaultLanguage},
		{302, DefaultLanguage},
		{303, DefaultLanguage},
		{304, DefaultLanguage},
	}
	for _, tt := range tests {
		if got := users[tt.id].Lang; got != tt.want {
			t.Errorf("users[%d].Lang = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestJSONFileRepository_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewJSONFileRepository(path).Load(context.Background()); err == nil {
		t.Error("Load() expected error for invalid JSON")
	}
}

func TestJSONFileRepository_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "users.json")
	repo := NewJSONFileRepository(path)
	ctx := context.Background()

	in := map[Identity]UserRecord{
		200: {Identity: 200, Name: "Bob <b&b>", Allowed: []Capability{CapStatus, CapLock}, Lang: LangEN},
		555: {Identity: 555, Name: "Jane Doe", Allowed: []Capability{}, Lang: LangIT},
	}
	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(first), `<`) {
		t.Error("names must not be HTML-escaped")
	}

	loaded, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := repo.Save(ctx, loaded); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("save(load()) changed the file:\n%s\n---\n%s", first, second)
	}

	in[200] = UserRecord{Identity: 200, Name: "Bob <b&b>", Allowed: []Capability{CapLock, CapStatus}, Lang: LangEN}
	if !reflect.DeepEqual(loaded, in) {
		t.Errorf("loaded = %+v, want %+v", loaded, in)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != usersFilePermissions {
		t.Errorf("file mode = %o, want %o", perm, usersFilePermissions)
	}
}

func TestJSONFileRepository_Layout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	repo := NewJSONFileRepository(path)

	err := repo.Save(context.Background(), map[Identity]UserRecord{
		42: {Identity: 42, Name: "n", Allowed: []Capability{CapOpen}, Lang: LangIT},
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	want := `{
  "users": {
    "42": {
      "name": "n",
      "allowed": [
        "open"
      ],
      "lang": "it"
    }
  }
}
`
	if string(data) != want {
		t.Errorf("file = %s\nwant %s", data, want)
	}
}
