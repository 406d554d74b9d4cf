package settings

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/store"
)

func testService(t *testing.T) (*Service, *store.DB) {
	t.Helper()
	f, err := os.CreateTemp("", "tally-settings-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := store.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(db), db
}

func TestParse_MissingLabelNamed(t *testing.T) {
	_, err := Parse(`[{"category":"X","metrics":[{"id":"a"}]}]`)
	if err == nil {
		t.Fatal("expected error for missing label")
	}
	if !errors.Is(err, apperr.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
	if !strings.Contains(err.Error(), "label") {
		t.Errorf("error does not name the field: %v", err)
	}
	if !strings.Contains(err.Error(), `"X"`) {
		t.Errorf("error does not name the category: %v", err)
	}
}

func TestSaveRaw_NullKeepsPrevious(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.SaveRaw(ctx, "null", ""); !errors.Is(err, apperr.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
	got, err := svc.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Config) != len(models.DefaultConfig()) {
		t.Errorf("categories = %d, want defaults kept", len(got.Config))
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want string
	}{
		"not array":        {`{"category":"X"}`, "JSON array"},
		"null":             {`null`, "JSON array"},
		"bad json":         {`[{"category":`, "malformed"},
		"category missing": {`[{"metrics":[]}]`, "'category' string"},
		"category number":  {`[{"category":3,"metrics":[]}]`, "'category' string"},
		"metrics missing":  {`[{"category":"X"}]`, "'metrics' array"},
		"metrics object":   {`[{"category":"X","metrics":{}}]`, "'metrics' array"},
		"empty id":         {`[{"category":"X","metrics":[{"id":"","label":"L"}]}]`, "id"},
		"id not string":    {`[{"category":"X","metrics":[{"id":1,"label":"L"}]}]`, "id: must be a string"},
		"bad link":         {`[{"category":"X","metrics":[{"id":"a","label":"L","linkScheme":5}]}]`, "linkScheme"},
		"duplicate id": {
			`[{"category":"X","metrics":[{"id":"a","label":"A"}]},{"category":"Y","metrics":[{"id":"a","label":"B"}]}]`,
			`metric id "a"`,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(tc.raw)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, apperr.ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %q, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestParse_NullLinksAllowed(t *testing.T) {
	cfg, err := Parse(`[{"category":"X","metrics":[{"id":"a","label":"A","linkPackage":null,"linkScheme":"app://"}]}]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := cfg[0].Metrics[0]
	if m.LinkPackage != nil {
		t.Errorf("linkPackage = %v, want nil", *m.LinkPackage)
	}
	if m.LinkScheme == nil || *m.LinkScheme != "app://" {
		t.Errorf("linkScheme = %v", m.LinkScheme)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	scheme := "run://"
	in := []models.CategoryConfig{
		{Category: "Mind", Metrics: []models.MetricConfig{{ID: "read", Label: "Read"}}},
		{Category: "Body", Metrics: []models.MetricConfig{{ID: "run", Label: "Ran", LinkScheme: &scheme}}},
	}
	text, err := Format(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(Format(x)): %v\n%s", err, text)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\nin  %+v\nout %+v", in, out)
	}
	if !strings.Contains(text, "\n  {") {
		t.Errorf("Format not indented:\n%s", text)
	}
}

func TestFormatDefaultConfigParses(t *testing.T) {
	text, err := Format(models.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(text); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestReformat(t *testing.T) {
	got, err := Reformat(`[{"a":1}]`)
	if err != nil {
		t.Fatal(err)
	}
	if got != "[\n  {\n    \"a\": 1\n  }\n]" {
		t.Errorf("Reformat = %q", got)
	}
	if _, err := Reformat(`[{`); !errors.Is(err, apperr.ErrInvalidConfig) {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	svc, _ := testService(t)
	got, err := svc.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, models.DefaultSettings()) {
		t.Errorf("Load on empty store = %+v", got)
	}
}

func TestLoad_CorruptConfigFallsBack(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()
	_ = db.PutSettings(ctx, map[string]string{store.KeyConfig: "{oops", store.KeyExportURL: "https://hook"})

	got, err := svc.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.ExportURL != "https://hook" {
		t.Errorf("export url = %q", got.ExportURL)
	}
	if !reflect.DeepEqual(got.Config, models.DefaultConfig()) {
		t.Errorf("config = %+v, want defaults", got.Config)
	}
}

func TestSaveRaw(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	saved, err := svc.SaveRaw(ctx, `[{"category":"X","metrics":[{"id":"a","label":"A"}]}]`, "  https://hook  ")
	if err != nil {
		t.Fatal(err)
	}
	if saved.ExportURL != "https://hook" {
		t.Errorf("url not trimmed: %q", saved.ExportURL)
	}

	got, _ := svc.Load(ctx)
	if !reflect.DeepEqual(got, saved) {
		t.Errorf("Load = %+v, want %+v", got, saved)
	}
}

func TestSaveRaw_InvalidKeepsPrevious(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	good, err := svc.SaveRaw(ctx, `[{"category":"X","metrics":[{"id":"a","label":"A"}]}]`, "https://hook")
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.SaveRaw(ctx, `[{"category":"X","metrics":[{"id":"a"}]}]`, "https://other")
	if !errors.Is(err, apperr.ErrInvalidConfig) {
		t.Fatalf("err = %v", err)
	}

	got, _ := svc.Load(ctx)
	if !reflect.DeepEqual(got, good) {
		t.Errorf("settings changed after invalid save: %+v", got)
	}
}

func TestSaveConfig_KeepsExportURL(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	_ = svc.Save(ctx, models.AppSettings{Config: models.DefaultConfig(), ExportURL: "https://hook"})

	got, err := svc.SaveConfig(ctx, `[{"category":"Only","metrics":[]}]`)
	if err != nil {
		t.Fatal(err)
	}
	if got.ExportURL != "https://hook" || len(got.Config) != 1 || got.Config[0].Category != "Only" {
		t.Errorf("SaveConfig = %+v", got)
	}
}
