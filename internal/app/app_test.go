package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var registryData = map[string]string{
	"arin":    "arin|US|ipv4|8.0.0.0|16777216|19921201|allocated\narin|US|asn|3356|1|20000315|assigned\narin|US|ipv6|2600::|12|20061011|allocated\n",
	"ripencc": "ripencc|CH|ipv4|77.109.128.0|32768|20070807|allocated\nripencc|CH|asn|13030|1|19991220|assigned\n",
	"afrinic": "2|afrinic|20240101|0|00000000|20240101|00000\n",
	"apnic":   "apnic|AU|ipv4|1.0.0.0|256|20110811|assigned\n",
	"lacnic":  "lacnic|BR|ipv4|200.128.0.0|65536|19980101|allocated\n",
}

// writeSettings points a settings file at an httptest server standing in for
// the registries and returns its path.
func writeSettings(t *testing.T, extra map[string]any) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := registryData[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	for _, key := range []string{"REDIS_URL", "IP2CC_DATABASE_DSN", "IP2CC_COUNTRIES", "IP2CC_POLICY", "IP2CC_PROXY", "IP2CC_GEOLITE_COUNTRY_DB"} {
		t.Setenv(key, "")
	}

	settings := map[string]any{
		"sources": []string{
			srv.URL + "/arin",
			srv.URL + "/ripencc",
			srv.URL + "/afrinic",
			srv.URL + "/apnic",
			srv.URL + "/lacnic",
		},
		"temp_dir":  t.TempDir(),
		"log_level": "error",
	}
	for k, v := range extra {
		settings[k] = v
	}

	data, err := json.Marshal(settings)
	if err != nil {
		t.Fatalf("marshal settings: %v", err)
	}
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Run(context.Background(), args, &out)
	return out.String(), err
}

func TestRunPrintsOneLinePerQuery(t *testing.T) {
	path := writeSettings(t, nil)

	out, err := run(t, "-settings", path, "-countries", "US", "8.8.8.8", "77.109.144.219", "2600::1", "3356", "AS13030", "nonsense")
	if err != nil {
		t.Fatalf("Run returned %v", err)
	}

	want := []string{
		"8.8.8.8 US true",
		"77.109.144.219 Unknown false",
		"2600::1 US true",
		"3356 - true",
		"AS13030 - false",
		"nonsense Unknown false",
	}
	got := strings.Split(strings.TrimSpace(out), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(got), len(want), out)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRunExcludePolicyFromSettings(t *testing.T) {
	path := writeSettings(t, map[string]any{"countries": []string{"CH"}, "filter_policy": "exclude"})

	out, err := run(t, "-settings", path, "77.109.144.219", "8.8.8.8", "13030")
	if err != nil {
		t.Fatalf("Run returned %v", err)
	}
	want := "77.109.144.219 CH false\n8.8.8.8 Unknown true\n13030 - false\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestRunCompareWithoutDatabase(t *testing.T) {
	path := writeSettings(t, nil)

	out, err := run(t, "-settings", path, "-countries", "US", "-compare", "8.8.8.8")
	if err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if out != "8.8.8.8 US true\n" {
		t.Fatalf("output = %q", out)
	}
}

func TestRunErrors(t *testing.T) {
	path := writeSettings(t, nil)

	if _, err := run(t, "-settings", path, "-countries", "US"); !errors.Is(err, ErrNoQueries) {
		t.Fatalf("err = %v, want ErrNoQueries", err)
	}
	if _, err := run(t, "-settings", path, "8.8.8.8"); !errors.Is(err, ErrNoCountries) {
		t.Fatalf("err = %v, want ErrNoCountries", err)
	}
	if _, err := run(t, "-settings", path, "-countries", "US", "-policy", "deny", "8.8.8.8"); err == nil {
		t.Fatal("expected an error for an unknown policy")
	}
}

func TestRunIncompleteIngestion(t *testing.T) {
	path := writeSettings(t, map[string]any{"sources": []string{"http://127.0.0.1:0/arin"}})

	_, err := run(t, "-settings", path, "-countries", "US", "8.8.8.8")
	if err == nil || !strings.Contains(err.Error(), "just 0 RIR databases were downloaded out of 1") {
		t.Fatalf("err = %v, want an incomplete ingestion error", err)
	}
}

func TestRunVersion(t *testing.T) {
	out, err := run(t, "-version")
	if err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if !strings.HasPrefix(out, "ip2cc dev") {
		t.Fatalf("output = %q", out)
	}
}

func TestAsnQuery(t *testing.T) {
	cases := []struct {
		query string
		asn   string
		ok    bool
	}{
		{"3356", "3356", true},
		{"AS3356", "3356", true},
		{"as13030", "13030", true},
		{"AS", "", false},
		{"", "", false},
		{"8.8.8.8", "", false},
		{"2600::1", "", false},
		{"ASN1", "", false},
	}
	for _, tc := range cases {
		asn, ok := asnQuery(tc.query)
		if asn != tc.asn || ok != tc.ok {
			t.Errorf("asnQuery(%q) = %q, %v; want %q, %v", tc.query, asn, ok, tc.asn, tc.ok)
		}
	}
}
