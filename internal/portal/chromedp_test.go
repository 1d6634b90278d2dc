package portal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const searchPage = `<!doctype html>
<html><body>
<input id="app-text-0" type="text">
<button class="app-button btn btn-secondary btn-block" onclick="search()">Szukaj</button>
<table><tbody id="results"></tbody></table>
<script>
function search() {
	const q = document.getElementById("app-text-0").value;
	const body = document.getElementById("results");
	body.innerHTML = "";
	setTimeout(() => {
		if (q === "Linux") {
			body.innerHTML =
				"<tr><td>Serwery</td><td>ID-1</td><td>Tryb podstawowy</td></tr>" +
				"<tr><td>Licencje</td><td>ID-2</td><td>Przetarg</td></tr>";
		} else if (q === "proxmox") {
			body.innerHTML = "<tr><td colspan='3'>Brak wyników</td></tr>";
		} else {
			const row = document.createElement("tr");
			for (const text of ["Zapytanie", q, "Tryb podstawowy"]) {
				const cell = document.createElement("td");
				cell.textContent = text;
				row.appendChild(cell);
			}
			body.appendChild(row);
		}
	}, 150);
}
</script>
</body></html>`

func requireChrome(t *testing.T) {
	t.Helper()
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no Chrome binary available")
}

func testConfig(url string) Config {
	return Config{
		SearchURL:         url,
		SearchInput:       "#app-text-0",
		SubmitButton:      "button.app-button.btn.btn-secondary.btn-block",
		ResultsTable:      "tbody",
		Headless:          true,
		NavigationTimeout: 15 * time.Second,
		RenderTimeout:     5 * time.Second,
		PollInterval:      50 * time.Millisecond,
		Settle:            200 * time.Millisecond,
	}
}

func TestNewChromedpValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{}, nil)
	require.Error(t, err)

	cfg := testConfig("https://example.com")
	cfg.ResultsTable = ""
	_, err = NewChromedp(cfg, nil)
	require.Error(t, err)

	p, err := NewChromedp(Config{
		SearchURL:    "https://example.com",
		SearchInput:  "#q",
		SubmitButton: "button",
		ResultsTable: "tbody",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, p.cfg.NavigationTimeout)
	assert.Equal(t, 20*time.Second, p.cfg.RenderTimeout)
	assert.Equal(t, 250*time.Millisecond, p.cfg.PollInterval)
}

func TestChromedpSessionSearch(t *testing.T) {
	requireChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, searchPage)
	}))
	defer srv.Close()

	p, err := NewChromedp(testConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	session, err := p.Open(ctx)
	require.NoError(t, err)
	defer session.Close() //nolint:errcheck // test cleanup

	rows, err := session.Search(ctx, "Linux")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ID-1", rows[0].Identifier)
	assert.Equal(t, "Licencje", rows[1].Title)

	rows, err = session.Search(ctx, "proxmox")
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
}

func TestChromedpSessionSubmitsEachPhraseAlone(t *testing.T) {
	requireChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, searchPage)
	}))
	defer srv.Close()

	p, err := NewChromedp(testConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	session, err := p.Open(ctx)
	require.NoError(t, err)
	defer session.Close() //nolint:errcheck // test cleanup

	for _, phrase := range []string{"Mikrotik", "mtcna", "mtcre", "unifi"} {
		rows, err := session.Search(ctx, phrase)
		require.NoError(t, err, phrase)
		require.Len(t, rows, 1, phrase)
		assert.Equal(t, phrase, rows[0].Identifier)
	}

	rows, err := session.Search(ctx, "Linux")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ID-1", rows[0].Identifier)
}

func TestChromedpOpenFailsWhenFormMissing(t *testing.T) {
	requireChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><body>maintenance</body></html>`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.NavigationTimeout = 2 * time.Second
	p, err := NewChromedp(cfg, zap.NewNop())
	require.NoError(t, err)

	session, err := p.Open(context.Background())
	require.Error(t, err)
	assert.Nil(t, session)
}
