package httpapi

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/sublayer/sublayer/pkg/log"
)

// targetLanguages is the dropdown on the status page. Any language name the
// settings accept still works through the API.
var targetLanguages = []string{
	"Hebrew", "Arabic", "Persian", "Spanish", "French", "German",
	"Italian", "Portuguese", "Russian", "Polish", "Dutch", "Turkish",
	"Greek", "Chinese", "Japanese", "Korean",
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/status", http.StatusFound)
}

type jobView struct {
	Name          string
	Status        string
	Percent       int
	QueuePosition int
	Elapsed       string
}

type cacheView struct {
	Fingerprint string
	FileName    string
	State       string
	SizeKB      int64
}

type statusData struct {
	TargetLanguage string
	Languages      []string
	Jobs           []jobView
	Entries        []cacheView
}

func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	data := statusData{
		TargetLanguage: s.settings.Get().TargetLanguage,
		Languages:      targetLanguages,
	}

	for _, job := range s.tracker.Snapshot() {
		data.Jobs = append(data.Jobs, jobView{
			Name:          job.Name,
			Status:        string(job.Status),
			Percent:       job.Percent(),
			QueuePosition: job.QueuePosition,
			Elapsed:       time.Since(job.StartTime).Round(time.Second).String(),
		})
	}

	entries, err := s.cache.List()
	if err != nil {
		log.Warn("Cache listing failed for status page: %v", err)
	}
	for _, entry := range entries {
		state := "In Progress"
		if len(entry.Languages) > 0 {
			state = "Ready (" + strings.Join(entry.Languages, ", ") + ")"
		}
		name := entry.Metadata.FileName
		if name == "" {
			name = entry.Fingerprint
		}
		data.Entries = append(data.Entries, cacheView{
			Fingerprint: entry.Fingerprint,
			FileName:    name,
			State:       state,
			SizeKB:      entry.SizeBytes / 1024,
		})
	}

	renderPage(w, statusTemplate, data)
}

func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	renderPage(w, settingsTemplate, nil)
}

func (s *Server) handleBrowsePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	renderPage(w, browseTemplate, nil)
}

// handleLanguage switches the target language from the status page form.
func (s *Server) handleLanguage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	language := r.FormValue("language")
	if language == "" {
		writeError(w, http.StatusBadRequest, "language parameter is required")
		return
	}

	if err := s.settings.SetTargetLanguage(language); err != nil {
		writeAppError(w, err)
		return
	}

	log.Info("Target language set to %s", language)
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries, err := s.cache.List()
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"entries": entries,
			"count":   len(entries),
		})

	case http.MethodDelete:
		if err := s.cache.Clear(); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Cache cleared",
		})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleCacheEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	fingerprint := strings.TrimPrefix(r.URL.Path, "/cache/")
	if fingerprint == "" || strings.Contains(fingerprint, "/") {
		writeError(w, http.StatusBadRequest, "invalid cache entry")
		return
	}

	if err := s.cache.Delete(fingerprint); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Cache entry deleted",
	})
}

func renderPage(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		log.Error("Template rendering failed: %v", err)
	}
}

var statusTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="5">
<title>Subtitle Translator</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 2em; }
th, td { border: 1px solid #ccc; padding: 6px 12px; text-align: left; }
nav a { margin-right: 1em; }
</style>
</head>
<body>
<nav><a href="/status">Status</a><a href="/browse">Browse</a><a href="/settings">Settings</a></nav>
<h1>Subtitle Translator</h1>

<form method="POST" action="/language">
<label>Target language:
<select name="language">
{{range .Languages}}<option value="{{.}}"{{if eq . $.TargetLanguage}} selected{{end}}>{{.}}</option>{{end}}
</select>
</label>
<button type="submit">Set</button>
</form>

<h2>Active Translations</h2>
{{if .Jobs}}
<table>
<tr><th>Subtitle</th><th>Status</th><th>Progress</th><th>Queue</th><th>Elapsed</th></tr>
{{range .Jobs}}
<tr><td>{{.Name}}</td><td>{{.Status}}</td><td>{{.Percent}}%</td><td>{{if .QueuePosition}}#{{.QueuePosition}}{{else}}-{{end}}</td><td>{{.Elapsed}}</td></tr>
{{end}}
</table>
{{else}}<p>No translations running.</p>{{end}}

<h2>Cache</h2>
{{if .Entries}}
<table>
<tr><th>Subtitle</th><th>State</th><th>Size</th></tr>
{{range .Entries}}
<tr><td>{{.FileName}}</td><td>{{.State}}</td><td>{{.SizeKB}} KB</td></tr>
{{end}}
</table>
{{else}}<p>Cache is empty.</p>{{end}}
</body>
</html>
`))

var settingsTemplate = template.Must(template.New("settings").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Settings</title>
<style>
body { font-family: sans-serif; margin: 2em; max-width: 40em; }
label { display: block; margin: 0.5em 0; }
input, select { width: 100%; }
nav a { margin-right: 1em; }
</style>
</head>
<body>
<nav><a href="/status">Status</a><a href="/browse">Browse</a><a href="/settings">Settings</a></nav>
<h1>Settings</h1>
<form id="settings-form"></form>
<button onclick="save()">Save</button>
<p id="result"></p>
<script>
const fields = [
  ["openSubtitlesApiKey","OpenSubtitles API key"],
  ["openSubtitlesUsername","OpenSubtitles username"],
  ["openSubtitlesPassword","OpenSubtitles password"],
  ["modelProvider","Model provider (ollama/openai)"],
  ["ollamaBaseUrl","Ollama URL"],
  ["ollamaModel","Ollama model"],
  ["openAiApiKey","OpenAI API key"],
  ["openAiModel","OpenAI model"],
  ["targetLanguage","Target language"],
];
async function load() {
  const s = await (await fetch("/api/settings")).json();
  const form = document.getElementById("settings-form");
  for (const [key, label] of fields) {
    const l = document.createElement("label");
    l.textContent = label;
    const i = document.createElement("input");
    i.id = key;
    i.value = s[key] || "";
    if (key.toLowerCase().includes("password")) i.type = "password";
    l.appendChild(i);
    form.appendChild(l);
  }
}
async function save() {
  const body = {};
  for (const [key] of fields) body[key] = document.getElementById(key).value;
  const resp = await fetch("/api/settings", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify(body),
  });
  const data = await resp.json();
  document.getElementById("result").textContent = data.message || data.error;
}
load();
</script>
</body>
</html>
`))

var browseTemplate = template.Must(template.New("browse").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Browse</title>
<style>
body { font-family: sans-serif; margin: 2em; }
li { margin: 0.3em 0; cursor: pointer; }
nav a { margin-right: 1em; }
</style>
</head>
<body>
<nav><a href="/status">Status</a><a href="/browse">Browse</a><a href="/settings">Settings</a></nav>
<h1>Browse</h1>
<p id="path"></p>
<ul id="listing"></ul>
<script>
async function browse(path) {
  const resp = await fetch("/api/browse?path=" + encodeURIComponent(path));
  const data = await resp.json();
  if (data.error) {
    document.getElementById("path").textContent = data.error;
    return;
  }
  document.getElementById("path").textContent = "/" + (data.path || "");
  const list = document.getElementById("listing");
  list.innerHTML = "";
  if (data.path) {
    const up = document.createElement("li");
    up.textContent = "..";
    up.onclick = () => browse(data.path.split("/").slice(0, -1).join("/"));
    list.appendChild(up);
  }
  for (const entry of data.entries) {
    const li = document.createElement("li");
    li.textContent = (entry.isDirectory ? "[DIR] " : "") + entry.name +
      (entry.language ? " (" + entry.language + ")" : "");
    if (entry.isDirectory) li.onclick = () => browse(entry.path);
    list.appendChild(li);
  }
}
browse("");
</script>
</body>
</html>
`))
