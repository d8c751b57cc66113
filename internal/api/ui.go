package api

import (
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"sync2notion/internal/batch"
	"sync2notion/internal/report"
)

const refreshSeconds = 2

// formValues are the upload form inputs echoed back into the page.
type formValues struct {
	URL          string
	Token        string
	CollectionID string
	Tags         string
}

var uiTemplates = template.Must(template.New("layout").Funcs(template.FuncMap{
	"percent": func(f float64) int { return int(f*100 + 0.5) },
}).Parse(`{{define "head"}}
<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  {{if .Refresh}}<meta http-equiv="refresh" content="{{.Refresh}}"/>{{end}}
  <title>Sync2Notion</title>
  <style>
    body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Cantarell,Noto Sans,sans-serif;max-width:880px;margin:32px auto;padding:0 16px;color:#0b0b0b;background:#fafafa}
    header{margin-bottom:24px;display:flex;justify-content:space-between;align-items:baseline}
    h1{font-size:22px;margin:0 0 8px}
    a{color:#0b63e5;text-decoration:none}
    a:hover{text-decoration:underline}
    .card{background:#fff;border:1px solid #e9e9e9;border-radius:10px;padding:16px;margin:12px 0}
    .btn{display:inline-block;background:#0b63e5;color:#fff;border:none;padding:10px 14px;border-radius:8px;cursor:pointer}
    label{display:block;margin:10px 0 4px;font-weight:600}
    input[type=text],input[type=password],input[type=url]{padding:9px 10px;border:1px solid #dcdcdc;border-radius:8px;width:100%;box-sizing:border-box}
    .muted{color:#666}
    .mono{font-family:ui-monospace,SFMono-Regular,Menlo,Monaco,Consolas,monospace}
    .list{margin:0;padding-left:18px}
    .banner{border-radius:10px;padding:12px 16px;margin:12px 0}
    .banner.success{background:#edf7ed;border:1px solid #b7dfb9}
    .banner.warning{background:#fff8e1;border:1px solid #ffe08a}
    .banner.error{background:#fff6f6;border:1px solid #f2b8b5}
    .banner.info{background:#eef4fd;border:1px solid #c6dafc}
    .bar{height:8px;background:#efefef;border-radius:4px;overflow:hidden}
    .bar > div{height:8px;background:#0b63e5}
    .ok{color:#1e7b34}
    .fail{color:#b3261e}
    pre{background:#f4f4f4;padding:12px;border-radius:8px;overflow:auto}
    footer{margin-top:24px;color:#666;font-size:12px}
  </style>
</head>
<body>
  <header>
    <h1><a href="/">Sync2Notion</a></h1>
    <a href="/ui/help">Read me before you start</a>
  </header>
{{end}}

{{define "foot"}}
  <footer>
    <div>API base: <span class="mono">/api/v1</span> · metrics: <span class="mono">/metrics</span></div>
  </footer>
</body>
</html>
{{end}}

{{define "error"}}
  {{if .Error}}
  <div class="banner error">
    <strong class="fail">Error:</strong> {{.Error}}
  </div>
  {{end}}
{{end}}

{{define "home"}}
  {{template "head" .}}
  {{template "error" .}}
  <div class="card">
    <h2>Upload to Notion</h2>
    <form method="post" action="/ui/batches" enctype="multipart/form-data">
      <label for="files">Files</label>
      <input id="files" type="file" name="files" multiple accept="{{.Accept}}"/>
      <div class="muted">Supported: {{.Accept}}</div>
      <label for="url">Or a web page URL</label>
      <input id="url" type="url" name="url" placeholder="https://example.org/article" value="{{.Form.URL}}"/>
      <label for="token">Notion token</label>
      <input id="token" type="password" name="token" value="{{.Form.Token}}" autocomplete="off"/>
      <label for="db_id">Database ID</label>
      <input id="db_id" type="text" name="db_id" value="{{.Form.CollectionID}}"/>
      <label for="tags">Tags (optional)</label>
      <input id="tags" type="text" name="tags" placeholder="docs, import" value="{{.Form.Tags}}"/>
      <div style="margin-top:16px"><button class="btn" type="submit">Upload</button></div>
    </form>
    <div class="muted">POST /api/v1/batches</div>
  </div>
  {{template "foot" .}}
{{end}}

{{define "batch"}}
  {{template "head" .}}
  <div class="card">
    <h2>Batch <span class="mono">{{.Batch.ID}}</span></h2>
    <div class="bar"><div style="width:{{percent .Progress}}%"></div></div>
    <div class="muted">{{len .Batch.Results}} of {{len .Batch.Jobs}} processed · {{.Batch.Verdict}}</div>
  </div>
  <div class="banner {{.Summary.Level}}">
    {{.Summary.Text}}
    {{if .Summary.HelpReference}} · <a href="/ui/help">Setup and troubleshooting</a>{{end}}
  </div>
  <div class="card">
    <h3>Results</h3>
    {{if .Items}}
    <ul class="list">
    {{range .Items}}
      <li>
        <div><strong>{{.Name}}</strong> <span class="{{if .Success}}ok{{else}}fail{{end}}">{{if .Success}}uploaded{{else}}failed{{end}}</span></div>
        <div class="muted">{{.Message}}</div>
        {{if .Link}}<div><a href="{{.Link}}" target="_blank" rel="noopener">View page</a></div>{{end}}
        {{if .Skipped}}<div><a href="/ui/batches/{{$.Batch.ID}}/items/{{.Index}}/skipped">Skipped contents ({{len .Skipped}})</a></div>{{end}}
      </li>
    {{end}}
    </ul>
    {{else}}
    <div class="muted">No results yet</div>
    {{end}}
  </div>
  {{template "foot" .}}
{{end}}

{{define "skipped"}}
  {{template "head" .}}
  <div class="card">
    <h2>Skipped contents</h2>
    <div class="muted">{{.Item.Name}}. These parts exceeded Notion limits and were left out of the page.</div>
    {{range .Item.Skipped}}<pre>{{.}}</pre>{{end}}
    <a href="/ui/batches/{{.BatchID}}">Back to batch</a>
  </div>
  {{template "foot" .}}
{{end}}

{{define "help"}}
  {{template "head" .}}
  {{range .Sections}}
  <div class="card">
    <h2>{{.Title}}</h2>
    <ul class="list">
    {{range .Entries}}
      <li>{{if .Term}}<strong>{{.Term}}:</strong> {{end}}{{.Text}}</li>
    {{end}}
    </ul>
  </div>
  {{end}}
  {{template "foot" .}}
{{end}}
`))

// RegisterUIRoutes registers minimal HTML UI without JS
func (a *API) RegisterUIRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(uiTemplates)
	router.GET("/", a.UIHome)
	router.POST("/ui/batches", a.UICreateBatch)
	router.GET("/ui/batches/:id", a.UIBatch)
	router.GET("/ui/batches/:id/items/:index/skipped", a.UISkipped)
	router.GET("/ui/help", a.UIHelp)
}

// UIHome renders the upload form, prefilled from the credential cache
func (a *API) UIHome(c *gin.Context) {
	stored, _ := a.cache.Load()
	c.HTML(http.StatusOK, "home", a.homeData("", formValues{
		Token:        stored.Token,
		CollectionID: stored.CollectionID,
		Tags:         stored.Tags,
	}))
}

// UICreateBatch starts a batch and redirects to its page
func (a *API) UICreateBatch(c *gin.Context) {
	state, err := a.submit(c)
	if err != nil {
		c.HTML(statusFor(err), "home", a.homeData(err.Error(), formValues{
			URL:          c.PostForm("url"),
			Token:        c.PostForm("token"),
			CollectionID: c.PostForm("db_id"),
			Tags:         c.PostForm("tags"),
		}))
		return
	}
	c.Redirect(http.StatusSeeOther, "/ui/batches/"+state.ID)
}

// UIBatch renders progress and results, refreshing until the batch is done
func (a *API) UIBatch(c *gin.Context) {
	state, ok := a.manager.Get(c.Param("id"))
	if !ok {
		c.HTML(http.StatusNotFound, "home", a.homeData("batch not found", formValues{}))
		return
	}
	data := gin.H{
		"Batch":    state,
		"Progress": report.Progress(state),
		"Summary":  report.Summarize(state),
		"Items":    report.Items(state),
	}
	if !state.Done() {
		data["Refresh"] = refreshSeconds
	}
	c.HTML(http.StatusOK, "batch", data)
}

// UISkipped shows the partial-failure detail of one item
func (a *API) UISkipped(c *gin.Context) {
	state, ok := a.manager.Get(c.Param("id"))
	if !ok {
		c.HTML(http.StatusNotFound, "home", a.homeData("batch not found", formValues{}))
		return
	}
	item, found := findItem(state, c.Param("index"))
	if !found || len(item.Skipped) == 0 {
		c.HTML(http.StatusNotFound, "home", a.homeData("no skipped contents for this item", formValues{}))
		return
	}
	c.HTML(http.StatusOK, "skipped", gin.H{"BatchID": state.ID, "Item": item})
}

// UIHelp renders setup and troubleshooting steps
func (a *API) UIHelp(c *gin.Context) {
	c.HTML(http.StatusOK, "help", gin.H{"Sections": report.Help})
}

func (a *API) homeData(errMsg string, form formValues) gin.H {
	return gin.H{
		"Error":  errMsg,
		"Form":   form,
		"Accept": strings.Join(a.manager.AllowedExtensions(), ","),
	}
}

func findItem(state batch.State, rawIndex string) (report.Item, bool) {
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		return report.Item{}, false
	}
	for _, item := range report.Items(state) {
		if item.Index == index {
			return item, true
		}
	}
	return report.Item{}, false
}
