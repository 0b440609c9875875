package sites

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/v0xg/uiharness/internal/engine"
	"github.com/v0xg/uiharness/internal/engine/memengine"
	"github.com/v0xg/uiharness/internal/testdata"
)

// TheInternet simulates the-internet.herokuapp.com.
type TheInternet struct {
	user      testdata.User
	downloads map[string][]byte
}

var _ memengine.Site = (*TheInternet)(nil)

// NewTheInternet builds the site. Extra downloads are merged into the
// default listing.
func NewTheInternet(downloads map[string][]byte) (*TheInternet, error) {
	users, err := testdata.LoadUsers()
	if err != nil {
		return nil, err
	}
	files := map[string][]byte{
		"testfile.txt": []byte("This is a test file for the download page.\n"),
		"report.csv":   []byte("id,name\n1,alpha\n2,beta\n"),
	}
	for k, v := range downloads {
		files[k] = v
	}
	return &TheInternet{user: users.FormAuth, downloads: files}, nil
}

func (s *TheInternet) Host() string { return "the-internet.herokuapp.com" }

type internetState struct {
	mu       sync.Mutex
	loggedIn bool
	flash    string
	flashOK  bool
	result   string
	uploaded []string
}

func (s *TheInternet) NewState() any { return &internetState{} }

// controlDelay is how long the dynamic controls spinner runs.
const controlDelay = 150 * time.Millisecond

var examples = []struct{ Path, Title string }{
	{"/checkboxes", "Checkboxes"},
	{"/drag_and_drop", "Drag and Drop"},
	{"/dropdown", "Dropdown"},
	{"/dynamic_controls", "Dynamic Controls"},
	{"/download", "File Download"},
	{"/upload", "File Upload"},
	{"/login", "Form Authentication"},
	{"/javascript_alerts", "JavaScript Alerts"},
	{"/windows", "Multiple Windows"},
	{"/nested_frames", "Nested Frames"},
}

func (s *TheInternet) Render(t *memengine.Tab, u *url.URL) (string, error) {
	st := t.State().(*internetState)
	st.mu.Lock()
	defer st.mu.Unlock()

	data := map[string]any{}
	takeFlash := func() {
		data["Flash"], data["FlashOK"] = st.flash, st.flashOK
		st.flash = ""
	}

	switch p := u.Path; p {
	case "", "/":
		data["Examples"] = examples
		return renderInternet("index", data)
	case "/login":
		takeFlash()
		return renderInternet("login", data)
	case "/secure":
		if !st.loggedIn {
			st.flash, st.flashOK = "You must login to view the secure area!", false
			return "", &memengine.Redirect{URL: "/login"}
		}
		takeFlash()
		return renderInternet("secure", data)
	case "/logout":
		st.loggedIn = false
		st.flash, st.flashOK = "You logged out of a secure area!", true
		return "", &memengine.Redirect{URL: "/login"}
	case "/javascript_alerts":
		data["Result"] = st.result
		return renderInternet("alerts", data)
	case "/nested_frames":
		return renderInternet("nested", data)
	case "/frame_top":
		return renderInternet("frame_top", data)
	case "/frame_left", "/frame_middle", "/frame_right", "/frame_bottom":
		data["Label"] = strings.ToUpper(strings.TrimPrefix(p, "/frame_"))
		return renderInternet("frame_leaf", data)
	case "/checkboxes":
		return renderInternet("checkboxes", data)
	case "/dropdown":
		return renderInternet("dropdown", data)
	case "/drag_and_drop":
		return renderInternet("drag_and_drop", data)
	case "/dynamic_controls":
		return renderInternet("dynamic_controls", data)
	case "/windows":
		return renderInternet("windows", data)
	case "/windows/new":
		return renderInternet("window_new", data)
	case "/download":
		names := make([]string, 0, len(s.downloads))
		for name := range s.downloads {
			names = append(names, name)
		}
		slices.Sort(names)
		data["Files"] = names
		return renderInternet("download", data)
	case "/upload":
		if st.uploaded != nil {
			data["Uploaded"] = strings.Join(st.uploaded, "\n")
			st.uploaded = nil
			return renderInternet("uploaded", data)
		}
		return renderInternet("upload", data)
	}
	return renderInternet("notfound", data)
}

func (s *TheInternet) Handle(t *memengine.Tab, ev memengine.Event) (bool, error) {
	st := t.State().(*internetState)
	switch ev.Type {
	case memengine.EventSubmit:
		switch t.URL().Path {
		case "/login":
			return true, s.login(t, st)
		case "/upload":
			files := t.Files("#file-upload")
			if len(files) == 0 {
				return true, nil
			}
			st.mu.Lock()
			st.uploaded = files
			st.mu.Unlock()
			return true, t.Rerender()
		}
	case memengine.EventDrop:
		return swapColumns(ev.Source, ev.Target), nil
	case memengine.EventClick:
		if js, ok := ev.Target.Attr("onclick"); ok {
			if js == "swapCheckbox()" || js == "swapInput()" {
				swapControl(t, ev.Target, js)
				return true, nil
			}
			return true, s.alert(t, st, js)
		}
		if href, ok := ev.Target.Attr("href"); ok && strings.HasPrefix(href, "download/") {
			name := path.Base(href)
			content, found := s.downloads[name]
			if !found {
				return true, fmt.Errorf("no download %q", name)
			}
			return true, t.Download(name, content)
		}
	}
	return false, nil
}

func (s *TheInternet) login(t *memengine.Tab, st *internetState) error {
	user, pass := t.Value("#username"), t.Value("#password")
	st.mu.Lock()
	switch {
	case user != s.user.Username:
		st.flash, st.flashOK = "Your username is invalid!", false
	case pass != s.user.Password:
		st.flash, st.flashOK = "Your password is invalid!", false
	default:
		st.loggedIn = true
		st.flash, st.flashOK = "You logged into a secure area!", true
	}
	ok := st.loggedIn
	st.mu.Unlock()
	if ok {
		return t.Navigate("/secure")
	}
	return t.Rerender()
}

// alert runs the handler named by onclick. The page lock is released while
// the dialog is open, so state is only touched afterwards.
func (s *TheInternet) alert(t *memengine.Tab, st *internetState, js string) error {
	var result string
	switch js {
	case "jsAlert()":
		t.ShowDialog(engine.DialogAlert, "I am a JS Alert", "")
		result = "You successfully clicked an alert"
	case "jsConfirm()":
		if ok, _ := t.ShowDialog(engine.DialogConfirm, "I am a JS Confirm", ""); ok {
			result = "You clicked: Ok"
		} else {
			result = "You clicked: Cancel"
		}
	case "jsPrompt()":
		ok, text := t.ShowDialog(engine.DialogPrompt, "I am a JS prompt", "")
		switch {
		case !ok:
			result = "You entered: null"
		case text == "":
			result = "You entered:"
		default:
			result = "You entered: " + text
		}
	default:
		return nil
	}
	st.mu.Lock()
	st.result = result
	st.mu.Unlock()
	return t.Rerender()
}

// swapControl runs one of the dynamic controls buttons: the button is
// disabled behind a spinner until the control has been swapped.
func swapControl(t *memengine.Tab, button *goquery.Selection, js string) {
	form := button.Closest("form")
	button.SetAttr("disabled", "")
	form.Find("#message").Remove()
	form.Find("#loading").RemoveAttr("style")
	t.Later(controlDelay, func(t *memengine.Tab) {
		var msg string
		switch js {
		case "swapCheckbox()":
			if box := form.Find("#checkbox"); box.Length() > 0 {
				box.Remove()
				button.SetText("Add")
				msg = "It's gone!"
			} else {
				form.PrependHtml(`<input type="checkbox" id="checkbox">`)
				button.SetText("Remove")
				msg = "It's back!"
			}
		case "swapInput()":
			in := form.Find("input[type=text]")
			if _, off := in.Attr("disabled"); off {
				in.RemoveAttr("disabled")
				button.SetText("Disable")
				msg = "It's enabled!"
			} else {
				in.SetAttr("disabled", "")
				button.SetText("Enable")
				msg = "It's disabled!"
			}
		}
		button.RemoveAttr("disabled")
		form.Find("#loading").SetAttr("style", "display:none")
		form.AppendHtml(`<p id="message">` + template.HTMLEscapeString(msg) + `</p>`)
	})
}

// swapColumns exchanges the headers of the dragged and the drop column.
func swapColumns(src, dst *goquery.Selection) bool {
	from, to := src.Closest(".column"), dst.Closest(".column")
	if from.Length() == 0 || to.Length() == 0 {
		return false
	}
	if d, _ := from.Attr("draggable"); d != "true" || from.IsSelection(to) {
		return true
	}
	fh, th := from.Find("header"), to.Find("header")
	ft, tt := fh.Text(), th.Text()
	fh.SetText(tt)
	th.SetText(ft)
	return true
}

func renderInternet(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := internetTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

var internetTemplates = template.Must(template.New("internet").Parse(`
{{define "flash"}}{{if .Flash}}<div id="flash-messages" class="large-12 columns"><div id="flash" class="flash {{if .FlashOK}}success{{else}}error{{end}}" data-alert="">{{.Flash}}<a class="close" href="#">×</a></div></div>{{end}}{{end}}

{{define "index"}}<html><head><title>The Internet</title></head><body>
<h1 class="heading">Welcome to the-internet</h1>
<h2>Available Examples</h2>
<ul>{{range .Examples}}<li><a href="{{.Path}}">{{.Title}}</a></li>{{end}}</ul>
</body></html>{{end}}

{{define "login"}}<html><head><title>The Internet</title></head><body>
{{template "flash" .}}
<div class="example">
  <h2>Login Page</h2>
  <h4 class="subheader">This is where you can log into the secure area.</h4>
  <form name="login" id="login" action="/authenticate" method="post">
    <label for="username">Username</label><input type="text" name="username" id="username" value="">
    <label for="password">Password</label><input type="password" name="password" id="password" value="">
    <button class="radius" type="submit"><i class="fa fa-2x fa-sign-in"> Login</i></button>
  </form>
</div>
</body></html>{{end}}

{{define "secure"}}<html><head><title>The Internet</title></head><body>
{{template "flash" .}}
<div class="example">
  <h2><i class="icon-lock"></i> Secure Area</h2>
  <h4 class="subheader">Welcome to the Secure Area. When you are done click logout below.</h4>
  <a class="button secondary radius" href="/logout"><i class="icon-2x icon-signout"> Logout</i></a>
</div>
</body></html>{{end}}

{{define "alerts"}}<html><head><title>The Internet</title></head><body>
<div class="example">
  <h3>JavaScript Alerts</h3>
  <ul>
    <li><button onclick="jsAlert()">Click for JS Alert</button></li>
    <li><button onclick="jsConfirm()">Click for JS Confirm</button></li>
    <li><button onclick="jsPrompt()">Click for JS Prompt</button></li>
  </ul>
  <h4>Result:</h4>
  <p id="result" style="color:green">{{.Result}}</p>
</div>
</body></html>{{end}}

{{define "nested"}}<html><head><title>Frames</title></head>
<frameset rows="50%,50%">
  <frame src="/frame_top" scrolling="no" name="frame-top">
  <frame src="/frame_bottom" scrolling="no" name="frame-bottom">
</frameset>
</html>{{end}}

{{define "frame_top"}}<html><head></head>
<frameset cols="33%,33%,33%" name="frameset-middle">
  <frame src="/frame_left" scrolling="no" name="frame-left">
  <frame src="/frame_middle" scrolling="no" name="frame-middle">
  <frame src="/frame_right" scrolling="no" name="frame-right">
</frameset>
</html>{{end}}

{{define "frame_leaf"}}<html><head></head><body>{{if eq .Label "MIDDLE"}}<div id="content">MIDDLE</div>{{else}}{{.Label}}{{end}}</body></html>{{end}}

{{define "checkboxes"}}<html><head><title>The Internet</title></head><body>
<div class="example">
  <h3>Checkboxes</h3>
  <form id="checkboxes">
    <input type="checkbox"> checkbox 1<br>
    <input type="checkbox" checked> checkbox 2
  </form>
</div>
</body></html>{{end}}

{{define "dropdown"}}<html><head><title>The Internet</title></head><body>
<div class="example">
  <h3>Dropdown List</h3>
  <select id="dropdown">
    <option value="" disabled="disabled" selected="selected">Please select an option</option>
    <option value="1">Option 1</option>
    <option value="2">Option 2</option>
  </select>
</div>
</body></html>{{end}}

{{define "drag_and_drop"}}<html><head><title>The Internet</title></head><body>
<div class="example">
  <h3>Drag and Drop</h3>
  <div id="columns">
    <div class="column" id="column-a" draggable="true"><header>A</header></div>
    <div class="column" id="column-b" draggable="true"><header>B</header></div>
  </div>
</div>
</body></html>{{end}}

{{define "dynamic_controls"}}<html><head><title>The Internet</title></head><body>
<div class="example">
  <h4>Dynamic Controls</h4>
  <p>This example demonstrates when elements (e.g., checkbox, input field, etc.) are changed asynchronously.</p>
  <h4 class="subheader">Remove/add</h4>
  <form id="checkbox-example">
    <div id="checkbox"><input type="checkbox" label="blah"> A checkbox</div>
    <button autocomplete="off" type="button" onclick="swapCheckbox()">Remove</button>
    <div id="loading" style="display:none">Wait for it...</div>
  </form>
  <hr>
  <h4 class="subheader">Enable/disable</h4>
  <form id="input-example">
    <input type="text" disabled>
    <button autocomplete="off" type="button" onclick="swapInput()">Enable</button>
    <div id="loading" style="display:none">Wait for it...</div>
  </form>
</div>
</body></html>{{end}}

{{define "windows"}}<html><head><title>The Internet</title></head><body>
<div class="example">
  <h3>Opening a new window</h3>
  <a href="/windows/new" target="_blank">Click Here</a>
</div>
</body></html>{{end}}

{{define "window_new"}}<html><head><title>New Window</title></head><body>
<div class="example"><h3>New Window</h3></div>
</body></html>{{end}}

{{define "download"}}<html><head><title>The Internet</title></head><body>
<div class="example">
  <h3>File Downloader</h3>
  {{range .Files}}<a href="download/{{.}}">{{.}}</a>
  {{end}}
</div>
</body></html>{{end}}

{{define "upload"}}<html><head><title>The Internet</title></head><body>
<div class="example">
  <h3>File Uploader</h3>
  <form action="/upload" method="post" enctype="multipart/form-data">
    <input id="file-upload" type="file" name="file">
    <input id="file-submit" class="button" type="submit" value="Upload">
  </form>
</div>
</body></html>{{end}}

{{define "uploaded"}}<html><head><title>The Internet</title></head><body>
<div class="example">
  <h3>File Uploaded!</h3>
  <div id="uploaded-files" class="panel text-center">{{.Uploaded}}</div>
</div>
</body></html>{{end}}

{{define "notfound"}}<html><head><title>The Internet</title></head><body><h1>Not Found</h1></body></html>{{end}}
`))
