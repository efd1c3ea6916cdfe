package metrics

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"
)

// CorpusStatus is what the metrics index page reports about the corpus
// currently served.
type CorpusStatus struct {
	Ready   bool
	Version uint64
	Moments int
}

var indexPage = template.Must(template.New("index").Parse(`<html><body>
<h1>echomindr metrics</h1>
{{if .Ready}}<p>snapshot v{{.Version}}, {{.Moments}} moments</p>{{else}}<p>corpus not loaded</p>{{end}}
<p><a href="/metrics">/metrics</a></p>
</body></html>
`))

// ServerMux routes /metrics to the Prometheus handler and renders a small
// status page at the root. status may be nil.
func ServerMux(status func() CorpusStatus) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		var st CorpusStatus
		if status != nil {
			st = status()
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexPage.Execute(w, st); err != nil {
			slog.Error("metrics index render failed", "error", err)
		}
	})
	return mux
}

// StartServer serves ServerMux on its own port so scrapes never queue
// behind API traffic.
func StartServer(port int, status func() CorpusStatus) (shutdown func(context.Context) error) {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      ServerMux(status),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return server.Shutdown
}
