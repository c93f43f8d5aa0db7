package api

import (
	"net/http"
	"os"
	"path/filepath"
)

// spaHandler serves a built single-page frontend. Paths that do not name a
// file fall back to index.html so client-side routes survive a reload.
type spaHandler struct {
	staticPath string
	indexPath  string
	fileServer http.Handler
}

func newSPAHandler(staticPath string) spaHandler {
	return spaHandler{
		staticPath: staticPath,
		indexPath:  "index.html",
		fileServer: http.FileServer(http.Dir(staticPath)),
	}
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(h.staticPath, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		http.ServeFile(w, r, filepath.Join(h.staticPath, h.indexPath))
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.fileServer.ServeHTTP(w, r)
}
