package api

import "net/http"

// handleListClasses returns every class that can currently be resolved,
// including aliases defined by manifests in the include paths.
func (s *Server) handleListClasses(w http.ResponseWriter, _ *http.Request) {
	classes := s.manager.Classes()
	writeJSON(w, http.StatusOK, map[string]any{
		"classes":       classes,
		"count":         len(classes),
		"include_paths": s.manager.IncludePaths(),
	})
}
