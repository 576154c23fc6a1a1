package mcp

import "net/http"

const landingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>PDF Ingest</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #0f172a; color: #e2e8f0; display: flex; justify-content: center; padding-top: 4rem; }
  .card { max-width: 640px; width: 90%; background: #1e293b; border-radius: 12px; padding: 2rem; }
  h1 { font-size: 1.5rem; margin: 0 0 1rem; }
  .endpoint { font-family: "SF Mono", Menlo, monospace; color: #a5b4fc; }
  li { margin-bottom: 0.4rem; }
</style>
</head>
<body>
<div class="card">
  <h1>PDF Ingest</h1>
  <ul>
    <li><span class="endpoint">POST /api/jobs</span> submit paths for ingestion</li>
    <li><span class="endpoint">GET /api/jobs/{id}</span> job status</li>
    <li><span class="endpoint">POST /api/documents/upload</span> upload a PDF</li>
    <li><span class="endpoint">POST /api/documents/load</span> ingest a path or URL</li>
    <li><span class="endpoint">POST /api/documents/scrape</span> ingest the PDFs linked from a page</li>
    <li><span class="endpoint">GET /api/index/count</span> stored document count</li>
    <li><span class="endpoint">/mcp</span> MCP Streamable HTTP</li>
    <li><span class="endpoint">/health</span> health check</li>
  </ul>
</div>
</body>
</html>`

// NewLandingHandler returns an HTTP handler that serves the landing page at /.
func NewLandingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(landingHTML))
	}
}
