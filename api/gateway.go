package api

import (
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"moneybook/internal/logger"
	"moneybook/pkg/loadbalancer"
)

// StartGateway runs the front door: every request under /ledger/ is proxied
// to a ledger API upstream with the prefix stripped, and each hop lands in
// the audit log. With several upstreams configured the pool rotates them.
func StartGateway(port int, upstreams []string) {
	pool := loadbalancer.NewPool(upstreams)

	mux := http.NewServeMux()
	mux.HandleFunc("/ledger/", proxyHandler(pool))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("API Gateway is healthy"))
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		logger.Audit("[Gateway] " + r.URL.Path + " from " + r.RemoteAddr + " (route not found)")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("404 - Route not found"))
	})

	log.Printf("API Gateway started on :%d", port)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
		log.Fatalf("Gateway server failed: %v", err)
	}
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	return r.RemoteAddr
}

func proxyHandler(pool *loadbalancer.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		logger.Audit(fmt.Sprintf("[Gateway] %s %s from %s", r.Method, r.URL.Path, clientIP))

		target, err := url.Parse(pool.Next())
		if err != nil {
			logger.Audit(fmt.Sprintf("[Gateway] bad upstream URL for %s: %v", r.URL.Path, err))
			http.Error(w, "Bad upstream URL", http.StatusInternalServerError)
			return
		}

		proxy := httputil.NewSingleHostReverseProxy(target)
		r.URL.Path = strings.TrimPrefix(r.URL.Path, "/ledger")

		rw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		proxy.ServeHTTP(rw, r)
		if rw.statusCode >= 400 {
			logger.Audit(fmt.Sprintf("[Gateway] proxied %s to %s, status %d", r.URL.Path, target, rw.statusCode))
		}
	}
}

// statusWriter wraps http.ResponseWriter to capture the response status.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.statusCode = code
	sw.ResponseWriter.WriteHeader(code)
}
