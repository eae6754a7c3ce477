package inspector

import (
	"fmt"
	"net/http"
	"time"
)

// ProcessTimeHeader carries the elapsed handling time of pass-through
// responses, in seconds with 4 decimal places.
const ProcessTimeHeader = "X-Process-Time"

// timingWriter injects the elapsed-time header just before the response
// status is committed, since headers cannot be added after WriteHeader.
type timingWriter struct {
	http.ResponseWriter
	start time.Time
	wrote bool
}

func (tw *timingWriter) WriteHeader(status int) {
	tw.stamp()
	tw.ResponseWriter.WriteHeader(status)
}

func (tw *timingWriter) Write(b []byte) (int, error) {
	tw.stamp()
	return tw.ResponseWriter.Write(b)
}

// finish stamps the header for handlers that never write a body or status
// (implicit 200 committed by the server).
func (tw *timingWriter) finish() {
	tw.stamp()
}

func (tw *timingWriter) stamp() {
	if tw.wrote {
		return
	}
	tw.wrote = true
	elapsed := time.Since(tw.start).Seconds()
	tw.Header().Set(ProcessTimeHeader, fmt.Sprintf("%.4f", elapsed))
}

// Flush forwards to the underlying writer when it supports streaming.
func (tw *timingWriter) Flush() {
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
