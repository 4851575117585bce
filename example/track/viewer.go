package main

import (
	"github.com/BenCrafterRED/colortracker/render"
	"gocv.io/x/gocv"
	"log"
	"net/http"
	"sync"
)

// Viewer fans encoded JPEG display frames out to connected MJPEG clients
type Viewer struct {
	letterbox *render.Letterbox
	resized   gocv.Mat

	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewViewer returns a Viewer scaling frames of the source size into the
// viewer size
func NewViewer(srcWidth, srcHeight, width, height int) *Viewer {
	return &Viewer{
		letterbox: render.NewLetterbox(srcWidth, srcHeight, width, height),
		resized:   gocv.NewMat(),
		clients:   make(map[chan []byte]struct{}),
	}
}

// Close frees the resize buffers
func (v *Viewer) Close() {
	v.letterbox.Close()
	v.resized.Close()
}

// Publish encodes a display frame and hands it to every client.  It is
// called from the acquisition loop so clients that fall behind skip frames.
func (v *Viewer) Publish(display gocv.Mat) {

	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.clients) == 0 {
		return
	}

	v.letterbox.Resize(display, &v.resized, render.Black)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, v.resized)

	if err != nil {
		log.Printf("Error encoding frame: %v", err)
		return
	}

	// copy out of C memory so the frame outlives the buffer
	jpg := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	for c := range v.clients {
		select {
		case c <- jpg:
		default:
		}
	}
}

func (v *Viewer) subscribe() chan []byte {
	c := make(chan []byte, 2)

	v.mu.Lock()
	v.clients[c] = struct{}{}
	v.mu.Unlock()

	return c
}

func (v *Viewer) unsubscribe(c chan []byte) {
	v.mu.Lock()
	delete(v.clients, c)
	v.mu.Unlock()
}

// Stream is the HTTP handler function used to stream video frames to browser
func (v *Viewer) Stream(w http.ResponseWriter, r *http.Request) {

	log.Printf("New client connection established\n")

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	frames := v.subscribe()
	defer v.unsubscribe(frames)

	for {
		select {
		case <-r.Context().Done():
			log.Printf("Client disconnected\n")
			return

		case jpg := <-frames:
			w.Write([]byte("--frame\r\n"))
			w.Write([]byte("Content-Type: image/jpeg\r\n\r\n"))
			w.Write(jpg)
			w.Write([]byte("\r\n"))

			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}
