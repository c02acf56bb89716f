package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = time.Second
	wsSubscriber = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var (
	ErrNoTelemetry = errors.New("no telemetry published yet")
)

// ErrResponse renders an error as json with a matching status code.
type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	StatusText string `json:"status"`
	ErrorText  string `json:"error,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrUnavailable(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusServiceUnavailable,
		StatusText:     "Unavailable.",
		ErrorText:      err.Error(),
	}
}

func ErrNotFound(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusNotFound,
		StatusText:     "Not found.",
		ErrorText:      err.Error(),
	}
}

func diagRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if ENV.DEBUG {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer) // make sure this is last

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/telemetry", TelemetryHandler)
		r.Get("/config", ConfigHandler)
		r.Get("/config/channels/{name}", ChannelHandler)
	})

	r.Route("/ws", func(r chi.Router) {
		r.Get("/telemetry", TelemetryStreamHandler)
	})

	return r
}

func TelemetryHandler(w http.ResponseWriter, r *http.Request) {
	sample, ok := ENV.Telemetry.Latest()
	if !ok {
		render.Render(w, r, ErrUnavailable(ErrNoTelemetry))
		return
	}
	render.JSON(w, r, sample)
}

func ConfigHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, ENV.Config)
}

func ChannelHandler(w http.ResponseWriter, r *http.Request) {
	ch, err := ENV.Config.Channels.Channel(chi.URLParam(r, "name"))
	if err != nil {
		render.Render(w, r, ErrNotFound(err))
		return
	}
	render.JSON(w, r, ch)
}

// TelemetryStreamHandler pushes every sample to the client as json until it goes away.
func TelemetryStreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	samples, cancel := ENV.Telemetry.Subscribe(wsSubscriber)
	defer cancel()

	// reads only to notice the client closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case sample, ok := <-samples:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(sample); err != nil {
				log.WithError(err).Debug("telemetry client gone")
				return
			}
		}
	}
}
